package sql

import (
	"strings"
	"testing"

	"github.com/syssam/arm/dialect"
)

func BenchmarkQuoteValue_String(b *testing.B) {
	s := strings.Repeat("it's a \\ test ", 8)
	for _, d := range []dialect.Dialect{dialect.SQLite, dialect.MySQL, dialect.Postgres} {
		b.Run(string(d), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = QuoteValue(d, s)
			}
		})
	}
}

func BenchmarkQuoteValue_Mixed(b *testing.B) {
	values := []any{nil, true, 42, int64(7), 3.14, "Alice", []byte("blob")}
	for _, d := range []dialect.Dialect{dialect.SQLite, dialect.MySQL, dialect.Postgres} {
		b.Run(string(d), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				for _, v := range values {
					_, _ = QuoteValue(d, v)
				}
			}
		})
	}
}

func BenchmarkQuoteIdentifier(b *testing.B) {
	for _, d := range []dialect.Dialect{dialect.SQLite, dialect.MySQL, dialect.Postgres} {
		b.Run(string(d), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				QuoteTable(d, "public.users")
			}
		})
	}
}
