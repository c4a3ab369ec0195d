// Package arm is a small active-record layer over database/sql.
//
// A Model binds an entity name to a table, its identity columns and a
// registry connection. Records of the model hold an ordered mapping of
// column values and persist themselves with Save, an upsert that picks the
// statement for the connection dialect:
//
//	reg := arm.NewRegistry()
//	if _, err := reg.Open(arm.DefaultConnection, "sqlite", "file:app.db"); err != nil {
//		return err
//	}
//	defer reg.Close()
//
//	users, err := arm.NewModel(reg, "User", arm.WithTable("users"))
//	if err != nil {
//		return err
//	}
//	u := users.New().Set("name", "Alice").Set("age", 30)
//	if _, err := u.Save(ctx); err != nil {
//		return err
//	}
//	fmt.Println(u.ID()) // assigned by the database
//
// PostgreSQL, MySQL and SQLite are supported. Values are rendered as SQL
// literals by dialect/sql, so every statement Save and Delete issue is a
// single self-contained text.
package arm
