package store

import (
	"regexp"
	"strings"

	"github.com/BurntSushi/migration"
	_ "github.com/cznic/ql/driver"
)

// This file adapts the SQL store to the QL embedded database. It is meant
// for single process deployments and for testing.

var qlDialect = &dialect{
	name:   "ql",
	get:    `SELECT value, version FROM %[1]s WHERE id == ?1`,
	exists: `SELECT version FROM %[1]s WHERE id == ?1`,
	list:   `SELECT id FROM %[1]s WHERE id LIKE ?1`,
	insert: `INSERT INTO %[1]s (id, value, version) VALUES (?1, ?2, ?3)`,
	update: `UPDATE %[1]s SET value = ?1, version = ?2 WHERE id == ?3 && version == ?4`,
	delete: `DELETE FROM %[1]s WHERE id == ?1`,

	// in QL, LIKE is a regular expression match
	pattern: func(prefix string) string {
		return "^" + regexp.QuoteMeta(prefix)
	},
	isDuplicate: func(err error) bool {
		return strings.Contains(err.Error(), "duplicate")
	},
}

// List of migrations to perform. Add new ones to the end.
// DO NOT change the order of items already in this list.
var qlMigrations = []migration.Migrator{
	qlschema1,
}

var qlVersioning = schemaVersion{
	query:  `SELECT max(version) FROM migration_version`,
	record: `INSERT INTO migration_version (version, applied) VALUES (?1, now())`,
	create: `CREATE TABLE migration_version (version int, applied time)`,
}

// OpenQL opens (creating if needed) a QL database in the given file and
// brings its schema up to date. The filename "memory" keeps everything in
// memory; "memory:name" gives an independent in-memory database per name.
func OpenQL(filename string) (*DB, error) {
	driver, dsn := "ql", filename
	if filename == "memory" || strings.HasPrefix(filename, "memory:") {
		driver, dsn = "ql-mem", filename+".db"
	}
	db, err := migration.OpenWith(
		driver,
		dsn,
		qlMigrations,
		qlVersioning.Get,
		qlVersioning.Set)
	if err != nil {
		return nil, err
	}
	return &DB{DB: db, dialect: qlDialect}, nil
}

func qlschema1(tx migration.LimitedTx) error {
	var s = []string{
		`CREATE TABLE IF NOT EXISTS objects (
			id string,
			value blob,
			version int64
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS objects_id ON objects (id)`,
		`CREATE TABLE IF NOT EXISTS refs (
			id string,
			value blob,
			version int64
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS refs_id ON refs (id)`,
	}
	return execlist(tx, s)
}
