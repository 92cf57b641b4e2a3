package store

import (
	"strings"

	"github.com/BurntSushi/migration"
	"github.com/go-sql-driver/mysql"
)

var mysqlDialect = &dialect{
	name:   "mysql",
	get:    `SELECT value, version FROM %[1]s WHERE id = ? LIMIT 1`,
	exists: `SELECT version FROM %[1]s WHERE id = ? LIMIT 1`,
	list:   `SELECT id FROM %[1]s WHERE id LIKE ?`,
	insert: `INSERT INTO %[1]s (id, value, version) VALUES (?, ?, ?)`,
	update: `UPDATE %[1]s SET value = ?, version = ? WHERE id = ? AND version = ?`,
	delete: `DELETE FROM %[1]s WHERE id = ?`,

	pattern: func(prefix string) string {
		return likeEscaper.Replace(prefix) + "%"
	},
	isDuplicate: func(err error) bool {
		merr, ok := err.(*mysql.MySQLError)
		return ok && merr.Number == 1062 // ER_DUP_ENTRY
	},
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List of migrations to perform. Add new ones to the end.
// DO NOT change the order of items already in this list.
var mysqlMigrations = []migration.Migrator{
	mysqlschema1,
	mysqlschema2,
}

// Adapt the schema versioning for MySQL

var mysqlVersioning = schemaVersion{
	query:  `SELECT max(version) FROM migration_version`,
	record: `INSERT INTO migration_version (version, applied) VALUES (?, now())`,
	create: `CREATE TABLE migration_version (version INTEGER PRIMARY KEY, applied datetime)`,
}

// OpenMysql connects to the MySQL database given by dial and brings its
// schema up to date. The dial string has the form
// "user:password@tcp(host:port)/database".
func OpenMysql(dial string) (*DB, error) {
	if !strings.Contains(dial, "parseTime") {
		if strings.Contains(dial, "?") {
			dial += "&parseTime=true"
		} else {
			dial += "?parseTime=true"
		}
	}
	db, err := migration.OpenWith(
		"mysql",
		dial,
		mysqlMigrations,
		mysqlVersioning.Get,
		mysqlVersioning.Set)
	if err != nil {
		return nil, err
	}
	return &DB{DB: db, dialect: mysqlDialect}, nil
}

func mysqlschema1(tx migration.LimitedTx) error {
	var s = []string{
		`CREATE TABLE IF NOT EXISTS objects (
			id varchar(255) NOT NULL PRIMARY KEY,
			value longblob,
			version bigint NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS refs (
			id varchar(255) NOT NULL PRIMARY KEY,
			value longblob,
			version bigint NOT NULL
		)`,
	}
	return execlist(tx, s)
}

// Keys are compared byte for byte. The default collation folds case, which
// would let refs whose names differ only in case share a row.
func mysqlschema2(tx migration.LimitedTx) error {
	var s = []string{
		`ALTER TABLE objects MODIFY id varbinary(255) NOT NULL`,
		`ALTER TABLE refs MODIFY id varbinary(255) NOT NULL`,
	}
	return execlist(tx, s)
}
