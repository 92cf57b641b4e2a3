package store

import (
	"database/sql"

	"github.com/BurntSushi/migration"
	log "github.com/sirupsen/logrus"
)

// schemaVersion supplies the Get and Set hooks migration.OpenWith uses to
// track which migrations a database has seen. The stock hooks only speak
// one SQL dialect, so each driver describes its own version table here.
type schemaVersion struct {
	query  string // one row, one column: the highest applied version
	record string // inserts its single argument as a newly applied version
	create string // creates the version table
}

// Get returns the highest applied version. A database without a version
// table has had nothing applied.
func (v schemaVersion) Get(tx migration.LimitedTx) (int, error) {
	var n sql.NullInt64
	if err := tx.QueryRow(v.query).Scan(&n); err != nil {
		log.WithError(err).Debug("no schema version table")
		return 0, nil
	}
	return int(n.Int64), nil
}

// Set records version, creating the version table on first use.
func (v schemaVersion) Set(tx migration.LimitedTx, version int) error {
	if _, err := tx.Exec(v.record, version); err == nil {
		return nil
	}
	if _, err := tx.Exec(v.create); err != nil {
		return err
	}
	_, err := tx.Exec(v.record, version)
	return err
}

// execlist runs each statement in order, stopping at the first error.
func execlist(tx migration.LimitedTx, stmts []string) error {
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
