package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// SQL keeps values in a database table with the columns (id, value,
// version). The version column backs the Versioned interface: every write
// sets it one higher, and a conditional save only updates the row whose
// version still matches.
//
// Two tables are created by the migrations, "objects" and "refs". Use
// NewSQL with a handle from OpenQL or OpenMysql.
type SQL struct {
	db      *sql.DB
	dialect *dialect
	table   string
}

var (
	_ Store     = &SQL{}
	_ Versioned = &SQL{}
)

// Table names created by the migrations.
const (
	ObjectTable = "objects"
	RefTable    = "refs"
)

// dialect holds the statements which differ between databases. Every
// statement takes its arguments in the order listed beside it. The table
// name is substituted for %[1]s.
type dialect struct {
	name   string
	get    string // id
	exists string // id
	list   string // pattern
	insert string // id, value, version
	update string // value, version, id, old version
	delete string // id

	// pattern turns a key prefix into the argument for list
	pattern func(prefix string) string
	// isDuplicate recognises a unique key violation
	isDuplicate func(err error) bool
}

// NewSQL returns a store using the given table of db. Use the handle
// returned by OpenQL or OpenMysql so the statements match the database.
func NewSQL(db *DB, table string) *SQL {
	return &SQL{db: db.DB, dialect: db.dialect, table: table}
}

// DB is a migrated database handle along with its dialect.
type DB struct {
	*sql.DB
	dialect *dialect
}

func (s *SQL) stmt(q string) string {
	return fmt.Sprintf(q, s.table)
}

func (s *SQL) wrap(err error, op, key string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "%s %s %s %s", s.dialect.name, s.table, op, key)
}

// ListPrefix returns all the ids in the table starting with prefix.
func (s *SQL) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.stmt(s.dialect.list), s.dialect.pattern(prefix))
	if err != nil {
		return nil, s.wrap(err, "list", prefix)
	}
	defer rows.Close()
	var result []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, s.wrap(err, "list", prefix)
		}
		result = append(result, id)
	}
	return result, s.wrap(rows.Err(), "list", prefix)
}

// Get returns the value for key.
func (s *SQL) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, _, ok, err := s.Load(ctx, key)
	return data, ok, err
}

// Exists reports whether there is a row for key.
func (s *SQL) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, s.stmt(s.dialect.exists), key).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, s.wrap(err, "exists", key)
}

// Load returns the value and version for key.
func (s *SQL) Load(ctx context.Context, key string) ([]byte, Token, bool, error) {
	data, version, err := s.load(ctx, s.db, key)
	if err == sql.ErrNoRows {
		return nil, NoToken, false, nil
	} else if err != nil {
		return nil, NoToken, false, s.wrap(err, "load", key)
	}
	return data, versionToken(version), true, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *SQL) load(ctx context.Context, q queryer, key string) ([]byte, int64, error) {
	var data []byte
	var version int64
	err := q.QueryRowContext(ctx, s.stmt(s.dialect.get), key).Scan(&data, &version)
	return data, version, err
}

// Put inserts a row for key, or updates it when overwrite is set.
func (s *SQL) Put(ctx context.Context, key string, data []byte, overwrite bool) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, version, err := s.load(ctx, tx, key)
		switch {
		case err == sql.ErrNoRows:
			return s.insert(ctx, tx, key, data, ErrKeyExists)
		case err != nil:
			return err
		case !overwrite:
			return ErrKeyExists
		}
		_, err = s.update(ctx, tx, key, data, version)
		return err
	})
	if err == ErrKeyExists {
		return err
	}
	return s.wrap(err, "put", key)
}

// Save writes data if the row's version is still prev.
func (s *SQL) Save(ctx context.Context, key string, data []byte, prev Token) (Token, error) {
	var next int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if prev == NoToken {
			_, _, err := s.load(ctx, tx, key)
			if err == nil {
				return ErrPrecondition
			} else if err != sql.ErrNoRows {
				return err
			}
			next = 1
			return s.insert(ctx, tx, key, data, ErrPrecondition)
		}
		old, err := strconv.ParseInt(string(prev), 10, 64)
		if err != nil {
			return ErrPrecondition
		}
		n, err := s.update(ctx, tx, key, data, old)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrPrecondition
		}
		next = old + 1
		return nil
	})
	if err == ErrPrecondition {
		return NoToken, err
	} else if err != nil {
		return NoToken, s.wrap(err, "save", key)
	}
	return versionToken(next), nil
}

// insert adds a new row at version 1. A unique key violation is returned
// as dup.
func (s *SQL) insert(ctx context.Context, tx *sql.Tx, key string, data []byte, dup error) error {
	_, err := tx.ExecContext(ctx, s.stmt(s.dialect.insert), key, data, int64(1))
	if err != nil && s.dialect.isDuplicate(err) {
		return dup
	}
	return err
}

// update replaces the row for key if it is at version old, and returns the
// number of rows changed.
func (s *SQL) update(ctx context.Context, tx *sql.Tx, key string, data []byte, old int64) (int64, error) {
	result, err := tx.ExecContext(ctx, s.stmt(s.dialect.update), data, old+1, key, old)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Delete removes the row for key.
func (s *SQL) Delete(ctx context.Context, key string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.stmt(s.dialect.delete), key)
		return err
	})
	return s.wrap(err, "delete", key)
}

// inTx runs fn inside a transaction, committing if fn returns nil.
// QL requires every change to happen inside one.
func (s *SQL) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	err = fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func versionToken(v int64) Token {
	return Token(strconv.FormatInt(v, 10))
}
