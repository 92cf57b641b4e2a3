package store_test

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"sync/atomic"
	"testing"

	"github.com/ndlib/chasm/store"
	"github.com/ndlib/chasm/store/storetest"
)

func TestMemory(t *testing.T) {
	storetest.Basic(t, store.NewMemory())
	storetest.Race(t, store.NewMemory())
	storetest.Versioned(t, store.NewMemory())
	storetest.VersionedRace(t, store.NewMemory())
	storetest.CaseSensitive(t, store.NewMemory())
}

func TestMemoryStress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}
	storetest.Stress(t, store.NewMemory(), 10*1000*1000)
}

func tempFileSystem(t *testing.T) (*store.FileSystem, func()) {
	dir, err := ioutil.TempDir("", "chasm")
	if err != nil {
		t.Fatal(err)
	}
	return store.NewFileSystem(dir), func() { os.RemoveAll(dir) }
}

func TestFileSystem(t *testing.T) {
	s, cleanup := tempFileSystem(t)
	defer cleanup()
	storetest.Basic(t, s)
	storetest.Race(t, s)

	v, cleanup2 := tempFileSystem(t)
	defer cleanup2()
	storetest.Versioned(t, v)
	storetest.VersionedRace(t, v)
}

func TestFileSystemStress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}
	s, cleanup := tempFileSystem(t)
	defer cleanup()
	storetest.Stress(t, s, 10*1000*1000)
}

func TestPrefix(t *testing.T) {
	m := store.NewMemory()
	storetest.Basic(t, store.NewWithPrefix(m, "pre-"))
	storetest.Versioned(t, store.NewVersionedWithPrefix(m, "ref-"))
}

var qlcount int64

// openQL returns a fresh in-memory QL database.
func openQL(t *testing.T) *store.DB {
	n := atomic.AddInt64(&qlcount, 1)
	db, err := store.OpenQL(fmt.Sprintf("memory:test%d", n))
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func TestQL(t *testing.T) {
	db := openQL(t)
	defer db.Close()
	storetest.Basic(t, store.NewSQL(db, store.ObjectTable))
	storetest.Race(t, store.NewSQL(db, store.ObjectTable))
	storetest.Versioned(t, store.NewSQL(db, store.RefTable))
	storetest.VersionedRace(t, store.NewSQL(db, store.RefTable))
	storetest.CaseSensitive(t, store.NewSQL(db, store.RefTable))
}

func TestQLSchemaVersion(t *testing.T) {
	db := openQL(t)
	defer db.Close()
	var count, version int64
	err := db.QueryRow(`SELECT count(*), max(version) FROM migration_version`).Scan(&count, &version)
	if err != nil {
		t.Fatal(err)
	}
	// one row per applied migration and nothing else
	if count != 1 || version != 1 {
		t.Errorf("migration_version has %d rows, max %d", count, version)
	}
}

func TestQLTablesAreSeparate(t *testing.T) {
	db := openQL(t)
	defer db.Close()
	ctx := context.Background()
	objects := store.NewSQL(db, store.ObjectTable)
	refs := store.NewSQL(db, store.RefTable)
	if err := objects.Put(ctx, "key", []byte("x"), false); err != nil {
		t.Fatal(err)
	}
	ok, err := refs.Exists(ctx, "key")
	if err != nil || ok {
		t.Errorf("refs.Exists(key) = %v, %v", ok, err)
	}
}

// To run against MySQL, point CHASM_MYSQL_DSN at an empty database, e.g.
//
//	CHASM_MYSQL_DSN="test:test@tcp(localhost:3306)/chasm_test" go test -run MySQL
func TestMySQL(t *testing.T) {
	dsn := os.Getenv("CHASM_MYSQL_DSN")
	if dsn == "" {
		t.Skip("CHASM_MYSQL_DSN not set")
	}
	db, err := store.OpenMysql(dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	db.Exec("DELETE FROM objects")
	db.Exec("DELETE FROM refs")
	storetest.Basic(t, store.NewSQL(db, store.ObjectTable))
	storetest.Race(t, store.NewSQL(db, store.ObjectTable))
	storetest.Versioned(t, store.NewSQL(db, store.RefTable))
	storetest.VersionedRace(t, store.NewSQL(db, store.RefTable))
	storetest.CaseSensitive(t, store.NewSQL(db, store.RefTable))
}
