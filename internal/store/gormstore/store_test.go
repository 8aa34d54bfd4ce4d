package gormstore

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/store"
	"github.com/medtrack/internal/store/storetest"
)

func TestSQLiteStore(t *testing.T) {
	counter := 0
	storetest.Run(t, func(t *testing.T) store.Store {
		counter++
		path := filepath.Join(t.TempDir(), fmt.Sprintf("store-%d.db", counter))
		gdb, err := db.Open(db.Options{Driver: db.DriverSQLite, Path: path, Silent: true})
		if err != nil {
			t.Fatalf("failed to open test database: %v", err)
		}
		s := New(gdb)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
