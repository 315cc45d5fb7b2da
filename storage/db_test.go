package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if ok, _ := db.Has([]byte("missing")); ok {
		t.Fatalf("missing key must not exist")
	}

	value := []byte("one")
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("put: %v", err)
	}
	// The store must not alias caller buffers.
	value[0] = 'X'
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "one" {
		t.Fatalf("expected stored copy, got %q", got)
	}
	got[0] = 'Y'
	again, _ := db.Get([]byte("k"))
	if string(again) != "one" {
		t.Fatalf("returned buffer must be a copy, got %q", again)
	}
}

func TestMemDBWriteBatch(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	entries := []BatchEntry{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}
	if err := db.WriteBatch(entries); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	for _, entry := range entries {
		got, err := db.Get(entry.Key)
		if err != nil || string(got) != string(entry.Value) {
			t.Fatalf("get %s: %q %v", entry.Key, got, err)
		}
	}
	// The store must not alias batch buffers.
	entries[0].Value[0] = 'X'
	got, _ := db.Get([]byte("a"))
	if string(got) != "1" {
		t.Fatalf("batch values must be copied, got %q", got)
	}
}

func TestLevelDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	db, err := NewLevelDB(path)
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil || string(got) != "v" {
		t.Fatalf("get: %q %v", got, err)
	}
	ok, err := db.Has([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("has: %v %v", ok, err)
	}

	if err := db.WriteBatch([]BatchEntry{
		{Key: []byte("x"), Value: []byte("1")},
		{Key: []byte("y"), Value: []byte("2")},
	}); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	got, err = db.Get([]byte("y"))
	if err != nil || string(got) != "2" {
		t.Fatalf("batched value: %q %v", got, err)
	}
}
