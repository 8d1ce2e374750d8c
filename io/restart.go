package io

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Database is a hierarchical key/value store used for restart data. Values
// are typed; reading a missing or differently-typed key is an error, so a
// version mismatch or a truncated restart file surfaces immediately
// instead of silently supplying zeroes.
//
// Doubles round-trip bit for bit: the gob encoding of a float64 is exact,
// so a state saved and reloaded reproduces the run identically.
type Database struct {
	Ints    map[string]int
	Doubles map[string]float64
	Strings map[string]string
	Bools   map[string]bool
	Subs    map[string]*Database
}

// NewDatabase returns an empty database.
func NewDatabase() *Database {
	return &Database{
		Ints:    make(map[string]int),
		Doubles: make(map[string]float64),
		Strings: make(map[string]string),
		Bools:   make(map[string]bool),
		Subs:    make(map[string]*Database),
	}
}

func (db *Database) PutInt(key string, val int)        { db.Ints[key] = val }
func (db *Database) PutDouble(key string, val float64) { db.Doubles[key] = val }
func (db *Database) PutString(key string, val string)  { db.Strings[key] = val }
func (db *Database) PutBool(key string, val bool)      { db.Bools[key] = val }

// Sub returns the named nested database, creating it if needed.
func (db *Database) Sub(key string) *Database {
	if sub, ok := db.Subs[key]; ok {
		return sub
	}
	sub := NewDatabase()
	db.Subs[key] = sub
	return sub
}

func (db *Database) GetInt(key string) (int, error) {
	val, ok := db.Ints[key]
	if !ok {
		return 0, fmt.Errorf("restart database has no int entry '%s'", key)
	}
	return val, nil
}

func (db *Database) GetDouble(key string) (float64, error) {
	val, ok := db.Doubles[key]
	if !ok {
		return 0, fmt.Errorf("restart database has no double entry '%s'", key)
	}
	return val, nil
}

func (db *Database) GetString(key string) (string, error) {
	val, ok := db.Strings[key]
	if !ok {
		return "", fmt.Errorf("restart database has no string entry '%s'", key)
	}
	return val, nil
}

func (db *Database) GetBool(key string) (bool, error) {
	val, ok := db.Bools[key]
	if !ok {
		return false, fmt.Errorf("restart database has no bool entry '%s'", key)
	}
	return val, nil
}

// GetSub returns the named nested database, or an error if it is missing.
func (db *Database) GetSub(key string) (*Database, error) {
	sub, ok := db.Subs[key]
	if !ok {
		return nil, fmt.Errorf("restart database has no sub-database '%s'", key)
	}
	return sub, nil
}

// Save writes the database to a file.
func (db *Database) Save(fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(db); err != nil {
		return fmt.Errorf("writing restart file %s: %v", fname, err)
	}
	return nil
}

// LoadDatabase reads a database back from a file.
func LoadDatabase(fname string) (*Database, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	db := &Database{}
	if err := gob.NewDecoder(f).Decode(db); err != nil {
		return nil, fmt.Errorf("reading restart file %s: %v", fname, err)
	}
	return db, nil
}
