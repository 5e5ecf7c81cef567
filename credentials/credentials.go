package credentials

import (
	"encoding/json"

	"vodforge/logger"

	"github.com/cockroachdb/pebble"
)

// Named output-storage credential sets. Submissions reference a set by name
// so raw bucket secrets never travel inside a job token.

var db *pebble.DB

// OpenDB opens the Pebble DB for credentials at the specified path
func OpenDB(dbPath string) error {
	var err error
	db, err = pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		logger.Errorf("Failed to open Pebble DB: %v", err)
		return err
	}
	return nil
}

// CloseDB closes the DB
func CloseDB() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// GetCredentials returns the credential set stored under name.
func GetCredentials(name string) (map[string]string, error) {
	value, closer, err := db.Get([]byte(name))
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	creds := make(map[string]string)
	if err := json.Unmarshal(value, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// StoreCredentials stores the credential set under the given name
func StoreCredentials(name string, creds map[string]string) error {
	encodedCreds, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return db.Set([]byte(name), encodedCreds, pebble.Sync)
}

// DeleteCredentials deletes the credential set with the given name
func DeleteCredentials(name string) error {
	return db.Delete([]byte(name), pebble.Sync)
}
