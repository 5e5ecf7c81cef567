package credentials

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) {
	t.Helper()
	if err := OpenDB(filepath.Join(t.TempDir(), "credentials.db")); err != nil {
		t.Fatalf("Failed to open credentials DB: %v", err)
	}
	t.Cleanup(func() {
		CloseDB()
		db = nil
	})
}

func TestStoreAndGetCredentials(t *testing.T) {
	openTestDB(t)

	creds := map[string]string{
		"kind":      "s3",
		"bucket":    "tenant-bucket",
		"accessKey": "AK",
		"secretKey": "SK",
		"region":    "eu-west-1",
	}
	if err := StoreCredentials("tenant-a", creds); err != nil {
		t.Fatalf("StoreCredentials failed: %v", err)
	}

	got, err := GetCredentials("tenant-a")
	if err != nil {
		t.Fatalf("GetCredentials failed: %v", err)
	}
	if len(got) != len(creds) {
		t.Fatalf("Expected %d entries, got %d", len(creds), len(got))
	}
	for k, v := range creds {
		if got[k] != v {
			t.Errorf("Entry %s: expected %s, got %s", k, v, got[k])
		}
	}
}

func TestGetUnknownCredentials(t *testing.T) {
	openTestDB(t)

	if _, err := GetCredentials("nobody"); err == nil {
		t.Error("Expected error for unknown credential set")
	}
}

func TestDeleteCredentials(t *testing.T) {
	openTestDB(t)

	if err := StoreCredentials("tenant-a", map[string]string{"kind": "gcs"}); err != nil {
		t.Fatalf("StoreCredentials failed: %v", err)
	}
	if err := DeleteCredentials("tenant-a"); err != nil {
		t.Fatalf("DeleteCredentials failed: %v", err)
	}
	if _, err := GetCredentials("tenant-a"); err == nil {
		t.Error("Expected error after delete")
	}
}
