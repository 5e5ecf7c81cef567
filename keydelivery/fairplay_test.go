package keydelivery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSplitKeyIV(t *testing.T) {
	blob := "cab5b529ae28d5cc5e3e7bc3fd4a544d" + "08eecef4b026deec"
	key, iv, err := SplitKeyIV(blob)
	if err != nil {
		t.Fatalf("SplitKeyIV failed: %v", err)
	}
	if key != "cab5b529ae28d5cc5e3e7bc3fd4a544d" {
		t.Errorf("Wrong key: %s", key)
	}
	if iv != "08eecef4b026deec" {
		t.Errorf("Wrong iv: %s", iv)
	}
}

func TestSplitKeyIVTrimsWhitespace(t *testing.T) {
	blob := "  cab5b529ae28d5cc5e3e7bc3fd4a544d08eecef4b026deec\n"
	key, iv, err := SplitKeyIV(blob)
	if err != nil {
		t.Fatalf("SplitKeyIV failed: %v", err)
	}
	if len(key) != 32 || len(iv) != 16 {
		t.Errorf("Expected 32/16 split, got %d/%d", len(key), len(iv))
	}
}

func TestSplitKeyIVRejectsBadBlobs(t *testing.T) {
	cases := []struct {
		name string
		blob string
	}{
		{"empty", ""},
		{"exactly 32 chars leaves no iv", "cab5b529ae28d5cc5e3e7bc3fd4a544d"},
		{"46 chars leaves a truncated iv", "cab5b529ae28d5cc5e3e7bc3fd4a544d08eecef4b026"},
		{"shorter than key", "cab5b529"},
		{"not hex", "zzb5b529ae28d5cc5e3e7bc3fd4a544d08eecef4b026deec"},
	}
	for _, c := range cases {
		if _, _, err := SplitKeyIV(c.blob); err == nil {
			t.Errorf("%s: expected error for blob %q", c.name, c.blob)
		}
	}
}

func TestFairPlayKeyFlow(t *testing.T) {
	var assetBody, keyBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "svc-user" || pass != "svc-pass" {
			t.Errorf("Request to %s missing Basic auth credentials", r.URL.Path)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.RawQuery != "" {
			t.Errorf("Credentials or parameters leaked into the URL: %s", r.URL.String())
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		raw, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/asset":
			assetBody = string(raw)
			w.Write([]byte(`<AssetResponse><AssetId>asset-42</AssetId><KeyUri>skd://asset-42</KeyUri></AssetResponse>`))
		case "/key":
			keyBody = string(raw)
			w.Write([]byte(`<KeyResponse><Key>cab5b529ae28d5cc5e3e7bc3fd4a544d08eecef4b026deec</Key></KeyResponse>`))
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "svc-user", "svc-pass")
	material, err := c.FairPlayKey(context.Background(), "sintel")
	if err != nil {
		t.Fatalf("FairPlayKey failed: %v", err)
	}

	if material.AssetID != "asset-42" {
		t.Errorf("Wrong asset id: %s", material.AssetID)
	}
	if material.Key != "cab5b529ae28d5cc5e3e7bc3fd4a544d" {
		t.Errorf("Wrong key: %s", material.Key)
	}
	if material.IV != "08eecef4b026deec" {
		t.Errorf("Wrong iv: %s", material.IV)
	}
	if material.KeyURI != "skd://asset-42" {
		t.Errorf("Wrong key uri: %s", material.KeyURI)
	}

	if !strings.Contains(assetBody, "<Name>sintel</Name>") {
		t.Errorf("Asset request missing name: %s", assetBody)
	}
	if !strings.Contains(keyBody, "<AssetId>asset-42</AssetId>") {
		t.Errorf("Key request missing asset id: %s", keyBody)
	}
}

func TestFairPlayKeyRejectsIncompleteResponses(t *testing.T) {
	cases := []struct {
		name  string
		asset string
		key   string
	}{
		{"missing asset id", `<AssetResponse><KeyUri>skd://x</KeyUri></AssetResponse>`, ""},
		{"missing key uri", `<AssetResponse><AssetId>a1</AssetId></AssetResponse>`, ""},
		{"missing key", `<AssetResponse><AssetId>a1</AssetId><KeyUri>skd://a1</KeyUri></AssetResponse>`, `<KeyResponse></KeyResponse>`},
		{"short blob", `<AssetResponse><AssetId>a1</AssetId><KeyUri>skd://a1</KeyUri></AssetResponse>`, `<KeyResponse><Key>cab5</Key></KeyResponse>`},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/asset" {
				w.Write([]byte(c.asset))
				return
			}
			w.Write([]byte(c.key))
		}))
		client := NewClient(srv.URL, "u", "p")
		if _, err := client.FairPlayKey(context.Background(), "movie"); err == nil {
			t.Errorf("%s: expected error", c.name)
		}
		srv.Close()
	}
}

func TestFairPlayKeyPropagatesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "u", "wrong")
	if _, err := c.FairPlayKey(context.Background(), "movie"); err == nil {
		t.Fatal("Expected error for non-2xx response")
	}
}
