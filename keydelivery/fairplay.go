// Package keydelivery retrieves FairPlay key material from the external key
// delivery service. A run that needs FairPlay makes two calls: register the
// asset, then fetch its key blob. Credentials are sent via Basic auth, never
// in the URL.
package keydelivery

import (
	"context"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// KeyMaterial is everything a CENC FairPlay configuration needs.
type KeyMaterial struct {
	AssetID string
	Key     string // 32 hex chars
	IV      string // remaining hex suffix of the delivered blob
	KeyURI  string // license server URI, e.g. skd://...
}

// Client calls the key delivery service.
type Client struct {
	baseURL  string
	username string
	password string
	httpc    *http.Client
}

// NewClient creates a key delivery client for the service at baseURL.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpc:    &http.Client{Timeout: 30 * time.Second},
	}
}

type assetRequest struct {
	XMLName xml.Name `xml:"AssetRequest"`
	Name    string   `xml:"Name"`
}

type assetResponse struct {
	XMLName xml.Name `xml:"AssetResponse"`
	AssetID string   `xml:"AssetId"`
	KeyURI  string   `xml:"KeyUri"`
}

type keyRequest struct {
	XMLName xml.Name `xml:"KeyRequest"`
	AssetID string   `xml:"AssetId"`
}

type keyResponse struct {
	XMLName xml.Name `xml:"KeyResponse"`
	KeyHex  string   `xml:"Key"`
}

// Asset identifies a registered asset on the key delivery service.
type Asset struct {
	ID     string
	KeyURI string
}

// RegisterAsset registers a named asset and returns its id and key URI.
func (c *Client) RegisterAsset(ctx context.Context, name string) (*Asset, error) {
	var resp assetResponse
	if err := c.postXML(ctx, "/asset", assetRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	if resp.AssetID == "" {
		return nil, fmt.Errorf("key delivery asset response missing AssetId")
	}
	if resp.KeyURI == "" {
		return nil, fmt.Errorf("key delivery asset response missing KeyUri")
	}
	return &Asset{ID: resp.AssetID, KeyURI: resp.KeyURI}, nil
}

// FetchKey fetches the hex key blob for a registered asset.
func (c *Client) FetchKey(ctx context.Context, assetID string) (string, error) {
	var resp keyResponse
	if err := c.postXML(ctx, "/key", keyRequest{AssetID: assetID}, &resp); err != nil {
		return "", err
	}
	if resp.KeyHex == "" {
		return "", fmt.Errorf("key delivery key response missing Key")
	}
	return resp.KeyHex, nil
}

// FairPlayKey runs the full two-call sequence for one asset and splits the
// delivered blob into key and IV.
func (c *Client) FairPlayKey(ctx context.Context, assetName string) (*KeyMaterial, error) {
	asset, err := c.RegisterAsset(ctx, assetName)
	if err != nil {
		return nil, fmt.Errorf("failed to register asset: %w", err)
	}

	blob, err := c.FetchKey(ctx, asset.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch key for asset %s: %w", asset.ID, err)
	}

	key, iv, err := SplitKeyIV(blob)
	if err != nil {
		return nil, fmt.Errorf("invalid key blob for asset %s: %w", asset.ID, err)
	}

	return &KeyMaterial{
		AssetID: asset.ID,
		Key:     key,
		IV:      iv,
		KeyURI:  asset.KeyURI,
	}, nil
}

// SplitKeyIV splits a delivered hex blob into the 32-character content key
// and the remaining characters as the initialization vector. The blob must be
// at least 48 hex characters so the IV covers 8 bytes or more.
func SplitKeyIV(blob string) (key, iv string, err error) {
	blob = strings.TrimSpace(blob)
	if len(blob) < 48 {
		return "", "", fmt.Errorf("key blob too short: %d hex chars", len(blob))
	}
	if _, err := hex.DecodeString(blob); err != nil {
		return "", "", fmt.Errorf("key blob is not valid hex: %v", err)
	}
	return blob[:32], blob[32:], nil
}

func (c *Client) postXML(ctx context.Context, path string, body, result any) error {
	payload, err := xml.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(xml.Header+string(payload)))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("User-Agent", "vodforge/1.0")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("key delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading key delivery response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("key delivery returned status %d", resp.StatusCode)
	}

	if err := xml.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("malformed key delivery response: %w", err)
	}
	return nil
}
