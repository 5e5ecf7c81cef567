// Package encodingapi is a thin typed client for the remote encoding
// service's REST API. Every creation call is a single POST whose response
// carries the server-assigned resource id; status is a GET. The service is an
// opaque collaborator, nothing is computed locally.
package encodingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vodforge/models"
)

// Client calls the remote encoding service.
type Client struct {
	baseURL string
	apiKey  string
	orgID   string
	httpc   *http.Client
}

// NewClient creates a client for the service at baseURL. The API key goes in
// the X-Api-Key header on every request; orgID, when non-empty, is sent as
// X-Tenant-Org-Id for multi-tenant accounts.
func NewClient(baseURL, apiKey, orgID string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		orgID:   orgID,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateEncoding creates the base encoding object.
func (c *Client) CreateEncoding(ctx context.Context, encoding models.Encoding) (*models.Encoding, error) {
	var created models.Encoding
	if err := c.post(ctx, "/encoding/encodings", encoding, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateHTTPInput registers an HTTP server hosting the input files.
func (c *Client) CreateHTTPInput(ctx context.Context, input models.HTTPInput) (*models.HTTPInput, error) {
	var created models.HTTPInput
	if err := c.post(ctx, "/encoding/inputs/http", input, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateS3Output registers the destination S3 bucket. The credentials need
// read, write, list and delete permissions.
func (c *Client) CreateS3Output(ctx context.Context, output models.S3Output) (*models.S3Output, error) {
	var created models.S3Output
	if err := c.post(ctx, "/encoding/outputs/s3", output, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateH264Config creates an H.264 video codec configuration.
func (c *Client) CreateH264Config(ctx context.Context, cfg models.H264VideoConfiguration) (*models.H264VideoConfiguration, error) {
	var created models.H264VideoConfiguration
	if err := c.post(ctx, "/encoding/configurations/video/h264", cfg, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateAACConfig creates an AAC audio codec configuration.
func (c *Client) CreateAACConfig(ctx context.Context, cfg models.AacAudioConfiguration) (*models.AacAudioConfiguration, error) {
	var created models.AacAudioConfiguration
	if err := c.post(ctx, "/encoding/configurations/audio/aac", cfg, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateStream adds a stream to an encoding.
func (c *Client) CreateStream(ctx context.Context, encodingID string, stream models.Stream) (*models.Stream, error) {
	var created models.Stream
	path := fmt.Sprintf("/encoding/encodings/%s/streams", encodingID)
	if err := c.post(ctx, path, stream, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateFmp4Muxing adds a fragmented MP4 muxing to an encoding.
func (c *Client) CreateFmp4Muxing(ctx context.Context, encodingID string, muxing models.Fmp4Muxing) (*models.Fmp4Muxing, error) {
	var created models.Fmp4Muxing
	path := fmt.Sprintf("/encoding/encodings/%s/muxings/fmp4", encodingID)
	if err := c.post(ctx, path, muxing, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateCencDrm attaches a CENC DRM configuration to a muxing.
func (c *Client) CreateCencDrm(ctx context.Context, encodingID, muxingID string, drm models.CencDrm) (*models.CencDrm, error) {
	var created models.CencDrm
	path := fmt.Sprintf("/encoding/encodings/%s/muxings/fmp4/%s/drm/cenc", encodingID, muxingID)
	if err := c.post(ctx, path, drm, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateDashManifest creates a default DASH manifest for the encoding.
func (c *Client) CreateDashManifest(ctx context.Context, manifest models.DashManifestDefault) (*models.DashManifestDefault, error) {
	var created models.DashManifestDefault
	if err := c.post(ctx, "/encoding/manifests/dash/default", manifest, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateHlsManifest creates a default HLS manifest for the encoding.
func (c *Client) CreateHlsManifest(ctx context.Context, manifest models.HlsManifestDefault) (*models.HlsManifestDefault, error) {
	var created models.HlsManifestDefault
	if err := c.post(ctx, "/encoding/manifests/hls/default", manifest, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// StartEncoding submits the start request that begins processing.
func (c *Client) StartEncoding(ctx context.Context, encodingID string, req models.StartEncodingRequest) error {
	path := fmt.Sprintf("/encoding/encodings/%s/start", encodingID)
	return c.post(ctx, path, req, nil)
}

// EncodingStatus fetches the current status of an encoding.
func (c *Client) EncodingStatus(ctx context.Context, encodingID string) (*models.TaskStatus, error) {
	var status models.TaskStatus
	path := fmt.Sprintf("/encoding/encodings/%s/status", encodingID)
	if err := c.get(ctx, path, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), result)
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "vodforge/1.0")
	if c.orgID != "" {
		req.Header.Set("X-Tenant-Org-Id", c.orgID)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: reading response: %w", method, path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{HTTPStatus: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("%s %s: malformed response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || env.Status == "ERROR" {
		return &APIError{
			HTTPStatus: resp.StatusCode,
			Code:       env.Data.Code,
			Message:    env.Data.Message,
		}
	}

	if result != nil && len(env.Data.Result) > 0 {
		if err := json.Unmarshal(env.Data.Result, result); err != nil {
			return fmt.Errorf("%s %s: malformed result: %w", method, path, err)
		}
	}
	return nil
}

// envelope is the response wrapper the service puts around every payload.
type envelope struct {
	Status string `json:"status"`
	Data   struct {
		Result  json.RawMessage `json:"result"`
		Code    int             `json:"code"`
		Message string          `json:"message"`
	} `json:"data"`
}

// APIError is a non-success response from the encoding service.
type APIError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("encoding service error (http %d, code %d): %s", e.HTTPStatus, e.Code, e.Message)
	}
	return fmt.Sprintf("encoding service error (http %d)", e.HTTPStatus)
}
