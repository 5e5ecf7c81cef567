package models

// VodforgeJWT is the claims layout of a submission token.
type VodforgeJWT struct {
	Issuer    string  `json:"iss"` // optional
	Subject   string  `json:"sub"`
	IssuedAt  int64   `json:"iat"`
	ExpiresAt int64   `json:"exp"`
	Job       JobSpec `json:"job"`
}

// JobSpec describes one transcoding run to assemble on the remote service.
type JobSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Path of the source file on the configured HTTP input host
	InputPath string `json:"inputPath"`

	// Video renditions; one H.264 config and stream is created per entry
	Renditions []Rendition `json:"renditions"`

	// AAC audio bitrate in bit/s. 0 selects the 128 kbit/s default.
	AudioBitrate int64 `json:"audioBitrate,omitempty"`

	// Segment length in seconds for the fMP4 muxings. 0 selects 4s.
	SegmentLength float64 `json:"segmentLength,omitempty"`

	// Subdirectory below the configured output base path
	SubDir string `json:"subDir,omitempty"`

	// DRM protection; nil produces clear output
	DRM *DrmSpec `json:"drm,omitempty"`

	// Name of a stored credential set for output preflight. Empty uses the
	// server's default S3 output credentials.
	StorageKey string `json:"storageKey,omitempty"`

	// Completion callback
	CompletionCallback string            `json:"completionCallback,omitempty"`
	CallbackHeaders    map[string]string `json:"callbackHeaders,omitempty"`
}

// Rendition is one video output variant.
type Rendition struct {
	Height  int32 `json:"height"`
	Bitrate int64 `json:"bitrate"`
}

// DrmSpec selects the DRM systems for a run. Widevine key material is carried
// inline; FairPlay key, IV and license URI are fetched from the key delivery
// service when FairPlay is true.
type DrmSpec struct {
	Key      string `json:"key,omitempty"` // 32 hex chars; fetched when FairPlay is set
	Kid      string `json:"kid,omitempty"` // 32 hex chars
	Pssh     string `json:"pssh,omitempty"`
	FairPlay bool   `json:"fairPlay,omitempty"`
}
