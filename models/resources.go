package models

// Resource handles for the remote encoding service. Every struct mirrors the
// JSON body of one creation call; the Id field is assigned by the service and
// never set locally. Nothing here is mutated after creation.

// Encoding is the base object of a transcoding job. Name shows up in the
// service dashboard, the description is free text.
type Encoding struct {
	Id          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// HTTPInput references an HTTP server hosting the source files.
type HTTPInput struct {
	Id   string `json:"id,omitempty"`
	Host string `json:"host"`
}

// S3Output references the destination S3 bucket for produced segments and
// manifests.
type S3Output struct {
	Id         string `json:"id,omitempty"`
	BucketName string `json:"bucketName"`
	AccessKey  string `json:"accessKey"`
	SecretKey  string `json:"secretKey"`
}

// AclEntry sets the access permission for files written to an output.
type AclEntry struct {
	Permission string `json:"permission"`
}

const AclPublicRead = "PUBLIC_READ"

// EncodingOutput binds an output resource and a path below it, with ACLs for
// the written files. Reused by muxings, DRM configs and manifests.
type EncodingOutput struct {
	OutputId   string     `json:"outputId"`
	OutputPath string     `json:"outputPath"`
	Acl        []AclEntry `json:"acl,omitempty"`
}

// H264VideoConfiguration configures one H.264 video rendition. Width is
// derived by the service from the source aspect ratio when only Height is
// set.
type H264VideoConfiguration struct {
	Id                  string `json:"id,omitempty"`
	Name                string `json:"name"`
	PresetConfiguration string `json:"presetConfiguration,omitempty"`
	Height              int32  `json:"height,omitempty"`
	Bitrate             int64  `json:"bitrate"`
}

const PresetVodStandard = "VOD_STANDARD"

// AacAudioConfiguration configures the AAC audio rendition.
type AacAudioConfiguration struct {
	Id      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Bitrate int64  `json:"bitrate"`
}

// StreamInput selects the source material for a stream.
type StreamInput struct {
	InputId       string `json:"inputId"`
	InputPath     string `json:"inputPath"`
	SelectionMode string `json:"selectionMode"`
}

const SelectionModeAuto = "AUTO"

// Stream binds input material to a codec configuration within an encoding.
type Stream struct {
	Id            string        `json:"id,omitempty"`
	InputStreams  []StreamInput `json:"inputStreams"`
	CodecConfigId string        `json:"codecConfigId"`
	Mode          string        `json:"mode,omitempty"`
}

const StreamModeStandard = "STANDARD"

// MuxingStream references one stream inside a muxing.
type MuxingStream struct {
	StreamId string `json:"streamId"`
}

// Fmp4Muxing groups streams into fragmented MP4 segments of SegmentLength
// seconds. Clear muxings carry their output location directly; for encrypted
// runs the DRM config attached to the muxing carries the output instead, so
// only encrypted segments reach storage.
type Fmp4Muxing struct {
	Id            string           `json:"id,omitempty"`
	SegmentLength float64          `json:"segmentLength"`
	Streams       []MuxingStream   `json:"streams"`
	Outputs       []EncodingOutput `json:"outputs,omitempty"`
}

// CencWidevine holds the Widevine-specific part of a CENC configuration.
type CencWidevine struct {
	Pssh string `json:"pssh"`
}

// CencFairPlay holds the FairPlay-specific part of a CENC configuration.
type CencFairPlay struct {
	Iv  string `json:"iv"`
	Uri string `json:"uri"`
}

// CencDrm binds MPEG-CENC key material to a muxing and an output location.
// Key and Kid are 16 bytes as 32 hex characters.
type CencDrm struct {
	Id       string           `json:"id,omitempty"`
	Key      string           `json:"key"`
	Kid      string           `json:"kid,omitempty"`
	Outputs  []EncodingOutput `json:"outputs"`
	Widevine *CencWidevine    `json:"widevine,omitempty"`
	FairPlay *CencFairPlay    `json:"fairPlay,omitempty"`
}

// DashManifestDefault is a DASH manifest that automatically includes every
// representation of the encoding.
type DashManifestDefault struct {
	Id           string           `json:"id,omitempty"`
	ManifestName string           `json:"manifestName"`
	EncodingId   string           `json:"encodingId"`
	Version      string           `json:"version"`
	Outputs      []EncodingOutput `json:"outputs"`
}

// HlsManifestDefault is the HLS counterpart of DashManifestDefault.
type HlsManifestDefault struct {
	Id           string           `json:"id,omitempty"`
	ManifestName string           `json:"manifestName"`
	EncodingId   string           `json:"encodingId"`
	Version      string           `json:"version"`
	Outputs      []EncodingOutput `json:"outputs"`
}

const ManifestDefaultV1 = "V1"

// ManifestResource references a manifest in a start request.
type ManifestResource struct {
	ManifestId string `json:"manifestId"`
}

// StartEncodingRequest aggregates the manifests to generate and the manifest
// generator version. Submitted once to begin processing.
type StartEncodingRequest struct {
	ManifestGenerator string             `json:"manifestGenerator,omitempty"`
	VodDashManifests  []ManifestResource `json:"vodDashManifests,omitempty"`
	VodHlsManifests   []ManifestResource `json:"vodHlsManifests,omitempty"`
}

const ManifestGeneratorV2 = "V2"

// Remote encoding status values. FINISHED, ERROR and CANCELED are terminal.
const (
	StatusCreated  = "CREATED"
	StatusQueued   = "QUEUED"
	StatusRunning  = "RUNNING"
	StatusFinished = "FINISHED"
	StatusError    = "ERROR"
	StatusCanceled = "CANCELED"
)

// Message is one diagnostic line reported by the service for a task.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TaskStatus is the polled state of a running encoding.
type TaskStatus struct {
	Status   string    `json:"status"`
	Progress int       `json:"progress,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// Terminal reports whether the status will never change again.
func (t *TaskStatus) Terminal() bool {
	switch t.Status {
	case StatusFinished, StatusError, StatusCanceled:
		return true
	}
	return false
}

// ErrorMessages returns the text of all error-typed diagnostic messages.
func (t *TaskStatus) ErrorMessages() []string {
	var msgs []string
	for _, m := range t.Messages {
		if m.Type == "ERROR" {
			msgs = append(msgs, m.Text)
		}
	}
	return msgs
}
