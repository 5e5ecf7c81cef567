// Package workflow assembles transcoding runs on the remote encoding service.
// The orchestrator issues the creation calls in dependency order, each
// created resource's id feeding the next call; the first failure aborts the
// run. Polling afterwards is handled by Poller.
package workflow

import (
	"context"
	"fmt"
	"path"

	"vodforge/keydelivery"
	"vodforge/logger"
	"vodforge/models"
)

// EncodingAPI is the slice of the remote client the orchestrator needs.
type EncodingAPI interface {
	CreateEncoding(ctx context.Context, encoding models.Encoding) (*models.Encoding, error)
	CreateHTTPInput(ctx context.Context, input models.HTTPInput) (*models.HTTPInput, error)
	CreateS3Output(ctx context.Context, output models.S3Output) (*models.S3Output, error)
	CreateH264Config(ctx context.Context, cfg models.H264VideoConfiguration) (*models.H264VideoConfiguration, error)
	CreateAACConfig(ctx context.Context, cfg models.AacAudioConfiguration) (*models.AacAudioConfiguration, error)
	CreateStream(ctx context.Context, encodingID string, stream models.Stream) (*models.Stream, error)
	CreateFmp4Muxing(ctx context.Context, encodingID string, muxing models.Fmp4Muxing) (*models.Fmp4Muxing, error)
	CreateCencDrm(ctx context.Context, encodingID, muxingID string, drm models.CencDrm) (*models.CencDrm, error)
	CreateDashManifest(ctx context.Context, manifest models.DashManifestDefault) (*models.DashManifestDefault, error)
	CreateHlsManifest(ctx context.Context, manifest models.HlsManifestDefault) (*models.HlsManifestDefault, error)
	StartEncoding(ctx context.Context, encodingID string, req models.StartEncodingRequest) error
	EncodingStatus(ctx context.Context, encodingID string) (*models.TaskStatus, error)
}

// KeyFetcher retrieves FairPlay key material for a run.
type KeyFetcher interface {
	FairPlayKey(ctx context.Context, assetName string) (*keydelivery.KeyMaterial, error)
}

// Prober verifies an output destination is writable before the run starts.
type Prober interface {
	Probe(ctx context.Context, accessInfo map[string]string, kind string) error
}

// CredentialSource resolves the named storage credential sets submissions
// reference via JobSpec.StorageKey.
type CredentialSource interface {
	GetCredentials(name string) (map[string]string, error)
}

// Options carries the server-level defaults applied to every run.
type Options struct {
	HTTPInputHost string

	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3BasePath  string

	// Probe the output destination before creating any remote resource
	Preflight bool
}

// Orchestrator executes the creation sequence for one JobSpec at a time.
type Orchestrator struct {
	api    EncodingAPI
	keys   KeyFetcher
	prober Prober
	creds  CredentialSource
	opts   Options
}

// New creates an orchestrator. keys may be nil when no key delivery service
// is configured; prober may be nil to skip preflight; creds may be nil when
// submissions never reference stored credential sets.
func New(api EncodingAPI, keys KeyFetcher, prober Prober, creds CredentialSource, opts Options) *Orchestrator {
	return &Orchestrator{api: api, keys: keys, prober: prober, creds: creds, opts: opts}
}

// RunResult collects every resource id a run created, in creation order.
// On failure it holds the ids created before the failing call, for the
// failure record.
type RunResult struct {
	EncodingID     string   `json:"encodingId"`
	InputID        string   `json:"inputId"`
	OutputID       string   `json:"outputId"`
	VideoConfigIDs []string `json:"videoConfigIds"`
	AudioConfigID  string   `json:"audioConfigId"`
	StreamIDs      []string `json:"streamIds"`
	MuxingIDs      []string `json:"muxingIds"`
	DrmIDs         []string `json:"drmIds,omitempty"`
	DashManifestID string   `json:"dashManifestId"`
	HlsManifestID  string   `json:"hlsManifestId"`

	DashManifestPath string `json:"dashManifestPath"`
	HlsManifestPath  string `json:"hlsManifestPath"`
}

const (
	defaultAudioBitrate  = 128_000
	defaultSegmentLength = 4.0
)

// Run executes the full creation sequence for spec and starts the encoding.
// The returned RunResult is non-nil even on error.
func (o *Orchestrator) Run(ctx context.Context, spec models.JobSpec) (*RunResult, error) {
	result := &RunResult{}

	if err := validateSpec(spec); err != nil {
		return result, err
	}

	if o.opts.Preflight && o.prober != nil {
		logger.Debugf("Probing output destination for job %s", spec.Name)
		kind := "s3"
		accessInfo := map[string]string{
			"bucket":    o.opts.S3Bucket,
			"accessKey": o.opts.S3AccessKey,
			"secretKey": o.opts.S3SecretKey,
			"region":    o.opts.S3Region,
			"basePath":  o.outputPath(spec, ""),
		}
		if spec.StorageKey != "" {
			if o.creds == nil {
				return result, fmt.Errorf("job references storage key %q but no credential store is configured", spec.StorageKey)
			}
			stored, err := o.creds.GetCredentials(spec.StorageKey)
			if err != nil {
				return result, fmt.Errorf("failed to load storage credentials %q: %w", spec.StorageKey, err)
			}
			accessInfo = stored
			if k := stored["kind"]; k != "" {
				kind = k
			}
			if accessInfo["basePath"] == "" {
				accessInfo["basePath"] = o.outputPath(spec, "")
			}
		}
		if err := o.prober.Probe(ctx, accessInfo, kind); err != nil {
			return result, fmt.Errorf("output preflight failed: %w", err)
		}
	}

	// FairPlay material is fetched before any remote resource exists, so a
	// key delivery failure costs nothing on the encoding service.
	var fpKey *keydelivery.KeyMaterial
	if spec.DRM != nil && spec.DRM.FairPlay {
		if o.keys == nil {
			return result, fmt.Errorf("job requests FairPlay but no key delivery service is configured")
		}
		var err error
		fpKey, err = o.keys.FairPlayKey(ctx, spec.Name)
		if err != nil {
			return result, fmt.Errorf("failed to fetch FairPlay key material: %w", err)
		}
	}

	encoding, err := o.api.CreateEncoding(ctx, models.Encoding{
		Name:        spec.Name,
		Description: spec.Description,
	})
	if err != nil {
		return result, fmt.Errorf("failed to create encoding: %w", err)
	}
	result.EncodingID = encoding.Id

	input, err := o.api.CreateHTTPInput(ctx, models.HTTPInput{Host: o.opts.HTTPInputHost})
	if err != nil {
		return result, fmt.Errorf("failed to create input: %w", err)
	}
	result.InputID = input.Id

	output, err := o.api.CreateS3Output(ctx, models.S3Output{
		BucketName: o.opts.S3Bucket,
		AccessKey:  o.opts.S3AccessKey,
		SecretKey:  o.opts.S3SecretKey,
	})
	if err != nil {
		return result, fmt.Errorf("failed to create output: %w", err)
	}
	result.OutputID = output.Id

	var codecConfigIDs []string
	for _, r := range spec.Renditions {
		cfg, err := o.api.CreateH264Config(ctx, models.H264VideoConfiguration{
			Name:                fmt.Sprintf("H.264 %dp %d bit/s", r.Height, r.Bitrate),
			PresetConfiguration: models.PresetVodStandard,
			Height:              r.Height,
			Bitrate:             r.Bitrate,
		})
		if err != nil {
			return result, fmt.Errorf("failed to create video config for %dp: %w", r.Height, err)
		}
		result.VideoConfigIDs = append(result.VideoConfigIDs, cfg.Id)
		codecConfigIDs = append(codecConfigIDs, cfg.Id)
	}

	audioBitrate := spec.AudioBitrate
	if audioBitrate == 0 {
		audioBitrate = defaultAudioBitrate
	}
	aacCfg, err := o.api.CreateAACConfig(ctx, models.AacAudioConfiguration{
		Name:    fmt.Sprintf("AAC %d bit/s", audioBitrate),
		Bitrate: audioBitrate,
	})
	if err != nil {
		return result, fmt.Errorf("failed to create audio config: %w", err)
	}
	result.AudioConfigID = aacCfg.Id
	codecConfigIDs = append(codecConfigIDs, aacCfg.Id)

	var streamIDs []string
	for _, cfgID := range codecConfigIDs {
		stream, err := o.api.CreateStream(ctx, encoding.Id, models.Stream{
			InputStreams: []models.StreamInput{{
				InputId:       input.Id,
				InputPath:     spec.InputPath,
				SelectionMode: models.SelectionModeAuto,
			}},
			CodecConfigId: cfgID,
			Mode:          models.StreamModeStandard,
		})
		if err != nil {
			return result, fmt.Errorf("failed to create stream for config %s: %w", cfgID, err)
		}
		result.StreamIDs = append(result.StreamIDs, stream.Id)
		streamIDs = append(streamIDs, stream.Id)
	}

	segmentLength := spec.SegmentLength
	if segmentLength == 0 {
		segmentLength = defaultSegmentLength
	}
	var muxingIDs []string
	for i, streamID := range streamIDs {
		muxing := models.Fmp4Muxing{
			SegmentLength: segmentLength,
			Streams:       []models.MuxingStream{{StreamId: streamID}},
		}
		// Clear muxings need the output themselves; encrypted runs route
		// segments through the DRM config created below.
		if spec.DRM == nil {
			muxing.Outputs = []models.EncodingOutput{
				o.encodingOutput(output.Id, o.outputPath(spec, fmt.Sprintf("media/%d", i))),
			}
		}
		created, err := o.api.CreateFmp4Muxing(ctx, encoding.Id, muxing)
		if err != nil {
			return result, fmt.Errorf("failed to create muxing for stream %s: %w", streamID, err)
		}
		result.MuxingIDs = append(result.MuxingIDs, created.Id)
		muxingIDs = append(muxingIDs, created.Id)
	}

	if spec.DRM != nil {
		for i, muxingID := range muxingIDs {
			drm := models.CencDrm{
				Key: spec.DRM.Key,
				Kid: spec.DRM.Kid,
				Outputs: []models.EncodingOutput{
					o.encodingOutput(output.Id, o.outputPath(spec, fmt.Sprintf("media/%d", i))),
				},
			}
			if spec.DRM.Pssh != "" {
				drm.Widevine = &models.CencWidevine{Pssh: spec.DRM.Pssh}
			}
			if fpKey != nil {
				drm.Key = fpKey.Key
				drm.FairPlay = &models.CencFairPlay{Iv: fpKey.IV, Uri: fpKey.KeyURI}
			}
			created, err := o.api.CreateCencDrm(ctx, encoding.Id, muxingID, drm)
			if err != nil {
				return result, fmt.Errorf("failed to create DRM config for muxing %s: %w", muxingID, err)
			}
			result.DrmIDs = append(result.DrmIDs, created.Id)
		}
	}

	dashManifest, err := o.api.CreateDashManifest(ctx, models.DashManifestDefault{
		ManifestName: "stream.mpd",
		EncodingId:   encoding.Id,
		Version:      models.ManifestDefaultV1,
		Outputs:      []models.EncodingOutput{o.encodingOutput(output.Id, o.outputPath(spec, ""))},
	})
	if err != nil {
		return result, fmt.Errorf("failed to create DASH manifest: %w", err)
	}
	result.DashManifestID = dashManifest.Id
	result.DashManifestPath = path.Join(o.outputPath(spec, ""), "stream.mpd")

	hlsManifest, err := o.api.CreateHlsManifest(ctx, models.HlsManifestDefault{
		ManifestName: "master.m3u8",
		EncodingId:   encoding.Id,
		Version:      models.ManifestDefaultV1,
		Outputs:      []models.EncodingOutput{o.encodingOutput(output.Id, o.outputPath(spec, ""))},
	})
	if err != nil {
		return result, fmt.Errorf("failed to create HLS manifest: %w", err)
	}
	result.HlsManifestID = hlsManifest.Id
	result.HlsManifestPath = path.Join(o.outputPath(spec, ""), "master.m3u8")

	startReq := models.StartEncodingRequest{
		ManifestGenerator: models.ManifestGeneratorV2,
		VodDashManifests:  []models.ManifestResource{{ManifestId: dashManifest.Id}},
		VodHlsManifests:   []models.ManifestResource{{ManifestId: hlsManifest.Id}},
	}
	if err := o.api.StartEncoding(ctx, encoding.Id, startReq); err != nil {
		return result, fmt.Errorf("failed to start encoding: %w", err)
	}

	logger.Infof("Encoding %s started for job %s", encoding.Id, spec.Name)
	return result, nil
}

// outputPath builds the path below the output bucket for a run. The job's
// SubDir (or its name when unset) keeps runs from overwriting each other.
func (o *Orchestrator) outputPath(spec models.JobSpec, sub string) string {
	dir := spec.SubDir
	if dir == "" {
		dir = spec.Name
	}
	return path.Join(o.opts.S3BasePath, dir, sub)
}

func (o *Orchestrator) encodingOutput(outputID, outputPath string) models.EncodingOutput {
	return models.EncodingOutput{
		OutputId:   outputID,
		OutputPath: outputPath,
		Acl:        []models.AclEntry{{Permission: models.AclPublicRead}},
	}
}

func validateSpec(spec models.JobSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("job spec missing name")
	}
	if spec.InputPath == "" {
		return fmt.Errorf("job spec missing inputPath")
	}
	if len(spec.Renditions) == 0 {
		return fmt.Errorf("job spec has no renditions")
	}
	for _, r := range spec.Renditions {
		if r.Height <= 0 || r.Bitrate <= 0 {
			return fmt.Errorf("invalid rendition %dx@%d", r.Height, r.Bitrate)
		}
	}
	if spec.DRM != nil && !spec.DRM.FairPlay && spec.DRM.Key == "" {
		return fmt.Errorf("DRM requested without key material")
	}
	return nil
}
