package workflow

import (
	"context"
	"fmt"
	"testing"

	"vodforge/keydelivery"
	"vodforge/models"
)

// fakeAPI records every call in order and hands out predictable ids.
type fakeAPI struct {
	calls    []string
	failOn   string
	statuses []statusStep
	statusIx int

	streams []models.Stream
	muxings []models.Fmp4Muxing
	drms    []models.CencDrm
	starts  []models.StartEncodingRequest
}

type statusStep struct {
	status *models.TaskStatus
	err    error
}

func (f *fakeAPI) record(name string) error {
	f.calls = append(f.calls, name)
	if f.failOn == name {
		return fmt.Errorf("injected failure on %s", name)
	}
	return nil
}

func (f *fakeAPI) CreateEncoding(ctx context.Context, e models.Encoding) (*models.Encoding, error) {
	if err := f.record("encoding"); err != nil {
		return nil, err
	}
	e.Id = "E1"
	return &e, nil
}

func (f *fakeAPI) CreateHTTPInput(ctx context.Context, in models.HTTPInput) (*models.HTTPInput, error) {
	if err := f.record("input"); err != nil {
		return nil, err
	}
	in.Id = "in1"
	return &in, nil
}

func (f *fakeAPI) CreateS3Output(ctx context.Context, out models.S3Output) (*models.S3Output, error) {
	if err := f.record("output"); err != nil {
		return nil, err
	}
	out.Id = "out1"
	return &out, nil
}

func (f *fakeAPI) CreateH264Config(ctx context.Context, cfg models.H264VideoConfiguration) (*models.H264VideoConfiguration, error) {
	if err := f.record("h264"); err != nil {
		return nil, err
	}
	cfg.Id = fmt.Sprintf("vc%d", len(f.calls))
	return &cfg, nil
}

func (f *fakeAPI) CreateAACConfig(ctx context.Context, cfg models.AacAudioConfiguration) (*models.AacAudioConfiguration, error) {
	if err := f.record("aac"); err != nil {
		return nil, err
	}
	cfg.Id = "ac1"
	return &cfg, nil
}

func (f *fakeAPI) CreateStream(ctx context.Context, encodingID string, s models.Stream) (*models.Stream, error) {
	if err := f.record("stream"); err != nil {
		return nil, err
	}
	if encodingID != "E1" {
		return nil, fmt.Errorf("stream created for unknown encoding %s", encodingID)
	}
	s.Id = fmt.Sprintf("st%d", len(f.streams)+1)
	f.streams = append(f.streams, s)
	return &s, nil
}

func (f *fakeAPI) CreateFmp4Muxing(ctx context.Context, encodingID string, m models.Fmp4Muxing) (*models.Fmp4Muxing, error) {
	if err := f.record("muxing"); err != nil {
		return nil, err
	}
	m.Id = fmt.Sprintf("mx%d", len(f.muxings)+1)
	f.muxings = append(f.muxings, m)
	return &m, nil
}

func (f *fakeAPI) CreateCencDrm(ctx context.Context, encodingID, muxingID string, d models.CencDrm) (*models.CencDrm, error) {
	if err := f.record("drm"); err != nil {
		return nil, err
	}
	d.Id = fmt.Sprintf("drm%d", len(f.drms)+1)
	f.drms = append(f.drms, d)
	return &d, nil
}

func (f *fakeAPI) CreateDashManifest(ctx context.Context, m models.DashManifestDefault) (*models.DashManifestDefault, error) {
	if err := f.record("dash"); err != nil {
		return nil, err
	}
	m.Id = "dm1"
	return &m, nil
}

func (f *fakeAPI) CreateHlsManifest(ctx context.Context, m models.HlsManifestDefault) (*models.HlsManifestDefault, error) {
	if err := f.record("hls"); err != nil {
		return nil, err
	}
	m.Id = "hm1"
	return &m, nil
}

func (f *fakeAPI) StartEncoding(ctx context.Context, encodingID string, req models.StartEncodingRequest) error {
	if err := f.record("start"); err != nil {
		return err
	}
	f.starts = append(f.starts, req)
	return nil
}

func (f *fakeAPI) EncodingStatus(ctx context.Context, encodingID string) (*models.TaskStatus, error) {
	f.calls = append(f.calls, "status")
	step := f.statuses[f.statusIx]
	if f.statusIx < len(f.statuses)-1 {
		f.statusIx++
	}
	return step.status, step.err
}

// fakeKeys serves canned FairPlay key material and records the fetch.
type fakeKeys struct {
	fetched  int
	material *keydelivery.KeyMaterial
	err      error
}

func (f *fakeKeys) FairPlayKey(ctx context.Context, assetName string) (*keydelivery.KeyMaterial, error) {
	f.fetched++
	return f.material, f.err
}

// fakeProber records probes and optionally fails them.
type fakeProber struct {
	probes []string
	err    error
}

func (f *fakeProber) Probe(ctx context.Context, accessInfo map[string]string, kind string) error {
	f.probes = append(f.probes, kind)
	return f.err
}

func testSpec() models.JobSpec {
	return models.JobSpec{
		Name:      "sintel",
		InputPath: "videos/sintel.mp4",
		Renditions: []models.Rendition{
			{Height: 1080, Bitrate: 1_500_000},
			{Height: 720, Bitrate: 800_000},
		},
	}
}

func testOptions() Options {
	return Options{
		HTTPInputHost: "my-storage.example.com",
		S3Bucket:      "output-bucket",
		S3AccessKey:   "AK",
		S3SecretKey:   "SK",
		S3Region:      "us-east-1",
		S3BasePath:    "/outputs",
	}
}

func TestRunCreatesResourcesInDependencyOrder(t *testing.T) {
	api := &fakeAPI{}
	o := New(api, nil, nil, nil, testOptions())

	result, err := o.Run(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	expected := []string{
		"encoding", "input", "output",
		"h264", "h264", "aac",
		"stream", "stream", "stream",
		"muxing", "muxing", "muxing",
		"dash", "hls", "start",
	}
	if len(api.calls) != len(expected) {
		t.Fatalf("Expected %d calls, got %d: %v", len(expected), len(api.calls), api.calls)
	}
	for i, name := range expected {
		if api.calls[i] != name {
			t.Errorf("Call %d: expected %s, got %s", i, name, api.calls[i])
		}
	}

	if result.EncodingID != "E1" {
		t.Errorf("Expected encoding id E1, got %s", result.EncodingID)
	}
	if len(result.StreamIDs) != 3 || len(result.MuxingIDs) != 3 {
		t.Errorf("Expected 3 streams and 3 muxings, got %d and %d",
			len(result.StreamIDs), len(result.MuxingIDs))
	}
	if result.DashManifestID != "dm1" || result.HlsManifestID != "hm1" {
		t.Errorf("Unexpected manifest ids: %s, %s", result.DashManifestID, result.HlsManifestID)
	}
}

func TestRunWiresStreamAndMuxingReferences(t *testing.T) {
	api := &fakeAPI{}
	o := New(api, nil, nil, nil, testOptions())

	result, err := o.Run(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Every stream must reference the created input and one codec config.
	for i, s := range api.streams {
		if len(s.InputStreams) != 1 || s.InputStreams[0].InputId != "in1" {
			t.Errorf("Stream %d does not reference input in1: %+v", i, s.InputStreams)
		}
		if s.InputStreams[0].InputPath != "videos/sintel.mp4" {
			t.Errorf("Stream %d has wrong input path %s", i, s.InputStreams[0].InputPath)
		}
		if s.CodecConfigId == "" {
			t.Errorf("Stream %d created without codec config", i)
		}
	}
	if api.streams[0].CodecConfigId != result.VideoConfigIDs[0] {
		t.Errorf("First stream should use first video config %s, got %s",
			result.VideoConfigIDs[0], api.streams[0].CodecConfigId)
	}

	// Every muxing must reference a stream that was created before it.
	for i, m := range api.muxings {
		if len(m.Streams) != 1 {
			t.Fatalf("Muxing %d has %d streams", i, len(m.Streams))
		}
		if m.Streams[0].StreamId != result.StreamIDs[i] {
			t.Errorf("Muxing %d references stream %s, expected %s",
				i, m.Streams[0].StreamId, result.StreamIDs[i])
		}
	}
}

func TestRunClearRunRoutesSegmentsToOutput(t *testing.T) {
	api := &fakeAPI{}
	o := New(api, nil, nil, nil, testOptions())

	result, err := o.Run(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.DrmIDs) != 0 {
		t.Fatalf("Clear run must not create DRM configs, got %v", result.DrmIDs)
	}

	// Without a DRM config to carry it, each muxing must name the output
	// destination itself or the service has nowhere to write segments.
	paths := make(map[string]bool)
	for i, m := range api.muxings {
		if len(m.Outputs) != 1 {
			t.Fatalf("Clear muxing %d has %d outputs", i, len(m.Outputs))
		}
		out := m.Outputs[0]
		if out.OutputId != "out1" {
			t.Errorf("Muxing %d does not reference output out1: %+v", i, out)
		}
		if out.OutputPath == "" {
			t.Errorf("Muxing %d has empty output path", i)
		}
		if paths[out.OutputPath] {
			t.Errorf("Muxing %d reuses output path %s", i, out.OutputPath)
		}
		paths[out.OutputPath] = true
	}
}

func TestRunStartReferencesManifests(t *testing.T) {
	api := &fakeAPI{}
	o := New(api, nil, nil, nil, testOptions())

	if _, err := o.Run(context.Background(), testSpec()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(api.starts) != 1 {
		t.Fatalf("Expected 1 start request, got %d", len(api.starts))
	}
	start := api.starts[0]
	if start.ManifestGenerator != models.ManifestGeneratorV2 {
		t.Errorf("Expected manifest generator V2, got %s", start.ManifestGenerator)
	}
	if len(start.VodDashManifests) != 1 || start.VodDashManifests[0].ManifestId != "dm1" {
		t.Errorf("Start request missing DASH manifest reference: %+v", start.VodDashManifests)
	}
	if len(start.VodHlsManifests) != 1 || start.VodHlsManifests[0].ManifestId != "hm1" {
		t.Errorf("Start request missing HLS manifest reference: %+v", start.VodHlsManifests)
	}
}

func TestRunAbortsOnFailure(t *testing.T) {
	api := &fakeAPI{failOn: "output"}
	o := New(api, nil, nil, nil, testOptions())

	result, err := o.Run(context.Background(), testSpec())
	if err == nil {
		t.Fatal("Expected Run to fail when output creation fails")
	}

	// Nothing after the failing call may execute.
	last := api.calls[len(api.calls)-1]
	if last != "output" {
		t.Errorf("Expected run to stop at output, last call was %s", last)
	}
	for _, c := range api.calls {
		if c == "h264" || c == "stream" || c == "start" {
			t.Errorf("Dependent call %s executed after failure", c)
		}
	}

	// Ids created before the failure survive for the failure record.
	if result.EncodingID != "E1" || result.InputID != "in1" {
		t.Errorf("Partial result incomplete: %+v", result)
	}
	if result.OutputID != "" {
		t.Errorf("Output id should be empty after failed creation, got %s", result.OutputID)
	}
}

func TestRunAttachesDrmPerMuxing(t *testing.T) {
	api := &fakeAPI{}
	o := New(api, nil, nil, nil, testOptions())

	spec := testSpec()
	spec.DRM = &models.DrmSpec{
		Key:  "cab5b529ae28d5cc5e3e7bc3fd4a544d",
		Kid:  "08eecef4b026deec395234d94218273d",
		Pssh: "QWRvYmVhc2Rmc2FkZmFzZg==",
	}

	result, err := o.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(api.drms) != 3 {
		t.Fatalf("Expected one DRM config per muxing, got %d", len(api.drms))
	}
	for i, d := range api.drms {
		if d.Key != spec.DRM.Key || d.Kid != spec.DRM.Kid {
			t.Errorf("DRM %d missing key material: %+v", i, d)
		}
		if d.Widevine == nil || d.Widevine.Pssh != spec.DRM.Pssh {
			t.Errorf("DRM %d missing widevine pssh", i)
		}
		if len(d.Outputs) != 1 || d.Outputs[0].OutputId != "out1" {
			t.Errorf("DRM %d does not reference output out1", i)
		}
	}
	if len(result.DrmIDs) != 3 {
		t.Errorf("Expected 3 DRM ids in result, got %d", len(result.DrmIDs))
	}
	for i, m := range api.muxings {
		if len(m.Outputs) != 0 {
			t.Errorf("Encrypted muxing %d must not carry a direct output, got %+v", i, m.Outputs)
		}
	}

	// DRM creation must happen after all muxings and before the manifests.
	lastMuxing, firstDrm, firstManifest := -1, -1, -1
	for i, c := range api.calls {
		switch c {
		case "muxing":
			lastMuxing = i
		case "drm":
			if firstDrm == -1 {
				firstDrm = i
			}
		case "dash":
			firstManifest = i
		}
	}
	if firstDrm < lastMuxing || firstManifest < firstDrm {
		t.Errorf("DRM calls out of order: %v", api.calls)
	}
}

func TestRunFetchesFairPlayKeyBeforeAssembly(t *testing.T) {
	api := &fakeAPI{}
	keys := &fakeKeys{material: &keydelivery.KeyMaterial{
		AssetID: "asset-1",
		Key:     "cab5b529ae28d5cc5e3e7bc3fd4a544d",
		IV:      "08eecef4b026deec",
		KeyURI:  "skd://asset-1",
	}}
	o := New(api, keys, nil, nil, testOptions())

	spec := testSpec()
	spec.DRM = &models.DrmSpec{FairPlay: true, Kid: "08eecef4b026deec395234d94218273d"}

	if _, err := o.Run(context.Background(), spec); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if keys.fetched != 1 {
		t.Errorf("Expected exactly one key fetch, got %d", keys.fetched)
	}
	for i, d := range api.drms {
		if d.Key != keys.material.Key {
			t.Errorf("DRM %d should carry the fetched key", i)
		}
		if d.FairPlay == nil || d.FairPlay.Iv != keys.material.IV || d.FairPlay.Uri != keys.material.KeyURI {
			t.Errorf("DRM %d missing FairPlay iv/uri: %+v", i, d.FairPlay)
		}
	}
}

func TestRunFailsFairPlayWithoutKeyService(t *testing.T) {
	api := &fakeAPI{}
	o := New(api, nil, nil, nil, testOptions())

	spec := testSpec()
	spec.DRM = &models.DrmSpec{FairPlay: true}

	if _, err := o.Run(context.Background(), spec); err == nil {
		t.Fatal("Expected error when FairPlay is requested without a key service")
	}
	if len(api.calls) != 0 {
		t.Errorf("No remote call may happen before the key fetch fails, got %v", api.calls)
	}
}

func TestRunKeyFetchFailureCreatesNothing(t *testing.T) {
	api := &fakeAPI{}
	keys := &fakeKeys{err: fmt.Errorf("key service down")}
	o := New(api, keys, nil, nil, testOptions())

	spec := testSpec()
	spec.DRM = &models.DrmSpec{FairPlay: true}

	if _, err := o.Run(context.Background(), spec); err == nil {
		t.Fatal("Expected error when key fetch fails")
	}
	if len(api.calls) != 0 {
		t.Errorf("No remote resource may be created after a key fetch failure, got %v", api.calls)
	}
}

func TestRunPreflightFailureBlocksRun(t *testing.T) {
	api := &fakeAPI{}
	prober := &fakeProber{err: fmt.Errorf("bucket not writable")}
	opts := testOptions()
	opts.Preflight = true
	o := New(api, nil, prober, nil, opts)

	if _, err := o.Run(context.Background(), testSpec()); err == nil {
		t.Fatal("Expected error when preflight fails")
	}
	if len(api.calls) != 0 {
		t.Errorf("No remote call may happen after failed preflight, got %v", api.calls)
	}
}

func TestRunPreflightUsesStoredCredentials(t *testing.T) {
	api := &fakeAPI{}
	prober := &fakeProber{}
	creds := credentialMap{
		"tenant-gcs": {"kind": "gcs", "bucket": "tenant-bucket", "credentialsJSON": "e30="},
	}
	opts := testOptions()
	opts.Preflight = true
	o := New(api, nil, prober, creds, opts)

	spec := testSpec()
	spec.StorageKey = "tenant-gcs"

	if _, err := o.Run(context.Background(), spec); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(prober.probes) != 1 || prober.probes[0] != "gcs" {
		t.Errorf("Expected one gcs probe, got %v", prober.probes)
	}
}

func TestRunRejectsInvalidSpec(t *testing.T) {
	api := &fakeAPI{}
	o := New(api, nil, nil, nil, testOptions())

	cases := []models.JobSpec{
		{},
		{Name: "x", InputPath: "in.mp4"},
		{Name: "x", InputPath: "in.mp4", Renditions: []models.Rendition{{Height: 0, Bitrate: 100}}},
		{Name: "x", InputPath: "in.mp4", Renditions: []models.Rendition{{Height: 720, Bitrate: 1}}, DRM: &models.DrmSpec{}},
	}
	for i, spec := range cases {
		if _, err := o.Run(context.Background(), spec); err == nil {
			t.Errorf("Case %d: expected validation error", i)
		}
	}
	if len(api.calls) != 0 {
		t.Errorf("Validation failures must not reach the remote service, got %v", api.calls)
	}
}

// credentialMap is an in-memory CredentialSource for tests.
type credentialMap map[string]map[string]string

func (m credentialMap) GetCredentials(name string) (map[string]string, error) {
	creds, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("no credentials named %s", name)
	}
	return creds, nil
}
