package descriptors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pipeline-bundles/internal/adapters"
	"pipeline-bundles/internal/types"
)

// ----- registry service stub -----

type stubService struct {
	mu          sync.Mutex
	records     map[string][]types.ServiceRecord
	attachments map[int][]byte
	failures    int
	downloads   atomic.Int32
	queries     atomic.Int32
}

func newStubService() *stubService {
	return &stubService{records: map[string][]types.ServiceRecord{}, attachments: map[int][]byte{}}
}

func (s *stubService) add(entity string, record types.ServiceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[entity] = append(s.records[entity], record)
}

func (s *stubService) Find(ctx context.Context, entityType string, filters []types.Filter, fields []string) ([]types.ServiceRecord, error) {
	s.queries.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.ServiceRecord
	for _, record := range s.records[entityType] {
		match := true
		for _, filter := range filters {
			if !stubMatches(record[filter.Field], filter.Value) {
				match = false
				break
			}
		}
		if match {
			out = append(out, record)
		}
	}
	return out, nil
}

func stubMatches(have any, want any) bool {
	if want == nil {
		return have == nil
	}
	if id, ok := want.(int); ok {
		got, ok := types.AsInt(have)
		return ok && got == id
	}
	return have == want
}

func (s *stubService) FindOne(ctx context.Context, entityType string, filters []types.Filter, fields []string) (types.ServiceRecord, error) {
	records, err := s.Find(ctx, entityType, filters, fields)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

func (s *stubService) DownloadAttachment(ctx context.Context, attachmentID int) ([]byte, error) {
	s.downloads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("connection reset")
	}
	data, ok := s.attachments[attachmentID]
	if !ok {
		return nil, errors.New("no such attachment")
	}
	return data, nil
}

func (s *stubService) UploadAttachment(ctx context.Context, entityType string, entityID int, field string, filename string, data []byte) (int, error) {
	return 0, errors.New("not supported")
}

func (s *stubService) CreateEvent(ctx context.Context, event types.ServiceRecord) error {
	return nil
}

func (s *stubService) Host() string {
	return "https://studio.example.com"
}

// ----- source control stub -----

type stubVCS struct {
	tags      []string
	latestTag string
	head      string
	manifest  string
	delay     time.Duration
	archives  atomic.Int32
	clones    atomic.Int32
}

func (v *stubVCS) ListTags(ctx context.Context, repoURL string) ([]string, error) {
	return v.tags, nil
}

func (v *stubVCS) LatestTag(ctx context.Context, repoURL string) (string, error) {
	return v.latestTag, nil
}

func (v *stubVCS) ArchiveTag(ctx context.Context, repoURL string, tag string, dest string) error {
	v.archives.Add(1)
	if v.delay > 0 {
		time.Sleep(v.delay)
	}
	if err := os.MkdirAll(filepath.Join(dest, "python"), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dest, "python", "app.py"), []byte("print('"+tag+"')\n"), 0o644); err != nil {
		return err
	}
	if v.manifest == "-" {
		return nil
	}
	manifest := v.manifest
	if manifest == "" {
		manifest = "display_name: Tagged " + tag + "\n"
	}
	return os.WriteFile(filepath.Join(dest, ManifestFileName), []byte(manifest), 0o644)
}

func (v *stubVCS) BranchHead(ctx context.Context, repoURL string, branch string) (string, error) {
	return v.head, nil
}

func (v *stubVCS) CloneAtCommit(ctx context.Context, repoURL string, branch string, commit string, dest string) error {
	v.clones.Add(1)
	if err := os.MkdirAll(filepath.Join(dest, ".git"), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dest, ManifestFileName), []byte("display_name: "+commit+"\n"), 0o644)
}

// ----- helpers -----

func testDeps(service *stubService, vcs *stubVCS) Dependencies {
	deps := Dependencies{
		Manifests: adapters.NewManifestFileAdapter(),
		Archive:   adapters.NewTarArchiveAdapter(),
		Retry:     RetryPolicy{MaxRetries: 1},
	}
	if service != nil {
		deps.Service = service
	}
	if vcs != nil {
		deps.VCS = vcs
	}
	return deps
}

// packPayload builds a tar.gz attachment holding files.
func packPayload(t *testing.T, files map[string]string) []byte {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	data, err := adapters.NewTarArchiveAdapter().Pack(dir)
	require.NoError(t, err)
	return data
}

func writeManifest(t *testing.T, dir string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(content), 0o644))
}
