package adapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"pipeline-bundles/internal/ports"
	"pipeline-bundles/internal/shared"
	"pipeline-bundles/internal/types"
)

// RegistrySnapshot is the on-disk form of an offline registry: records per
// entity type plus attachment files relative to the snapshot document.
type RegistrySnapshot struct {
	Host        string                           `yaml:"host"`
	Entities    map[string][]types.ServiceRecord `yaml:"entities"`
	Attachments map[int]string                   `yaml:"attachments"`
	Events      []types.ServiceRecord            `yaml:"events,omitempty"`
}

// RegistrySnapshotAdapter serves RegistryServicePort from a YAML snapshot.
// Uploads and events are written back to the snapshot.
type RegistrySnapshotAdapter struct {
	Path string

	mu     sync.Mutex
	cached RegistrySnapshot
	loaded bool
}

func NewRegistrySnapshotAdapter(path string) *RegistrySnapshotAdapter {
	return &RegistrySnapshotAdapter{Path: path}
}

func (a *RegistrySnapshotAdapter) Host() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	snapshot, err := a.load()
	if err != nil || snapshot.Host == "" {
		return "file://" + filepath.ToSlash(a.Path)
	}
	return snapshot.Host
}

func (a *RegistrySnapshotAdapter) Find(ctx context.Context, entityType string, filters []types.Filter, fields []string) ([]types.ServiceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	snapshot, err := a.load()
	if err != nil {
		return nil, err
	}
	var out []types.ServiceRecord
	for _, record := range snapshot.Entities[entityType] {
		if matchesFilters(record, filters) {
			out = append(out, projectFields(record, fields))
		}
	}
	return out, nil
}

func (a *RegistrySnapshotAdapter) FindOne(ctx context.Context, entityType string, filters []types.Filter, fields []string) (types.ServiceRecord, error) {
	records, err := a.Find(ctx, entityType, filters, fields)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

func (a *RegistrySnapshotAdapter) DownloadAttachment(ctx context.Context, attachmentID int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	snapshot, err := a.load()
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	rel, ok := snapshot.Attachments[attachmentID]
	if !ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("attachment %d not found", attachmentID))
	}
	data, err := os.ReadFile(a.resolve(rel))
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("attachment %d unreadable", attachmentID)).
			WithCause(err)
	}
	return data, nil
}

func (a *RegistrySnapshotAdapter) UploadAttachment(ctx context.Context, entityType string, entityID int, field string, filename string, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if strings.ContainsAny(filename, `/\`) || strings.TrimSpace(filename) == "" {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid attachment filename")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	snapshot, err := a.load()
	if err != nil {
		return 0, err
	}
	var record types.ServiceRecord
	for _, candidate := range snapshot.Entities[entityType] {
		if id, ok := candidate.Int("id"); ok && id == entityID {
			record = candidate
			break
		}
	}
	if record == nil {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s %d not found", entityType, entityID))
	}
	attachmentID := 1
	for id := range snapshot.Attachments {
		if id >= attachmentID {
			attachmentID = id + 1
		}
	}
	rel := filepath.ToSlash(filepath.Join("attachments", strconv.Itoa(attachmentID), filename))
	target := a.resolve(rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create attachment directory").
			WithCause(err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to store attachment").
			WithCause(err)
	}
	if a.cached.Attachments == nil {
		a.cached.Attachments = map[int]string{}
	}
	a.cached.Attachments[attachmentID] = rel
	record[field] = map[string]any{"type": "Attachment", "id": attachmentID, "name": filename}
	if err := a.save(); err != nil {
		return 0, err
	}
	return attachmentID, nil
}

func (a *RegistrySnapshotAdapter) CreateEvent(ctx context.Context, event types.ServiceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.load(); err != nil {
		return err
	}
	a.cached.Events = append(a.cached.Events, event)
	return a.save()
}

// Events returns the events recorded so far.
func (a *RegistrySnapshotAdapter) Events() []types.ServiceRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]types.ServiceRecord(nil), a.cached.Events...)
}

func (a *RegistrySnapshotAdapter) resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(filepath.Dir(a.Path), filepath.FromSlash(rel))
}

func (a *RegistrySnapshotAdapter) load() (RegistrySnapshot, error) {
	if a.loaded {
		return a.cached, nil
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return RegistrySnapshot{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("registry snapshot not found").
			WithCause(err)
	}
	var snapshot RegistrySnapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return RegistrySnapshot{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid registry snapshot format").
			WithCause(err)
	}
	if snapshot.Entities == nil {
		snapshot.Entities = map[string][]types.ServiceRecord{}
	}
	if snapshot.Attachments == nil {
		snapshot.Attachments = map[int]string{}
	}
	a.cached = snapshot
	a.loaded = true
	return a.cached, nil
}

func (a *RegistrySnapshotAdapter) save() error {
	data, err := yaml.Marshal(a.cached)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode registry snapshot").
			WithCause(err)
	}
	return shared.WriteFileAtomic(a.Path, data)
}

func matchesFilters(record types.ServiceRecord, filters []types.Filter) bool {
	for _, filter := range filters {
		if !matchesValue(record[filter.Field], filter.Value) {
			return false
		}
	}
	return true
}

func matchesValue(have any, want any) bool {
	if want == nil {
		if have == nil {
			return true
		}
		if link, ok := have.(map[string]any); ok {
			return link["id"] == nil
		}
		return false
	}
	switch typed := want.(type) {
	case int:
		got, ok := types.AsInt(have)
		return ok && got == typed
	case string:
		got, ok := have.(string)
		return ok && got == typed
	case bool:
		got, ok := have.(bool)
		return ok && got == typed
	default:
		return fmt.Sprint(have) == fmt.Sprint(want)
	}
}

func projectFields(record types.ServiceRecord, fields []string) types.ServiceRecord {
	if len(fields) == 0 {
		out := types.ServiceRecord{}
		for key, value := range record {
			out[key] = value
		}
		return out
	}
	keys := append([]string{"id", "type"}, fields...)
	sort.Strings(keys)
	out := types.ServiceRecord{}
	for _, key := range keys {
		if value, ok := record[key]; ok {
			out[key] = value
		}
	}
	return out
}

var _ ports.RegistryServicePort = (*RegistrySnapshotAdapter)(nil)
