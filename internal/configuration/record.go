package configuration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/descriptors"
	"pipeline-bundles/internal/ports"
	"pipeline-bundles/internal/shared"
	"pipeline-bundles/internal/types"
)

// Registry service entities read while installing a configuration.
const (
	EntityPipelineConfiguration = "PipelineConfiguration"
	EntityLocalStorage          = "LocalStorage"
)

const rootBinariesDir = "setup/root_binaries"

// FallbackCoreLocation is installed when a configuration declares no core.
func FallbackCoreLocation() types.Location {
	return types.NewLocation(types.KindAppStore, map[string]string{
		"name":    "pipeline-core",
		"version": core.LatestSentinel,
	})
}

// Dependencies are shared by every record built in one session.
type Dependencies struct {
	Registry  *descriptors.Registry
	Roots     *types.CacheRoots
	Sidecars  ports.SidecarPort
	Service   ports.RegistryServicePort
	HTTPProxy string
	Clock     func() time.Time
	// GOOS selects entry points and per-platform paths; empty means runtime.GOOS.
	GOOS string
}

func (d Dependencies) now() time.Time {
	if d.Clock == nil {
		return time.Now().UTC()
	}
	return d.Clock().UTC()
}

func (d Dependencies) goos() string {
	if d.GOOS == "" {
		return runtime.GOOS
	}
	return d.GOOS
}

func (d Dependencies) host() string {
	if d.Service == nil {
		return ""
	}
	return d.Service.Host()
}

// Record is one configuration bound to an install root. Managed records
// point at a fixed path maintained elsewhere and are always up to date.
type Record struct {
	descriptor       *descriptors.Facade
	projectID        *int
	pipelineConfigID *int
	pipelineConfig   string
	namespace        string
	layout           Layout
	managed          bool
	deps             Dependencies
}

// Identity names the project and placement a record belongs to.
type Identity struct {
	ProjectID          *int
	PipelineConfigID   *int
	PipelineConfigName string
	Namespace          string
}

func NewManagedRecord(installRoot string, identity Identity, deps Dependencies) *Record {
	return &Record{
		projectID:        identity.ProjectID,
		pipelineConfigID: identity.PipelineConfigID,
		pipelineConfig:   identity.PipelineConfigName,
		namespace:        identity.Namespace,
		layout:           Layout{Root: installRoot},
		managed:          true,
		deps:             deps,
	}
}

func NewUnmanagedRecord(descriptor *descriptors.Facade, identity Identity, deps Dependencies) *Record {
	root := UnmanagedInstallRoot(deps.Roots.Primary(), deps.host(), identity.ProjectID, identity.PipelineConfigID, identity.Namespace)
	return &Record{
		descriptor:       descriptor,
		projectID:        identity.ProjectID,
		pipelineConfigID: identity.PipelineConfigID,
		pipelineConfig:   identity.PipelineConfigName,
		namespace:        identity.Namespace,
		layout:           Layout{Root: root},
		deps:             deps,
	}
}

func (r *Record) Managed() bool {
	return r.managed
}

func (r *Record) InstallRoot() string {
	return r.layout.Root
}

func (r *Record) Layout() Layout {
	return r.layout
}

// Descriptor is nil for managed records.
func (r *Record) Descriptor() *descriptors.Facade {
	return r.descriptor
}

// Status inspects disk state only and never fails; inconsistent state is
// reported as INVALID.
func (r *Record) Status() types.ConfigStatus {
	if r.managed {
		return types.ConfigStatusUpToDate
	}
	if !dirHasEntries(r.layout.ConfigDir()) {
		return types.ConfigStatusMissing
	}
	info, err := r.deps.Sidecars.ReadConfigInfo(r.layout.SidecarDir())
	if err != nil {
		log.Debug().Err(err).Str("install_root", r.layout.Root).Msg("config info unreadable")
		return types.ConfigStatusInvalid
	}
	if info.FormatGeneration != ConfigFormatGeneration {
		return types.ConfigStatusOld
	}
	recorded, err := recordedLocation(info)
	if err != nil {
		log.Debug().Err(err).Str("install_root", r.layout.Root).Msg("config info records no valid location")
		return types.ConfigStatusInvalid
	}
	if r.descriptor == nil || !recorded.Equal(r.descriptor.Location()) {
		return types.ConfigStatusOld
	}
	return types.ConfigStatusUpToDate
}

func recordedLocation(info types.ConfigInfo) (types.Location, error) {
	if len(info.Source) > 0 {
		return core.LocationFromMap(info.Source)
	}
	return core.ParseURI(info.SourceURI)
}

// EnsureScaffold creates the fixed directory layout.
func (r *Record) EnsureScaffold() error {
	dirs := append([]string{
		r.layout.CacheDir(),
		r.layout.ConfigDir(),
		r.layout.CoreDir(),
	}, r.layout.PlaceholderDirs()...)
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to create " + dir).
				WithCause(err)
		}
	}
	return nil
}

// Backup lists the directories MoveToBackup relocated payloads into.
type Backup struct {
	ConfigPath string
	CorePath   string
}

// MoveToBackup relocates the installed payload and core into timestamped
// backup directories. Nothing is deleted.
func (r *Record) MoveToBackup() (Backup, error) {
	if r.managed {
		return Backup{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("managed configurations are not backed up")
	}
	stamp := r.deps.now().Format(backupTimeFormat)
	var backup Backup
	var err error
	if backup.ConfigPath, err = moveAside(r.layout.ConfigDir(), r.layout.ConfigBackupDir(), stamp); err != nil {
		return backup, err
	}
	if backup.CorePath, err = moveAside(r.layout.CoreDir(), r.layout.CoreBackupDir(), stamp); err != nil {
		return backup, err
	}
	log.Info().
		Str("install_root", r.layout.Root).
		Str("config_backup", backup.ConfigPath).
		Str("core_backup", backup.CorePath).
		Msg("moved configuration to backup")
	return backup, nil
}

func moveAside(src string, backupRoot string, stamp string) (string, error) {
	if !dirHasEntries(src) {
		return "", nil
	}
	dest := filepath.Join(backupRoot, stamp)
	for suffix := 1; shared.DirExists(dest); suffix++ {
		dest = filepath.Join(backupRoot, stamp+"_"+strconv.Itoa(suffix))
	}
	if err := shared.MoveTree(src, dest); err != nil {
		return "", err
	}
	if err := os.MkdirAll(src, 0o755); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to recreate " + src).
			WithCause(err)
	}
	return dest, nil
}

// UpdateConfiguration installs the resolved payload, writes every side-car
// document and installs the core. An existing payload is backed up first.
// config_info.yml is written only once the core is in place, so a failed
// update leaves the record INVALID.
func (r *Record) UpdateConfiguration(ctx context.Context) error {
	if r.managed {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("managed configurations are updated externally")
	}
	if r.descriptor == nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("unmanaged configuration record has no descriptor")
	}
	assert.NotEmpty(ctx, r.layout.Root, "install root must be set")
	if dirHasEntries(r.layout.ConfigDir()) {
		if _, err := r.MoveToBackup(); err != nil {
			return err
		}
	}
	if err := r.EnsureScaffold(); err != nil {
		return err
	}
	if err := r.descriptor.EnsureLocal(ctx); err != nil {
		return err
	}
	if err := r.descriptor.CopyTo(ctx, r.layout.ConfigDir()); err != nil {
		return err
	}
	if err := r.writeSidecars(ctx); err != nil {
		return err
	}
	if _, err := r.InstallCore(ctx); err != nil {
		return err
	}
	if err := r.writeConfigInfo(); err != nil {
		return err
	}
	log.Info().
		Str("uri", r.descriptor.URI()).
		Str("install_root", r.layout.Root).
		Msg("configuration installed")
	return nil
}

func (r *Record) writeSidecars(ctx context.Context) error {
	dir := r.layout.SidecarDir()
	sidecars := r.deps.Sidecars
	location := types.InstallLocation{}
	switch r.deps.goos() {
	case "darwin":
		location.Mac = r.layout.Root
	case "windows":
		location.Windows = r.layout.Root
	default:
		location.Linux = r.layout.Root
	}
	if err := sidecars.WriteInstallLocation(dir, location); err != nil {
		return err
	}
	if err := sidecars.WriteServiceConnection(dir, types.ServiceConnection{Host: r.deps.host(), HTTPProxy: r.deps.HTTPProxy}); err != nil {
		return err
	}
	if err := sidecars.WritePipelineIdentity(dir, types.PipelineIdentity{
		ProjectID:          r.projectID,
		PipelineConfigID:   r.pipelineConfigID,
		PipelineConfigName: r.pipelineConfig,
		Namespace:          r.namespace,
	}); err != nil {
		return err
	}
	roots, err := r.storageRoots(ctx)
	if err != nil {
		return err
	}
	return sidecars.WriteStorageRoots(dir, roots)
}

// writeConfigInfo records the provenance Status trusts; it is the last write
// of an update.
func (r *Record) writeConfigInfo() error {
	return r.deps.Sidecars.WriteConfigInfo(r.layout.SidecarDir(), types.ConfigInfo{
		FormatGeneration: ConfigFormatGeneration,
		SourceURI:        r.descriptor.URI(),
		Source:           r.descriptor.Location().Map(),
		InstalledAt:      r.deps.now().Format(time.RFC3339),
	})
}

// storageRoots resolves the names the configuration declares against the
// registry service's LocalStorage records. The first declared name is the
// default root.
func (r *Record) storageRoots(ctx context.Context) (map[string]types.StorageRoot, error) {
	manifest, err := r.descriptor.Manifest()
	if err != nil {
		return nil, err
	}
	out := map[string]types.StorageRoot{}
	if len(manifest.StorageRoots) == 0 {
		return out, nil
	}
	if r.deps.Service == nil {
		log.Warn().Strs("roots", manifest.StorageRoots).Msg("no registry service to resolve storage roots")
		return out, nil
	}
	records, err := r.deps.Service.Find(ctx, EntityLocalStorage, nil, []string{"code", "linux_path", "mac_path", "windows_path"})
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to query storage roots").
			WithCause(err)
	}
	byName := map[string]types.ServiceRecord{}
	for _, record := range records {
		byName[record.String("code")] = record
	}
	for i, name := range manifest.StorageRoots {
		record, ok := byName[name]
		if !ok {
			log.Warn().Str("root", name).Msg("storage root not defined in registry")
			continue
		}
		out[name] = types.StorageRoot{
			LinuxPath:   record.String("linux_path"),
			MacPath:     record.String("mac_path"),
			WindowsPath: record.String("windows_path"),
			Default:     i == 0,
		}
	}
	return out, nil
}

// InstallCore installs the core the configuration declares, or the
// fallback core, and copies the platform entry points to the install root.
func (r *Record) InstallCore(ctx context.Context) ([]string, error) {
	if r.managed {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("managed configurations install their own core")
	}
	loc, declared, err := r.descriptor.DeclaredCore()
	if err != nil {
		return nil, err
	}
	if !declared {
		loc = FallbackCoreLocation()
	}
	coreFacade, err := r.deps.Registry.GetOrCreate(ctx, types.RoleCore, loc, r.deps.Roots)
	if err != nil {
		return nil, err
	}
	if err := r.descriptor.CheckCoreCompatibility(coreFacade.Version()); err != nil {
		return nil, err
	}
	if err := coreFacade.EnsureLocal(ctx); err != nil {
		return nil, err
	}
	if dirHasEntries(r.layout.CoreDir()) {
		if _, err := moveAside(r.layout.CoreDir(), r.layout.CoreBackupDir(), r.deps.now().Format(backupTimeFormat)); err != nil {
			return nil, err
		}
	}
	if err := coreFacade.CopyTo(ctx, r.layout.CoreDir()); err != nil {
		return nil, err
	}
	entryPoints, err := r.copyEntryPoints()
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("core", coreFacade.URI()).
		Int("entry_points", len(entryPoints)).
		Msg("core installed")
	return entryPoints, nil
}

func (r *Record) copyEntryPoints() ([]string, error) {
	src := filepath.Join(r.layout.CoreDir(), filepath.FromSlash(rootBinariesDir))
	entries, err := os.ReadDir(src)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to list core entry points").
			WithCause(err)
	}
	windows := r.deps.goos() == "windows"
	var out []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(strings.ToLower(entry.Name()), ".bat") != windows {
			continue
		}
		dest := filepath.Join(r.layout.Root, entry.Name())
		if err := shared.CopyFile(filepath.Join(src, entry.Name()), dest); err != nil {
			return nil, err
		}
		out = append(out, dest)
	}
	return out, nil
}

// RuntimeLayout is the directory contract handed to the runtime loader.
func (r *Record) RuntimeLayout() types.RuntimeLayout {
	return types.RuntimeLayout{
		InstallRoot: r.layout.Root,
		ConfigPath:  r.layout.ConfigDir(),
		CorePath:    r.layout.CoreDir(),
		EntryPoints: r.entryPoints(),
		Managed:     r.managed,
	}
}

func (r *Record) entryPoints() []string {
	src := filepath.Join(r.layout.CoreDir(), filepath.FromSlash(rootBinariesDir))
	entries, err := os.ReadDir(src)
	if err != nil {
		return nil
	}
	var out []string
	for _, entry := range entries {
		path := filepath.Join(r.layout.Root, entry.Name())
		if shared.FileExists(path) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}
