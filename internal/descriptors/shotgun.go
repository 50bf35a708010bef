package descriptors

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/types"
)

const shotgunDir = "sg"

// shotgunBackend is a payload uploaded as an attachment on a registry
// service record. The version is the attachment id, so a re-upload yields a
// new identity and a new cache path.
type shotgunBackend struct {
	base
	entityType   string
	field        string
	attachmentID int
}

func newShotgunBackend(loc types.Location, roots *types.CacheRoots, deps Dependencies) (Backend, error) {
	entityType, err := requireField(loc, "entity_type")
	if err != nil {
		return nil, err
	}
	field, err := requireField(loc, "field")
	if err != nil {
		return nil, err
	}
	version, err := requireField(loc, "version")
	if err != nil {
		return nil, err
	}
	attachmentID := 0
	if version != core.LatestSentinel {
		attachmentID, err = strconv.Atoi(version)
		if err != nil {
			return nil, core.LocatorError(core.SerializeURI(loc), "attachment version must be an integer id", err)
		}
	}
	if loc.Get("name") == "" && loc.Get("id") == "" {
		return nil, core.LocatorError(core.SerializeURI(loc), "attachment location needs a name or an id", nil)
	}
	owner := loc.Get("name")
	if owner == "" {
		owner = loc.Get("id")
	}
	b := &shotgunBackend{entityType: entityType, field: field, attachmentID: attachmentID}
	b.init(loc, roots, deps, shotgunDir, entityType+"."+field, owner, "v"+version)
	b.populate = b.download
	return b, nil
}

func (b *shotgunBackend) SystemName() string {
	if name := b.loc.Get("name"); name != "" {
		return name
	}
	return b.loc.Get("id")
}

func (b *shotgunBackend) download(ctx context.Context, staging string) error {
	uri := b.URI()
	if b.attachmentID == 0 {
		return core.LocatorError(uri, "attachment location must be resolved to an id first", nil)
	}
	service, err := b.deps.service(uri)
	if err != nil {
		return err
	}
	data, err := Retry(ctx, b.deps.Retry, "download "+uri, func() ([]byte, error) {
		return service.DownloadAttachment(ctx, b.attachmentID)
	})
	if err != nil {
		return core.FetchError(uri, "failed to download attachment", err)
	}
	if err := b.deps.Archive.Unpack(data, staging); err != nil {
		return core.FetchError(uri, "failed to unpack attachment", err)
	}
	return nil
}

func (b *shotgunBackend) ownerFilters() []types.Filter {
	if id, err := strconv.Atoi(b.loc.Get("id")); err == nil {
		return []types.Filter{{Field: "id", Value: id}}
	}
	filters := []types.Filter{{Field: FieldCode, Value: b.loc.Get("name")}}
	if project, err := strconv.Atoi(b.loc.Get("project_id")); err == nil {
		filters = append(filters, types.Filter{Field: "project", Value: project})
	}
	return filters
}

func (b *shotgunBackend) currentAttachment(ctx context.Context) (int, error) {
	uri := b.URI()
	service, err := b.deps.service(uri)
	if err != nil {
		return 0, err
	}
	record, err := service.FindOne(ctx, b.entityType, b.ownerFilters(), []string{b.field})
	if err != nil {
		return 0, core.FetchError(uri, "failed to query owning record", err)
	}
	if record == nil {
		return 0, core.FetchError(uri, "owning record not found", nil)
	}
	attachmentID, ok := record.Int(b.field)
	if !ok || attachmentID == 0 {
		return 0, core.FetchError(uri, "owning record has no attachment in field "+b.field, nil)
	}
	return attachmentID, nil
}

func (b *shotgunBackend) Versions(ctx context.Context) ([]string, error) {
	attachmentID, err := b.currentAttachment(ctx)
	if err != nil {
		return nil, err
	}
	return []string{strconv.Itoa(attachmentID)}, nil
}

// Latest re-queries the owning record; attachment ids are not version
// patterns so pattern is ignored.
func (b *shotgunBackend) Latest(ctx context.Context, pattern string) (Backend, error) {
	attachmentID, err := b.currentAttachment(ctx)
	if err != nil {
		return nil, err
	}
	if attachmentID == b.attachmentID {
		return b, nil
	}
	log.Debug().Str("uri", b.URI()).Int("attachment", attachmentID).Msg("owning record carries a new attachment")
	return newShotgunBackend(b.loc.With("version", strconv.Itoa(attachmentID)), b.roots, b.deps)
}
