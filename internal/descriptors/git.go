package descriptors

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/types"
)

const (
	gitDir       = "git"
	gitBranchDir = "gitbranch"
)

// gitBackend is a bundle pinned to a repository tag.
type gitBackend struct {
	base
	repo    string
	name    string
	version string
}

func newGitBackend(loc types.Location, roots *types.CacheRoots, deps Dependencies) (Backend, error) {
	repo, err := requireField(loc, "path")
	if err != nil {
		return nil, err
	}
	version, err := requireField(loc, "version")
	if err != nil {
		return nil, err
	}
	b := &gitBackend{repo: repo, name: repoName(repo), version: version}
	b.init(loc, roots, deps, gitDir, b.name, version)
	b.populate = b.archive
	return b, nil
}

func (b *gitBackend) SystemName() string {
	return b.name
}

func (b *gitBackend) archive(ctx context.Context, staging string) error {
	vcs, err := b.deps.vcs(b.URI())
	if err != nil {
		return err
	}
	if err := vcs.ArchiveTag(ctx, b.repo, b.version, staging); err != nil {
		return core.FetchError(b.URI(), "failed to archive tag "+b.version, err)
	}
	return nil
}

func (b *gitBackend) Versions(ctx context.Context) ([]string, error) {
	vcs, err := b.deps.vcs(b.URI())
	if err != nil {
		return nil, err
	}
	tags, err := vcs.ListTags(ctx, b.repo)
	if err != nil {
		return nil, core.FetchError(b.URI(), "failed to list tags", err)
	}
	return tags, nil
}

// Latest without a pattern describes the newest tag reachable from the
// default branch; with a pattern it matches against every remote tag.
func (b *gitBackend) Latest(ctx context.Context, pattern string) (Backend, error) {
	vcs, err := b.deps.vcs(b.URI())
	if err != nil {
		return nil, err
	}
	var tag string
	if strings.TrimSpace(pattern) == "" {
		tag, err = vcs.LatestTag(ctx, b.repo)
		if err != nil {
			return nil, core.FetchError(b.URI(), "failed to find latest tag", err)
		}
	} else {
		tags, err := b.Versions(ctx)
		if err != nil {
			return nil, err
		}
		tag, err = core.FindLatestMatching(tags, pattern)
		if err != nil {
			return nil, err
		}
	}
	log.Debug().Str("repository", b.repo).Str("pattern", pattern).Str("tag", tag).Msg("resolved latest tag")
	return newGitBackend(b.loc.With("version", tag), b.roots, b.deps)
}

// gitBranchBackend is a bundle pinned to a commit on a branch. Cached
// payloads carry no repository metadata; CopyTo clones so the copy keeps it.
type gitBranchBackend struct {
	base
	repo    string
	branch  string
	name    string
	version string
}

func newGitBranchBackend(loc types.Location, roots *types.CacheRoots, deps Dependencies) (Backend, error) {
	repo, err := requireField(loc, "path")
	if err != nil {
		return nil, err
	}
	branch, err := requireField(loc, "branch")
	if err != nil {
		return nil, err
	}
	version, err := requireField(loc, "version")
	if err != nil {
		return nil, err
	}
	b := &gitBranchBackend{repo: repo, branch: branch, name: repoName(repo), version: version}
	b.init(loc, roots, deps, gitBranchDir, b.name, shortHash(version))
	b.populate = b.clone
	return b, nil
}

func (b *gitBranchBackend) SystemName() string {
	return b.name
}

func (b *gitBranchBackend) pinned() error {
	if b.version == core.LatestSentinel {
		return core.LocatorError(b.URI(), "branch location must be resolved to a commit first", nil)
	}
	return nil
}

func (b *gitBranchBackend) clone(ctx context.Context, staging string) error {
	if err := b.pinned(); err != nil {
		return err
	}
	vcs, err := b.deps.vcs(b.URI())
	if err != nil {
		return err
	}
	if err := vcs.CloneAtCommit(ctx, b.repo, b.branch, b.version, staging); err != nil {
		return core.FetchError(b.URI(), "failed to clone branch "+b.branch, err)
	}
	return os.RemoveAll(filepath.Join(staging, ".git"))
}

func (b *gitBranchBackend) CopyTo(ctx context.Context, dest string) error {
	if err := b.pinned(); err != nil {
		return err
	}
	vcs, err := b.deps.vcs(b.URI())
	if err != nil {
		return err
	}
	if err := vcs.CloneAtCommit(ctx, b.repo, b.branch, b.version, dest); err != nil {
		return core.FetchError(b.URI(), "failed to clone branch "+b.branch+" into "+dest, err)
	}
	return nil
}

func (b *gitBranchBackend) Versions(ctx context.Context) ([]string, error) {
	head, err := b.head(ctx)
	if err != nil {
		return nil, err
	}
	return []string{head}, nil
}

// Latest lists the remote branch head without cloning. Patterns do not
// apply to commits and are ignored.
func (b *gitBranchBackend) Latest(ctx context.Context, pattern string) (Backend, error) {
	if pattern != "" {
		log.Debug().Str("pattern", pattern).Msg("ignoring version pattern for branch location")
	}
	head, err := b.head(ctx)
	if err != nil {
		return nil, err
	}
	return newGitBranchBackend(b.loc.With("version", head), b.roots, b.deps)
}

func (b *gitBranchBackend) head(ctx context.Context) (string, error) {
	vcs, err := b.deps.vcs(b.URI())
	if err != nil {
		return "", err
	}
	head, err := vcs.BranchHead(ctx, b.repo, b.branch)
	if err != nil {
		return "", core.FetchError(b.URI(), "failed to read head of branch "+b.branch, err)
	}
	return head, nil
}

// repoName derives a bundle name from a repository url or path:
// "git@host:acme/tk-review.git" -> "tk-review".
func repoName(repo string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(repo), "/\\")
	if index := strings.LastIndexAny(trimmed, "/\\:"); index >= 0 {
		trimmed = trimmed[index+1:]
	}
	return strings.TrimSuffix(trimmed, ".git")
}
