package adapters

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/rs/zerolog/log"

	"pipeline-bundles/internal/ports"
)

const peeledSuffix = "^{}"

// GitClientAdapter implements SourceControlPort on top of go-git. Clones
// used for inspection stay in memory; only exported trees touch disk.
type GitClientAdapter struct {
	Username string
	Password string
}

func NewGitClientAdapter() GitClientAdapter {
	return GitClientAdapter{}
}

func (a GitClientAdapter) auth() transport.AuthMethod {
	if strings.TrimSpace(a.Username) == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: a.Username, Password: a.Password}
}

func (a GitClientAdapter) listRefs(ctx context.Context, repoURL string) ([]*plumbing.Reference, error) {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{repoURL},
	})
	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: a.auth()})
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to list remote references of " + repoURL).
			WithCause(err)
	}
	return refs, nil
}

func (a GitClientAdapter) ListTags(ctx context.Context, repoURL string) ([]string, error) {
	refs, err := a.listRefs(ctx, repoURL)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var tags []string
	for _, ref := range refs {
		name := ref.Name()
		if !name.IsTag() {
			continue
		}
		tag := strings.TrimSuffix(name.Short(), peeledSuffix)
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}

func (a GitClientAdapter) BranchHead(ctx context.Context, repoURL string, branch string) (string, error) {
	refs, err := a.listRefs(ctx, repoURL)
	if err != nil {
		return "", err
	}
	want := plumbing.NewBranchReferenceName(branch)
	for _, ref := range refs {
		if ref.Name() == want {
			return ref.Hash().String(), nil
		}
	}
	return "", errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg("branch " + branch + " not found on " + repoURL)
}

func (a GitClientAdapter) LatestTag(ctx context.Context, repoURL string) (string, error) {
	started := time.Now()
	repo, err := git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{
		URL:  repoURL,
		Auth: a.auth(),
		Tags: git.AllTags,
	})
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to clone " + repoURL).
			WithCause(err)
	}
	log.Debug().Str("repository", repoURL).Dur("duration", time.Since(started)).Msg("cloned repository for tag lookup")

	tagsByCommit, err := tagsByCommit(repo)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to resolve HEAD of " + repoURL).
			WithCause(err)
	}
	commits, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to walk history of " + repoURL).
			WithCause(err)
	}
	defer commits.Close()
	var found string
	for {
		commit, err := commits.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to walk history of " + repoURL).
				WithCause(err)
		}
		if tags, ok := tagsByCommit[commit.Hash]; ok {
			sort.Strings(tags)
			found = tags[len(tags)-1]
			break
		}
	}
	if found == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("no tag reachable from HEAD of " + repoURL)
	}
	return found, nil
}

func tagsByCommit(repo *git.Repository) (map[plumbing.Hash][]string, error) {
	refs, err := repo.Tags()
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to list tags").
			WithCause(err)
	}
	out := map[plumbing.Hash][]string{}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		if annotated, err := repo.TagObject(ref.Hash()); err == nil {
			commit, err := annotated.Commit()
			if err != nil {
				return nil
			}
			target = commit.Hash
		}
		out[target] = append(out[target], ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to index tags").
			WithCause(err)
	}
	return out, nil
}

func (a GitClientAdapter) ArchiveTag(ctx context.Context, repoURL string, tag string, dest string) error {
	repo, err := git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{
		URL:           repoURL,
		Auth:          a.auth(),
		ReferenceName: plumbing.NewTagReferenceName(tag),
		SingleBranch:  true,
		Depth:         1,
	})
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to clone " + repoURL + " at tag " + tag).
			WithCause(err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(plumbing.NewTagReferenceName(tag).String()))
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to resolve tag " + tag).
			WithCause(err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to load commit for tag " + tag).
			WithCause(err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to load tree for tag " + tag).
			WithCause(err)
	}
	if err := exportTree(tree, dest); err != nil {
		return err
	}
	log.Debug().Str("repository", repoURL).Str("tag", tag).Str("dest", dest).Msg("archived tag")
	return nil
}

func exportTree(tree *object.Tree, dest string) error {
	return tree.Files().ForEach(func(file *object.File) error {
		target := filepath.Join(dest, filepath.FromSlash(file.Name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to create archive directory").
				WithCause(err)
		}
		contents, err := file.Contents()
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to read " + file.Name).
				WithCause(err)
		}
		if file.Mode == filemode.Symlink {
			return os.Symlink(contents, target)
		}
		mode := os.FileMode(0o644)
		if file.Mode == filemode.Executable {
			mode = 0o755
		}
		if err := os.WriteFile(target, []byte(contents), mode); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to write " + file.Name).
				WithCause(err)
		}
		return nil
	})
}

func (a GitClientAdapter) CloneAtCommit(ctx context.Context, repoURL string, branch string, commit string, dest string) error {
	repo, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:           repoURL,
		Auth:          a.auth(),
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
	})
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to clone " + repoURL + " branch " + branch).
			WithCause(err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(commit))
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("commit " + commit + " not found on branch " + branch).
			WithCause(err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open worktree").
			WithCause(err)
	}
	if err := worktree.Reset(&git.ResetOptions{Commit: *hash, Mode: git.HardReset}); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to reset to " + commit).
			WithCause(err)
	}
	log.Debug().Str("repository", repoURL).Str("branch", branch).Str("commit", hash.String()).Msg("cloned branch at commit")
	return nil
}

var _ ports.SourceControlPort = GitClientAdapter{}
