package ports

import "context"

// SourceControlPort covers the handful of repository operations bundle
// resolution needs. It is not a general VCS client.
type SourceControlPort interface {
	// ListTags lists tag names on the remote without cloning.
	ListTags(ctx context.Context, repoURL string) ([]string, error)

	// LatestTag clones the repository and returns the newest tag reachable
	// from the default branch head.
	LatestTag(ctx context.Context, repoURL string) (string, error)

	// ArchiveTag writes the tree of tag into dest without any repository
	// metadata.
	ArchiveTag(ctx context.Context, repoURL string, tag string, dest string) error

	// BranchHead returns the commit the remote branch currently points at.
	BranchHead(ctx context.Context, repoURL string, branch string) (string, error)

	// CloneAtCommit clones branch into dest and hard-resets it to commit.
	CloneAtCommit(ctx context.Context, repoURL string, branch string, commit string, dest string) error
}
