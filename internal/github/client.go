package gh

import (
	"context"
	"time"
)

// Object types carried by tree entries.
const (
	TypeBlob = "blob"
	TypeTree = "tree"
)

// TreeEntry is one named entry of a Git tree: a blob (file) or a nested tree
// (directory), as exchanged with the hosting provider.
type TreeEntry struct {
	Path string
	Mode string
	Type string
	SHA  string
}

// Tree is a provider-stored set of named entries addressed by content hash.
type Tree struct {
	SHA       string
	Entries   []TreeEntry
	Truncated bool
}

// Blob is a provider-stored immutable byte payload addressed by content hash.
type Blob struct {
	SHA     string
	Content []byte
}

// CommitAuthor identifies who authored or committed a commit and when.
type CommitAuthor struct {
	Name  string
	Email string
	Date  time.Time
}

// Commit references one tree and zero or more parent commits.
type Commit struct {
	SHA       string
	TreeSHA   string
	Message   string
	Parents   []string
	Author    CommitAuthor
	Committer CommitAuthor
}

// Ref is a named pointer to a commit SHA.
type Ref struct {
	Name string
	SHA  string
}

// CompareFormat selects the representation returned by Compare.
type CompareFormat string

const (
	// FormatRaw returns the provider's structured comparison payload as JSON.
	FormatRaw CompareFormat = "raw"
	// FormatDiff returns a unified diff.
	FormatDiff CompareFormat = "diff"
	// FormatPatch returns a git-am style patch.
	FormatPatch CompareFormat = "patch"
)

// Client exposes the provider operations required by the cherry-pick core.
// Implementations perform a single attempt per call; retry policy is the
// caller's concern.
type Client interface {
	// ResolveRef accepts a 40-hex SHA, branch name, or tag name and returns
	// the commit SHA it points at. Fails with an InvalidRefError when none
	// resolve.
	ResolveRef(ctx context.Context, identifier string) (string, error)

	GetTree(ctx context.Context, ref string, recursive bool) (Tree, error)
	// CreateTree posts the given entries as a new tree. With no baseTree the
	// new tree contains exactly the supplied entries, so omitting an existing
	// path deletes it; with baseTree set the entries patch that tree in place.
	CreateTree(ctx context.Context, entries []TreeEntry, baseTree string) (Tree, error)

	CreateBlob(ctx context.Context, content []byte) (Blob, error)
	GetBlob(ctx context.Context, sha string) (Blob, error)

	GetCommit(ctx context.Context, ref string) (Commit, error)
	CreateCommit(ctx context.Context, message, treeSHA string, parents []string, author CommitAuthor) (Commit, error)

	// PointBranch moves the branch reference to the given commit SHA.
	PointBranch(ctx context.Context, branch, sha string) (Ref, error)
	GetBranch(ctx context.Context, name string) (Ref, error)
	GetTag(ctx context.Context, name string) (Ref, error)

	// GetFile returns the decoded content of path at ref. A missing file
	// surfaces as a NotFound error kind.
	GetFile(ctx context.Context, path, ref string) ([]byte, error)

	Compare(ctx context.Context, base, target string, format CompareFormat) (string, error)

	// ListCommitsSince lists commits reachable from endSHA, newest first,
	// truncated at (exclusive of) startSHA.
	ListCommitsSince(ctx context.Context, startSHA, endSHA string) ([]Commit, error)
}
