package gh

import (
	"context"
	"fmt"
)

// NewNoopClient returns a Client whose every call fails. It stands in for the
// real client when an operation must not reach the provider.
func NewNoopClient() Client {
	return noopClient{}
}

type noopClient struct{}

func (noopClient) err() error {
	return fmt.Errorf("noop github client not implemented")
}

func (c noopClient) ResolveRef(ctx context.Context, identifier string) (string, error) {
	return "", c.err()
}

func (c noopClient) GetTree(ctx context.Context, ref string, recursive bool) (Tree, error) {
	return Tree{}, c.err()
}

func (c noopClient) CreateTree(ctx context.Context, entries []TreeEntry, baseTree string) (Tree, error) {
	return Tree{}, c.err()
}

func (c noopClient) CreateBlob(ctx context.Context, content []byte) (Blob, error) {
	return Blob{}, c.err()
}

func (c noopClient) GetBlob(ctx context.Context, sha string) (Blob, error) {
	return Blob{}, c.err()
}

func (c noopClient) GetCommit(ctx context.Context, ref string) (Commit, error) {
	return Commit{}, c.err()
}

func (c noopClient) CreateCommit(ctx context.Context, message, treeSHA string, parents []string, author CommitAuthor) (Commit, error) {
	return Commit{}, c.err()
}

func (c noopClient) PointBranch(ctx context.Context, branch, sha string) (Ref, error) {
	return Ref{}, c.err()
}

func (c noopClient) GetBranch(ctx context.Context, name string) (Ref, error) {
	return Ref{}, c.err()
}

func (c noopClient) GetTag(ctx context.Context, name string) (Ref, error) {
	return Ref{}, c.err()
}

func (c noopClient) GetFile(ctx context.Context, path, ref string) ([]byte, error) {
	return nil, c.err()
}

func (c noopClient) Compare(ctx context.Context, base, target string, format CompareFormat) (string, error) {
	return "", c.err()
}

func (c noopClient) ListCommitsSince(ctx context.Context, startSHA, endSHA string) ([]Commit, error) {
	return nil, c.err()
}
