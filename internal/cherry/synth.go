package cherry

import (
	"context"
	"fmt"
	"os"
	"sort"

	gh "github.com/shiqiyang-okta/ghpick/internal/github"
	"github.com/shiqiyang-okta/ghpick/internal/patch"
)

// Default entry modes used when the diff declares none. An explicit mode
// recorded from the diff (for example executable 100755) always wins.
const (
	defaultFileMode = "100644"
	defaultDirMode  = "040000"
)

// BuildTree merges the session's change tree into the given remote tree and
// submits the merged structure for remote tree creation, returning the new
// tree handle. The change tree is rebuilt from the session's records when a
// prior step has not built it yet.
func (p *Picker) BuildTree(ctx context.Context, session *Session, remote gh.Tree) (gh.Tree, error) {
	if session.Tree == nil {
		session.Tree = patch.BuildTree(session.Records)
	}

	entries, err := p.mergeLevel(ctx, session, session.Tree, remote)
	if err != nil {
		return gh.Tree{}, err
	}

	created, err := p.client.CreateTree(ctx, entries, "")
	if err != nil {
		return gh.Tree{}, fmt.Errorf("create root tree: %w", err)
	}

	return created, nil
}

// mergeLevel merges one level of the change tree into one level of the remote
// tree and returns the resulting entries. A nil result signals "absent": every
// entry at this level was deleted, so the parent must drop the directory
// rather than keep an empty tree object.
func (p *Picker) mergeLevel(ctx context.Context, session *Session, node *patch.Node, remote gh.Tree) ([]gh.TreeEntry, error) {
	// Index the remote level by path; last one wins should the remote
	// unexpectedly contain duplicates. Remote order is kept so resynthesis
	// from the same inputs yields the same entry sequence.
	index := make(map[string]gh.TreeEntry, len(remote.Entries))
	order := make([]string, 0, len(remote.Entries)+len(node.Children))
	for _, entry := range remote.Entries {
		if _, seen := index[entry.Path]; !seen {
			order = append(order, entry.Path)
		}
		index[entry.Path] = entry
	}

	names := make([]string, 0, len(node.Children))
	for name := range node.Children {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		child := node.Children[name]

		if child.IsLeaf() {
			entry, err := p.mergeFile(ctx, session, name, child.Change)
			if err != nil {
				return nil, err
			}
			if entry == nil {
				delete(index, name)
				continue
			}
			if _, seen := index[name]; !seen {
				order = append(order, name)
			}
			index[name] = *entry
			continue
		}

		entry, err := p.mergeDirectory(ctx, session, name, child, index[name])
		if err != nil {
			return nil, err
		}
		if entry == nil {
			delete(index, name)
			continue
		}
		if _, seen := index[name]; !seen {
			order = append(order, name)
		}
		index[name] = *entry
	}

	if len(index) == 0 {
		return nil, nil
	}

	entries := make([]gh.TreeEntry, 0, len(index))
	for _, name := range order {
		if entry, ok := index[name]; ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// mergeFile turns one leaf change into a tree entry, creating a blob from the
// staged bytes. A deleted file yields nil: deletion is omission from the new
// tree, not a tombstone.
func (p *Picker) mergeFile(ctx context.Context, session *Session, name string, record *patch.ChangeRecord) (*gh.TreeEntry, error) {
	if record.Deleted {
		return nil, nil
	}

	content, err := os.ReadFile(session.stagedPath(record.Path))
	if err != nil {
		return nil, fmt.Errorf("read staged file %s: %w", record.Path, err)
	}

	blob, err := p.client.CreateBlob(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("create blob for %s: %w", record.Path, err)
	}

	mode := record.Mode
	if mode == "" {
		mode = defaultFileMode
	}

	return &gh.TreeEntry{Path: name, Mode: mode, Type: gh.TypeBlob, SHA: blob.SHA}, nil
}

// mergeDirectory recurses into a subdirectory, starting from the existing
// remote subtree when the level already has one and from an empty subtree
// otherwise. A recursion that comes back absent empties this directory too,
// so nil propagates to the caller.
func (p *Picker) mergeDirectory(ctx context.Context, session *Session, name string, node *patch.Node, existing gh.TreeEntry) (*gh.TreeEntry, error) {
	var subtree gh.Tree
	if existing.SHA != "" && existing.Type == gh.TypeTree {
		fetched, err := p.client.GetTree(ctx, existing.SHA, false)
		if err != nil {
			return nil, fmt.Errorf("fetch subtree %s: %w", name, err)
		}
		subtree = fetched
	}

	entries, err := p.mergeLevel(ctx, session, node, subtree)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		return nil, nil
	}

	created, err := p.client.CreateTree(ctx, entries, "")
	if err != nil {
		return nil, fmt.Errorf("create subtree %s: %w", name, err)
	}

	return &gh.TreeEntry{Path: name, Mode: defaultDirMode, Type: gh.TypeTree, SHA: created.SHA}, nil
}
