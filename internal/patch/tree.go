package patch

import "strings"

// Node is one level of a change tree. A node is either a leaf carrying the
// ChangeRecord for a single file, or a directory holding child nodes by path
// segment. Directories carry no mode or deletion state of their own.
type Node struct {
	Change   *ChangeRecord
	Children map[string]*Node
}

// IsLeaf reports whether the node represents a file change.
func (n *Node) IsLeaf() bool {
	return n != nil && n.Change != nil
}

// BuildTree folds the flat record list into a hierarchical tree mirroring the
// repository's directory structure. Records sharing a directory prefix
// accumulate as siblings; two records naming the same full path collide and
// the later record wins.
func BuildTree(records []ChangeRecord) *Node {
	root := &Node{Children: make(map[string]*Node)}
	for i := range records {
		segments := splitPath(records[i].Path)
		if len(segments) == 0 {
			continue
		}
		merge(root, chain(segments, records[i]))
	}
	return root
}

// chain builds the single-path tree segment→…→leaf for one record.
func chain(segments []string, record ChangeRecord) *Node {
	if len(segments) == 1 {
		return &Node{Children: map[string]*Node{
			segments[0]: {Change: &record},
		}}
	}
	return &Node{Children: map[string]*Node{
		segments[0]: chain(segments[1:], record),
	}}
}

// merge folds b's children into a. Two directories merge recursively; any
// other collision resolves to b's node.
func merge(a, b *Node) {
	for name, child := range b.Children {
		if existing, ok := a.Children[name]; ok && !existing.IsLeaf() && !child.IsLeaf() {
			merge(existing, child)
			continue
		}
		a.Children[name] = child
	}
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}
