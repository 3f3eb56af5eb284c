// Package patch plans the file-level changes described by a unified diff and
// applies the diff to a staged working set.
package patch

import (
	"regexp"
	"strings"
)

// ChangeRecord describes one file touched by a diff. Mode is the octal
// permission string declared by the diff (for example "100644"); it is empty
// when the diff declares none, meaning whatever mode already exists
// downstream should be kept.
type ChangeRecord struct {
	Path    string
	Mode    string
	Deleted bool
}

var (
	sectionHeaderPattern = regexp.MustCompile(`^diff --git a/(.*?) b/.*$`)
	newModePattern       = regexp.MustCompile(`^new (?:file )?mode (\d+)$`)
	deletedFilePattern   = regexp.MustCompile(`deleted file mode (\d+)`)
	terminatorPattern    = regexp.MustCompile(`^(?:index|\+\+\+|---)`)
)

// Parse scans diffText for file-section boundaries and returns one
// ChangeRecord per file section, in diff order, without deduplication. Lines
// before the first section header are skipped. A record accumulates its mode
// declaration and deleted-file marker until a terminator line (index, +++ or
// ---) closes it; a section still open when the text ends is flushed as-is.
func Parse(diffText string) []ChangeRecord {
	var records []ChangeRecord
	var current *ChangeRecord

	for _, line := range strings.Split(diffText, "\n") {
		if current == nil {
			if match := sectionHeaderPattern.FindStringSubmatch(line); match != nil {
				current = &ChangeRecord{Path: match[1]}
			}
			continue
		}

		if match := newModePattern.FindStringSubmatch(line); match != nil {
			current.Mode = match[1]
		}
		if deletedFilePattern.MatchString(line) {
			current.Deleted = true
		}
		if terminatorPattern.MatchString(line) {
			records = append(records, *current)
			current = nil
		}
	}

	if current != nil {
		records = append(records, *current)
	}

	return records
}
