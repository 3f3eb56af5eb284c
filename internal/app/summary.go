package app

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/shiqiyang-okta/ghpick/internal/patch"
)

var (
	addedLabel    = color.New(color.FgGreen).SprintFunc()
	modifiedLabel = color.New(color.FgYellow).SprintFunc()
	deletedLabel  = color.New(color.FgRed).SprintFunc()
)

// WriteSummary renders the per-file patch summary in diff order. A record
// with a mode but no deletion marker is a new file or mode change; one with
// neither is a plain content modification.
func WriteSummary(w io.Writer, records []patch.ChangeRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no file changes between the given commits")
		return
	}

	for _, record := range records {
		switch {
		case record.Deleted:
			fmt.Fprintf(w, "  %s  %s\n", deletedLabel("deleted "), record.Path)
		case record.Mode != "":
			fmt.Fprintf(w, "  %s  %s (%s)\n", addedLabel("added   "), record.Path, record.Mode)
		default:
			fmt.Fprintf(w, "  %s  %s\n", modifiedLabel("modified"), record.Path)
		}
	}
}
