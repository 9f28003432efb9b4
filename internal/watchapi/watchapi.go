// Package watchapi describes the boundary between the complexity engine and
// an external filesystem watcher. Watching a folder, debouncing bursts of
// filesystem events, and deciding when a file has finished being written are
// all out of scope for this engine — they belong to the external watcher
// process. This package only carries the contract that watcher calls into:
// which events are worth acting on, and how a ready file is submitted.
package watchapi

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultBatchDelay is the debounce window an external watcher should use
// before submitting a burst of writes to the same file as one request.
const DefaultBatchDelay = 500 * time.Millisecond

// Submitter is implemented by the analysis worker. An external watcher
// calls Submit once it has decided a file is stable and ready to analyze.
type Submitter interface {
	Submit(ctx context.Context, filePath, orderID string) error
}

// RelevantEvent reports whether a raw fsnotify event names a file the
// engine cares about: a create or write of a .dxf file. Renames and
// removals are not analysis triggers.
func RelevantEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	return IsDrawingFile(event.Name)
}

// IsDrawingFile reports whether path has the file extension the engine
// knows how to parse, case-insensitively.
func IsDrawingFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".dxf")
}
