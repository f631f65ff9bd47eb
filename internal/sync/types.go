// Package sync implements the backup engine: a depth-first, page-by-page walk
// of a remote listing that materializes every item under a local directory
// exactly once per run, writing through a temporary file and reporting one
// Outcome per item.
package sync

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// MediaKind classifies a remote item. It decides how the bytes are fetched
// (download modifier or export format) and whether a suffix is appended.
type MediaKind int

const (
	KindOpaque MediaKind = iota
	KindImage
	KindVideo
	KindDocument
	KindFolder
)

func (k MediaKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindDocument:
		return "document"
	case KindFolder:
		return "folder"
	default:
		return "opaque"
	}
}

// RemoteItem is one immutable entry of a remote listing.
type RemoteItem struct {
	ID       string
	Name     string
	MimeType string
	// ContentRef is the time-limited URL or opaque handle used to fetch bytes.
	ContentRef string
	CreatedAt  time.Time
	// KindHint is set by listers that know the kind (e.g. a video flag in the
	// item metadata). KindOpaque means "decide from MimeType".
	KindHint MediaKind
	// Metadata is the listing's JSON for this item, kept byte-for-byte.
	Metadata json.RawMessage
	Size     int64
	// Checksum is the hex MD5 of the content when the listing provides one.
	// Downloads are verified against it.
	Checksum string
}

// Scope is one level of traversal: a remote folder and the local directory it
// maps to. FolderID is empty for flat libraries.
type Scope struct {
	FolderID string
	LocalDir string
	// RelPath is LocalDir relative to the run's root, "" at the root.
	RelPath string
}

// Page is one listing page. An empty NextCursor marks the last page.
type Page struct {
	Items      []RemoteItem
	NextCursor string
}

// FetchRequest asks a Fetcher for an item's bytes.
type FetchRequest struct {
	Item RemoteItem
	Kind MediaKind
	// ExportMIME is set for documents that must be converted on download.
	ExportMIME string
}

// Lister pages through the children of a scope.
type Lister interface {
	ListPage(ctx context.Context, scope Scope, cursor string) (Page, error)
}

// Fetcher opens an item's content. Implementations check the upstream status
// before returning, so a non-nil body always carries the real bytes. Errors
// that carry an HTTP status implement interface{ HTTPStatus() int }.
type Fetcher interface {
	Open(ctx context.Context, req FetchRequest) (io.ReadCloser, error)
}

// Source is a remote backend: something that can both list and fetch.
type Source interface {
	Lister
	Fetcher
	// Name identifies the backend in records and logs ("photos", "drive").
	Name() string
}

// Recorder receives every Outcome. Errors are logged by the engine and never
// fail the item.
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// OutcomeKind is the terminal classification of one item.
type OutcomeKind int

const (
	OutcomeDownloaded OutcomeKind = iota
	OutcomeDuplicate
	OutcomeSkipped
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is what happened to one item. It is a value: once emitted it is
// never changed.
type Outcome struct {
	Kind   OutcomeKind
	Source string
	Item   RemoteItem
	Media  MediaKind

	// Path is the file that was written (Downloaded, Duplicate), the existing
	// file (Skipped) or the intended destination (Failed).
	Path string
	// Suffix is the extension of Path, including the dot.
	Suffix      string
	Bytes       int64
	ContentType string

	// Status is the upstream HTTP status of a failed fetch; 0 for local
	// failures.
	Status int
	Reason string
	Err    error
	// Subtree marks a Failed outcome for a folder whose traversal was
	// abandoned.
	Subtree bool

	At time.Time
}

// Report tallies the outcomes of one run.
type Report struct {
	Source     string
	Pages      int
	Folders    int
	Downloaded int
	Duplicates int
	Skipped    int
	Failed     int
	Bytes      int64
	Duration   time.Duration
}

// Total is the number of items that produced an outcome.
func (r *Report) Total() int {
	return r.Downloaded + r.Duplicates + r.Skipped + r.Failed
}

func (r *Report) add(o *Outcome) {
	switch o.Kind {
	case OutcomeDownloaded:
		r.Downloaded++
		r.Bytes += o.Bytes
	case OutcomeDuplicate:
		r.Duplicates++
		r.Bytes += o.Bytes
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}
