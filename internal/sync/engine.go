package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DuplicatePolicy decides what happens when an item's final path already
// exists.
type DuplicatePolicy string

const (
	// PolicySkip treats an existing file as already backed up; nothing is
	// fetched.
	PolicySkip DuplicatePolicy = "skip"
	// PolicyDiverge always fetches and writes a second copy under a fresh
	// unique name. Nothing is ever overwritten.
	PolicyDiverge DuplicatePolicy = "diverge"
)

// ParsePolicy validates a duplicate_policy value.
func ParsePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case PolicySkip, PolicyDiverge:
		return DuplicatePolicy(s), nil
	default:
		return "", fmt.Errorf("sync: unknown duplicate policy %q (want %q or %q)", s, PolicySkip, PolicyDiverge)
	}
}

// Outcome reasons for skipped items.
const (
	ReasonExists   = "exists"
	ReasonFiltered = "filtered"
)

// EngineConfig holds the options for NewEngine.
type EngineConfig struct {
	Source   Source   // required
	Recorder Recorder // optional
	Policy   DuplicatePolicy
	// DuplicateDir is where diverged copies go, relative to the item's
	// directory. Empty writes them alongside the original.
	DuplicateDir string
	// ExportMIME is the format Workspace documents are exported to.
	ExportMIME string
	Filter     *Filter
	Limiter    *BandwidthLimiter
	Logger     *slog.Logger
}

// Engine walks one Source and materializes every item it lists. An Engine
// runs one walk at a time; it holds no state between runs.
type Engine struct {
	source       Source
	recorder     Recorder
	policy       DuplicatePolicy
	duplicateDir string
	exportMIME   string
	exportSuffix string
	filter       *Filter
	limiter      *BandwidthLimiter
	logger       *slog.Logger

	nowFunc func() time.Time
	newID   func() string
}

// NewEngine validates cfg and builds an Engine.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	if cfg.Source == nil {
		return nil, errors.New("sync: engine needs a source")
	}

	policy := cfg.Policy
	if policy == "" {
		policy = PolicySkip
	}

	if _, err := ParsePolicy(string(policy)); err != nil {
		return nil, err
	}

	exportMIME := cfg.ExportMIME
	if exportMIME == "" {
		exportMIME = defaultExportMIME
	}

	suffix, err := exportSuffix(exportMIME)
	if err != nil {
		return nil, err
	}

	if filepath.IsAbs(cfg.DuplicateDir) {
		return nil, fmt.Errorf("sync: duplicate dir %q must be relative", cfg.DuplicateDir)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		source:       cfg.Source,
		recorder:     cfg.Recorder,
		policy:       policy,
		duplicateDir: cfg.DuplicateDir,
		exportMIME:   exportMIME,
		exportSuffix: suffix,
		filter:       cfg.Filter,
		limiter:      cfg.Limiter,
		logger:       logger,
		nowFunc:      time.Now,
		newID:        uuid.NewString,
	}, nil
}

// frame is one folder on the traversal stack.
type frame struct {
	scope  Scope
	folder *RemoteItem // nil for the root scope
	items  []RemoteItem
	next   int
	cursor string
	listed bool
}

func (f *frame) exhausted() bool {
	return f.listed && f.next >= len(f.items) && f.cursor == ""
}

// Run walks root depth-first. Each listed item yields exactly one Outcome,
// in page order. Only a failure to list a root page or cancellation of ctx
// end the run early; everything else becomes a Failed outcome.
func (e *Engine) Run(ctx context.Context, root Scope) (*Report, error) {
	start := e.nowFunc()
	report := &Report{Source: e.source.Name()}

	defer func() {
		report.Duration = e.nowFunc().Sub(start)
	}()

	if err := os.MkdirAll(root.LocalDir, dirPerms); err != nil {
		return report, fmt.Errorf("sync: creating destination %s: %w", root.LocalDir, err)
	}

	if e.policy == PolicyDiverge && e.duplicateDir != "" {
		if err := os.MkdirAll(filepath.Join(root.LocalDir, e.duplicateDir), dirPerms); err != nil {
			return report, fmt.Errorf("sync: creating duplicate directory: %w", err)
		}
	}

	e.logger.Info("backup started",
		slog.String("source", report.Source),
		slog.String("dest", root.LocalDir),
		slog.String("policy", string(e.policy)),
	)

	stack := []*frame{{scope: root}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("sync: run canceled: %w", err)
		}

		top := stack[len(stack)-1]

		if top.exhausted() {
			stack = stack[:len(stack)-1]
			continue
		}

		if top.next >= len(top.items) {
			page, err := e.source.ListPage(ctx, top.scope, top.cursor)
			if err != nil {
				if ctx.Err() != nil {
					return report, fmt.Errorf("sync: run canceled: %w", ctx.Err())
				}

				if top.folder == nil {
					return report, fmt.Errorf("%w: %w", ErrListPage, err)
				}

				e.emit(ctx, report, e.subtreeFailed(top, err))
				stack = stack[:len(stack)-1]

				continue
			}

			report.Pages++
			top.items, top.next, top.cursor, top.listed = page.Items, 0, page.NextCursor, true

			e.logger.Info("listed page",
				slog.String("folder", displayPath(top.scope.RelPath)),
				slog.Int("items", len(page.Items)),
				slog.Bool("more", page.NextCursor != ""),
			)

			continue
		}

		item := top.items[top.next]
		top.next++

		kind := ResolveKind(&item)

		if kind == KindFolder {
			child, failed := e.enterFolder(top.scope, &item)
			if failed != nil {
				e.emit(ctx, report, *failed)
				continue
			}

			report.Folders++
			stack = append(stack, child)

			continue
		}

		out := e.handleItem(ctx, top.scope, &item, kind)

		// An item cut short by cancellation is not an item failure.
		if out.Kind == OutcomeFailed && ctx.Err() != nil {
			return report, fmt.Errorf("sync: run canceled: %w", ctx.Err())
		}

		e.emit(ctx, report, out)
	}

	e.logger.Info("backup finished",
		slog.String("source", report.Source),
		slog.Int("downloaded", report.Downloaded),
		slog.Int("duplicates", report.Duplicates),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)

	return report, nil
}

// enterFolder prepares the frame for a folder item. A non-nil Outcome means
// the folder is not descended into.
func (e *Engine) enterFolder(parent Scope, item *RemoteItem) (*frame, *Outcome) {
	name := SanitizeName(item.Name, item.ID, "")
	scope := Scope{
		FolderID: item.ID,
		LocalDir: filepath.Join(parent.LocalDir, name),
		RelPath:  path.Join(parent.RelPath, name),
	}

	f := &frame{scope: scope, folder: item}

	if e.filter.Excluded(scope.RelPath, true) {
		return nil, &Outcome{
			Kind:   OutcomeSkipped,
			Item:   *item,
			Media:  KindFolder,
			Path:   scope.LocalDir,
			Reason: ReasonFiltered,
		}
	}

	if err := os.MkdirAll(scope.LocalDir, dirPerms); err != nil {
		o := e.subtreeFailed(f, fmt.Errorf("creating directory: %w", err))
		return nil, &o
	}

	return f, nil
}

func (e *Engine) subtreeFailed(f *frame, err error) Outcome {
	wrapped := fmt.Errorf("%w: %s: %w", ErrSubtree, displayPath(f.scope.RelPath), err)

	return Outcome{
		Kind:    OutcomeFailed,
		Item:    *f.folder,
		Media:   KindFolder,
		Path:    f.scope.LocalDir,
		Status:  StatusOf(err),
		Reason:  err.Error(),
		Err:     wrapped,
		Subtree: true,
	}
}

// handleItem resolves the destination, applies the duplicate policy, fetches
// and writes one item.
func (e *Engine) handleItem(ctx context.Context, scope Scope, item *RemoteItem, kind MediaKind) Outcome {
	req := FetchRequest{Item: *item, Kind: kind}

	var suffix string
	if kind == KindDocument {
		req.ExportMIME = e.exportMIME
		suffix = e.exportSuffix
	}

	name := SanitizeName(item.Name, item.ID, suffix)
	dest := NewDestination(scope.LocalDir, name)

	out := Outcome{
		Item:   *item,
		Media:  kind,
		Path:   dest.FinalPath,
		Suffix: filepath.Ext(name),
	}

	if e.filter.Excluded(path.Join(scope.RelPath, name), false) {
		out.Kind = OutcomeSkipped
		out.Reason = ReasonFiltered

		return out
	}

	exists, err := fileExists(dest.FinalPath)
	if err != nil {
		return failed(out, err)
	}

	kindOnSuccess := OutcomeDownloaded

	if exists {
		if e.policy == PolicySkip {
			out.Kind = OutcomeSkipped
			out.Reason = ReasonExists

			return out
		}

		dest = NewDestination(filepath.Join(scope.LocalDir, e.duplicateDir), duplicateName(name, e.newID()))
		kindOnSuccess = OutcomeDuplicate
	}

	body, err := e.source.Open(ctx, req)
	if err != nil {
		return failed(out, err)
	}
	defer body.Close()

	// Exports are generated on the fly and have no checksum.
	var wantMD5 string
	if req.ExportMIME == "" {
		wantMD5 = item.Checksum
	}

	n, err := writeAtomic(ctx, dest, body, e.limiter, wantMD5)
	if err != nil {
		out.Path = dest.FinalPath
		return failed(out, err)
	}

	out.Kind = kindOnSuccess
	out.Path = dest.FinalPath
	out.Bytes = n
	out.ContentType = detectContentType(dest.FinalPath, item.MimeType)

	return out
}

func failed(out Outcome, err error) Outcome {
	out.Kind = OutcomeFailed
	out.Status = StatusOf(err)
	out.Reason = err.Error()
	out.Err = err

	return out
}

// detectContentType sniffs the written file, falling back to the listed type.
func detectContentType(path, listed string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil || (mt.Is("application/octet-stream") && listed != "") {
		return listed
	}

	return mt.String()
}

// emit stamps, counts, logs and records one outcome.
func (e *Engine) emit(ctx context.Context, report *Report, o Outcome) {
	o.Source = report.Source
	o.At = e.nowFunc()
	report.add(&o)

	attrs := []any{
		slog.String("outcome", o.Kind.String()),
		slog.String("id", o.Item.ID),
		slog.String("name", o.Item.Name),
		slog.String("path", o.Path),
	}

	switch o.Kind {
	case OutcomeFailed:
		attrs = append(attrs, slog.Int("status", o.Status), slog.String("error", o.Reason))
		if o.Subtree {
			e.logger.Error("folder skipped after failure", attrs...)
		} else {
			e.logger.Warn("item failed", attrs...)
		}
	case OutcomeSkipped:
		e.logger.Debug("item skipped", append(attrs, slog.String("reason", o.Reason))...)
	default:
		e.logger.Info("item saved", append(attrs, slog.Int64("bytes", o.Bytes))...)
	}

	if e.recorder == nil {
		return
	}

	if err := e.recorder.Record(ctx, o); err != nil {
		e.logger.Warn("recording outcome failed",
			slog.String("id", o.Item.ID),
			slog.String("error", err.Error()),
		)
	}
}

func displayPath(rel string) string {
	if rel == "" {
		return "/"
	}

	return rel
}
