package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	stdsync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(&testLogWriter{t: t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// testLogWriter adapts testing.T to io.Writer for slog.
type testLogWriter struct {
	t *testing.T
}

func (w *testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))

	return len(p), nil
}

// httpErr is a fetch error carrying an upstream status.
type httpErr int

func (e httpErr) Error() string   { return fmt.Sprintf("HTTP %d", int(e)) }
func (e httpErr) HTTPStatus() int { return int(e) }

// fakeSource serves an in-memory tree. pages maps a folder ID ("" for the
// root) to its listing pages; content maps an item ID to its bytes.
type fakeSource struct {
	pages    map[string][][]RemoteItem
	content  map[string]string
	fetchErr map[string]error
	listErr  map[string]error

	mu      stdsync.Mutex
	listed  []string // "folder#page"
	fetched []FetchRequest
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		pages:    map[string][][]RemoteItem{},
		content:  map[string]string{},
		fetchErr: map[string]error{},
		listErr:  map[string]error{},
	}
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) ListPage(_ context.Context, scope Scope, cursor string) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := 0
	if cursor != "" {
		_, err := fmt.Sscanf(cursor, "page-%d", &idx)
		if err != nil {
			return Page{}, err
		}
	}

	key := fmt.Sprintf("%s#%d", scope.FolderID, idx)
	s.listed = append(s.listed, key)

	if err, ok := s.listErr[key]; ok {
		return Page{}, err
	}

	pages := s.pages[scope.FolderID]
	if idx >= len(pages) {
		return Page{}, nil
	}

	page := Page{Items: pages[idx]}
	if idx+1 < len(pages) {
		page.NextCursor = fmt.Sprintf("page-%d", idx+1)
	}

	return page, nil
}

func (s *fakeSource) Open(_ context.Context, req FetchRequest) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetched = append(s.fetched, req)

	if err, ok := s.fetchErr[req.Item.ID]; ok {
		return nil, err
	}

	data, ok := s.content[req.Item.ID]
	if !ok {
		return nil, httpErr(404)
	}

	return io.NopCloser(strings.NewReader(data)), nil
}

func (s *fakeSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.fetched)
}

// file adds an item with content to the fake.
func (s *fakeSource) file(id, name, mime, data string) RemoteItem {
	s.content[id] = data
	return RemoteItem{ID: id, Name: name, MimeType: mime}
}

func folder(id, name string) RemoteItem {
	return RemoteItem{ID: id, Name: name, MimeType: folderMimeType}
}

// memRecorder collects outcomes.
type memRecorder struct {
	mu       stdsync.Mutex
	outcomes []Outcome
}

func (r *memRecorder) Record(_ context.Context, o Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outcomes = append(r.outcomes, o)

	return nil
}

func (r *memRecorder) byKind(k OutcomeKind) []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Outcome

	for _, o := range r.outcomes {
		if o.Kind == k {
			out = append(out, o)
		}
	}

	return out
}

func newTestEngine(t *testing.T, src Source, rec Recorder, policy DuplicatePolicy, dupDir string) *Engine {
	t.Helper()

	e, err := NewEngine(&EngineConfig{
		Source:       src,
		Recorder:     rec,
		Policy:       policy,
		DuplicateDir: dupDir,
		Logger:       testLogger(t),
	})
	require.NoError(t, err)

	return e
}

// listFiles returns every regular file under root, relative and sorted.
func listFiles(t *testing.T, root string) []string {
	t.Helper()

	var files []string

	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				return relErr
			}

			files = append(files, filepath.ToSlash(rel))
		}

		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)

	return files
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}

func TestRun_ImageSavedVideoNotFound(t *testing.T) {
	src := newFakeSource()
	img := src.file("img", "a.jpg", "image/jpeg", "\xff\xd8\xff\xe0jpeg")
	vid := RemoteItem{ID: "vid", Name: "b.mp4", MimeType: "video/mp4"}
	src.pages[""] = [][]RemoteItem{{img, vid}}

	rec := &memRecorder{}
	dir := t.TempDir()

	report, err := newTestEngine(t, src, rec, PolicySkip, "").Run(context.Background(), Scope{LocalDir: dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.jpg"}, listFiles(t, dir))
	assert.Equal(t, "\xff\xd8\xff\xe0jpeg", readFile(t, filepath.Join(dir, "a.jpg")))

	assert.Equal(t, 1, report.Downloaded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Total())

	failedOut := rec.byKind(OutcomeFailed)
	require.Len(t, failedOut, 1)
	assert.Equal(t, "b.mp4", failedOut[0].Item.Name)
	assert.Equal(t, 404, failedOut[0].Status)
	assert.Equal(t, KindVideo, failedOut[0].Media)
	assert.Equal(t, "fake", failedOut[0].Source)
	assert.False(t, failedOut[0].At.IsZero())

	saved := rec.byKind(OutcomeDownloaded)
	require.Len(t, saved, 1)
	assert.Equal(t, "image/jpeg", saved[0].ContentType)
	assert.Equal(t, ".jpg", saved[0].Suffix)
	assert.Equal(t, int64(8), saved[0].Bytes)
}

func TestRun_PaginationInOrder(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = [][]RemoteItem{
		{src.file("1", "one.txt", "text/plain", "1"), src.file("2", "two.txt", "text/plain", "2")},
		{},
		{src.file("3", "three.txt", "text/plain", "3")},
	}

	rec := &memRecorder{}

	report, err := newTestEngine(t, src, rec, PolicySkip, "").Run(context.Background(), Scope{LocalDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Pages)
	assert.Equal(t, []string{"#0", "#1", "#2"}, src.listed)

	var ids []string
	for _, o := range rec.outcomes {
		ids = append(ids, o.Item.ID)
	}

	assert.Equal(t, []string{"1", "2", "3"}, ids)
}

func TestRun_RootListFailureAborts(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = [][]RemoteItem{{src.file("1", "one.txt", "text/plain", "1")}, {src.file("2", "two.txt", "text/plain", "2")}}
	src.listErr["#1"] = errors.New("connection reset")

	rec := &memRecorder{}

	report, err := newTestEngine(t, src, rec, PolicySkip, "").Run(context.Background(), Scope{LocalDir: t.TempDir()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrListPage)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 1, report.Downloaded, "items before the failing page are kept")
}

func TestRun_SubtreeFailureIsolated(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = [][]RemoteItem{{
		src.file("s1", "first.txt", "text/plain", "1"),
		folder("bad", "Broken"),
		src.file("s2", "second.txt", "text/plain", "2"),
		src.file("s3", "third.txt", "text/plain", "3"),
	}}
	src.listErr["bad#0"] = httpErr(503)

	rec := &memRecorder{}
	dir := t.TempDir()

	report, err := newTestEngine(t, src, rec, PolicySkip, "").Run(context.Background(), Scope{FolderID: "", LocalDir: dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"first.txt", "second.txt", "third.txt"}, listFiles(t, dir))
	assert.Equal(t, 3, report.Downloaded)
	assert.Equal(t, 1, report.Failed)

	failedOut := rec.byKind(OutcomeFailed)
	require.Len(t, failedOut, 1)
	assert.True(t, failedOut[0].Subtree)
	assert.Equal(t, "bad", failedOut[0].Item.ID)
	assert.Equal(t, 503, failedOut[0].Status)
	assert.ErrorIs(t, failedOut[0].Err, ErrSubtree)
	assert.Equal(t, filepath.Join(dir, "Broken"), failedOut[0].Path)
}

func TestRun_DepthFirstBeforeSiblings(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = [][]RemoteItem{{
		folder("d1", "Trips"),
		src.file("after", "after.txt", "text/plain", "x"),
	}}
	src.pages["d1"] = [][]RemoteItem{
		{folder("d2", "2024")},
		{src.file("deep2", "map.txt", "text/plain", "m")},
	}
	src.pages["d2"] = [][]RemoteItem{{src.file("deep", "photo.jpg", "image/jpeg", "p")}}

	rec := &memRecorder{}
	dir := t.TempDir()

	report, err := newTestEngine(t, src, rec, PolicySkip, "").Run(context.Background(), Scope{LocalDir: dir})
	require.NoError(t, err)

	var order []string
	for _, o := range rec.outcomes {
		order = append(order, o.Item.ID)
	}

	assert.Equal(t, []string{"deep", "deep2", "after"}, order)
	assert.Equal(t, []string{"Trips/2024/photo.jpg", "Trips/map.txt", "after.txt"}, listFiles(t, dir))
	assert.Equal(t, 2, report.Folders)
}

func TestRun_SkipPolicyIsIdempotent(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = [][]RemoteItem{{
		src.file("1", "a.jpg", "image/jpeg", "a"),
		src.file("2", "b.jpg", "image/jpeg", "b"),
	}}

	dir := t.TempDir()
	e := newTestEngine(t, src, nil, PolicySkip, "")

	_, err := e.Run(context.Background(), Scope{LocalDir: dir})
	require.NoError(t, err)
	first := listFiles(t, dir)
	require.Equal(t, 2, src.fetchCount())

	report, err := e.Run(context.Background(), Scope{LocalDir: dir})
	require.NoError(t, err)

	assert.Equal(t, 2, src.fetchCount(), "second run must not fetch")
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, first, listFiles(t, dir))
}

func TestRun_DivergePolicyWritesUniqueCopies(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = [][]RemoteItem{{src.file("1", "a.jpg", "image/jpeg", "a")}}

	dir := t.TempDir()
	rec := &memRecorder{}
	e := newTestEngine(t, src, rec, PolicyDiverge, "duplicate")

	for range 3 {
		_, err := e.Run(context.Background(), Scope{LocalDir: dir})
		require.NoError(t, err)
	}

	files := listFiles(t, dir)
	require.Len(t, files, 3)
	assert.Equal(t, "a.jpg", files[0])

	seen := map[string]bool{}

	for _, f := range files[1:] {
		assert.True(t, strings.HasPrefix(f, "duplicate/a-"), f)
		assert.True(t, strings.HasSuffix(f, ".jpg"), f)
		assert.False(t, seen[f])
		seen[f] = true
	}

	dups := rec.byKind(OutcomeDuplicate)
	require.Len(t, dups, 2)
	assert.NotEqual(t, dups[0].Path, dups[1].Path)
	assert.Equal(t, 3, src.fetchCount())
}

func TestRun_DivergeAlongsideWhenNoDuplicateDir(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = [][]RemoteItem{{src.file("1", "a.jpg", "image/jpeg", "a")}}

	dir := t.TempDir()
	e := newTestEngine(t, src, nil, PolicyDiverge, "")
	e.newID = func() string { return "fixed-id" }

	for range 2 {
		_, err := e.Run(context.Background(), Scope{LocalDir: dir})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"a-fixed-id.jpg", "a.jpg"}, listFiles(t, dir))
}

// failingReader returns some bytes then an error, like a dropped connection.
type failingReader struct {
	sent bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "partial"), nil
	}

	return 0, errors.New("unexpected EOF")
}

type brokenBodySource struct {
	*fakeSource
}

func (s brokenBodySource) Open(_ context.Context, _ FetchRequest) (io.ReadCloser, error) {
	return io.NopCloser(&failingReader{}), nil
}

func TestRun_WriteFailureLeavesNoFile(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = [][]RemoteItem{{src.file("1", "a.jpg", "image/jpeg", "a")}}

	rec := &memRecorder{}
	dir := t.TempDir()

	report, err := newTestEngine(t, brokenBodySource{src}, rec, PolicySkip, "").Run(context.Background(), Scope{LocalDir: dir})
	require.NoError(t, err)

	assert.Empty(t, listFiles(t, dir), "neither final nor temp file may remain")
	assert.Equal(t, 1, report.Failed)

	failedOut := rec.byKind(OutcomeFailed)
	require.Len(t, failedOut, 1)
	assert.Equal(t, 0, failedOut[0].Status)
	assert.Contains(t, failedOut[0].Reason, "unexpected EOF")
}

func TestRun_ChecksumVerified(t *testing.T) {
	src := newFakeSource()

	good := src.file("1", "good.txt", "text/plain", "hello")
	good.Checksum = "5D41402ABC4B2A76B9719D911017C592"

	bad := src.file("2", "bad.txt", "text/plain", "hello")
	bad.Checksum = "00000000000000000000000000000000"

	src.pages[""] = [][]RemoteItem{{good, bad}}

	rec := &memRecorder{}
	dir := t.TempDir()

	report, err := newTestEngine(t, src, rec, PolicySkip, "").Run(context.Background(), Scope{LocalDir: dir})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Downloaded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"good.txt"}, listFiles(t, dir))

	failedOut := rec.byKind(OutcomeFailed)
	require.Len(t, failedOut, 1)
	assert.ErrorIs(t, failedOut[0].Err, ErrChecksumMismatch)
}

func TestRun_StaleTempReplaced(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = [][]RemoteItem{{src.file("1", "a.jpg", "image/jpeg", "fresh")}}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"+TempSuffix), []byte("stale"), 0o600))

	_, err := newTestEngine(t, src, nil, PolicySkip, "").Run(context.Background(), Scope{LocalDir: dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.jpg"}, listFiles(t, dir))
	assert.Equal(t, "fresh", readFile(t, filepath.Join(dir, "a.jpg")))
}

func TestRun_DocumentsExported(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = [][]RemoteItem{{
		src.file("g1", "Budget", "application/vnd.google-apps.spreadsheet", "%PDF-1.4\n"),
		src.file("b1", "raw.bin", "application/octet-stream", "\x00\x01"),
	}}

	rec := &memRecorder{}
	dir := t.TempDir()

	_, err := newTestEngine(t, src, rec, PolicySkip, "").Run(context.Background(), Scope{LocalDir: dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"Budget.pdf", "raw.bin"}, listFiles(t, dir))

	require.Len(t, src.fetched, 2)
	assert.Equal(t, "application/pdf", src.fetched[0].ExportMIME)
	assert.Equal(t, KindDocument, src.fetched[0].Kind)
	assert.Empty(t, src.fetched[1].ExportMIME)
	assert.Equal(t, KindOpaque, src.fetched[1].Kind)

	assert.Equal(t, "application/pdf", rec.outcomes[0].ContentType)
}

func TestRun_FilterSkipsFilesAndFolders(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = [][]RemoteItem{{
		src.file("1", "keep.jpg", "image/jpeg", "k"),
		src.file("2", "scratch.tmp", "text/plain", "t"),
		folder("d", "cache"),
	}}
	src.pages["d"] = [][]RemoteItem{{src.file("3", "inner.jpg", "image/jpeg", "i")}}

	dir := t.TempDir()
	rec := &memRecorder{}

	e, err := NewEngine(&EngineConfig{
		Source:   src,
		Recorder: rec,
		Filter:   NewFilter([]string{"*.tmp", "cache/"}),
		Logger:   testLogger(t),
	})
	require.NoError(t, err)

	report, err := e.Run(context.Background(), Scope{LocalDir: dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"keep.jpg"}, listFiles(t, dir))
	assert.Equal(t, 2, report.Skipped)
	assert.NotContains(t, src.listed, "d#0")

	for _, o := range rec.byKind(OutcomeSkipped) {
		assert.Equal(t, ReasonFiltered, o.Reason)
	}
}

func TestRun_RecorderErrorsDoNotFailItems(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = [][]RemoteItem{{src.file("1", "a.jpg", "image/jpeg", "a")}}

	rec := RecorderFunc(func(context.Context, Outcome) error {
		return errors.New("database is locked")
	})

	dir := t.TempDir()

	report, err := newTestEngine(t, src, rec, PolicySkip, "").Run(context.Background(), Scope{LocalDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Downloaded)
	assert.Equal(t, []string{"a.jpg"}, listFiles(t, dir))
}

func TestRun_CanceledContextStops(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = [][]RemoteItem{{src.file("1", "a.jpg", "image/jpeg", "a")}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(t, src, nil, PolicySkip, "").Run(ctx, Scope{LocalDir: t.TempDir()})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, src.fetchCount())
}

func TestRun_LongNameTruncated(t *testing.T) {
	long := strings.Repeat("x", 300) + ".jpg"

	src := newFakeSource()
	src.pages[""] = [][]RemoteItem{{src.file("1", long, "image/jpeg", "a")}}

	dir := t.TempDir()

	_, err := newTestEngine(t, src, nil, PolicySkip, "").Run(context.Background(), Scope{LocalDir: dir})
	require.NoError(t, err)

	files := listFiles(t, dir)
	require.Len(t, files, 1)
	assert.Equal(t, strings.Repeat("x", truncatedStemBytes)+".jpg", files[0])
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(&EngineConfig{})
	assert.Error(t, err)

	_, err = NewEngine(&EngineConfig{Source: newFakeSource(), Policy: "overwrite"})
	assert.ErrorContains(t, err, "unknown duplicate policy")

	_, err = NewEngine(&EngineConfig{Source: newFakeSource(), ExportMIME: "application/x-nope"})
	assert.ErrorContains(t, err, "unsupported export format")

	_, err = NewEngine(&EngineConfig{Source: newFakeSource(), DuplicateDir: "/abs"})
	assert.ErrorContains(t, err, "must be relative")
}
