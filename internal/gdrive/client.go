// Package gdrive wraps the Google Drive v3 SDK with the narrow surface the
// backup engine needs: paged folder listings, raw downloads and exports of
// Workspace documents.
package gdrive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// PageSize is the number of children requested per listing page.
const PageSize = 100

// Well-known Drive MIME types.
const (
	FolderMimeType    = "application/vnd.google-apps.folder"
	ShortcutMimeType  = "application/vnd.google-apps.shortcut"
	WorkspacePrefix   = "application/vnd.google-apps."
	DefaultExportMIME = "application/pdf"
)

const listFields = "nextPageToken, files(id, name, mimeType, size, createdTime, modifiedTime, md5Checksum)"

// File is one child of a listed folder.
type File struct {
	ID          string
	Name        string
	MimeType    string
	Size        int64
	CreatedTime time.Time
	Checksum    string
	// Raw is the SDK's JSON rendering of the file resource.
	Raw json.RawMessage
}

// IsFolder reports whether f is a Drive folder.
func (f *File) IsFolder() bool {
	return f.MimeType == FolderMimeType
}

// IsWorkspace reports whether f is a Google-native document that has no
// binary content and must be exported.
func (f *File) IsWorkspace() bool {
	return strings.HasPrefix(f.MimeType, WorkspacePrefix) && !f.IsFolder()
}

// FilePage is one page of a folder listing.
type FilePage struct {
	Files         []File
	NextPageToken string
}

// APIError is a failed Drive call with its upstream status.
type APIError struct {
	StatusCode int
	Message    string
	Op         string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gdrive: %s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
}

// HTTPStatus reports the upstream status code.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// Client lists and downloads Drive files.
type Client struct {
	svc    *drive.Service
	logger *slog.Logger
}

// New builds a Client authenticated by ts. base supplies transport timeouts;
// nil uses http.DefaultTransport.
func New(ctx context.Context, ts oauth2.TokenSource, base *http.Client, userAgent string, logger *slog.Logger) (*Client, error) {
	hc := &http.Client{
		Transport: &oauth2.Transport{Source: ts},
	}

	if base != nil {
		hc.Transport = &oauth2.Transport{Source: ts, Base: base.Transport}
		hc.Timeout = base.Timeout
	}

	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if userAgent != "" {
		opts = append(opts, option.WithUserAgent(userAgent))
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gdrive: creating service: %w", err)
	}

	return NewWithService(svc, logger), nil
}

// NewWithService wraps an already configured Drive service.
func NewWithService(svc *drive.Service, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{svc: svc, logger: logger}
}

// ListChildren returns one page of the non-trashed children of folderID.
func (c *Client) ListChildren(ctx context.Context, folderID, pageToken string) (*FilePage, error) {
	call := c.svc.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))).
		Spaces("drive").
		Fields(listFields).
		PageSize(PageSize).
		Context(ctx)

	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	list, err := call.Do()
	if err != nil {
		return nil, wrapErr("list "+folderID, err)
	}

	page := &FilePage{
		Files:         make([]File, 0, len(list.Files)),
		NextPageToken: list.NextPageToken,
	}

	for _, f := range list.Files {
		page.Files = append(page.Files, c.toFile(f))
	}

	c.logger.Debug("listed folder",
		slog.String("folder_id", folderID),
		slog.Int("count", len(page.Files)),
		slog.Bool("more", page.NextPageToken != ""),
	)

	return page, nil
}

// Download opens the binary content of fileID. The status has been checked
// by the time a body is returned.
func (c *Client) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := c.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, wrapErr("download "+fileID, err)
	}

	return resp.Body, nil
}

// Export opens fileID converted to mimeType.
func (c *Client) Export(ctx context.Context, fileID, mimeType string) (io.ReadCloser, error) {
	resp, err := c.svc.Files.Export(fileID, mimeType).Context(ctx).Download()
	if err != nil {
		return nil, wrapErr("export "+fileID, err)
	}

	return resp.Body, nil
}

func (c *Client) toFile(f *drive.File) File {
	out := File{
		ID:       f.Id,
		Name:     f.Name,
		MimeType: f.MimeType,
		Size:     f.Size,
		Checksum: f.Md5Checksum,
	}

	if f.CreatedTime != "" {
		if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
			out.CreatedTime = t
		}
	}

	raw, err := f.MarshalJSON()
	if err != nil {
		c.logger.Warn("cannot encode file metadata",
			slog.String("id", f.Id),
			slog.String("error", err.Error()),
		)
	} else {
		out.Raw = raw
	}

	return out
}

// wrapErr converts SDK errors carrying an HTTP status into *APIError.
func wrapErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = strings.TrimSpace(gerr.Body)
		}

		return &APIError{StatusCode: gerr.Code, Message: msg, Op: op}
	}

	return fmt.Errorf("gdrive: %s: %w", op, err)
}

// escapeQuery escapes a value for use inside a single-quoted Drive query.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
