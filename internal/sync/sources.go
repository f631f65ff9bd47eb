package sync

import (
	"context"
	"io"

	"github.com/mediavault/gbackup/internal/gdrive"
	"github.com/mediavault/gbackup/internal/photos"
)

// Source names, also used as the "source" column of the catalog.
const (
	SourcePhotos = "photos"
	SourceDrive  = "drive"
)

// PhotosAPI is the part of *photos.Client the photos source uses.
type PhotosAPI interface {
	ListMediaItems(ctx context.Context, pageToken string) (*photos.MediaPage, error)
	Download(ctx context.Context, baseURL string, video bool) (io.ReadCloser, error)
}

// PhotosSource adapts the Photos library, a flat listing, to Source.
type PhotosSource struct {
	api PhotosAPI
}

// NewPhotosSource wraps api; *photos.Client satisfies it.
func NewPhotosSource(api PhotosAPI) *PhotosSource {
	return &PhotosSource{api: api}
}

func (s *PhotosSource) Name() string { return SourcePhotos }

// ListPage ignores scope.FolderID: the library has no folders.
func (s *PhotosSource) ListPage(ctx context.Context, _ Scope, cursor string) (Page, error) {
	mp, err := s.api.ListMediaItems(ctx, cursor)
	if err != nil {
		return Page{}, err
	}

	page := Page{Items: make([]RemoteItem, 0, len(mp.Items)), NextCursor: mp.NextPageToken}

	for i := range mp.Items {
		mi := &mp.Items[i]

		kind := KindImage
		if mi.IsVideo {
			kind = KindVideo
		}

		page.Items = append(page.Items, RemoteItem{
			ID:         mi.ID,
			Name:       mi.Filename,
			MimeType:   mi.MimeType,
			ContentRef: mi.BaseURL,
			CreatedAt:  mi.CreationTime,
			KindHint:   kind,
			Metadata:   mi.Metadata,
		})
	}

	return page, nil
}

func (s *PhotosSource) Open(ctx context.Context, req FetchRequest) (io.ReadCloser, error) {
	return s.api.Download(ctx, req.Item.ContentRef, req.Kind == KindVideo)
}

// DriveAPI is the part of *gdrive.Client the drive source uses.
type DriveAPI interface {
	ListChildren(ctx context.Context, folderID, pageToken string) (*gdrive.FilePage, error)
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
	Export(ctx context.Context, fileID, mimeType string) (io.ReadCloser, error)
}

// DriveSource adapts a Drive folder tree to Source.
type DriveSource struct {
	api DriveAPI
}

// NewDriveSource wraps api; *gdrive.Client satisfies it.
func NewDriveSource(api DriveAPI) *DriveSource {
	return &DriveSource{api: api}
}

func (s *DriveSource) Name() string { return SourceDrive }

func (s *DriveSource) ListPage(ctx context.Context, scope Scope, cursor string) (Page, error) {
	fp, err := s.api.ListChildren(ctx, scope.FolderID, cursor)
	if err != nil {
		return Page{}, err
	}

	page := Page{Items: make([]RemoteItem, 0, len(fp.Files)), NextCursor: fp.NextPageToken}

	for i := range fp.Files {
		f := &fp.Files[i]

		var hint MediaKind

		switch {
		case f.IsFolder():
			hint = KindFolder
		case f.IsWorkspace():
			hint = KindDocument
		}

		page.Items = append(page.Items, RemoteItem{
			ID:         f.ID,
			Name:       f.Name,
			MimeType:   f.MimeType,
			ContentRef: f.ID,
			CreatedAt:  f.CreatedTime,
			KindHint:   hint,
			Metadata:   f.Raw,
			Size:       f.Size,
			Checksum:   f.Checksum,
		})
	}

	return page, nil
}

func (s *DriveSource) Open(ctx context.Context, req FetchRequest) (io.ReadCloser, error) {
	if req.ExportMIME != "" {
		return s.api.Export(ctx, req.Item.ContentRef, req.ExportMIME)
	}

	return s.api.Download(ctx, req.Item.ContentRef)
}
