package photos

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// PageSize is the number of media items requested per listing page.
const PageSize = 100

// Base URL modifiers that request the original bytes.
const (
	imageDownloadSuffix = "=d"
	videoDownloadSuffix = "=dv"
)

// MediaItem is one entry of the library listing.
type MediaItem struct {
	ID           string
	Filename     string
	MimeType     string
	BaseURL      string
	ProductURL   string
	Description  string
	CreationTime time.Time
	IsVideo      bool
	// Metadata is the raw mediaMetadata object as returned by the API.
	Metadata json.RawMessage
}

// MediaPage is one page of the library listing.
type MediaPage struct {
	Items         []MediaItem
	NextPageToken string
}

type mediaItemResponse struct {
	ID            string          `json:"id"`
	Filename      string          `json:"filename"`
	MimeType      string          `json:"mimeType"`
	BaseURL       string          `json:"baseUrl"`
	ProductURL    string          `json:"productUrl"`
	Description   string          `json:"description"`
	MediaMetadata json.RawMessage `json:"mediaMetadata"`
}

type mediaMetadataResponse struct {
	CreationTime string          `json:"creationTime"`
	Video        json.RawMessage `json:"video"`
}

type listResponse struct {
	MediaItems    []mediaItemResponse `json:"mediaItems"`
	NextPageToken string              `json:"nextPageToken"`
}

// ListMediaItems fetches one page of the library. An empty pageToken starts
// from the beginning; an empty NextPageToken in the result means done.
func (c *Client) ListMediaItems(ctx context.Context, pageToken string) (*MediaPage, error) {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(PageSize))

	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	resp, err := c.get(ctx, "/v1/mediaItems?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("photos: decoding media items: %w", err)
	}

	page := &MediaPage{
		Items:         make([]MediaItem, 0, len(lr.MediaItems)),
		NextPageToken: lr.NextPageToken,
	}

	for i := range lr.MediaItems {
		page.Items = append(page.Items, c.toMediaItem(&lr.MediaItems[i]))
	}

	c.logger.Debug("listed media items",
		slog.Int("count", len(page.Items)),
		slog.Bool("more", page.NextPageToken != ""),
	)

	return page, nil
}

func (c *Client) toMediaItem(r *mediaItemResponse) MediaItem {
	item := MediaItem{
		ID:          r.ID,
		Filename:    r.Filename,
		MimeType:    r.MimeType,
		BaseURL:     r.BaseURL,
		ProductURL:  r.ProductURL,
		Description: r.Description,
		Metadata:    r.MediaMetadata,
	}

	if len(r.MediaMetadata) == 0 {
		return item
	}

	var md mediaMetadataResponse
	if err := json.Unmarshal(r.MediaMetadata, &md); err != nil {
		c.logger.Warn("unparseable media metadata",
			slog.String("id", r.ID),
			slog.String("error", err.Error()),
		)

		return item
	}

	item.IsVideo = len(md.Video) > 0 && string(md.Video) != "null"

	if md.CreationTime != "" {
		if t, err := time.Parse(time.RFC3339Nano, md.CreationTime); err == nil {
			item.CreationTime = t
		}
	}

	return item
}

// DownloadURL returns the URL serving the item's original bytes.
func DownloadURL(baseURL string, video bool) string {
	if video {
		return baseURL + videoDownloadSuffix
	}

	return baseURL + imageDownloadSuffix
}

// Download opens the original bytes of an item given its base URL. Base URLs
// are pre-authenticated, so no Authorization header is sent. The status is
// checked before returning, so a non-nil body always carries content.
func (c *Client) Download(ctx context.Context, baseURL string, video bool) (io.ReadCloser, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("photos: download: empty base URL")
	}

	target := DownloadURL(baseURL, video)

	resp, err := c.doRetry(ctx, "download", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("photos: creating download request: %w", err)
		}

		return req, nil
	})
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}
