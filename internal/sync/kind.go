package sync

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	folderMimeType    = "application/vnd.google-apps.folder"
	workspacePrefix   = "application/vnd.google-apps."
	defaultExportMIME = "application/pdf"
)

// ResolveKind classifies item. A lister-provided hint wins; otherwise the
// MIME type decides.
func ResolveKind(item *RemoteItem) MediaKind {
	if item.KindHint != KindOpaque {
		return item.KindHint
	}

	mt := strings.ToLower(item.MimeType)

	switch {
	case mt == folderMimeType:
		return KindFolder
	case strings.HasPrefix(mt, workspacePrefix):
		return KindDocument
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case strings.HasPrefix(mt, "video/"):
		return KindVideo
	default:
		return KindOpaque
	}
}

// exportSuffix returns the file extension for documents exported as
// exportMIME, e.g. ".pdf".
func exportSuffix(exportMIME string) (string, error) {
	mt := mimetype.Lookup(exportMIME)
	if mt == nil || mt.Extension() == "" {
		return "", fmt.Errorf("sync: unsupported export format %q", exportMIME)
	}

	return mt.Extension(), nil
}
