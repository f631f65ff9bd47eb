package sync

import (
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		fallback string
		suffix   string
		want     string
	}{
		{"plain", "IMG_0001.JPG", "id", "", "IMG_0001.JPG"},
		{"separators", "a/b\\c.txt", "id", "", "a_b_c.txt"},
		{"empty falls back to id", "", "abc123", "", "abc123"},
		{"dot names fall back", "..", "abc123", "", "abc123"},
		{"export suffix appended", "Budget", "id", ".pdf", "Budget.pdf"},
		{"export suffix not doubled", "Report.PDF", "id", ".pdf", "Report.PDF"},
		{"dotfile kept", ".bashrc", "id", "", ".bashrc"},
		{"nfc", "Café.jpg", "id", "", "Café.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in, tt.fallback, tt.suffix))
		})
	}
}

func TestSanitizeName_TruncatesLongStemKeepingExtension(t *testing.T) {
	got := SanitizeName(strings.Repeat("a", 300)+".jpeg", "id", "")

	assert.True(t, strings.HasSuffix(got, ".jpeg"))

	stem := strings.TrimSuffix(got, ".jpeg")
	assert.LessOrEqual(t, len(stem), maxStemBytes)
	assert.Len(t, stem, truncatedStemBytes)
	assert.LessOrEqual(t, len(got+TempSuffix), 255)
}

func TestSanitizeName_StemAtLimitUntouched(t *testing.T) {
	name := strings.Repeat("b", maxStemBytes) + ".png"
	assert.Equal(t, name, SanitizeName(name, "id", ""))
}

func TestSanitizeName_TruncationKeepsRunesWhole(t *testing.T) {
	// 3-byte runes: 245 is not a multiple of 3.
	got := SanitizeName(strings.Repeat("界", 120)+".mov", "id", "")

	stem := strings.TrimSuffix(got, ".mov")
	assert.True(t, utf8.ValidString(stem))
	assert.LessOrEqual(t, len(stem), truncatedStemBytes)
	assert.Equal(t, 81, utf8.RuneCountInString(stem))
}

func TestNewDestination(t *testing.T) {
	d := NewDestination("/backup", "a.jpg")

	assert.Equal(t, filepath.Join("/backup", "a.jpg"), d.FinalPath)
	assert.Equal(t, d.FinalPath+".temp", d.TempPath)
}

func TestDuplicateName(t *testing.T) {
	id := "0b7f0c1e-8d5f-4a35-9b77-7c8f6d7c2d11"

	assert.Equal(t, "a-"+id+".jpg", duplicateName("a.jpg", id))
	assert.Equal(t, "README-"+id, duplicateName("README", id))

	long := duplicateName(strings.Repeat("z", truncatedStemBytes)+".jpg", id)
	assert.LessOrEqual(t, len(long+TempSuffix), 255)
	assert.True(t, strings.HasSuffix(long, "-"+id+".jpg"))
}

func TestResolveKind(t *testing.T) {
	tests := []struct {
		item RemoteItem
		want MediaKind
	}{
		{RemoteItem{MimeType: "image/heic"}, KindImage},
		{RemoteItem{MimeType: "video/quicktime"}, KindVideo},
		{RemoteItem{MimeType: folderMimeType}, KindFolder},
		{RemoteItem{MimeType: "application/vnd.google-apps.document"}, KindDocument},
		{RemoteItem{MimeType: "application/zip"}, KindOpaque},
		{RemoteItem{MimeType: "image/jpeg", KindHint: KindVideo}, KindVideo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveKind(&tt.item), tt.item.MimeType)
	}
}

func TestExportSuffix(t *testing.T) {
	s, err := exportSuffix("application/pdf")
	assert.NoError(t, err)
	assert.Equal(t, ".pdf", s)

	s, err = exportSuffix("application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	assert.NoError(t, err)
	assert.Equal(t, ".docx", s)
}
