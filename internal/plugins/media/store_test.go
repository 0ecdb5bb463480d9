package media

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"spaces and parens stripped", "My Photo (1).PNG", "MyPhoto1.PNG"},
		{"japanese stripped", "旅行の写真.jpg", "file.jpg"},
		{"empty falls back", "", "file"},
		{"dot falls back", ".", "file"},
		{"dot dot falls back", "..", "file"},
		{"only specials falls back", "///###", "file"},
		{"leading dot prefixed", ".env", "file.env"},
		{"path components dropped", "../../etc/passwd", "passwd"},
		{"safe name unchanged", "IMG_2024-01-01.jpeg", "IMG_2024-01-01.jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilenameNeverStartsWithDot(t *testing.T) {
	for _, in := range []string{".hidden", "..almost", " .spaced", "漢字.png"} {
		if got := SanitizeFilename(in); strings.HasPrefix(got, ".") {
			t.Errorf("SanitizeFilename(%q) = %q begins with a dot", in, got)
		}
	}
}

// encodeTestJPEG produces a real JPEG so magic-byte checks and thumbnailing
// operate on honest input.
func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding test jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestUploadWritesBlobUnderOwner(t *testing.T) {
	root := t.TempDir()
	store := NewDiskStore(root, "http://test/media", 10<<20)

	url, err := store.Upload(context.Background(), UploadInput{
		OwnerID:      "user-1",
		OriginalName: "My Photo (1).jpg",
		MimeType:     "image/jpeg",
		FileBytes:    encodeTestJPEG(t, 10, 10),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if !strings.HasPrefix(url, "http://test/media/user-1/") {
		t.Fatalf("URL must be namespaced under the owner, got %q", url)
	}
	if strings.Contains(url, " ") || strings.Contains(url, "(") {
		t.Errorf("URL must carry the sanitized name, got %q", url)
	}

	entries, err := os.ReadDir(filepath.Join(root, "user-1"))
	if err != nil {
		t.Fatalf("reading owner dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected the blob on disk")
	}
}

func TestUploadSmallImageStillGetsThumbnails(t *testing.T) {
	root := t.TempDir()
	store := NewDiskStore(root, "http://test/media", 10<<20)

	url, err := store.Upload(context.Background(), UploadInput{
		OwnerID:      "user-1",
		OriginalName: "tiny.jpg",
		MimeType:     "image/jpeg",
		FileBytes:    encodeTestJPEG(t, 100, 80),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	// Thumbnail URLs are derived from the blob URL, so the files must
	// exist even when the original is already within the thumbnail bounds.
	for _, size := range []int{300, 800} {
		rel := strings.TrimPrefix(ThumbnailURL(url, size), "http://test/media/")
		if _, err := os.Stat(filepath.Join(root, rel)); err != nil {
			t.Errorf("thumbnail for size %d missing on disk: %v", size, err)
		}
	}
}

func TestUploadRejectsSpoofedMime(t *testing.T) {
	store := NewDiskStore(t.TempDir(), "http://test/media", 10<<20)

	_, err := store.Upload(context.Background(), UploadInput{
		OwnerID:      "user-1",
		OriginalName: "not-a-png.png",
		MimeType:     "image/png",
		FileBytes:    []byte("plain text pretending to be an image"),
	})
	if err == nil {
		t.Fatal("content that does not match the declared type must be rejected")
	}
}

func TestUploadRejectsOversize(t *testing.T) {
	store := NewDiskStore(t.TempDir(), "http://test/media", 16)

	_, err := store.Upload(context.Background(), UploadInput{
		OwnerID:      "user-1",
		OriginalName: "big.jpg",
		MimeType:     "image/jpeg",
		FileBytes:    encodeTestJPEG(t, 10, 10),
	})
	if err == nil {
		t.Fatal("expected size rejection")
	}
}

func TestUploadRejectsUnknownType(t *testing.T) {
	store := NewDiskStore(t.TempDir(), "http://test/media", 10<<20)

	_, err := store.Upload(context.Background(), UploadInput{
		OwnerID:      "user-1",
		OriginalName: "script.sh",
		MimeType:     "application/x-sh",
		FileBytes:    []byte("#!/bin/sh"),
	})
	if err == nil {
		t.Fatal("expected MIME rejection")
	}
}

func TestDeleteRemovesBlobAndThumbnails(t *testing.T) {
	root := t.TempDir()
	store := NewDiskStore(root, "http://test/media", 10<<20)

	url, err := store.Upload(context.Background(), UploadInput{
		OwnerID:      "user-1",
		OriginalName: "photo.jpg",
		MimeType:     "image/jpeg",
		FileBytes:    encodeTestJPEG(t, 1200, 900),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := store.Delete(context.Background(), url); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "user-1"))
	if err != nil {
		t.Fatalf("reading owner dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected blob and thumbnails gone, remaining: %v", entries)
	}
}

func TestDeleteRejectsForeignURL(t *testing.T) {
	store := NewDiskStore(t.TempDir(), "http://test/media", 10<<20)

	for _, url := range []string{
		"http://evil/media/user-1/a.jpg",
		"http://test/media/../outside.jpg",
	} {
		if err := store.Delete(context.Background(), url); err == nil {
			t.Errorf("Delete(%q) must be rejected", url)
		}
	}
}

func TestThumbnailURL(t *testing.T) {
	if got := ThumbnailURL("http://test/media/u/123-photo.jpg", 300); got != "http://test/media/u/123-photo_300.jpg" {
		t.Errorf("ThumbnailURL = %q", got)
	}
	// No extension: nothing to suffix.
	if got := ThumbnailURL("http://test/media/u/file", 300); got != "http://test/media/u/file" {
		t.Errorf("ThumbnailURL without extension = %q", got)
	}
}
