package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/image/draw"

	"github.com/memoria-app/memoria/internal/apperror"
)

// BlobStore stores and removes memory attachments. Upload returns a public
// URL that is stored verbatim on the memory row; Delete accepts that same
// URL back. Implementations must keep blob lifecycles independent: deleting
// one memory's blob never touches another's.
type BlobStore interface {
	Upload(ctx context.Context, input UploadInput) (publicURL string, err error)
	Delete(ctx context.Context, publicURL string) error
}

// diskStore is the filesystem BlobStore. Blobs are written under
// {root}/{ownerID}/{unixMillis}-{sanitizedFilename} and served under
// publicPrefix by the HTTP layer.
type diskStore struct {
	root         string
	publicPrefix string // URL prefix, e.g. "http://host/media"
	maxSize      int64
}

// NewDiskStore creates a filesystem-backed BlobStore. publicPrefix is the
// absolute URL prefix under which the media tree is served.
func NewDiskStore(root, publicPrefix string, maxSize int64) BlobStore {
	return &diskStore{
		root:         root,
		publicPrefix: strings.TrimSuffix(publicPrefix, "/"),
		maxSize:      maxSize,
	}
}

// Upload validates and writes a blob, returning its public URL. Thumbnails
// are generated best-effort for images; a failed thumbnail never fails the
// upload.
func (s *diskStore) Upload(ctx context.Context, input UploadInput) (string, error) {
	if !AllowedMimeTypes[input.MimeType] {
		return "", apperror.NewBadRequest("unsupported file type: " + input.MimeType)
	}
	if int64(len(input.FileBytes)) > s.maxSize {
		return "", apperror.NewBadRequest(fmt.Sprintf("file too large; maximum size is %d MB", s.maxSize/(1024*1024)))
	}
	if IsImageMime(input.MimeType) && !validateMagicBytes(input.FileBytes, input.MimeType) {
		return "", apperror.NewBadRequest("file content does not match declared type")
	}

	name := SanitizeFilename(input.OriginalName)
	if filepath.Ext(name) == "" {
		name += MimeToExtension[input.MimeType]
	}
	filename := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), name)

	dir := filepath.Join(s.root, input.OwnerID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperror.NewInternal(fmt.Errorf("creating media directory: %w", err))
	}

	fullPath := filepath.Join(dir, filename)
	if err := os.WriteFile(fullPath, input.FileBytes, 0o644); err != nil {
		return "", apperror.NewInternal(fmt.Errorf("writing blob: %w", err))
	}

	if HasThumbnails(input.MimeType) {
		for _, maxDim := range []int{300, 800} {
			if err := generateThumbnail(input.FileBytes, dir, filename, maxDim); err != nil {
				slog.Debug("thumbnail skipped",
					slog.String("file", filename),
					slog.Int("size", maxDim),
					slog.Any("error", err),
				)
			}
		}
	}

	slog.Info("blob uploaded",
		slog.String("owner", input.OwnerID),
		slog.String("file", filename),
		slog.Int("size", len(input.FileBytes)),
	)
	return s.publicPrefix + "/" + input.OwnerID + "/" + filename, nil
}

// Delete removes a blob and its thumbnails given the public URL returned by
// Upload. Unknown URLs are rejected rather than mapped onto the filesystem.
func (s *diskStore) Delete(ctx context.Context, publicURL string) error {
	rel, err := s.relPath(publicURL)
	if err != nil {
		return err
	}

	fullPath := filepath.Join(s.root, rel)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return apperror.NewInternal(fmt.Errorf("removing blob: %w", err))
	}

	// Thumbnails share the blob's name with a size suffix.
	ext := filepath.Ext(fullPath)
	base := strings.TrimSuffix(fullPath, ext)
	for _, maxDim := range []int{300, 800} {
		os.Remove(fmt.Sprintf("%s_%d%s", base, maxDim, ext))
	}

	slog.Info("blob deleted", slog.String("path", rel))
	return nil
}

// relPath maps a public URL back onto a path relative to the media root,
// refusing URLs outside the store's prefix and traversal attempts.
func (s *diskStore) relPath(publicURL string) (string, error) {
	if !strings.HasPrefix(publicURL, s.publicPrefix+"/") {
		return "", apperror.NewBadRequest("URL is not a managed blob")
	}
	rel := strings.TrimPrefix(publicURL, s.publicPrefix+"/")
	rel = filepath.Clean(rel)
	if rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", apperror.NewBadRequest("URL is not a managed blob")
	}
	return rel, nil
}

// unsafeFilenameChars matches every character that may not appear in a
// stored filename. Whitespace and anything outside [A-Za-z0-9.-_] is removed.
var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9.\-_]+`)

// SanitizeFilename makes a user-supplied filename safe for the blob path.
// Whitespace and special characters are stripped entirely (not replaced),
// an empty result falls back to "file", and a name that would begin with
// "." is prefixed so it cannot masquerade as a hidden file.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	// filepath.Base maps "" and path-only inputs to "." or "..", which
	// would otherwise survive the strip and dodge the fallback.
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	if strings.HasPrefix(name, ".") {
		name = "file" + name
	}
	return name
}

// validateMagicBytes checks that the file content's magic bytes match the
// declared MIME type. Prevents uploading arbitrary files with a spoofed
// Content-Type header. Video containers are too varied to fingerprint
// reliably, so only images are checked.
func validateMagicBytes(data []byte, declaredMIME string) bool {
	if len(data) < 4 {
		return false
	}
	switch declaredMIME {
	case "image/jpeg":
		return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
	case "image/png":
		return len(data) >= 8 &&
			data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 &&
			data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A
	case "image/gif":
		return len(data) >= 6 && string(data[:3]) == "GIF"
	case "image/webp":
		return len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP"
	default:
		return false
	}
}

// generateThumbnail writes a resized copy of an image next to the original,
// named {base}_{maxDim}{ext}. Images already within maxDim are copied
// verbatim; thumbnail URLs are derived from the original's URL, so the file
// must exist at every size.
func generateThumbnail(data []byte, dir, filename string, maxDim int) error {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding image: %w", err)
	}

	ext := filepath.Ext(filename)
	thumbName := fmt.Sprintf("%s_%d%s", strings.TrimSuffix(filename, ext), maxDim, ext)
	thumbPath := filepath.Join(dir, thumbName)

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		if err := os.WriteFile(thumbPath, data, 0o644); err != nil {
			return fmt.Errorf("copying thumbnail: %w", err)
		}
		return nil
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = h * maxDim / w
	} else {
		newW = w * maxDim / h
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	f, err := os.Create(thumbPath)
	if err != nil {
		return fmt.Errorf("creating thumbnail file: %w", err)
	}
	defer f.Close()

	switch ext {
	case ".png":
		err = png.Encode(f, dst)
	default:
		err = jpeg.Encode(f, dst, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		os.Remove(thumbPath)
		return fmt.Errorf("encoding thumbnail: %w", err)
	}
	return nil
}
