// Package media implements the blob store for memory attachments. A memory
// carries at most one photo or video; blobs live on the local filesystem
// under a per-owner directory and are addressed by their public URL. Upload
// and delete follow the two-stage write protocol owned by the memories
// service: the blob always moves first, the row second.
package media

import (
	"strconv"
	"strings"
)

// UploadInput holds the validated input for storing a blob.
type UploadInput struct {
	OwnerID      string
	OriginalName string
	MimeType     string
	FileBytes    []byte
}

// UploadResponse is the JSON response returned after a successful upload.
type UploadResponse struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	MimeType     string `json:"mime_type"`
	FileSize     int64  `json:"file_size"`
}

// --- MIME Type Validation ---

// AllowedMimeTypes defines which MIME types are accepted for upload.
// Memories attach either a photo or a short video clip.
var AllowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/gif":       true,
	"video/mp4":       true,
	"video/quicktime": true,
	"video/webm":      true,
	"video/ogg":       true,
}

// MimeToExtension maps MIME types to file extensions, used when the
// sanitized filename carries no usable extension of its own.
var MimeToExtension = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
	"video/ogg":       ".ogv",
}

// IsImageMime returns true for image MIME types. Videos skip thumbnail
// generation and magic-byte checks.
func IsImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// HasThumbnails reports whether uploads of this MIME type get resized
// copies. GIF and WebP are served as-is to keep animation and format intact.
func HasThumbnails(mimeType string) bool {
	return mimeType == "image/jpeg" || mimeType == "image/png"
}

// ThumbnailURL derives the URL of the maxDim thumbnail for a blob URL
// returned by Upload. The thumbnail shares the blob's name with a size
// suffix before the extension.
func ThumbnailURL(publicURL string, maxDim int) string {
	dot := strings.LastIndex(publicURL, ".")
	if dot < strings.LastIndex(publicURL, "/") {
		dot = -1
	}
	if dot == -1 {
		return publicURL
	}
	return publicURL[:dot] + "_" + strconv.Itoa(maxDim) + publicURL[dot:]
}
