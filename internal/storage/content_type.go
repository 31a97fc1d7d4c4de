package storage

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// photoTypes maps the accepted photo MIME types to the extension used in keys.
var photoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
	"image/heif": ".heif",
}

// DetectContentType resolves a photo's MIME type. An explicit type wins, then
// the file extension, then sniffing the first 512 bytes of data.
func DetectContentType(providedType, filename string, data []byte) string {
	if providedType != "" && providedType != "application/octet-stream" {
		return normalize(providedType)
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return normalize(ct)
	}
	if len(data) > 0 {
		if len(data) > 512 {
			data = data[:512]
		}
		return normalize(http.DetectContentType(data))
	}
	return "application/octet-stream"
}

// IsAllowedImageType reports whether contentType is accepted for inspection photos.
func IsAllowedImageType(contentType string) bool {
	_, ok := photoTypes[normalize(contentType)]
	return ok
}

func extensionForContentType(contentType string) string {
	if ext, ok := photoTypes[normalize(contentType)]; ok {
		return ext
	}
	return ".bin"
}

// normalize strips parameters such as charset.
func normalize(contentType string) string {
	base := strings.Split(contentType, ";")[0]
	return strings.TrimSpace(strings.ToLower(base))
}
