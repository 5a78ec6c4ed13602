// Package wautil collects small pure helpers shared by the bot core and the
// Cloud API transport: phone number normalization, link detection, MIME type
// lookup and nested-key checks over raw JSON.
package wautil

import (
	"strings"

	"github.com/tidwall/gjson"
)

// NormalizePhone strips formatting characters from a phone number so it can
// be used as a Cloud API recipient or conversation key. "+221 77-123 45.67"
// becomes "221771234567".
func NormalizePhone(number string) string {
	var b strings.Builder
	b.Grow(len(number))
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsLink reports whether s looks like a remote URL. The transport uses this
// to decide whether a media reference is a link or a provider-side media id.
func IsLink(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".3gp":  "video/3gpp",
	".mp3":  "audio/mpeg",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".amr":  "audio/amr",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain",
	".csv":  "text/csv",
}

var extByMime = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/3gpp":      ".3gp",
	"audio/mpeg":      ".mp3",
	"audio/aac":       ".aac",
	"audio/ogg":       ".ogg",
	"audio/amr":       ".amr",
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
	"text/csv":        ".csv",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",
	"application/vnd.ms-powerpoint": ".ppt",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
}

// MimeForExt returns the MIME type for a file extension (with or without the
// leading dot), or false when unknown.
func MimeForExt(ext string) (string, bool) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	mime, ok := mimeByExt[strings.ToLower(ext)]
	return mime, ok
}

// ExtForMime returns the canonical file extension for a MIME type, or false
// when unknown. Parameters such as "; codecs=opus" are ignored.
func ExtForMime(mime string) (string, bool) {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	ext, ok := extByMime[strings.TrimSpace(strings.ToLower(mime))]
	return ext, ok
}

// HasKey reports whether the gjson path exists in the raw JSON document.
// Invalid JSON never matches.
func HasKey(raw []byte, path string) bool {
	if !gjson.ValidBytes(raw) {
		return false
	}
	return gjson.GetBytes(raw, path).Exists()
}
