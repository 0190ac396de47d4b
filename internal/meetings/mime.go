package meetings

import (
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
)

// AllowedAudioTypes lists the accepted upload content types.
var AllowedAudioTypes = []string{
	"audio/wav", "audio/wave", "audio/x-wav",
	"audio/mpeg", "audio/mp3",
	"audio/webm",
	"audio/ogg",
	"audio/mp4", "audio/x-m4a",
}

var preferredExtension = map[string]string{
	"audio/wav":   ".wav",
	"audio/wave":  ".wav",
	"audio/x-wav": ".wav",
	"audio/mpeg":  ".mp3",
	"audio/mp3":   ".mp3",
	"audio/webm":  ".webm",
	"audio/ogg":   ".ogg",
	"audio/mp4":   ".m4a",
	"audio/x-m4a": ".m4a",
}

var typeByExtension = map[string]string{
	".webm": "audio/webm",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
}

func init() {
	for ext, typ := range typeByExtension {
		ensureMimeType(ext, typ)
	}
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		slog.Warn("register MIME type", slog.String("ext", ext), slog.Any("error", err))
	}
}

// baseType strips parameters such as codecs from a content type.
func baseType(contentType string) string {
	base, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(contentType)), ";")
	return strings.TrimSpace(base)
}

// AllowedAudio reports whether an upload is acceptable by content type or file extension.
func AllowedAudio(contentType, filename string) bool {
	base := baseType(contentType)
	for _, t := range AllowedAudioTypes {
		if base == t {
			return true
		}
	}
	_, ok := typeByExtension[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// ExtensionFor returns the file extension for an audio content type.
func ExtensionFor(contentType string) string {
	base := baseType(contentType)
	if ext, ok := preferredExtension[base]; ok {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(base); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// ContentTypeFor returns the content type served for a stored file.
func ContentTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if typ, ok := typeByExtension[ext]; ok {
		return typ
	}
	if typ := mime.TypeByExtension(ext); typ != "" {
		return typ
	}
	return "application/octet-stream"
}
