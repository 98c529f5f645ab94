// Package media infers the kind and canonical extension of a remote asset
// from its URL or the response content type.
package media

import (
	"net/url"
	"path"
	"strings"

	"genvoy/internal/domain"
)

var extToMedia = map[string]domain.MediaType{
	".png":  domain.MediaImage,
	".jpg":  domain.MediaImage,
	".jpeg": domain.MediaImage,
	".webp": domain.MediaImage,
	".mp4":  domain.MediaVideo,
	".mp3":  domain.MediaAudio,
	".wav":  domain.MediaAudio,
	".flac": domain.MediaAudio,
}

var contentTypeToExt = map[string]string{
	"image/png":   ".png",
	"image/jpeg":  ".jpg",
	"image/webp":  ".webp",
	"video/mp4":   ".mp4",
	"audio/mpeg":  ".mp3",
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/flac":  ".flac",
}

// Detect resolves the media kind and extension for rawURL. The URL path's
// extension wins when it maps to a known kind; otherwise the declared content
// type (stripped of parameters) is consulted. Returns (unknown, "") when
// neither source yields a match.
func Detect(rawURL, contentType string) (domain.MediaType, string) {
	if ext := urlExtension(rawURL); ext != "" {
		if kind, ok := extToMedia[ext]; ok {
			return kind, ext
		}
	}

	if contentType == "" {
		return domain.MediaUnknown, ""
	}
	norm := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := contentTypeToExt[norm]
	if !ok {
		return domain.MediaUnknown, ""
	}
	return extToMedia[ext], ext
}

func urlExtension(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(path.Ext(rawURL))
	}
	return strings.ToLower(path.Ext(parsed.Path))
}
