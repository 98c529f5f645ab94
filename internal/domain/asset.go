package domain

// MediaType classifies a downloaded artifact.
type MediaType string

const (
	MediaImage   MediaType = "image"
	MediaVideo   MediaType = "video"
	MediaAudio   MediaType = "audio"
	MediaUnknown MediaType = "unknown"
)

// Known reports whether the media type maps to a concrete kind.
func (m MediaType) Known() bool {
	return m == MediaImage || m == MediaVideo || m == MediaAudio
}

// DownloadResult describes a successfully materialized asset. The path always
// exists on disk and lies within the configured working root.
type DownloadResult struct {
	Path        string
	Media       MediaType
	SizeBytes   int64
	ContentType string
}
