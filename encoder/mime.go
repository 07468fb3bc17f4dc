package encoder

import "strings"

const (
	MimeMP4  = "audio/mp4"
	MimeWebM = "audio/webm"
)

// NormalizeMIME maps a platform recording type onto the small vocabulary
// the transcription service accepts. Codec parameters are dropped first.
// MPEG-4 and AAC variants all become audio/mp4, the value mobile Safari
// recordings are most reliably recognised under.
func NormalizeMIME(raw string) string {
	base := baseType(raw)
	switch {
	case strings.Contains(base, "mp4"), strings.Contains(base, "aac"), strings.Contains(base, "x-m4a"):
		return MimeMP4
	case strings.Contains(base, "webm"):
		return MimeWebM
	}
	return base
}
