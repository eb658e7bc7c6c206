package player

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/edumarques81/stellar-cloudplayer/internal/domain/catalog"
)

// uploadsPrefix is the asset directory the API server serves song files from.
const uploadsPrefix = "uploads/"

var absoluteURLPattern = regexp.MustCompile(`(?i)^https?://`)

// ResolveAddress derives a fetchable address for a song's stored source.
// Absolute http(s) URLs are returned unchanged. Anything else is treated as a
// path under the asset base: leading slashes are dropped, every segment is
// percent-encoded on its own, and "uploads/" is prefixed unless present.
// The second return value is false when the song has no source at all.
func ResolveAddress(song catalog.Song, base string) (string, bool) {
	source := song.Source()
	if source == "" {
		return "", false
	}

	if absoluteURLPattern.MatchString(source) {
		return source, true
	}

	clean := strings.TrimLeft(source, "/")
	segments := strings.Split(clean, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	encoded := strings.Join(segments, "/")

	base = strings.TrimRight(base, "/")
	if strings.HasPrefix(clean, uploadsPrefix) {
		return base + "/" + encoded, true
	}
	return base + "/" + uploadsPrefix + encoded, true
}
