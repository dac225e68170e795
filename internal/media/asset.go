package media

import (
	"net/url"
	"path"
	"strings"
)

// Kind is the resource class an upload is stored under.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindRaw   Kind = "raw"
)

// KindFor derives the kind from a MIME type.
func KindFor(contentType string) Kind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return KindImage
	case strings.HasPrefix(contentType, "video/"):
		return KindVideo
	default:
		return KindRaw
	}
}

// Metadata is what the prober learns about a local file.
type Metadata struct {
	Duration float64
	Width    int
	Height   int
}

// Asset describes an object stored remotely.
type Asset struct {
	URL         string
	PublicID    string
	Kind        Kind
	ContentType string
	Bytes       int64
	Metadata
}

// IdentifierFromURL returns the public identifier of a stored object: the last
// path segment without its extension. It returns "" for an unparsable or empty URL.
func IdentifierFromURL(rawURL string) string {
	if strings.TrimSpace(rawURL) == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// LocateURL returns the public identifier and the kind a stored object was
// filed under, read from the `<kind>/<id><ext>` tail of its URL. kind is ""
// when the URL does not carry a known kind segment.
func LocateURL(rawURL string) (publicID string, kind Kind) {
	publicID = IdentifierFromURL(rawURL)
	if publicID == "" {
		return "", ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return publicID, ""
	}
	switch k := Kind(path.Base(path.Dir(u.Path))); k {
	case KindImage, KindVideo, KindRaw:
		return publicID, k
	default:
		return publicID, ""
	}
}
