// Package archive builds retrieval links for finished site archives and
// downloads them to local storage.
package archive

import (
	"net/url"
	"regexp"
	"strings"
)

// PathPrefix is the server path under which archives are served.
const PathPrefix = "/sites/"

// Extension is appended to the delivered filename to form the archive name.
const Extension = ".zip"

var filenamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// SafeFilename reports whether name may be used to build a retrieval link.
func SafeFilename(name string) bool {
	return filenamePattern.MatchString(name)
}

// Path returns the server path for the archive of name. The second result is
// false, and the path empty, when name fails SafeFilename.
func Path(name string) (string, bool) {
	if !SafeFilename(name) {
		return "", false
	}
	return PathPrefix + url.PathEscape(name) + Extension, true
}

// URL resolves the archive path of name against the service base URL. A
// WebSocket base is served over the matching HTTP scheme.
func URL(base *url.URL, name string) (string, bool) {
	p, ok := Path(name)
	if !ok || base == nil {
		return "", false
	}
	ref := *base
	switch ref.Scheme {
	case "ws":
		ref.Scheme = "http"
	case "wss":
		ref.Scheme = "https"
	}
	ref.Path = strings.TrimRight(base.Path, "/") + p
	ref.RawPath = ""
	ref.RawQuery = ""
	ref.Fragment = ""
	return ref.String(), true
}

// LocalName is the file name an archive of name is saved under.
func LocalName(name string) string {
	return name + Extension
}
