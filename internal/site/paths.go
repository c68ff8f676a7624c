package site

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"git.home.luguber.info/inful/modeldoc/internal/label"
)

// PagePath maps a local location to the slash separated output path of the
// file serving it. Directory locations are served by their index.html.
func PagePath(location string) (string, error) {
	if !label.IsLocal(location) {
		return "", fmt.Errorf("location %q is not local", location)
	}
	return outputPath(location)
}

func outputPath(location string) (string, error) {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		location = location[:i]
	}
	dir := location == "" || strings.HasSuffix(location, "/")

	raw := strings.Split(strings.TrimPrefix(location, "/"), "/")
	segments := make([]string, 0, len(raw)+1)
	for _, s := range raw {
		segments = append(segments, fileSegment(s))
	}
	p := path.Clean(strings.Join(segments, "/"))
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("location %q leaves the site", location)
	}
	if dir || p == "." {
		p = path.Join(p, RootPage)
	}
	return p, nil
}

// fileSegment unescapes one location segment into a file name. Segments
// that would decode into a path operator stay escaped.
func fileSegment(s string) string {
	u, err := url.PathUnescape(s)
	if err != nil || u == "." || u == ".." || strings.Contains(u, "/") {
		return s
	}
	return u
}

// relativeURL returns the link from the page at from to the file at to,
// both output paths.
func relativeURL(from, to string) string {
	fromDir := strings.Split(path.Dir(from), "/")
	if fromDir[0] == "." {
		fromDir = nil
	}
	target := strings.Split(to, "/")

	common := 0
	for common < len(fromDir) && common < len(target)-1 && fromDir[common] == target[common] {
		common++
	}
	var b strings.Builder
	for range fromDir[common:] {
		b.WriteString("../")
	}
	b.WriteString(escapePath(strings.Join(target[common:], "/")))
	rel := b.String()
	// A first segment with a colon would read as a scheme.
	if first, _, _ := strings.Cut(rel, "/"); strings.Contains(first, ":") {
		rel = "./" + rel
	}
	return rel
}

// escapePath escapes each segment of an output path for use in a URL.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
