package addressing

import (
	"fmt"
	"net/url"
	"strings"
)

// BaseURIToken stands for the site base address in persisted locations.
const BaseURIToken = "${base-uri}"

// PageFile is the file name of the page rendered for an address.
const PageFile = "index.html"

// ParseBase parses an absolute base address.
func ParseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base address %q: %w", raw, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("base address %q is not absolute", raw)
	}
	return u, nil
}

// Join appends already escaped segments to base. Empty segments are skipped;
// a segment may itself contain "/" separated parts. Query and fragment of
// base are dropped.
func Join(base *url.URL, segments ...string) (*url.URL, error) {
	escaped := strings.TrimSuffix(base.EscapedPath(), "/")
	for _, s := range segments {
		if s == "" {
			continue
		}
		escaped += "/" + s
	}
	if escaped == "" {
		escaped = "/"
	}
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		return nil, fmt.Errorf("join %q: %w", escaped, err)
	}
	u := *base
	u.Path = unescaped
	u.RawPath = escaped
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	return &u, nil
}

// Page returns the location of the page rendered for address.
func Page(address *url.URL) *url.URL {
	u, _ := Join(address, PageFile) // PageFile needs no escaping
	return u
}

// Deresolve returns target relative to the directory of base. ok is false
// when target does not live at or below base. The base itself yields "".
func Deresolve(base, target *url.URL) (rel string, ok bool) {
	if !sameOrigin(base, target) {
		return "", false
	}
	basePath := base.EscapedPath()
	dir := basePath
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	targetPath := target.EscapedPath()
	if targetPath == "" {
		targetPath = "/"
	}

	switch {
	case targetPath == basePath || (basePath == "" && targetPath == "/"):
		rel = ""
	case targetPath == dir:
		rel = "./"
	case strings.HasPrefix(targetPath, dir):
		rel = strings.TrimPrefix(targetPath, dir)
		first, _, _ := strings.Cut(rel, "/")
		if strings.Contains(first, ":") {
			rel = "./" + rel
		}
	default:
		return "", false
	}

	if target.RawQuery != "" || target.ForceQuery {
		rel += "?" + target.RawQuery
	}
	if target.Fragment != "" {
		rel += "#" + target.EscapedFragment()
	}
	return rel, true
}

// Resolve is the inverse of Deresolve: it resolves rel against the directory
// of base.
func Resolve(base *url.URL, rel string) (*url.URL, error) {
	ref, err := url.Parse(rel)
	if err != nil {
		return nil, fmt.Errorf("parse relative address %q: %w", rel, err)
	}
	if rel == "" || strings.HasPrefix(rel, "?") || strings.HasPrefix(rel, "#") {
		return base.ResolveReference(ref), nil
	}
	dir := *base
	if p := dir.EscapedPath(); !strings.HasSuffix(p, "/") {
		dir.RawPath = p + "/"
		dir.Path += "/"
	}
	return dir.ResolveReference(ref), nil
}

// Relative is Deresolve rendered for persisting: locations at or below base
// become BaseURIToken followed by the relative path; other locations are
// returned unchanged.
func Relative(base *url.URL, location string) string {
	target, err := url.Parse(location)
	if err != nil || !target.IsAbs() {
		return location
	}
	rel, ok := Deresolve(base, target)
	if !ok {
		return location
	}
	return BaseURIToken + rel
}

// Mount replaces a leading BaseURIToken in location with base. base should
// end in "/" when it names a directory.
func Mount(location, base string) string {
	rest, ok := strings.CutPrefix(location, BaseURIToken)
	if !ok {
		return location
	}
	return base + rest
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Host, b.Host) &&
		a.User.String() == b.User.String() &&
		a.Opaque == "" && b.Opaque == ""
}
