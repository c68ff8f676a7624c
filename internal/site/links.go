package site

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// Link is a reference found in a rendered page.
type Link struct {
	URL       string
	Tag       string
	Attribute string
}

var linkAttributes = map[string]string{
	"a":      "href",
	"link":   "href",
	"img":    "src",
	"script": "src",
	"iframe": "src",
	"video":  "src",
	"audio":  "src",
	"source": "src",
}

// ExtractLinks returns the links of an HTML document in document order.
func ExtractLinks(content []byte) ([]Link, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	var links []Link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if attr, ok := linkAttributes[n.Data]; ok {
				if v := getAttr(n, attr); v != "" {
					links = append(links, Link{URL: v, Tag: n.Data, Attribute: attr})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// target returns the output path an internal link of the page at from points
// to. ok is false for external links, anchors and special schemes.
func target(from, link string) (string, bool) {
	if link == "" || strings.HasPrefix(link, "#") || strings.HasPrefix(link, "//") {
		return "", false
	}
	u, err := url.Parse(link)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	if u.Path == "" {
		return "", false
	}
	p := u.EscapedPath()
	if !strings.HasPrefix(p, "/") {
		base := path.Base(p)
		dir := strings.HasSuffix(p, "/") || base == "." || base == ".."
		p = path.Join(path.Dir(from), p)
		if dir {
			p += "/"
		}
	}
	resolved, err := outputPath(p)
	if err != nil {
		return p, true
	}
	return resolved, true
}

// verifyLinks returns one error per internal link of page that does not
// point at a produced file.
func verifyLinks(page string, content []byte, exists func(string) bool) []error {
	links, err := ExtractLinks(content)
	if err != nil {
		return []error{err}
	}
	var errs []error
	for _, l := range links {
		t, internal := target(page, l.URL)
		if !internal || exists(t) {
			continue
		}
		errs = append(errs, fmt.Errorf("broken link %q in <%s %s>: %s is not part of the site", l.URL, l.Tag, l.Attribute, t))
	}
	return errs
}
