package site

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/inful/mdfp"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/modeldoc/internal/logfields"
)

const (
	stageDirName = "stage"
	manifestName = "manifest.yaml"
	// SitemapFile is written at the site root when a domain is configured.
	SitemapFile = "sitemap.xml"
)

// pathErrors collects error messages per output path. It is safe for
// concurrent use.
type pathErrors struct {
	mu   sync.Mutex
	errs map[string][]string
}

func (e *pathErrors) add(p string, errs ...error) {
	if len(errs) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.errs == nil {
		e.errs = make(map[string][]string)
	}
	for _, err := range errs {
		e.errs[p] = append(e.errs[p], err.Error())
	}
}

func (e *pathErrors) result() map[string][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string][]string, len(e.errs))
	for k, v := range e.errs {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// manifest maps output paths to the fingerprint of their last written
// content.
type manifest map[string]string

func loadManifest(workDir string) manifest {
	m := manifest{}
	// #nosec G304 -- manifest lives in the configured work dir
	raw, err := os.ReadFile(filepath.Join(workDir, manifestName))
	if err != nil {
		return m
	}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		slog.Warn("Ignoring unreadable page manifest", logfields.Path(workDir), logfields.Error(err))
		return manifest{}
	}
	return m
}

func (m manifest) save(workDir string) error {
	raw, err := yaml.Marshal(map[string]string(m))
	if err != nil {
		return err
	}
	p := filepath.Join(workDir, manifestName)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func fingerprint(content []byte) string {
	return mdfp.CalculateFingerprintFromParts("", string(content))
}

// beginStaging creates an empty staging directory inside the work dir.
func beginStaging(workDir string) (string, error) {
	stage := filepath.Join(workDir, stageDirName)
	if err := os.RemoveAll(stage); err != nil {
		return "", err
	}
	if err := os.MkdirAll(stage, 0o750); err != nil {
		return "", err
	}
	slog.Debug("Initialized staging directory", "staging", stage)
	return stage, nil
}

func writeFile(root, rel string, content []byte) error {
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	return os.WriteFile(p, content, 0o600)
}

// listAssets returns the slash separated paths of every file below dir.
func listAssets(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	var out []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	return out, err
}

func copyAssets(dir, stage string, assets []string) error {
	for _, rel := range assets {
		// #nosec G304 -- rel was listed from the assets directory
		content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		if err := writeFile(stage, rel, content); err != nil {
			return err
		}
	}
	return nil
}

// cleanOutput removes every top-level entry of dir not named in preserve.
func cleanOutput(dir string, preserve []string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	keep := make(map[string]bool, len(preserve))
	for _, p := range preserve {
		keep[strings.Trim(filepath.ToSlash(p), "/")] = true
	}
	for _, e := range entries {
		if keep[e.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	slog.Debug("Cleaned output directory", logfields.Path(dir), "preserved", len(preserve))
	return nil
}

type promotion struct {
	written   int
	unchanged int
}

// promote moves the staged files into the output dir. A file whose
// fingerprint matches the previous run and that still exists is left alone.
// Files produced last time but not this time are removed unless preserved.
func promote(stage, outputDir string, previous manifest, preserve []string) (manifest, promotion, error) {
	var stats promotion
	next := manifest{}
	err := filepath.WalkDir(stage, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(stage, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		// #nosec G304 -- p was listed from the staging directory
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		fp := fingerprint(content)
		next[rel] = fp
		dst := filepath.Join(outputDir, filepath.FromSlash(rel))
		if previous[rel] == fp {
			if _, err := os.Stat(dst); err == nil {
				stats.unchanged++
				return nil
			}
		}
		stats.written++
		return writeFile(outputDir, rel, content)
	})
	if err != nil {
		return nil, stats, err
	}

	for rel := range previous {
		if _, ok := next[rel]; ok || preserved(rel, preserve) {
			continue
		}
		if err := os.Remove(filepath.Join(outputDir, filepath.FromSlash(rel))); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, stats, err
		}
	}
	if err := os.RemoveAll(stage); err != nil {
		slog.Warn("Failed to remove staging directory", "staging", stage, logfields.Error(err))
	}
	return next, stats, nil
}

func preserved(rel string, preserve []string) bool {
	for _, p := range preserve {
		p = strings.Trim(filepath.ToSlash(p), "/")
		if rel == p || strings.HasPrefix(rel, p+"/") {
			return true
		}
	}
	return false
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// buildSitemap lists the pages below domain. Index pages are listed by their
// directory.
func buildSitemap(domain string, pages []string) ([]byte, error) {
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	domain = strings.TrimSuffix(domain, "/")

	sorted := append([]string(nil), pages...)
	sort.Strings(sorted)
	set := sitemapURLSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range sorted {
		loc := p
		if path.Base(p) == RootPage {
			loc = strings.TrimSuffix(p, RootPage)
		}
		set.URLs = append(set.URLs, sitemapURL{Loc: domain + "/" + escapePath(loc)})
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("encode sitemap: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
