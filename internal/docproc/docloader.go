package docproc

import (
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

	"git.home.luguber.info/inful/modeldoc/internal/foundation"
	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/frontmatter"
	"git.home.luguber.info/inful/modeldoc/internal/logfields"
	"git.home.luguber.info/inful/modeldoc/internal/markdown"
)

// Prototype is hand written documentation for one model element.
type Prototype struct {
	// Key is the logical path of the element, e.g. "library/Book/title".
	Key    string
	Title  string
	Icon   string
	Hidden bool
	HTML   string
	// Fingerprint identifies the source content of the prototype.
	Fingerprint string
}

type prototypeMeta struct {
	Title  string `yaml:"title"`
	Icon   string `yaml:"icon"`
	Hidden bool   `yaml:"hidden"`
}

// DocLoader holds the prototypes of a docs directory.
type DocLoader struct {
	dir        string
	prototypes map[string]*Prototype

	mu   sync.Mutex
	used map[string]bool
}

// LoadDocs reads every *.md file below dir. The key of a file is its slash
// separated path relative to dir without the extension; "index.md" stands
// for its directory. A missing dir yields an empty loader.
func LoadDocs(dir string, md *markdown.Renderer) (*DocLoader, error) {
	l := &DocLoader{
		dir:        dir,
		prototypes: make(map[string]*Prototype),
		used:       make(map[string]bool),
	}
	if dir == "" {
		return l, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		slog.Debug("Docs directory does not exist", logfields.Path(dir))
		return l, nil
	}

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".md") {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		proto, err := readPrototype(p, md)
		if err != nil {
			return err
		}
		proto.Key = keyOf(rel)
		if other, dup := l.prototypes[proto.Key]; dup {
			return fmt.Errorf("%s: duplicate documentation for %q (also %s)", rel, proto.Key, other.Title)
		}
		l.prototypes[proto.Key] = proto
		return nil
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "cannot load documentation prototypes").
			WithContext("docs_dir", dir).
			Fatal().
			Build()
	}
	slog.Info("Loaded documentation prototypes", logfields.Path(dir), logfields.Count(len(l.prototypes)))
	return l, nil
}

func keyOf(rel string) string {
	key := strings.TrimSuffix(filepath.ToSlash(rel), path.Ext(rel))
	if key == "index" {
		return ""
	}
	return strings.TrimSuffix(key, "/index")
}

func readPrototype(p string, md *markdown.Renderer) (*Prototype, error) {
	// #nosec G304 -- p comes from walking the configured docs directory
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	fm, body, _, err := frontmatter.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	var meta prototypeMeta
	if err := frontmatter.Decode(fm, &meta); err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	html, err := md.Render(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	title := meta.Title
	if title == "" {
		title = md.FirstHeading(body)
	}
	return &Prototype{
		Title:       title,
		Icon:        meta.Icon,
		Hidden:      meta.Hidden,
		HTML:        html,
		Fingerprint: mdfp.CalculateFingerprintFromParts(string(fm), string(body)),
	}, nil
}

// Len returns the number of prototypes.
func (l *DocLoader) Len() int { return len(l.prototypes) }

// Lookup returns the prototype for key and marks it as used.
func (l *DocLoader) Lookup(key string) foundation.Option[*Prototype] {
	p, ok := l.prototypes[key]
	if !ok {
		return foundation.None[*Prototype]()
	}
	l.mu.Lock()
	l.used[key] = true
	l.mu.Unlock()
	return foundation.Some(p)
}

// Fingerprint identifies the content of every prototype together. It changes
// whenever a prototype is added, removed or edited, and is empty when there
// are none.
func (l *DocLoader) Fingerprint() string {
	if len(l.prototypes) == 0 {
		return ""
	}
	keys := make([]string, 0, len(l.prototypes))
	for key := range l.prototypes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s %s\n", key, l.prototypes[key].Fingerprint)
	}
	return mdfp.CalculateFingerprintFromParts("", b.String())
}

// Unused returns the sorted keys of prototypes no Lookup asked for. These
// usually document elements that were renamed or removed from the model.
func (l *DocLoader) Unused() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for key := range l.prototypes {
		if !l.used[key] {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
