package label

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	kindLabel = "label"
	kindLink  = "link"
	kindRef   = "ref"
)

type labelDoc struct {
	Kind     string     `yaml:"kind"`
	Title    string     `yaml:"title"`
	Text     string     `yaml:"text,omitempty"`
	Icon     string     `yaml:"icon,omitempty"`
	Location string     `yaml:"location,omitempty"`
	Children []labelDoc `yaml:"children,omitempty"`
}

func toDocs(ls []*Label) []labelDoc {
	out := make([]labelDoc, 0, len(ls))
	for _, l := range ls {
		if l == nil {
			continue
		}
		kind := kindLabel
		switch {
		case l.IsLink() && l.Ref:
			kind = kindRef
		case l.IsLink():
			kind = kindLink
		}
		out = append(out, labelDoc{
			Kind:     kind,
			Title:    l.Title,
			Text:     l.Text,
			Icon:     l.Icon,
			Location: l.Location,
			Children: toDocs(l.Children),
		})
	}
	return out
}

func fromDocs(docs []labelDoc, path string) ([]*Label, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	out := make([]*Label, 0, len(docs))
	for i, d := range docs {
		where := fmt.Sprintf("%s[%d]", path, i)
		switch d.Kind {
		case kindLink, kindRef:
			if d.Location == "" {
				return nil, fmt.Errorf("%s: link %q has no location", where, d.Title)
			}
		case kindLabel, "":
			if d.Location != "" {
				return nil, fmt.Errorf("%s: label %q has a location; use kind %q", where, d.Title, kindLink)
			}
		default:
			return nil, fmt.Errorf("%s: unknown kind %q", where, d.Kind)
		}
		children, err := fromDocs(d.Children, where+".children")
		if err != nil {
			return nil, err
		}
		out = append(out, &Label{
			Title:    d.Title,
			Text:     d.Text,
			Icon:     d.Icon,
			Location: d.Location,
			Ref:      d.Kind == kindRef,
			Children: children,
		})
	}
	return out, nil
}

// Encode writes f as YAML.
func Encode(w io.Writer, f Forest) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(toDocs(f)); err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}
	return enc.Close()
}

// Decode reads a forest written by Encode.
func Decode(r io.Reader) (Forest, error) {
	var docs []labelDoc
	if err := yaml.NewDecoder(r).Decode(&docs); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	ls, err := fromDocs(docs, "labels")
	if err != nil {
		return nil, err
	}
	return Forest(ls), nil
}

// DecodeNode decodes a forest from an already parsed YAML node.
func DecodeNode(node *yaml.Node) (Forest, error) {
	var docs []labelDoc
	if err := node.Decode(&docs); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	ls, err := fromDocs(docs, "labels")
	if err != nil {
		return nil, err
	}
	return Forest(ls), nil
}

// Save writes f to path, replacing any previous file atomically.
func Save(path string, f Forest) error {
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write labels to temporary file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to replace labels file: %w", err)
	}
	return nil
}

// Load reads a forest saved with Save.
func Load(path string) (Forest, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer func() { _ = file.Close() }()
	f, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}
