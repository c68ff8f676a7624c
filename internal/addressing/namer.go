// Package addressing derives path segments for edge traversals and builds,
// resolves and deresolves the addresses made from them.
package addressing

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/metamodel"
)

// DefaultDigest is the digest used for overload disambiguation.
const DefaultDigest = "sha256"

var digests = map[string]func() hash.Hash{
	"sha256":   sha256.New,
	"sha512":   sha512.New,
	"sha3-256": sha3.New256,
	"blake2b-256": func() hash.Hash {
		h, _ := blake2b.New256(nil) // only fails for keys longer than 64 bytes
		return h
	},
}

// Digests lists the supported digest names.
func Digests() []string {
	names := make([]string, 0, len(digests))
	for name := range digests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KeySegmentFunc turns one key attribute value into a path segment.
type KeySegmentFunc func(key metamodel.KeyAttribute, value any) string

// DefaultKeySegment stringifies the raw key value.
func DefaultKeySegment(_ metamodel.KeyAttribute, value any) string {
	return fmt.Sprint(value)
}

// Option configures a Namer.
type Option func(*Namer)

// WithDigest selects the digest algorithm by name.
func WithDigest(name string) Option {
	return func(n *Namer) { n.digest = name }
}

// WithKeySegment overrides the key-to-segment hook.
func WithKeySegment(fn KeySegmentFunc) Option {
	return func(n *Namer) {
		if fn != nil {
			n.keySegment = fn
		}
	}
}

// Namer computes the path segment of an edge traversal. A Namer is immutable
// and safe for concurrent use.
type Namer struct {
	introspector metamodel.Introspector
	digest       string
	newHash      func() hash.Hash
	keySegment   KeySegmentFunc
}

// NewNamer creates a Namer. An unknown digest name is a fatal configuration error.
func NewNamer(introspector metamodel.Introspector, opts ...Option) (*Namer, error) {
	n := &Namer{
		introspector: introspector,
		digest:       DefaultDigest,
		keySegment:   DefaultKeySegment,
	}
	for _, opt := range opts {
		opt(n)
	}
	newHash, ok := digests[n.digest]
	if !ok {
		return nil, ferrors.ConfigError("unsupported digest algorithm").
			WithContext("digest", n.digest).
			WithContext("supported", strings.Join(Digests(), ",")).
			Build()
	}
	n.newHash = newHash
	return n, nil
}

// Digest returns the configured digest name.
func (n *Namer) Digest() string { return n.digest }

// Segment returns the escaped path segment for reaching target from source
// through ref at position index. The result depends only on its arguments.
// An error is returned when a key attribute of target cannot be read.
func (n *Namer) Segment(_, target metamodel.Object, ref metamodel.Reference, index int) (string, error) {
	if len(ref.Keys) == 0 && ref.Unique {
		if named, ok := target.(metamodel.Named); ok {
			return escape(n.name(named)), nil
		}
	}

	value := ""
	switch {
	case len(ref.Keys) > 0:
		parts := make([]string, 0, len(ref.Keys))
		for _, key := range ref.Keys {
			v, err := n.introspector.AttributeOf(target, key.Name)
			if err != nil {
				return "", fmt.Errorf("key attribute %s of reference %s: %w", key.Name, ref.Name, err)
			}
			parts = append(parts, escape(n.keySegment(key, v)))
		}
		value = strings.Join(parts, "/")
	case ref.Many:
		value = strconv.Itoa(index)
	}
	if value == "" {
		return escape(ref.Name), nil
	}
	return escape(ref.Name) + "/" + value, nil
}

// name returns the element name, suffixed with the signature digest for
// operations that declare parameters.
func (n *Namer) name(named metamodel.Named) string {
	sig, ok := named.(metamodel.Signature)
	if !ok {
		return named.ElementName()
	}
	params := sig.ParameterTypes()
	if len(params) == 0 {
		return named.ElementName()
	}
	h := n.newHash()
	for _, p := range params {
		h.Write([]byte(p.Name + "@" + p.Namespace))
	}
	return named.ElementName() + "-" + hex.EncodeToString(h.Sum(nil))
}

// RootSegment returns the segment of a root object: its escaped name, or ""
// when the root is not named.
func RootSegment(root metamodel.Object) string {
	if named, ok := root.(metamodel.Named); ok {
		return escape(named.ElementName())
	}
	return ""
}

// escape path-escapes s so it stays one segment. The dot names are escaped
// too; they would otherwise be removed by reference resolution.
func escape(s string) string {
	switch s {
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}
	return url.PathEscape(s)
}
