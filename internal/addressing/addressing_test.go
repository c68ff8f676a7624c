package addressing

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/metamodel"
)

type named struct{ name string }

func (n *named) ElementName() string { return n.name }

type operation struct {
	name   string
	params []metamodel.TypeRef
}

func (o *operation) ElementName() string                 { return o.name }
func (o *operation) ParameterTypes() []metamodel.TypeRef { return o.params }

type keyed struct{ attrs map[string]any }

type stubIntrospector struct{}

func (stubIntrospector) ClassifierOf(metamodel.Object) (metamodel.Classifier, error) {
	return metamodel.Classifier{Name: "Stub"}, nil
}
func (stubIntrospector) ReferencesOf(metamodel.Object) ([]metamodel.Reference, error) {
	return nil, nil
}
func (stubIntrospector) ValueOf(metamodel.Object, metamodel.Reference) ([]metamodel.Object, error) {
	return nil, nil
}
func (stubIntrospector) AttributeOf(obj metamodel.Object, name string) (any, error) {
	k, ok := obj.(*keyed)
	if !ok {
		return nil, &metamodel.UnknownReferenceError{Object: obj, Reference: name}
	}
	v, ok := k.attrs[name]
	if !ok {
		return nil, &metamodel.UnknownReferenceError{Object: obj, Reference: name}
	}
	return v, nil
}

var (
	uniqueRef = metamodel.Reference{Name: "eOperations", Ordered: true, Unique: true, Many: true, Containment: true}
	listRef   = metamodel.Reference{Name: "items", Ordered: true, Many: true}
)

func newNamer(t *testing.T, opts ...Option) *Namer {
	t.Helper()
	n, err := NewNamer(stubIntrospector{}, opts...)
	require.NoError(t, err)
	return n
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestSegment(t *testing.T) {
	n := newNamer(t)
	const ns = "http://www.eclipse.org/emf/2002/Ecore"

	tests := []struct {
		name   string
		target metamodel.Object
		ref    metamodel.Reference
		index  int
		want   string
	}{
		{"named unique", &named{"C"}, uniqueRef, 3, "C"},
		{"zero parameter operation", &operation{name: "foo"}, uniqueRef, 0, "foo"},
		{
			"overloaded operation",
			&operation{name: "foo", params: []metamodel.TypeRef{{Name: "EInt", Namespace: ns}}},
			uniqueRef, 1,
			"foo-" + sha256Hex("EInt@" + ns),
		},
		{
			"parameter types concatenate",
			&operation{name: "bar", params: []metamodel.TypeRef{{Name: "A", Namespace: "x"}, {Name: "B", Namespace: "y"}}},
			uniqueRef, 0,
			"bar-" + sha256Hex("A@xB@y"),
		},
		{"non unique falls back to ordinal", &named{"C"}, listRef, 4, "items/4"},
		{"unnamed target", &keyed{}, uniqueRef, 2, "eOperations/2"},
		{"single valued", &keyed{}, metamodel.Reference{Name: "eType"}, 0, "eType"},
		{"name is escaped", &named{"a b/c"}, uniqueRef, 0, "a%20b%2Fc"},
		{"dot names stay segments", &named{".."}, uniqueRef, 0, "%2E%2E"},
		{
			"keys",
			&keyed{attrs: map[string]any{"source": "http://x/y", "n": 2}},
			metamodel.Reference{Name: "eAnnotations", Unique: true, Many: true, Keys: []metamodel.KeyAttribute{{Name: "source"}, {Name: "n"}}},
			0,
			"eAnnotations/http:%2F%2Fx%2Fy/2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Segment(nil, tt.target, tt.ref, tt.index)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSegmentKeyHook(t *testing.T) {
	n := newNamer(t, WithKeySegment(func(key metamodel.KeyAttribute, value any) string {
		return strings.ToUpper(key.Name) + "-" + value.(string)
	}))
	ref := metamodel.Reference{Name: "r", Many: true, Keys: []metamodel.KeyAttribute{{Name: "id"}}}
	got, err := n.Segment(nil, &keyed{attrs: map[string]any{"id": "7"}}, ref, 0)
	require.NoError(t, err)
	assert.Equal(t, "r/ID-7", got)

	_, err = n.Segment(nil, &keyed{}, ref, 0)
	var unknown *metamodel.UnknownReferenceError
	assert.ErrorAs(t, err, &unknown)
}

func TestNewNamerDigests(t *testing.T) {
	for _, name := range Digests() {
		t.Run(name, func(t *testing.T) {
			n := newNamer(t, WithDigest(name))
			seg, err := n.Segment(nil, &operation{name: "op", params: []metamodel.TypeRef{{Name: "T"}}}, uniqueRef, 0)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(seg, "op-"))
			assert.Equal(t, name, n.Digest())
		})
	}

	_, err := NewNamer(stubIntrospector{}, WithDigest("md5"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.True(t, classified.IsFatal())
}

func TestSegmentProperties(t *testing.T) {
	n := newNamer(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("segments are deterministic", prop.ForAll(
		func(name string, types []string, index int) bool {
			params := make([]metamodel.TypeRef, 0, len(types))
			for _, tn := range types {
				params = append(params, metamodel.TypeRef{Name: tn, Namespace: "urn:t"})
			}
			a, errA := n.Segment(nil, &operation{name: name, params: params}, uniqueRef, index)
			b, errB := n.Segment(nil, &operation{name: name, params: params}, uniqueRef, index)
			return errA == nil && errB == nil && a == b
		},
		gen.AlphaString(),
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(0, 1000),
	))

	properties.Property("overloads with different signatures differ", prop.ForAll(
		func(name, t1, t2 string) bool {
			a, _ := n.Segment(nil, &operation{name: name, params: []metamodel.TypeRef{{Name: t1, Namespace: "urn:t"}}}, uniqueRef, 0)
			b, _ := n.Segment(nil, &operation{name: name, params: []metamodel.TypeRef{{Name: t2, Namespace: "urn:t"}}}, uniqueRef, 0)
			return (t1 == t2) == (a == b)
		},
		gen.Identifier(),
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.Property("zero parameter names carry no digest", prop.ForAll(
		func(name string) bool {
			seg, err := n.Segment(nil, &operation{name: name}, uniqueRef, 0)
			return err == nil && seg == name
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestJoin(t *testing.T) {
	base, err := ParseBase("https://example.org/")
	require.NoError(t, err)

	u, err := Join(base, "P", "", "C", "foo")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/P/C/foo", u.String())

	u, err = Join(u, "eAnnotations/http:%2F%2Fx")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/P/C/foo/eAnnotations/http:%2F%2Fx", u.String())

	assert.Equal(t, "https://example.org/P/index.html", Page(mustParse(t, "https://example.org/P")).String())

	_, err = ParseBase("relative/path")
	assert.Error(t, err)
}

func TestDeresolve(t *testing.T) {
	tests := []struct {
		base, target string
		want         string
		ok           bool
	}{
		{"https://example.org/", "https://example.org/P/C/foo", "P/C/foo", true},
		{"https://example.org/", "https://example.org/", "", true},
		{"https://example.org", "https://example.org/", "", true},
		{"https://example.org/docs", "https://example.org/docs", "", true},
		{"https://example.org/docs", "https://example.org/docs/", "./", true},
		{"https://example.org/docs/", "https://example.org/docs/a#x", "a#x", true},
		{"https://example.org/docs/", "https://example.org/docs/a:b/c", "./a:b/c", true},
		{"https://example.org/docs/", "https://example.org/other", "", false},
		{"https://example.org/", "https://other.org/P", "", false},
		{"https://example.org/", "http://example.org/P", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.base+" "+tt.target, func(t *testing.T) {
			got, ok := Deresolve(mustParse(t, tt.base), mustParse(t, tt.target))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeresolveRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("resolve inverts deresolve below the base", prop.ForAll(
		func(basePath, rest []string, slash bool) bool {
			base := "https://example.org/" + strings.Join(basePath, "/")
			if slash && len(basePath) > 0 {
				base += "/"
			}
			b, err := url.Parse(base)
			if err != nil {
				return false
			}
			target, err := Join(b, append([]string{"page"}, rest...)...)
			if err != nil {
				return false
			}
			rel, ok := Deresolve(b, target)
			if !ok {
				return false
			}
			back, err := Resolve(b, rel)
			return err == nil && back.String() == target.String()
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestRelativeAndMount(t *testing.T) {
	base := mustParse(t, "https://example.org/")
	assert.Equal(t, "${base-uri}P/C/foo", Relative(base, "https://example.org/P/C/foo"))
	assert.Equal(t, "${base-uri}", Relative(base, "https://example.org/"))
	assert.Equal(t, "https://elsewhere.org/x", Relative(base, "https://elsewhere.org/x"))
	assert.Equal(t, "notes/x.html", Relative(base, "notes/x.html"))

	assert.Equal(t, "/site/P/C/foo", Mount("${base-uri}P/C/foo", "/site/"))
	assert.Equal(t, "plain", Mount("plain", "/site/"))
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
