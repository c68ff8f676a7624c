package ecore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type packageDoc struct {
	Name        string          `yaml:"name"`
	NsURI       string          `yaml:"nsURI"`
	Doc         string          `yaml:"doc,omitempty"`
	Annotations []annotationDoc `yaml:"annotations,omitempty"`
	Classifiers []classifierDoc `yaml:"classifiers,omitempty"`
	Subpackages []packageDoc    `yaml:"subpackages,omitempty"`
}

type annotationDoc struct {
	Source  string            `yaml:"source"`
	Details map[string]string `yaml:"details,omitempty"`
}

// classifierDoc is a tagged union: exactly one of Class, DataType, Enum is set.
type classifierDoc struct {
	Class        string          `yaml:"class,omitempty"`
	DataType     string          `yaml:"datatype,omitempty"`
	Enum         string          `yaml:"enum,omitempty"`
	Doc          string          `yaml:"doc,omitempty"`
	Abstract     bool            `yaml:"abstract,omitempty"`
	Interface    bool            `yaml:"interface,omitempty"`
	SuperTypes   []string        `yaml:"superTypes,omitempty"`
	InstanceType string          `yaml:"instanceType,omitempty"`
	Literals     []literalDoc    `yaml:"literals,omitempty"`
	Attributes   []featureDoc    `yaml:"attributes,omitempty"`
	References   []featureDoc    `yaml:"references,omitempty"`
	Operations   []operationDoc  `yaml:"operations,omitempty"`
	Annotations  []annotationDoc `yaml:"annotations,omitempty"`
}

type literalDoc struct {
	Name  string `yaml:"name"`
	Value *int   `yaml:"value,omitempty"`
	Doc   string `yaml:"doc,omitempty"`
}

type featureDoc struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Doc         string `yaml:"doc,omitempty"`
	Many        bool   `yaml:"many,omitempty"`
	Containment bool   `yaml:"containment,omitempty"`
}

type operationDoc struct {
	Name       string       `yaml:"name"`
	Type       string       `yaml:"type,omitempty"`
	Doc        string       `yaml:"doc,omitempty"`
	Parameters []featureDoc `yaml:"parameters,omitempty"`
}

// LoadFile reads a YAML model file. The file may hold one package or a YAML
// stream of several root packages.
func LoadFile(path string) ([]*Package, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	pkgs, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return pkgs, nil
}

// Load decodes root packages from r. Type names are resolved after all
// packages are built, so references may point forward and across packages.
func Load(r io.Reader) ([]*Package, error) {
	dec := yaml.NewDecoder(r)
	var docs []packageDoc
	for {
		var doc packageDoc
		err := dec.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode package: %w", err)
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("model contains no packages")
	}

	l := &loader{builtins: Builtins()}
	roots := make([]*Package, 0, len(docs))
	for _, doc := range docs {
		roots = append(roots, l.buildPackage(doc, nil))
	}
	l.roots = roots
	for _, fix := range l.fixups {
		if err := fix(); err != nil {
			l.errs = append(l.errs, err)
		}
	}
	if len(l.errs) > 0 {
		return nil, joinErrors(l.errs)
	}
	return roots, nil
}

// Builtins returns a fresh package holding the standard Ecore data types.
func Builtins() *Package {
	p := NewPackage("ecore", Namespace)
	for _, dt := range [][2]string{
		{"EString", "string"},
		{"EInt", "int"},
		{"ELong", "int64"},
		{"EFloat", "float32"},
		{"EDouble", "float64"},
		{"EBoolean", "bool"},
		{"EDate", "time.Time"},
		{"EByteArray", "[]byte"},
	} {
		p.NewDataType(dt[0], dt[1])
	}
	return p
}

type loader struct {
	builtins *Package
	roots    []*Package
	fixups   []func() error
	errs     []error
}

func (l *loader) buildPackage(doc packageDoc, super *Package) *Package {
	p := NewPackage(doc.Name, doc.NsURI)
	p.Doc = doc.Doc
	p.Annotations = annotations(doc.Annotations)
	if super != nil {
		super.AddSubpackage(p)
	}
	for _, cd := range doc.Classifiers {
		l.buildClassifier(p, cd)
	}
	for _, sd := range doc.Subpackages {
		l.buildPackage(sd, p)
	}
	return p
}

func (l *loader) buildClassifier(p *Package, cd classifierDoc) {
	switch {
	case cd.Class != "":
		c := p.NewClass(cd.Class)
		c.Doc, c.Abstract, c.Interface = cd.Doc, cd.Abstract, cd.Interface
		c.Annotations = annotations(cd.Annotations)
		for _, st := range cd.SuperTypes {
			l.later(func() error {
				t, err := l.resolveClass(p, st, c.Name)
				if err != nil {
					return err
				}
				c.SuperTypes = append(c.SuperTypes, t)
				return nil
			})
		}
		for _, ad := range cd.Attributes {
			a := &Attribute{Name: ad.Name, Doc: ad.Doc, Many: ad.Many}
			c.Attributes = append(c.Attributes, a)
			l.laterType(p, ad.Type, c.Name+"."+ad.Name, func(t Classifier) { a.Type = t })
		}
		for _, rd := range cd.References {
			r := &ReferenceFeature{Name: rd.Name, Doc: rd.Doc, Many: rd.Many, Containment: rd.Containment}
			c.References = append(c.References, r)
			l.later(func() error {
				t, err := l.resolveClass(p, rd.Type, c.Name+"."+rd.Name)
				if err != nil {
					return err
				}
				r.Type = t
				return nil
			})
		}
		for _, od := range cd.Operations {
			o := &Operation{Name: od.Name, Doc: od.Doc}
			c.Operations = append(c.Operations, o)
			owner := c.Name + "." + od.Name
			l.laterType(p, od.Type, owner, func(t Classifier) { o.Type = t })
			for _, pd := range od.Parameters {
				param := &Parameter{Name: pd.Name, Doc: pd.Doc}
				o.Parameters = append(o.Parameters, param)
				l.laterType(p, pd.Type, owner+"("+pd.Name+")", func(t Classifier) { param.Type = t })
			}
		}
	case cd.DataType != "":
		d := p.NewDataType(cd.DataType, cd.InstanceType)
		d.Doc = cd.Doc
		d.Annotations = annotations(cd.Annotations)
	case cd.Enum != "":
		e := &Enum{Name: cd.Enum, Doc: cd.Doc, Annotations: annotations(cd.Annotations)}
		for i, ld := range cd.Literals {
			v := i
			if ld.Value != nil {
				v = *ld.Value
			}
			e.Literals = append(e.Literals, &EnumLiteral{Name: ld.Name, Value: v, Doc: ld.Doc})
		}
		p.AddClassifier(e)
	default:
		l.errs = append(l.errs, fmt.Errorf("package %s: classifier without class, datatype or enum key", p.Name))
	}
}

func (l *loader) later(fn func() error) { l.fixups = append(l.fixups, fn) }

// laterType schedules resolution of an optional type name.
func (l *loader) laterType(p *Package, name, owner string, set func(Classifier)) {
	if name == "" {
		return
	}
	l.later(func() error {
		t, err := l.resolve(p, name, owner)
		if err != nil {
			return err
		}
		set(t)
		return nil
	})
}

func (l *loader) resolveClass(p *Package, name, owner string) (*Class, error) {
	t, err := l.resolve(p, name, owner)
	if err != nil {
		return nil, err
	}
	c, ok := t.(*Class)
	if !ok {
		return nil, fmt.Errorf("%s: type %s is not a class", owner, name)
	}
	return c, nil
}

// resolve looks a type name up: "Name@nsURI" is exact; a bare name is searched
// in the current package, then in every loaded package, then in the builtins.
func (l *loader) resolve(p *Package, name, owner string) (Classifier, error) {
	if typeName, ns, ok := strings.Cut(name, "@"); ok {
		for _, pkg := range l.allPackages() {
			if pkg.NsURI == ns {
				if c := pkg.Classifier(typeName); c != nil {
					return c, nil
				}
			}
		}
		return nil, fmt.Errorf("%s: unknown type %s", owner, name)
	}
	if c := p.Classifier(name); c != nil {
		return c, nil
	}
	for _, pkg := range l.allPackages() {
		if c := pkg.Classifier(name); c != nil {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%s: unknown type %s", owner, name)
}

func (l *loader) allPackages() []*Package {
	var out []*Package
	var walk func(p *Package)
	walk = func(p *Package) {
		out = append(out, p)
		for _, s := range p.Subpackages {
			walk(s)
		}
	}
	for _, r := range l.roots {
		walk(r)
	}
	return append(out, l.builtins)
}

func annotations(docs []annotationDoc) []*Annotation {
	var out []*Annotation
	for _, d := range docs {
		out = append(out, &Annotation{Source: d.Source, Details: d.Details})
	}
	return out
}

type loadErrors []error

func (e loadErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func (e loadErrors) Unwrap() []error { return e }

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return loadErrors(errs)
}
