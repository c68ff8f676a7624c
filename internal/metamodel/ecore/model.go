// Package ecore is an Ecore-like metamodel: packages of classes, data types and
// enums, with attributes, references and operations. It implements the
// metamodel.Introspector contract and loads models from YAML.
package ecore

import "git.home.luguber.info/inful/modeldoc/internal/metamodel"

// Namespace is the namespace of the built-in classifiers (EClass, EString, ...).
const Namespace = "http://www.eclipse.org/emf/2002/Ecore"

// Classifier is a type declared in a package: a Class, DataType or Enum.
type Classifier interface {
	metamodel.Named
	metamodel.Documented
	Package() *Package
	setPackage(p *Package)
}

// Annotation attaches free-form details to an element, keyed by Source.
type Annotation struct {
	Source  string
	Details map[string]string
}

// Package groups classifiers and nested packages.
type Package struct {
	Name        string
	NsURI       string
	Doc         string
	Classifiers []Classifier
	Subpackages []*Package
	Annotations []*Annotation

	super *Package
}

// NewPackage creates an empty package.
func NewPackage(name, nsURI string) *Package {
	return &Package{Name: name, NsURI: nsURI}
}

func (p *Package) ElementName() string   { return p.Name }
func (p *Package) Documentation() string { return p.Doc }

// SuperPackage returns the enclosing package, or nil for a root package.
func (p *Package) SuperPackage() *Package { return p.super }

// AddClassifier appends c and makes p its owner.
func (p *Package) AddClassifier(c Classifier) {
	c.setPackage(p)
	p.Classifiers = append(p.Classifiers, c)
}

// AddSubpackage appends sub and makes p its owner.
func (p *Package) AddSubpackage(sub *Package) {
	sub.super = p
	p.Subpackages = append(p.Subpackages, sub)
}

// Classifier finds a classifier declared directly in p.
func (p *Package) Classifier(name string) Classifier {
	for _, c := range p.Classifiers {
		if c.ElementName() == name {
			return c
		}
	}
	return nil
}

// NewClass creates a class owned by p.
func (p *Package) NewClass(name string) *Class {
	c := &Class{Name: name}
	p.AddClassifier(c)
	return c
}

// NewDataType creates a data type owned by p.
func (p *Package) NewDataType(name, instanceType string) *DataType {
	d := &DataType{Name: name, InstanceType: instanceType}
	p.AddClassifier(d)
	return d
}

// NewEnum creates an enum owned by p.
func (p *Package) NewEnum(name string, literals ...string) *Enum {
	e := &Enum{Name: name}
	for i, l := range literals {
		e.Literals = append(e.Literals, &EnumLiteral{Name: l, Value: i})
	}
	p.AddClassifier(e)
	return e
}

// Class is a classifier with structural features and operations.
type Class struct {
	Name        string
	Doc         string
	Abstract    bool
	Interface   bool
	SuperTypes  []*Class
	Attributes  []*Attribute
	References  []*ReferenceFeature
	Operations  []*Operation
	Annotations []*Annotation

	pkg *Package
}

func (c *Class) ElementName() string   { return c.Name }
func (c *Class) Documentation() string { return c.Doc }
func (c *Class) Package() *Package     { return c.pkg }
func (c *Class) setPackage(p *Package) { c.pkg = p }

// AddAttribute appends an attribute and returns it.
func (c *Class) AddAttribute(name string, typ Classifier) *Attribute {
	a := &Attribute{Name: name, Type: typ}
	c.Attributes = append(c.Attributes, a)
	return a
}

// AddReference appends a reference feature and returns it.
func (c *Class) AddReference(name string, typ *Class, containment, many bool) *ReferenceFeature {
	r := &ReferenceFeature{Name: name, Type: typ, Containment: containment, Many: many}
	c.References = append(c.References, r)
	return r
}

// AddOperation appends an operation and returns it.
func (c *Class) AddOperation(name string, typ Classifier, params ...*Parameter) *Operation {
	o := &Operation{Name: name, Type: typ, Parameters: params}
	c.Operations = append(c.Operations, o)
	return o
}

// DataType is a classifier for plain values.
type DataType struct {
	Name         string
	Doc          string
	InstanceType string
	Annotations  []*Annotation

	pkg *Package
}

func (d *DataType) ElementName() string   { return d.Name }
func (d *DataType) Documentation() string { return d.Doc }
func (d *DataType) Package() *Package     { return d.pkg }
func (d *DataType) setPackage(p *Package) { d.pkg = p }

// Enum is a classifier with a fixed set of literals.
type Enum struct {
	Name        string
	Doc         string
	Literals    []*EnumLiteral
	Annotations []*Annotation

	pkg *Package
}

func (e *Enum) ElementName() string   { return e.Name }
func (e *Enum) Documentation() string { return e.Doc }
func (e *Enum) Package() *Package     { return e.pkg }
func (e *Enum) setPackage(p *Package) { e.pkg = p }

// EnumLiteral is one value of an Enum.
type EnumLiteral struct {
	Name  string
	Value int
	Doc   string
}

func (l *EnumLiteral) ElementName() string   { return l.Name }
func (l *EnumLiteral) Documentation() string { return l.Doc }

// Attribute is a structural feature typed by a data type or enum.
type Attribute struct {
	Name string
	Doc  string
	Type Classifier
	Many bool
}

func (a *Attribute) ElementName() string   { return a.Name }
func (a *Attribute) Documentation() string { return a.Doc }

// ReferenceFeature is a structural feature typed by a class.
type ReferenceFeature struct {
	Name        string
	Doc         string
	Type        *Class
	Containment bool
	Many        bool
}

func (r *ReferenceFeature) ElementName() string   { return r.Name }
func (r *ReferenceFeature) Documentation() string { return r.Doc }

// Operation is a behavioral feature. Operations sharing a name are told apart
// by their parameter types.
type Operation struct {
	Name       string
	Doc        string
	Type       Classifier
	Parameters []*Parameter
}

func (o *Operation) ElementName() string   { return o.Name }
func (o *Operation) Documentation() string { return o.Doc }

// ParameterTypes returns name and namespace of each parameter type in order.
func (o *Operation) ParameterTypes() []metamodel.TypeRef {
	refs := make([]metamodel.TypeRef, 0, len(o.Parameters))
	for _, p := range o.Parameters {
		refs = append(refs, typeRef(p.Type))
	}
	return refs
}

// Parameter is a typed operation parameter.
type Parameter struct {
	Name string
	Doc  string
	Type Classifier
}

// NewParameter creates a parameter.
func NewParameter(name string, typ Classifier) *Parameter {
	return &Parameter{Name: name, Type: typ}
}

func (p *Parameter) ElementName() string   { return p.Name }
func (p *Parameter) Documentation() string { return p.Doc }

func typeRef(c Classifier) metamodel.TypeRef {
	if c == nil {
		return metamodel.TypeRef{}
	}
	ref := metamodel.TypeRef{Name: c.ElementName()}
	if pkg := c.Package(); pkg != nil {
		ref.Namespace = pkg.NsURI
	}
	return ref
}
