// Package metamodel defines the read-only introspection contract the documentation
// pipeline needs from an object model. Concrete metamodels implement Introspector;
// the pipeline never depends on a concrete type hierarchy.
package metamodel

import "fmt"

// Object is an element of the source model. Identity is Go equality, so
// implementations should hand out pointers: two structurally equal values are
// still two elements when they live at different addresses.
type Object any

// Classifier names the type of an object.
type Classifier struct {
	Name      string
	Namespace string
}

// String renders the classifier as name@namespace.
func (c Classifier) String() string {
	if c.Namespace == "" {
		return c.Name
	}
	return c.Name + "@" + c.Namespace
}

// KeyAttribute is an attribute of the referenced objects whose values identify
// an object within a multi-valued reference.
type KeyAttribute struct {
	Name string
}

// Reference describes one outgoing reference of an object.
type Reference struct {
	Name string
	// Ordered is true when the order of values is significant.
	Ordered bool
	// Unique is true when a value may appear at most once.
	Unique bool
	// Many is true for collection-valued references.
	Many bool
	// Containment is true when the referencing object owns the values.
	Containment bool
	// Keys optionally lists the key attributes of the referenced objects.
	Keys []KeyAttribute
}

func (r Reference) String() string { return r.Name }

// Introspector gives reflective, read-only access to a model.
type Introspector interface {
	// ClassifierOf returns the type of obj.
	ClassifierOf(obj Object) (Classifier, error)
	// ReferencesOf returns the outgoing references of obj in declaration order.
	ReferencesOf(obj Object) ([]Reference, error)
	// ValueOf returns the values of ref on obj in ordinal order.
	// Single-valued references return zero or one value.
	ValueOf(obj Object, ref Reference) ([]Object, error)
	// AttributeOf returns the value of a plain attribute, used for key attributes.
	AttributeOf(obj Object, name string) (any, error)
}

// Named is implemented by elements that carry a name.
type Named interface {
	ElementName() string
}

// TypeRef identifies a type by name and owning namespace.
type TypeRef struct {
	Name      string
	Namespace string
}

// Signature is implemented by operation-like elements whose identity includes
// their parameter types.
type Signature interface {
	Named
	ParameterTypes() []TypeRef
}

// Documented is implemented by elements carrying markdown documentation.
type Documented interface {
	Documentation() string
}

// NameOf returns the element name, or "" when obj is not Named.
func NameOf(obj Object) string {
	if n, ok := obj.(Named); ok {
		return n.ElementName()
	}
	return ""
}

// Describe returns a short human readable description of obj for diagnostics.
func Describe(in Introspector, obj Object) string {
	name := NameOf(obj)
	c, err := in.ClassifierOf(obj)
	if err != nil {
		if name != "" {
			return name
		}
		return fmt.Sprintf("%T", obj)
	}
	if name == "" {
		return c.Name
	}
	return c.Name + " " + name
}

// UnsupportedError reports an object the introspector does not know.
type UnsupportedError struct {
	Object Object
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported model object %T", e.Object)
}

// UnknownReferenceError reports a reference the object does not declare.
type UnknownReferenceError struct {
	Object    Object
	Reference string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("%T has no reference %q", e.Object, e.Reference)
}
