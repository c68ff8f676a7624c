package ecore

import (
	"git.home.luguber.info/inful/modeldoc/internal/metamodel"
)

var (
	refClassifiers = containment("eClassifiers")
	refSubpackages = containment("eSubpackages")
	refAttributes  = containment("eAttributes")
	refReferences  = containment("eReferences")
	refOperations  = containment("eOperations")
	refParameters  = containment("eParameters")
	refLiterals    = containment("eLiterals")
	refAnnotations = metamodel.Reference{
		Name: "eAnnotations", Ordered: true, Unique: true, Many: true, Containment: true,
		Keys: []metamodel.KeyAttribute{{Name: "source"}},
	}
	refSuperTypes = metamodel.Reference{Name: "eSuperTypes", Ordered: true, Unique: true, Many: true}
	refType       = metamodel.Reference{Name: "eType", Unique: true}
)

func containment(name string) metamodel.Reference {
	return metamodel.Reference{Name: name, Ordered: true, Unique: true, Many: true, Containment: true}
}

// Introspector implements metamodel.Introspector for this package's elements.
type Introspector struct{}

var _ metamodel.Introspector = Introspector{}

// ClassifierOf returns the Ecore classifier of obj.
func (Introspector) ClassifierOf(obj metamodel.Object) (metamodel.Classifier, error) {
	name := ""
	switch obj.(type) {
	case *Package:
		name = "EPackage"
	case *Class:
		name = "EClass"
	case *DataType:
		name = "EDataType"
	case *Enum:
		name = "EEnum"
	case *EnumLiteral:
		name = "EEnumLiteral"
	case *Attribute:
		name = "EAttribute"
	case *ReferenceFeature:
		name = "EReference"
	case *Operation:
		name = "EOperation"
	case *Parameter:
		name = "EParameter"
	case *Annotation:
		name = "EAnnotation"
	default:
		return metamodel.Classifier{}, &metamodel.UnsupportedError{Object: obj}
	}
	return metamodel.Classifier{Name: name, Namespace: Namespace}, nil
}

// ReferencesOf returns the references of obj in declaration order.
func (Introspector) ReferencesOf(obj metamodel.Object) ([]metamodel.Reference, error) {
	switch obj.(type) {
	case *Package:
		return []metamodel.Reference{refClassifiers, refSubpackages, refAnnotations}, nil
	case *Class:
		return []metamodel.Reference{refSuperTypes, refAttributes, refReferences, refOperations, refAnnotations}, nil
	case *DataType:
		return []metamodel.Reference{refAnnotations}, nil
	case *Enum:
		return []metamodel.Reference{refLiterals, refAnnotations}, nil
	case *Attribute, *ReferenceFeature, *Parameter:
		return []metamodel.Reference{refType}, nil
	case *Operation:
		return []metamodel.Reference{refType, refParameters}, nil
	case *EnumLiteral, *Annotation:
		return nil, nil
	default:
		return nil, &metamodel.UnsupportedError{Object: obj}
	}
}

// ValueOf returns the values of ref on obj.
func (Introspector) ValueOf(obj metamodel.Object, ref metamodel.Reference) ([]metamodel.Object, error) {
	switch o := obj.(type) {
	case *Package:
		switch ref.Name {
		case refClassifiers.Name:
			return objects(o.Classifiers), nil
		case refSubpackages.Name:
			return objects(o.Subpackages), nil
		case refAnnotations.Name:
			return objects(o.Annotations), nil
		}
	case *Class:
		switch ref.Name {
		case refSuperTypes.Name:
			return objects(o.SuperTypes), nil
		case refAttributes.Name:
			return objects(o.Attributes), nil
		case refReferences.Name:
			return objects(o.References), nil
		case refOperations.Name:
			return objects(o.Operations), nil
		case refAnnotations.Name:
			return objects(o.Annotations), nil
		}
	case *DataType:
		if ref.Name == refAnnotations.Name {
			return objects(o.Annotations), nil
		}
	case *Enum:
		switch ref.Name {
		case refLiterals.Name:
			return objects(o.Literals), nil
		case refAnnotations.Name:
			return objects(o.Annotations), nil
		}
	case *Attribute:
		if ref.Name == refType.Name {
			return single(o.Type), nil
		}
	case *ReferenceFeature:
		if ref.Name == refType.Name {
			if o.Type == nil {
				return nil, nil
			}
			return []metamodel.Object{o.Type}, nil
		}
	case *Operation:
		switch ref.Name {
		case refType.Name:
			return single(o.Type), nil
		case refParameters.Name:
			return objects(o.Parameters), nil
		}
	case *Parameter:
		if ref.Name == refType.Name {
			return single(o.Type), nil
		}
	case *EnumLiteral, *Annotation:
	default:
		return nil, &metamodel.UnsupportedError{Object: obj}
	}
	return nil, &metamodel.UnknownReferenceError{Object: obj, Reference: ref.Name}
}

// AttributeOf returns plain attribute values.
func (Introspector) AttributeOf(obj metamodel.Object, name string) (any, error) {
	if name == "name" {
		if n, ok := obj.(metamodel.Named); ok {
			return n.ElementName(), nil
		}
	}
	switch o := obj.(type) {
	case *Package:
		if name == "nsURI" {
			return o.NsURI, nil
		}
	case *Class:
		switch name {
		case "abstract":
			return o.Abstract, nil
		case "interface":
			return o.Interface, nil
		}
	case *DataType:
		if name == "instanceType" {
			return o.InstanceType, nil
		}
	case *EnumLiteral:
		if name == "value" {
			return o.Value, nil
		}
	case *Attribute:
		if name == "many" {
			return o.Many, nil
		}
	case *ReferenceFeature:
		switch name {
		case "many":
			return o.Many, nil
		case "containment":
			return o.Containment, nil
		}
	case *Annotation:
		if name == "source" {
			return o.Source, nil
		}
	}
	return nil, &metamodel.UnknownReferenceError{Object: obj, Reference: name}
}

func objects[T any](values []T) []metamodel.Object {
	out := make([]metamodel.Object, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func single(c Classifier) []metamodel.Object {
	if c == nil {
		return nil
	}
	return []metamodel.Object{c}
}
