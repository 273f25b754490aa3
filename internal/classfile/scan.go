package classfile

import "strings"

// RootClass is the implicit superclass of every class. Edges to it carry no
// information and are reported as "no superclass".
const RootClass = "java.lang.Object"

// Descriptor is the {name, superclass} pair of one class, in dotted form.
// SuperName is empty when the superclass is RootClass or absent.
type Descriptor struct {
	Name      string
	SuperName string
}

// HasSuper reports whether the class has a meaningful superclass.
func (d Descriptor) HasSuper() bool { return d.SuperName != "" }

type headerVisitor struct {
	BaseVisitor
	header Header
}

func (v *headerVisitor) VisitHeader(h Header) Control {
	v.header = h
	return Halt
}

// Scan extracts the class name and superclass from b. The walk stops right
// after the interfaces table; fields, methods and attributes are not read.
func Scan(b []byte) (Descriptor, error) {
	var v headerVisitor
	if err := Accept(b, &v); err != nil {
		return Descriptor{}, err
	}
	d := Descriptor{Name: DottedName(v.header.Name)}
	if super := DottedName(v.header.SuperName); super != RootClass {
		d.SuperName = super
	}
	return d, nil
}

// DottedName converts an internal name ("a/b/C") to dotted form ("a.b.C").
func DottedName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

// InternalName converts a dotted name to internal form.
func InternalName(dotted string) string {
	return strings.ReplaceAll(dotted, ".", "/")
}
