// Package classfiletest assembles small classfiles for tests.
package classfiletest

import (
	"encoding/binary"
	"testing"

	"modpatcher/internal/classfile"
)

// Java 8 class version.
const (
	Minor = 0
	Major = 52
)

// Option mutates the class before it is encoded.
type Option func(*classfile.Class)

// WithMethod adds a public method. A positive bodySize attaches a Code
// attribute with that many bytes of bytecode.
func WithMethod(name, desc string, bodySize int) Option {
	return func(c *classfile.Class) {
		m := classfile.Member{Access: classfile.AccPublic, Name: name, Descriptor: desc}
		if bodySize > 0 {
			m.Attributes = append(m.Attributes, Code(bodySize))
		}
		c.Methods = append(c.Methods, m)
	}
}

// WithField adds a private field.
func WithField(name, desc string) Option {
	return func(c *classfile.Class) {
		c.Fields = append(c.Fields, classfile.Member{Access: classfile.AccPrivate, Name: name, Descriptor: desc})
	}
}

func WithInterfaces(names ...string) Option {
	return func(c *classfile.Class) { c.Interfaces = append(c.Interfaces, names...) }
}

func WithAttributes(attrs ...classfile.Attribute) Option {
	return func(c *classfile.Class) { c.Attributes = append(c.Attributes, attrs...) }
}

// New returns an unencoded class. Names are in internal form; an empty super
// leaves super_class as 0.
func New(name, super string, opts ...Option) *classfile.Class {
	c := &classfile.Class{
		Minor:     Minor,
		Major:     Major,
		Access:    classfile.AccPublic | classfile.AccSuper,
		Name:      name,
		SuperName: super,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Build encodes New(name, super, opts...) and fails the test on error.
func Build(t testing.TB, name, super string, opts ...Option) []byte {
	t.Helper()
	b, err := classfile.Encode(New(name, super, opts...))
	if err != nil {
		t.Fatalf("encoding %s: %v", name, err)
	}
	return b
}

// Code synthesizes a Code attribute of bodySize bytes: nops followed by a
// return. It references no constants besides its own name.
func Code(bodySize int) classfile.Raw {
	if bodySize < 1 {
		bodySize = 1
	}
	var b []byte
	b = binary.BigEndian.AppendUint16(b, 1) // max_stack
	b = binary.BigEndian.AppendUint16(b, 1) // max_locals
	b = binary.BigEndian.AppendUint32(b, uint32(bodySize))
	for i := 0; i < bodySize-1; i++ {
		b = append(b, 0x00)
	}
	b = append(b, 0xB1)
	b = binary.BigEndian.AppendUint16(b, 0) // exception_table_length
	b = binary.BigEndian.AppendUint16(b, 0) // attributes_count
	return classfile.Raw{Name: classfile.AttrCode, Data: b}
}
