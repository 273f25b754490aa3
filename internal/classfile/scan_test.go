package classfile_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modpatcher/internal/classfile"
	"modpatcher/internal/classfile/classfiletest"
)

func TestScan_RootSuperclassMeansNoSuper(t *testing.T) {
	b := classfiletest.Build(t, "a/X", "java/lang/Object", classfiletest.WithMethod("run", "()V", 16))

	d, err := classfile.Scan(b)
	require.NoError(t, err)
	assert.Equal(t, "a.X", d.Name)
	assert.False(t, d.HasSuper())
	assert.Empty(t, d.SuperName)
}

func TestScan_NamedSuperclass(t *testing.T) {
	b := classfiletest.Build(t, "a/b/Y", "a/X", classfiletest.WithInterfaces("java/lang/Runnable"))

	d, err := classfile.Scan(b)
	require.NoError(t, err)
	assert.Equal(t, classfile.Descriptor{Name: "a.b.Y", SuperName: "a.X"}, d)
	assert.True(t, d.HasSuper())
}

func TestScan_ObjectItselfHasNoSuper(t *testing.T) {
	b := classfiletest.Build(t, "java/lang/Object", "")

	d, err := classfile.Scan(b)
	require.NoError(t, err)
	assert.Equal(t, "java.lang.Object", d.Name)
	assert.False(t, d.HasSuper())
}

func TestScan_IgnoresBytesAfterHeader(t *testing.T) {
	full := classfiletest.Build(t, "a/Z", "a/X", classfiletest.WithInterfaces("a/I", "a/J"))
	want, err := classfile.Scan(full)
	require.NoError(t, err)

	// A class with no members or attributes ends with three zero counts;
	// everything before them is the header.
	header := full[:len(full)-6]

	tails := map[string][]byte{
		"truncated":   nil,
		"garbage":     {0xFF, 0xFF, 0xDE, 0xAD, 0xBE, 0xEF},
		"short count": {0x00},
	}
	for name, tail := range tails {
		t.Run(name, func(t *testing.T) {
			b := append(append([]byte(nil), header...), tail...)
			got, err := classfile.Scan(b)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			_, err = classfile.Decode(b)
			assert.Error(t, err, "a full decode must notice the damaged tail")
		})
	}
}

func TestScan_MalformedHeaderIsFatal(t *testing.T) {
	b := classfiletest.Build(t, "a/X", "a/Y")

	cases := map[string][]byte{
		"bad magic":     append([]byte{0xCA, 0xFE, 0xBA, 0xBF}, b[4:]...),
		"empty":         {},
		"cut in pool":   b[:12],
		"zero pool cnt": append(append([]byte(nil), b[:8]...), 0, 0),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := classfile.Scan(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, classfile.ErrMalformed))

			var fe *classfile.FormatError
			assert.True(t, errors.As(err, &fe))
		})
	}
}

type haltAfterFirstField struct {
	classfile.BaseVisitor
	fields, methods int
}

func (v *haltAfterFirstField) VisitField(classfile.Member) classfile.Control {
	v.fields++
	return classfile.Halt
}

func (v *haltAfterFirstField) VisitMethod(classfile.Member) classfile.Control {
	v.methods++
	return classfile.Continue
}

func TestAccept_HaltEndsWalkWithoutError(t *testing.T) {
	b := classfiletest.Build(t, "a/X", "java/lang/Object",
		classfiletest.WithField("a", "I"),
		classfiletest.WithField("b", "J"),
		classfiletest.WithMethod("m", "()V", 4),
	)

	v := &haltAfterFirstField{}
	require.NoError(t, classfile.Accept(b, v))
	assert.Equal(t, 1, v.fields)
	assert.Zero(t, v.methods)
}
