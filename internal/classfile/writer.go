package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var be = binary.BigEndian

type poolKey struct {
	tag  uint8
	a, b uint16
	bits uint64
	text string
}

// pool interns constants in first-use order, so the same walk over the same
// Class always yields the same bytes.
type pool struct {
	buf   []byte
	next  int
	index map[poolKey]uint16
	err   error
}

func newPool() *pool {
	return &pool{next: 1, index: make(map[poolKey]uint16)}
}

func (p *pool) intern(k poolKey, body func([]byte) []byte) uint16 {
	if idx, ok := p.index[k]; ok {
		return idx
	}
	if p.err != nil {
		return 0
	}
	slots := 1
	if k.tag == TagLong || k.tag == TagDouble {
		slots = 2
	}
	if p.next+slots > 0xFFFF {
		p.err = errors.New("constant pool overflow")
		return 0
	}
	idx := uint16(p.next)
	p.buf = append(p.buf, k.tag)
	p.buf = body(p.buf)
	p.index[k] = idx
	p.next += slots
	return idx
}

func (p *pool) utf8(s string) uint16 {
	if len(s) > 0xFFFF {
		if p.err == nil {
			p.err = fmt.Errorf("utf8 constant of %d bytes is too long", len(s))
		}
		return 0
	}
	return p.intern(poolKey{tag: TagUtf8, text: s}, func(b []byte) []byte {
		b = be.AppendUint16(b, uint16(len(s)))
		return append(b, s...)
	})
}

func (p *pool) ref(tag uint8, a uint16) uint16 {
	return p.intern(poolKey{tag: tag, a: a}, func(b []byte) []byte {
		return be.AppendUint16(b, a)
	})
}

func (p *pool) class(name string) uint16 {
	return p.ref(TagClass, p.utf8(name))
}

func (p *pool) nameAndType(name, desc string) uint16 {
	n, d := p.utf8(name), p.utf8(desc)
	return p.intern(poolKey{tag: TagNameAndType, a: n, b: d}, func(b []byte) []byte {
		b = be.AppendUint16(b, n)
		return be.AppendUint16(b, d)
	})
}

func (p *pool) constant(c Constant) uint16 {
	switch c.Kind {
	case TagInteger, TagFloat:
		return p.intern(poolKey{tag: c.Kind, bits: c.Bits}, func(b []byte) []byte {
			return be.AppendUint32(b, uint32(c.Bits))
		})
	case TagLong, TagDouble:
		return p.intern(poolKey{tag: c.Kind, bits: c.Bits}, func(b []byte) []byte {
			return be.AppendUint64(b, c.Bits)
		})
	case TagString:
		return p.ref(TagString, p.utf8(c.Text))
	case TagUtf8:
		return p.utf8(c.Text)
	}
	if p.err == nil {
		p.err = fmt.Errorf("constant kind %d is not loadable", c.Kind)
	}
	return 0
}

type writer struct {
	pool *pool
	err  error
}

// Encode serializes c with a constant pool that holds exactly the constants
// c refers to.
func Encode(c *Class) ([]byte, error) {
	if c == nil {
		return nil, errors.New("class is nil")
	}
	w := &writer{pool: newPool()}
	body := w.class(c)
	if w.err != nil {
		return nil, w.err
	}
	if w.pool.err != nil {
		return nil, w.pool.err
	}

	out := make([]byte, 0, 10+len(w.pool.buf)+len(body))
	out = be.AppendUint32(out, magic)
	out = be.AppendUint16(out, c.Minor)
	out = be.AppendUint16(out, c.Major)
	out = be.AppendUint16(out, uint16(w.pool.next))
	out = append(out, w.pool.buf...)
	return append(out, body...), nil
}

func (w *writer) count(b []byte, n int, max int) []byte {
	if n > max {
		if w.err == nil {
			w.err = fmt.Errorf("table of %d entries exceeds %d", n, max)
		}
		return b
	}
	if max == 0xFF {
		return append(b, uint8(n))
	}
	return be.AppendUint16(b, uint16(n))
}

func (w *writer) class(c *Class) []byte {
	var b []byte
	b = be.AppendUint16(b, c.Access)
	b = be.AppendUint16(b, w.pool.class(c.Name))
	if c.SuperName == "" {
		b = be.AppendUint16(b, 0)
	} else {
		b = be.AppendUint16(b, w.pool.class(c.SuperName))
	}
	b = w.classes(b, c.Interfaces)
	b = w.count(b, len(c.Fields), 0xFFFF)
	for _, f := range c.Fields {
		b = w.member(b, f)
	}
	b = w.count(b, len(c.Methods), 0xFFFF)
	for _, m := range c.Methods {
		b = w.member(b, m)
	}
	return w.attributes(b, c.Attributes)
}

func (w *writer) classes(b []byte, names []string) []byte {
	b = w.count(b, len(names), 0xFFFF)
	for _, n := range names {
		b = be.AppendUint16(b, w.pool.class(n))
	}
	return b
}

func (w *writer) optClass(b []byte, name string) []byte {
	if name == "" {
		return be.AppendUint16(b, 0)
	}
	return be.AppendUint16(b, w.pool.class(name))
}

func (w *writer) optUtf8(b []byte, s string) []byte {
	if s == "" {
		return be.AppendUint16(b, 0)
	}
	return be.AppendUint16(b, w.pool.utf8(s))
}

func (w *writer) member(b []byte, m Member) []byte {
	b = be.AppendUint16(b, m.Access)
	b = be.AppendUint16(b, w.pool.utf8(m.Name))
	b = be.AppendUint16(b, w.pool.utf8(m.Descriptor))
	return w.attributes(b, m.Attributes)
}

func (w *writer) attributes(b []byte, attrs []Attribute) []byte {
	b = w.count(b, len(attrs), 0xFFFF)
	for _, a := range attrs {
		name := w.pool.utf8(a.AttributeName())
		payload := w.payload(a)
		b = be.AppendUint16(b, name)
		b = be.AppendUint32(b, uint32(len(payload)))
		b = append(b, payload...)
	}
	return b
}

func (w *writer) payload(a Attribute) []byte {
	var b []byte
	switch a := a.(type) {
	case ConstantValue:
		b = be.AppendUint16(b, w.pool.constant(a.Value))
	case Signature:
		b = be.AppendUint16(b, w.pool.utf8(a.Value))
	case Exceptions:
		b = w.classes(b, a.Classes)
	case Deprecated, Synthetic:
	case InnerClasses:
		b = w.count(b, len(a.Classes), 0xFFFF)
		for _, ic := range a.Classes {
			b = be.AppendUint16(b, w.pool.class(ic.Name))
			b = w.optClass(b, ic.Outer)
			b = w.optUtf8(b, ic.InnerName)
			b = be.AppendUint16(b, ic.Access)
		}
	case EnclosingMethod:
		b = be.AppendUint16(b, w.pool.class(a.Class))
		if a.MethodName == "" {
			b = be.AppendUint16(b, 0)
		} else {
			b = be.AppendUint16(b, w.pool.nameAndType(a.MethodName, a.MethodDescriptor))
		}
	case Annotations:
		b = w.annotations(b, a.Annotations)
	case ParameterAnnotations:
		b = w.count(b, len(a.Parameters), 0xFF)
		for _, p := range a.Parameters {
			b = w.annotations(b, p)
		}
	case TypeAnnotations:
		b = w.count(b, len(a.Annotations), 0xFFFF)
		for _, ta := range a.Annotations {
			b = append(b, ta.TargetType)
			b = append(b, ta.Target...)
			if len(ta.Path) == 0 {
				b = append(b, 0)
			} else {
				b = append(b, ta.Path...)
			}
			b = w.annotation(b, ta.Annotation)
		}
	case AnnotationDefault:
		b = w.elementValue(b, a.Value)
	case MethodParameters:
		b = w.count(b, len(a.Parameters), 0xFF)
		for _, p := range a.Parameters {
			b = w.optUtf8(b, p.Name)
			b = be.AppendUint16(b, p.Access)
		}
	case NestHost:
		b = be.AppendUint16(b, w.pool.class(a.Class))
	case NestMembers:
		b = w.classes(b, a.Classes)
	case PermittedSubclasses:
		b = w.classes(b, a.Classes)
	case Record:
		b = w.count(b, len(a.Components), 0xFFFF)
		for _, rc := range a.Components {
			b = be.AppendUint16(b, w.pool.utf8(rc.Name))
			b = be.AppendUint16(b, w.pool.utf8(rc.Descriptor))
			b = w.attributes(b, rc.Attributes)
		}
	case Raw:
		b = append(b, a.Data...)
	default:
		if w.err == nil {
			w.err = fmt.Errorf("cannot encode attribute %T", a)
		}
	}
	return b
}

func (w *writer) annotations(b []byte, anns []Annotation) []byte {
	b = w.count(b, len(anns), 0xFFFF)
	for _, a := range anns {
		b = w.annotation(b, a)
	}
	return b
}

func (w *writer) annotation(b []byte, a Annotation) []byte {
	b = be.AppendUint16(b, w.pool.utf8(a.Type))
	b = w.count(b, len(a.Elements), 0xFFFF)
	for _, e := range a.Elements {
		b = be.AppendUint16(b, w.pool.utf8(e.Name))
		b = w.elementValue(b, e.Value)
	}
	return b
}

func (w *writer) elementValue(b []byte, v ElementValue) []byte {
	b = append(b, v.Tag)
	switch v.Tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		b = be.AppendUint16(b, w.pool.constant(v.Const))
	case 's':
		b = be.AppendUint16(b, w.pool.utf8(v.Const.Text))
	case 'e':
		b = be.AppendUint16(b, w.pool.utf8(v.EnumType))
		b = be.AppendUint16(b, w.pool.utf8(v.EnumName))
	case 'c':
		b = be.AppendUint16(b, w.pool.utf8(v.Class))
	case '@':
		if v.Annotation == nil {
			if w.err == nil {
				w.err = errors.New("nested annotation element has no annotation")
			}
			return b
		}
		b = w.annotation(b, *v.Annotation)
	case '[':
		b = w.count(b, len(v.Array), 0xFFFF)
		for _, e := range v.Array {
			b = w.elementValue(b, e)
		}
	default:
		if w.err == nil {
			w.err = fmt.Errorf("unknown element value tag %q", v.Tag)
		}
	}
	return b
}
