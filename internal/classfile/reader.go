package classfile

import "encoding/binary"

const magic = 0xCAFEBABE

type poolEntry struct {
	tag  uint8
	a, b uint16
	bits uint64
	text string
}

// reader is a big-endian cursor with a sticky error: once a read fails,
// every later read returns a zero value and the first error is kept.
type reader struct {
	buf  []byte
	pos  int
	base int
	err  error
	pool []poolEntry
}

// Accept walks the classfile in b, calling v for each part in file order.
// It returns nil when v halts the walk or when the walk completes.
func Accept(b []byte, v Visitor) error {
	r := &reader{buf: b}
	h := r.readHeader()
	if r.err != nil {
		return r.err
	}
	if v.VisitHeader(h) == Halt {
		return nil
	}

	n := r.u2()
	for i := 0; i < int(n) && r.err == nil; i++ {
		m := r.readMember()
		if r.err != nil {
			break
		}
		if v.VisitField(m) == Halt {
			return nil
		}
	}

	n = r.u2()
	for i := 0; i < int(n) && r.err == nil; i++ {
		m := r.readMember()
		if r.err != nil {
			break
		}
		if v.VisitMethod(m) == Halt {
			return nil
		}
	}

	n = r.u2()
	for i := 0; i < int(n) && r.err == nil; i++ {
		a, ok := r.readAttribute()
		if r.err != nil || !ok {
			continue
		}
		if v.VisitAttribute(a) == Halt {
			return nil
		}
	}
	return r.err
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = formatErrorf(r.base+r.pos, format, args...)
	}
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.pos < n {
		r.fail("unexpected end of data (need %d bytes, have %d)", n, len(r.buf)-r.pos)
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) u1() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u2() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) u4() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) readHeader() Header {
	if m := r.u4(); r.err == nil && m != magic {
		r.fail("bad magic %#x", m)
	}
	var h Header
	h.Minor = r.u2()
	h.Major = r.u2()
	r.readPool()
	h.Access = r.u2()
	h.Name = r.classAt(r.u2())
	h.SuperName = r.optClassAt(r.u2())
	n := r.u2()
	if r.err == nil && n > 0 {
		h.Interfaces = make([]string, 0, n)
	}
	for i := 0; i < int(n) && r.err == nil; i++ {
		h.Interfaces = append(h.Interfaces, r.classAt(r.u2()))
	}
	return h
}

func (r *reader) readPool() {
	count := r.u2()
	if r.err != nil {
		return
	}
	if count == 0 {
		r.fail("constant pool count is zero")
		return
	}
	r.pool = make([]poolEntry, count)
	for i := 1; i < int(count); i++ {
		e := poolEntry{tag: r.u1()}
		switch e.tag {
		case TagUtf8:
			e.text = string(r.take(int(r.u2())))
		case TagInteger, TagFloat:
			e.bits = uint64(r.u4())
		case TagLong, TagDouble:
			hi := r.u4()
			lo := r.u4()
			e.bits = uint64(hi)<<32 | uint64(lo)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			e.a = r.u2()
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			e.a = r.u2()
			e.b = r.u2()
		case TagMethodHandle:
			e.a = uint16(r.u1())
			e.b = r.u2()
		default:
			r.fail("constant pool entry %d has unknown tag %d", i, e.tag)
		}
		if r.err != nil {
			return
		}
		r.pool[i] = e
		if e.tag == TagLong || e.tag == TagDouble {
			i++
		}
	}
}

func (r *reader) entry(idx uint16, want uint8) (poolEntry, bool) {
	if r.err != nil {
		return poolEntry{}, false
	}
	if idx == 0 || int(idx) >= len(r.pool) {
		r.fail("constant pool index %d out of range", idx)
		return poolEntry{}, false
	}
	e := r.pool[idx]
	if e.tag != want {
		r.fail("constant pool index %d: want tag %d, have %d", idx, want, e.tag)
		return poolEntry{}, false
	}
	return e, true
}

func (r *reader) utf8At(idx uint16) string {
	e, _ := r.entry(idx, TagUtf8)
	return e.text
}

func (r *reader) optUtf8At(idx uint16) string {
	if idx == 0 {
		return ""
	}
	return r.utf8At(idx)
}

func (r *reader) classAt(idx uint16) string {
	e, ok := r.entry(idx, TagClass)
	if !ok {
		return ""
	}
	return r.utf8At(e.a)
}

func (r *reader) optClassAt(idx uint16) string {
	if idx == 0 {
		return ""
	}
	return r.classAt(idx)
}

func (r *reader) constantOf(idx uint16, tag uint8) Constant {
	e, ok := r.entry(idx, tag)
	if !ok {
		return Constant{}
	}
	c := Constant{Kind: tag, Bits: e.bits}
	switch tag {
	case TagString:
		c.Text = r.utf8At(e.a)
	case TagUtf8:
		c.Text = e.text
	}
	return c
}

// constantAt resolves a ConstantValue operand, whose tag is implied by the
// pool entry itself.
func (r *reader) constantAt(idx uint16) Constant {
	if r.err != nil {
		return Constant{}
	}
	if idx == 0 || int(idx) >= len(r.pool) {
		r.fail("constant pool index %d out of range", idx)
		return Constant{}
	}
	switch tag := r.pool[idx].tag; tag {
	case TagInteger, TagFloat, TagLong, TagDouble, TagString:
		return r.constantOf(idx, tag)
	default:
		r.fail("constant pool index %d: tag %d is not a constant value", idx, tag)
		return Constant{}
	}
}

func (r *reader) readMember() Member {
	m := Member{Access: r.u2()}
	m.Name = r.utf8At(r.u2())
	m.Descriptor = r.utf8At(r.u2())
	m.Attributes = r.readAttributes()
	return m
}

func (r *reader) readAttributes() []Attribute {
	n := r.u2()
	var out []Attribute
	for i := 0; i < int(n) && r.err == nil; i++ {
		if a, ok := r.readAttribute(); ok {
			out = append(out, a)
		}
	}
	return out
}

// readAttribute reads one attribute. ok is false for attributes that are
// dropped: code, debug tables and parameter names, frames, bootstrap methods
// and unknown names.
func (r *reader) readAttribute() (a Attribute, ok bool) {
	name := r.utf8At(r.u2())
	length := r.u4()
	start := r.pos
	payload := r.take(int(length))
	if r.err != nil || !kept[name] {
		return nil, false
	}

	sub := &reader{buf: payload, base: r.base + start, pool: r.pool}
	a = sub.decodeAttribute(name)
	if sub.err == nil && sub.pos != len(payload) {
		sub.fail("%s attribute has %d trailing bytes", name, len(payload)-sub.pos)
	}
	if sub.err != nil {
		r.err = sub.err
		return nil, false
	}
	return a, true
}

var kept = map[string]bool{
	AttrConstantValue:                        true,
	AttrSignature:                            true,
	AttrExceptions:                           true,
	AttrDeprecated:                           true,
	AttrSynthetic:                            true,
	AttrInnerClasses:                         true,
	AttrEnclosingMethod:                      true,
	AttrRuntimeVisibleAnnotations:            true,
	AttrRuntimeInvisibleAnnotations:          true,
	AttrRuntimeVisibleParameterAnnotations:   true,
	AttrRuntimeInvisibleParameterAnnotations: true,
	AttrRuntimeVisibleTypeAnnotations:        true,
	AttrRuntimeInvisibleTypeAnnotations:      true,
	AttrAnnotationDefault:                    true,
	AttrNestHost:                             true,
	AttrNestMembers:                          true,
	AttrPermittedSubclasses:                  true,
	AttrRecord:                               true,
}

func (r *reader) decodeAttribute(name string) Attribute {
	switch name {
	case AttrConstantValue:
		return ConstantValue{Value: r.constantAt(r.u2())}
	case AttrSignature:
		return Signature{Value: r.utf8At(r.u2())}
	case AttrExceptions:
		return Exceptions{Classes: r.classList()}
	case AttrDeprecated:
		return Deprecated{}
	case AttrSynthetic:
		return Synthetic{}
	case AttrInnerClasses:
		n := r.u2()
		out := InnerClasses{Classes: make([]InnerClass, 0, n)}
		for i := 0; i < int(n) && r.err == nil; i++ {
			ic := InnerClass{Name: r.classAt(r.u2())}
			ic.Outer = r.optClassAt(r.u2())
			ic.InnerName = r.optUtf8At(r.u2())
			ic.Access = r.u2()
			out.Classes = append(out.Classes, ic)
		}
		return out
	case AttrEnclosingMethod:
		em := EnclosingMethod{Class: r.classAt(r.u2())}
		if nt := r.u2(); nt != 0 {
			if e, ok := r.entry(nt, TagNameAndType); ok {
				em.MethodName = r.utf8At(e.a)
				em.MethodDescriptor = r.utf8At(e.b)
			}
		}
		return em
	case AttrRuntimeVisibleAnnotations, AttrRuntimeInvisibleAnnotations:
		return Annotations{Visible: name == AttrRuntimeVisibleAnnotations, Annotations: r.annotations()}
	case AttrRuntimeVisibleParameterAnnotations, AttrRuntimeInvisibleParameterAnnotations:
		n := r.u1()
		out := ParameterAnnotations{Visible: name == AttrRuntimeVisibleParameterAnnotations}
		for i := 0; i < int(n) && r.err == nil; i++ {
			out.Parameters = append(out.Parameters, r.annotations())
		}
		return out
	case AttrRuntimeVisibleTypeAnnotations, AttrRuntimeInvisibleTypeAnnotations:
		n := r.u2()
		out := TypeAnnotations{Visible: name == AttrRuntimeVisibleTypeAnnotations}
		for i := 0; i < int(n) && r.err == nil; i++ {
			out.Annotations = append(out.Annotations, r.typeAnnotation())
		}
		return out
	case AttrAnnotationDefault:
		return AnnotationDefault{Value: r.elementValue()}
	case AttrNestHost:
		return NestHost{Class: r.classAt(r.u2())}
	case AttrNestMembers:
		return NestMembers{Classes: r.classList()}
	case AttrPermittedSubclasses:
		return PermittedSubclasses{Classes: r.classList()}
	case AttrRecord:
		n := r.u2()
		out := Record{Components: make([]RecordComponent, 0, n)}
		for i := 0; i < int(n) && r.err == nil; i++ {
			rc := RecordComponent{Name: r.utf8At(r.u2())}
			rc.Descriptor = r.utf8At(r.u2())
			rc.Attributes = r.readAttributes()
			out.Components = append(out.Components, rc)
		}
		return out
	}
	r.fail("no decoder for attribute %s", name)
	return nil
}

func (r *reader) classList() []string {
	n := r.u2()
	out := make([]string, 0, n)
	for i := 0; i < int(n) && r.err == nil; i++ {
		out = append(out, r.classAt(r.u2()))
	}
	return out
}

func (r *reader) annotations() []Annotation {
	n := r.u2()
	out := make([]Annotation, 0, n)
	for i := 0; i < int(n) && r.err == nil; i++ {
		out = append(out, r.annotation())
	}
	return out
}

func (r *reader) annotation() Annotation {
	a := Annotation{Type: r.utf8At(r.u2())}
	n := r.u2()
	for i := 0; i < int(n) && r.err == nil; i++ {
		p := ElementPair{Name: r.utf8At(r.u2())}
		p.Value = r.elementValue()
		a.Elements = append(a.Elements, p)
	}
	return a
}

func (r *reader) elementValue() ElementValue {
	v := ElementValue{Tag: r.u1()}
	if r.err != nil {
		return v
	}
	switch v.Tag {
	case 'B', 'C', 'I', 'S', 'Z':
		v.Const = r.constantOf(r.u2(), TagInteger)
	case 'D':
		v.Const = r.constantOf(r.u2(), TagDouble)
	case 'F':
		v.Const = r.constantOf(r.u2(), TagFloat)
	case 'J':
		v.Const = r.constantOf(r.u2(), TagLong)
	case 's':
		v.Const = r.constantOf(r.u2(), TagUtf8)
	case 'e':
		v.EnumType = r.utf8At(r.u2())
		v.EnumName = r.utf8At(r.u2())
	case 'c':
		v.Class = r.utf8At(r.u2())
	case '@':
		a := r.annotation()
		v.Annotation = &a
	case '[':
		n := r.u2()
		v.Array = make([]ElementValue, 0, n)
		for i := 0; i < int(n) && r.err == nil; i++ {
			v.Array = append(v.Array, r.elementValue())
		}
	default:
		r.fail("unknown element value tag %q", v.Tag)
	}
	return v
}

func (r *reader) typeAnnotation() TypeAnnotation {
	ta := TypeAnnotation{TargetType: r.u1()}
	start := r.pos
	switch ta.TargetType {
	case 0x00, 0x01, 0x16:
		r.take(1)
	case 0x10, 0x11, 0x12, 0x17:
		r.take(2)
	case 0x13, 0x14, 0x15:
	default:
		r.fail("type annotation target %#x is only valid inside code", ta.TargetType)
	}
	if r.err != nil {
		return ta
	}
	ta.Target = append([]byte(nil), r.buf[start:r.pos]...)

	start = r.pos
	n := r.u1()
	r.take(int(n) * 2)
	if r.err != nil {
		return ta
	}
	ta.Path = append([]byte(nil), r.buf[start:r.pos]...)
	ta.Annotation = r.annotation()
	return ta
}
