package classfile

// Class is the declaration-level content of a classfile.
type Class struct {
	Minor, Major uint16
	Access       uint16
	Name         string
	SuperName    string
	Interfaces   []string
	Fields       []Member
	Methods      []Member
	Attributes   []Attribute
}

// Decode reads the whole classfile in b into a Class. Method bodies, debug
// information and frames are skipped.
func Decode(b []byte) (*Class, error) {
	v := &classBuilder{}
	if err := Accept(b, v); err != nil {
		return nil, err
	}
	return &v.class, nil
}

type classBuilder struct {
	class Class
}

func (v *classBuilder) VisitHeader(h Header) Control {
	v.class.Minor = h.Minor
	v.class.Major = h.Major
	v.class.Access = h.Access
	v.class.Name = h.Name
	v.class.SuperName = h.SuperName
	v.class.Interfaces = h.Interfaces
	return Continue
}

func (v *classBuilder) VisitField(f Member) Control {
	v.class.Fields = append(v.class.Fields, f)
	return Continue
}

func (v *classBuilder) VisitMethod(m Member) Control {
	v.class.Methods = append(v.class.Methods, m)
	return Continue
}

func (v *classBuilder) VisitAttribute(a Attribute) Control {
	v.class.Attributes = append(v.class.Attributes, a)
	return Continue
}

// Access flags used by this repository.
const (
	AccPublic    uint16 = 0x0001
	AccPrivate   uint16 = 0x0002
	AccStatic    uint16 = 0x0008
	AccFinal     uint16 = 0x0010
	AccSuper     uint16 = 0x0020
	AccInterface uint16 = 0x0200
	AccAbstract  uint16 = 0x0400
)
