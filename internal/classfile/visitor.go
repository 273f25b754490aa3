package classfile

// Control tells Accept whether to keep walking after a callback.
type Control int

const (
	// Continue resumes the walk.
	Continue Control = iota
	// Halt ends the walk immediately. Accept returns nil.
	Halt
)

// Header holds everything up to and including the interfaces table.
// Names are in internal form ("java/lang/Object"). SuperName is empty
// only for java/lang/Object itself and module-info.
type Header struct {
	Minor, Major uint16
	Access       uint16
	Name         string
	SuperName    string
	Interfaces   []string
}

// Member is a field or a method declaration.
type Member struct {
	Access     uint16
	Name       string
	Descriptor string
	Attributes []Attribute
}

// Visitor receives the parts of a classfile in file order:
// header, fields, methods, then class attributes.
type Visitor interface {
	VisitHeader(h Header) Control
	VisitField(f Member) Control
	VisitMethod(m Member) Control
	VisitAttribute(a Attribute) Control
}

// BaseVisitor continues on every callback. Embed it to implement only the
// callbacks of interest.
type BaseVisitor struct{}

func (BaseVisitor) VisitHeader(Header) Control       { return Continue }
func (BaseVisitor) VisitField(Member) Control        { return Continue }
func (BaseVisitor) VisitMethod(Member) Control       { return Continue }
func (BaseVisitor) VisitAttribute(Attribute) Control { return Continue }
