package classfile

import "math"

// Constant pool tags.
const (
	TagUtf8               uint8 = 1
	TagInteger            uint8 = 3
	TagFloat              uint8 = 4
	TagLong               uint8 = 5
	TagDouble             uint8 = 6
	TagClass              uint8 = 7
	TagString             uint8 = 8
	TagFieldref           uint8 = 9
	TagMethodref          uint8 = 10
	TagInterfaceMethodref uint8 = 11
	TagNameAndType        uint8 = 12
	TagMethodHandle       uint8 = 15
	TagMethodType         uint8 = 16
	TagDynamic            uint8 = 17
	TagInvokeDynamic      uint8 = 18
	TagModule             uint8 = 19
	TagPackage            uint8 = 20
)

// Constant is a loadable value referenced by ConstantValue attributes and
// annotation elements. Kind is one of TagInteger, TagFloat, TagLong,
// TagDouble, TagString or TagUtf8. Floating point values keep their raw bits
// so NaN payloads survive a round trip.
type Constant struct {
	Kind uint8
	Bits uint64
	Text string
}

func IntConstant(v int32) Constant      { return Constant{Kind: TagInteger, Bits: uint64(uint32(v))} }
func LongConstant(v int64) Constant     { return Constant{Kind: TagLong, Bits: uint64(v)} }
func FloatConstant(v float32) Constant  { return Constant{Kind: TagFloat, Bits: uint64(math.Float32bits(v))} }
func DoubleConstant(v float64) Constant { return Constant{Kind: TagDouble, Bits: math.Float64bits(v)} }
func StringConstant(s string) Constant  { return Constant{Kind: TagString, Text: s} }
func Utf8Constant(s string) Constant    { return Constant{Kind: TagUtf8, Text: s} }

// Attribute is a resolved class, field, method or record component attribute.
type Attribute interface {
	AttributeName() string
}

// Attribute names.
const (
	AttrConstantValue                        = "ConstantValue"
	AttrCode                                 = "Code"
	AttrStackMapTable                        = "StackMapTable"
	AttrExceptions                           = "Exceptions"
	AttrInnerClasses                         = "InnerClasses"
	AttrEnclosingMethod                      = "EnclosingMethod"
	AttrSynthetic                            = "Synthetic"
	AttrSignature                            = "Signature"
	AttrSourceFile                           = "SourceFile"
	AttrSourceDebugExtension                 = "SourceDebugExtension"
	AttrLineNumberTable                      = "LineNumberTable"
	AttrLocalVariableTable                   = "LocalVariableTable"
	AttrLocalVariableTypeTable               = "LocalVariableTypeTable"
	AttrDeprecated                           = "Deprecated"
	AttrRuntimeVisibleAnnotations            = "RuntimeVisibleAnnotations"
	AttrRuntimeInvisibleAnnotations          = "RuntimeInvisibleAnnotations"
	AttrRuntimeVisibleParameterAnnotations   = "RuntimeVisibleParameterAnnotations"
	AttrRuntimeInvisibleParameterAnnotations = "RuntimeInvisibleParameterAnnotations"
	AttrRuntimeVisibleTypeAnnotations        = "RuntimeVisibleTypeAnnotations"
	AttrRuntimeInvisibleTypeAnnotations      = "RuntimeInvisibleTypeAnnotations"
	AttrAnnotationDefault                    = "AnnotationDefault"
	AttrBootstrapMethods                     = "BootstrapMethods"
	AttrMethodParameters                     = "MethodParameters"
	AttrNestHost                             = "NestHost"
	AttrNestMembers                          = "NestMembers"
	AttrRecord                               = "Record"
	AttrPermittedSubclasses                  = "PermittedSubclasses"
)

type ConstantValue struct{ Value Constant }

type Signature struct{ Value string }

type Exceptions struct{ Classes []string }

type Deprecated struct{}

type Synthetic struct{}

// InnerClass is one row of the InnerClasses table. Outer and InnerName are
// empty for local and anonymous classes.
type InnerClass struct {
	Name      string
	Outer     string
	InnerName string
	Access    uint16
}

type InnerClasses struct{ Classes []InnerClass }

// EnclosingMethod names the class and, when known, the method that encloses
// a local or anonymous class.
type EnclosingMethod struct {
	Class            string
	MethodName       string
	MethodDescriptor string
}

type Annotation struct {
	Type     string
	Elements []ElementPair
}

type ElementPair struct {
	Name  string
	Value ElementValue
}

// ElementValue is an annotation element. Tag selects which field is set:
// B C D F I J S Z s use Const, e uses EnumType and EnumName, c uses Class,
// @ uses Annotation and [ uses Array.
type ElementValue struct {
	Tag        byte
	Const      Constant
	EnumType   string
	EnumName   string
	Class      string
	Annotation *Annotation
	Array      []ElementValue
}

type Annotations struct {
	Visible     bool
	Annotations []Annotation
}

type ParameterAnnotations struct {
	Visible    bool
	Parameters [][]Annotation
}

// TypeAnnotation is a declaration-level type annotation. Target holds the
// raw target_info and Path the raw type_path (including its length byte);
// neither references the constant pool.
type TypeAnnotation struct {
	TargetType uint8
	Target     []byte
	Path       []byte
	Annotation Annotation
}

type TypeAnnotations struct {
	Visible     bool
	Annotations []TypeAnnotation
}

type AnnotationDefault struct{ Value ElementValue }

type MethodParameter struct {
	Name   string
	Access uint16
}

type MethodParameters struct{ Parameters []MethodParameter }

type NestHost struct{ Class string }

type NestMembers struct{ Classes []string }

type PermittedSubclasses struct{ Classes []string }

type RecordComponent struct {
	Name       string
	Descriptor string
	Attributes []Attribute
}

type Record struct{ Components []RecordComponent }

// Raw is written verbatim by Encode. Its payload must not contain constant
// pool indices; the reader never produces it.
type Raw struct {
	Name string
	Data []byte
}

func (ConstantValue) AttributeName() string   { return AttrConstantValue }
func (Signature) AttributeName() string       { return AttrSignature }
func (Exceptions) AttributeName() string      { return AttrExceptions }
func (Deprecated) AttributeName() string      { return AttrDeprecated }
func (Synthetic) AttributeName() string       { return AttrSynthetic }
func (InnerClasses) AttributeName() string    { return AttrInnerClasses }
func (EnclosingMethod) AttributeName() string { return AttrEnclosingMethod }

func (a Annotations) AttributeName() string {
	if a.Visible {
		return AttrRuntimeVisibleAnnotations
	}
	return AttrRuntimeInvisibleAnnotations
}

func (a ParameterAnnotations) AttributeName() string {
	if a.Visible {
		return AttrRuntimeVisibleParameterAnnotations
	}
	return AttrRuntimeInvisibleParameterAnnotations
}

func (a TypeAnnotations) AttributeName() string {
	if a.Visible {
		return AttrRuntimeVisibleTypeAnnotations
	}
	return AttrRuntimeInvisibleTypeAnnotations
}

func (AnnotationDefault) AttributeName() string   { return AttrAnnotationDefault }
func (MethodParameters) AttributeName() string    { return AttrMethodParameters }
func (NestHost) AttributeName() string            { return AttrNestHost }
func (NestMembers) AttributeName() string         { return AttrNestMembers }
func (PermittedSubclasses) AttributeName() string { return AttrPermittedSubclasses }
func (Record) AttributeName() string              { return AttrRecord }
func (r Raw) AttributeName() string               { return r.Name }
