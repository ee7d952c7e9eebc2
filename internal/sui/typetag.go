package sui

import (
	"fmt"
	"strings"

	"vaultflow/internal/bcs"
)

// TypeKind enumerates Move type tag variants in BCS tag order.
type TypeKind uint8

const (
	TypeBool TypeKind = iota
	TypeU8
	TypeU64
	TypeU128
	TypeAddress
	TypeSigner
	TypeVector
	TypeStruct
	TypeU16
	TypeU32
	TypeU256
)

var primitiveNames = map[string]TypeKind{
	"bool":    TypeBool,
	"u8":      TypeU8,
	"u16":     TypeU16,
	"u32":     TypeU32,
	"u64":     TypeU64,
	"u128":    TypeU128,
	"u256":    TypeU256,
	"address": TypeAddress,
	"signer":  TypeSigner,
}

// TypeTag is a Move type such as `0x2::coin::Coin<0x2::sui::SUI>`.
type TypeTag struct {
	Kind   TypeKind
	Elem   *TypeTag
	Struct *StructTag
}

// StructTag names a Move struct with its type parameters.
type StructTag struct {
	Address    Address
	Module     string
	Name       string
	TypeParams []TypeTag
}

// ParseTypeTag parses the canonical textual form of a Move type.
func ParseTypeTag(input string) (TypeTag, error) {
	p := &typeParser{src: strings.TrimSpace(input)}
	tag, err := p.parse()
	if err != nil {
		return TypeTag{}, fmt.Errorf("parse type %q: %w", input, err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return TypeTag{}, fmt.Errorf("parse type %q: trailing input at %d", input, p.pos)
	}
	return tag, nil
}

func MustParseTypeTag(input string) TypeTag {
	tag, err := ParseTypeTag(input)
	if err != nil {
		panic(err)
	}
	return tag
}

// StructType builds a struct type tag.
func StructType(addr Address, module, name string, params ...TypeTag) TypeTag {
	return TypeTag{Kind: TypeStruct, Struct: &StructTag{Address: addr, Module: module, Name: name, TypeParams: params}}
}

func (t TypeTag) String() string {
	switch t.Kind {
	case TypeVector:
		if t.Elem == nil {
			return "vector<?>"
		}
		return "vector<" + t.Elem.String() + ">"
	case TypeStruct:
		if t.Struct == nil {
			return "?"
		}
		return t.Struct.String()
	}
	for name, kind := range primitiveNames {
		if kind == t.Kind {
			return name
		}
	}
	return fmt.Sprintf("type(%d)", t.Kind)
}

func (s StructTag) String() string {
	var b strings.Builder
	b.WriteString(s.Address.String())
	b.WriteString("::")
	b.WriteString(s.Module)
	b.WriteString("::")
	b.WriteString(s.Name)
	if len(s.TypeParams) > 0 {
		b.WriteString("<")
		for i, param := range s.TypeParams {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(param.String())
		}
		b.WriteString(">")
	}
	return b.String()
}

// Equal compares type tags structurally.
func (t TypeTag) Equal(other TypeTag) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case TypeVector:
		if t.Elem == nil || other.Elem == nil {
			return t.Elem == other.Elem
		}
		return t.Elem.Equal(*other.Elem)
	case TypeStruct:
		if t.Struct == nil || other.Struct == nil {
			return t.Struct == other.Struct
		}
		a, b := t.Struct, other.Struct
		if a.Address != b.Address || a.Module != b.Module || a.Name != b.Name || len(a.TypeParams) != len(b.TypeParams) {
			return false
		}
		for i := range a.TypeParams {
			if !a.TypeParams[i].Equal(b.TypeParams[i]) {
				return false
			}
		}
		return true
	}
	return true
}

// IsStruct reports whether t names module::name, ignoring type parameters.
func (t TypeTag) IsStruct(module, name string) bool {
	return t.Kind == TypeStruct && t.Struct != nil && t.Struct.Module == module && t.Struct.Name == name
}

// EncodeBCS appends the BCS form of t.
func (t TypeTag) EncodeBCS(e *bcs.Encoder) error {
	e.ULEB128(uint64(t.Kind))
	switch t.Kind {
	case TypeVector:
		if t.Elem == nil {
			return fmt.Errorf("vector type without element")
		}
		return t.Elem.EncodeBCS(e)
	case TypeStruct:
		if t.Struct == nil {
			return fmt.Errorf("struct type without tag")
		}
		e.FixedBytes(t.Struct.Address[:])
		e.String(t.Struct.Module)
		e.String(t.Struct.Name)
		e.ULEB128(uint64(len(t.Struct.TypeParams)))
		for _, param := range t.Struct.TypeParams {
			if err := param.EncodeBCS(e); err != nil {
				return err
			}
		}
	}
	return nil
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *typeParser) expect(token string) error {
	p.skipSpace()
	if !strings.HasPrefix(p.src[p.pos:], token) {
		return fmt.Errorf("expected %q at %d", token, p.pos)
	}
	p.pos += len(token)
	return nil
}

func (p *typeParser) peek(token string) bool {
	p.skipSpace()
	return strings.HasPrefix(p.src[p.pos:], token)
}

func (p *typeParser) parse() (TypeTag, error) {
	head := p.ident()
	if head == "" {
		return TypeTag{}, fmt.Errorf("expected type at %d", p.pos)
	}
	if head == "vector" {
		if err := p.expect("<"); err != nil {
			return TypeTag{}, err
		}
		elem, err := p.parse()
		if err != nil {
			return TypeTag{}, err
		}
		if err := p.expect(">"); err != nil {
			return TypeTag{}, err
		}
		return TypeTag{Kind: TypeVector, Elem: &elem}, nil
	}
	if kind, ok := primitiveNames[head]; ok && !p.peek("::") {
		return TypeTag{Kind: kind}, nil
	}

	addr, err := ParseAddress(head)
	if err != nil {
		return TypeTag{}, err
	}
	if err := p.expect("::"); err != nil {
		return TypeTag{}, err
	}
	module := p.ident()
	if err := p.expect("::"); err != nil {
		return TypeTag{}, err
	}
	name := p.ident()
	if module == "" || name == "" {
		return TypeTag{}, fmt.Errorf("incomplete struct tag at %d", p.pos)
	}

	var params []TypeTag
	if p.peek("<") {
		p.pos++
		for {
			param, err := p.parse()
			if err != nil {
				return TypeTag{}, err
			}
			params = append(params, param)
			if p.peek(",") {
				p.pos++
				continue
			}
			if err := p.expect(">"); err != nil {
				return TypeTag{}, err
			}
			break
		}
	}
	return StructType(addr, module, name, params...), nil
}
