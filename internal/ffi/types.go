package ffi

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"
)

// Pointer 是原生内存地址，Go 代码只通过 Memory 读取它指向的内容。
type Pointer uintptr

// Kind 是原生类型的种类。
type Kind uint8

const (
	KindVoid Kind = iota
	KindBool
	KindU8
	KindU16
	KindU32
	KindI32
	KindU64
	KindUsize
	KindPointer
	// KindBuffer 是由调用方提供的字节缓冲区，按指针传递，nil 对应 NULL。
	KindBuffer
	KindStruct
)

var kindNames = [...]string{
	KindVoid:    "void",
	KindBool:    "bool",
	KindU8:      "u8",
	KindU16:     "u16",
	KindU32:     "u32",
	KindI32:     "i32",
	KindU64:     "u64",
	KindUsize:   "usize",
	KindPointer: "pointer",
	KindBuffer:  "buffer",
	KindStruct:  "struct",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

const ptrSize = bits.UintSize / 8

// Type 描述一个原生类型。结构体按 C 的自然对齐规则布局。
type Type struct {
	Kind   Kind
	Fields []*Type // 仅结构体
	Tag    string  // 指针所指对象或结构体的名称，只用于诊断
}

var (
	Void   = &Type{Kind: KindVoid}
	Bool   = &Type{Kind: KindBool}
	U8     = &Type{Kind: KindU8}
	U16    = &Type{Kind: KindU16}
	U32    = &Type{Kind: KindU32}
	I32    = &Type{Kind: KindI32}
	U64    = &Type{Kind: KindU64}
	Usize  = &Type{Kind: KindUsize}
	Ptr    = &Type{Kind: KindPointer}
	Buffer = &Type{Kind: KindBuffer}
)

// PointerTo 返回带标签的不透明指针类型。
func PointerTo(tag string) *Type {
	return &Type{Kind: KindPointer, Tag: tag}
}

// StructOf 返回按顺序排列字段的结构体类型。
func StructOf(name string, fields ...*Type) *Type {
	for _, f := range fields {
		if f.Kind == KindVoid || f.Kind == KindBuffer {
			panic(fmt.Sprintf("ffi: struct %s cannot hold %s field", name, f.Kind))
		}
	}
	return &Type{Kind: KindStruct, Fields: fields, Tag: name}
}

// Size 返回类型在原生内存中的字节数。
func (t *Type) Size() int {
	switch t.Kind {
	case KindVoid:
		return 0
	case KindBool, KindU8:
		return 1
	case KindU16:
		return 2
	case KindU32, KindI32:
		return 4
	case KindU64:
		return 8
	case KindUsize, KindPointer, KindBuffer:
		return ptrSize
	case KindStruct:
		off := 0
		for _, f := range t.Fields {
			off = alignUp(off, f.Align()) + f.Size()
		}
		return alignUp(off, t.Align())
	}
	return 0
}

// Align 返回类型的对齐要求。
func (t *Type) Align() int {
	if t.Kind != KindStruct {
		if s := t.Size(); s > 0 {
			return s
		}
		return 1
	}
	a := 1
	for _, f := range t.Fields {
		if fa := f.Align(); fa > a {
			a = fa
		}
	}
	return a
}

// Offset 返回结构体第 i 个字段的偏移量。
func (t *Type) Offset(i int) int {
	if t.Kind != KindStruct || i < 0 || i >= len(t.Fields) {
		panic(fmt.Sprintf("ffi: field %d out of range for %s", i, t))
	}
	off := 0
	for j, f := range t.Fields {
		off = alignUp(off, f.Align())
		if j == i {
			return off
		}
		off += f.Size()
	}
	return off
}

func (t *Type) String() string {
	switch t.Kind {
	case KindPointer:
		if t.Tag != "" {
			return "*" + t.Tag
		}
	case KindStruct:
		names := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			names[i] = f.String()
		}
		return t.Tag + "{" + strings.Join(names, ", ") + "}"
	}
	return t.Kind.String()
}

func alignUp(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}

// Struct 是绑定了结构体类型的字节缓冲区，用于按值传递和接收结构体。
type Struct struct {
	typ *Type
	b   []byte
}

// NewStruct 返回全零的结构体。
func NewStruct(t *Type) *Struct {
	return &Struct{typ: t, b: make([]byte, t.Size())}
}

// StructFrom 用现有字节构造结构体，长度必须与布局一致。
func StructFrom(t *Type, b []byte) (*Struct, error) {
	if t.Kind != KindStruct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrArgument, t)
	}
	if len(b) != t.Size() {
		return nil, fmt.Errorf("%w: %s wants %d bytes, got %d", ErrStructSize, t.Tag, t.Size(), len(b))
	}
	return &Struct{typ: t, b: b}, nil
}

// Type 返回结构体类型。
func (s *Struct) Type() *Type { return s.typ }

// Bytes 返回底层字节，修改会直接反映到结构体。
func (s *Struct) Bytes() []byte { return s.b }

func (s *Struct) field(i int, k Kind) []byte {
	f := s.typ.Fields[i]
	if f.Kind != k {
		panic(fmt.Sprintf("ffi: field %d of %s is %s, not %s", i, s.typ.Tag, f.Kind, k))
	}
	off := s.typ.Offset(i)
	return s.b[off : off+f.Size()]
}

func (s *Struct) SetBool(i int, v bool) {
	var b byte
	if v {
		b = 1
	}
	s.field(i, KindBool)[0] = b
}

func (s *Struct) Bool(i int) bool { return s.field(i, KindBool)[0] != 0 }

func (s *Struct) SetUint16(i int, v uint16) {
	binary.LittleEndian.PutUint16(s.field(i, KindU16), v)
}

func (s *Struct) Uint16(i int) uint16 {
	return binary.LittleEndian.Uint16(s.field(i, KindU16))
}

func (s *Struct) SetInt32(i int, v int32) {
	binary.LittleEndian.PutUint32(s.field(i, KindI32), uint32(v))
}

func (s *Struct) Int32(i int) int32 {
	return int32(binary.LittleEndian.Uint32(s.field(i, KindI32)))
}

func (s *Struct) SetUint32(i int, v uint32) {
	binary.LittleEndian.PutUint32(s.field(i, KindU32), v)
}

func (s *Struct) Uint32(i int) uint32 {
	return binary.LittleEndian.Uint32(s.field(i, KindU32))
}

func (s *Struct) SetUsize(i int, v uint64) { putWord(s.field(i, KindUsize), v) }

func (s *Struct) Usize(i int) uint64 { return getWord(s.field(i, KindUsize)) }

func (s *Struct) SetPointer(i int, p Pointer) { putWord(s.field(i, KindPointer), uint64(p)) }

func (s *Struct) Pointer(i int) Pointer { return Pointer(getWord(s.field(i, KindPointer))) }

func putWord(b []byte, v uint64) {
	if len(b) == 8 {
		binary.LittleEndian.PutUint64(b, v)
		return
	}
	binary.LittleEndian.PutUint32(b, uint32(v))
}

func getWord(b []byte) uint64 {
	if len(b) == 8 {
		return binary.LittleEndian.Uint64(b)
	}
	return uint64(binary.LittleEndian.Uint32(b))
}
