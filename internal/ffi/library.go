package ffi

import (
	"encoding/binary"
	"fmt"
)

// Memory 读取原生内存。返回值都是拷贝，调用方可以在释放原生缓冲区后继续持有。
type Memory interface {
	Read(p Pointer, n int) ([]byte, error)
	CString(p Pointer) (string, error)
}

// Func 是一个已解析的原生函数。
// 参数类型与签名一一对应：
//
//	bool/u8/u16/u32/i32/u64  → bool/uint8/uint16/uint32/int32/uint64
//	usize                    → uint64
//	pointer                  → Pointer
//	buffer                   → []byte（nil 表示 NULL）
//	struct                   → *Struct（按值传递）
type Func interface {
	Call(args ...any) (Ret, error)
}

// Library 是打开的动态库。
type Library interface {
	Memory
	// Lookup 解析符号，缺失时返回包装了 ErrSymbolNotFound 的错误。
	Lookup(name string, params []*Type, result *Type) (Func, error)
	Close() error
}

// Ret 是原生函数的返回值。标量保存在 word 中，结构体保存在 agg 中。
type Ret struct {
	word uint64
	agg  []byte
}

// Word 构造标量返回值。
func Word(v uint64) Ret { return Ret{word: v} }

// Aggregate 构造结构体返回值。
func Aggregate(b []byte) Ret { return Ret{agg: b} }

// Status 构造 i32 返回值。
func Status(code int32) Ret { return Ret{word: uint64(uint32(code))} }

// PointerRet 构造指针返回值。
func PointerRet(p Pointer) Ret { return Ret{word: uint64(p)} }

// BoolRet 构造 bool 返回值。
func BoolRet(v bool) Ret {
	if v {
		return Ret{word: 1}
	}
	return Ret{}
}

func (r Ret) Int32() int32     { return int32(uint32(r.word)) }
func (r Ret) Uint32() uint32   { return uint32(r.word) }
func (r Ret) Uint64() uint64   { return r.word }
func (r Ret) Bool() bool       { return uint8(r.word) != 0 }
func (r Ret) Pointer() Pointer { return Pointer(r.word) }

// Struct 将返回值解释为给定类型的结构体。
func (r Ret) Struct(t *Type) (*Struct, error) {
	b := make([]byte, len(r.agg))
	copy(b, r.agg)
	return StructFrom(t, b)
}

// CheckArgs 校验参数与签名是否匹配。
func CheckArgs(name string, params []*Type, args []any) error {
	if len(args) != len(params) {
		return fmt.Errorf("%w: %s wants %d arguments, got %d", ErrArgument, name, len(params), len(args))
	}
	for i, p := range params {
		if !argMatches(p, args[i]) {
			return fmt.Errorf("%w: %s argument %d wants %s, got %T", ErrArgument, name, i, p, args[i])
		}
	}
	return nil
}

func argMatches(t *Type, arg any) bool {
	switch t.Kind {
	case KindBool:
		_, ok := arg.(bool)
		return ok
	case KindU8:
		_, ok := arg.(uint8)
		return ok
	case KindU16:
		_, ok := arg.(uint16)
		return ok
	case KindU32:
		_, ok := arg.(uint32)
		return ok
	case KindI32:
		_, ok := arg.(int32)
		return ok
	case KindU64, KindUsize:
		_, ok := arg.(uint64)
		return ok
	case KindPointer:
		_, ok := arg.(Pointer)
		return ok
	case KindBuffer:
		_, ok := arg.([]byte)
		return ok || arg == nil
	case KindStruct:
		s, ok := arg.(*Struct)
		return ok && s != nil && len(s.b) == t.Size()
	}
	return false
}

// Cell 是接收原生输出（指针或长度）的 8 字节缓冲区。
type Cell struct {
	b []byte
}

// NewCell 返回一个清零的输出单元。
func NewCell() *Cell { return &Cell{b: make([]byte, 8)} }

// Bytes 返回作为 buffer 参数传入的底层字节。
func (c *Cell) Bytes() []byte { return c.b }

// Pointer 读取写入的指针。
func (c *Cell) Pointer() Pointer { return Pointer(getWord(c.b[:ptrSize])) }

// Usize 读取写入的长度。
func (c *Cell) Usize() uint64 { return getWord(c.b[:ptrSize]) }

// PutWord 将指针大小的值写入 buf，供原生端实现（例如测试替身）使用。
func PutWord(buf []byte, v uint64) {
	if ptrSize == 8 {
		binary.LittleEndian.PutUint64(buf, v)
		return
	}
	binary.LittleEndian.PutUint32(buf, uint32(v))
}
