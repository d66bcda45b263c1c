package ffi

import (
	"errors"
	"fmt"
)

var (
	// ErrDisposed 表示托管指针已经释放。
	ErrDisposed = errors.New("object is disposed")
	// ErrNulInString 表示字符串中含有 NUL 字符，无法编码为 C 字符串。
	ErrNulInString = errors.New("string contains NUL character")
	// ErrNullPointer 表示原生函数返回了空指针。
	ErrNullPointer = errors.New("null pointer")
	// ErrSymbolNotFound 表示动态库中不存在该符号。
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrUnavailable 表示可选符号在当前库版本中缺失。
	ErrUnavailable = errors.New("function unavailable in this library version")
	// ErrConvention 表示以阻塞方式调用了非阻塞入口。
	ErrConvention = errors.New("nonblocking function called synchronously")
	// ErrArgument 表示参数数量或类型与签名不符。
	ErrArgument = errors.New("argument does not match signature")
	// ErrStructSize 表示结构体缓冲区长度与布局不一致。
	ErrStructSize = errors.New("struct buffer size mismatch")
	// ErrTooLarge 表示原生缓冲区超过一次可以拷贝的长度。
	ErrTooLarge = errors.New("native buffer too large")
	// ErrClosed 表示动态库已经卸载。
	ErrClosed = errors.New("library is closed")
)

// LinkError 是加载时必需符号缺失的错误。
type LinkError struct {
	Symbol string
	Err    error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link %s: %v", e.Symbol, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }
