package ffi

import (
	"fmt"
	"runtime"
	"strings"
	"unicode/utf8"
	"unsafe"
)

// EncodeCString 将字符串编码为以 NUL 结尾的 UTF-8 字节。
// 内含 NUL 时返回 ErrNulInString，位置按字符计数。
func EncodeCString(s string) ([]byte, error) {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return nil, fmt.Errorf("%w at position %d", ErrNulInString, utf8.RuneCountInString(s[:i]))
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b, nil
}

// DecodeCString 读取原生 C 字符串。
func DecodeCString(mem Memory, p Pointer) (string, error) {
	if p == 0 {
		return "", ErrNullPointer
	}
	return mem.CString(p)
}

// Pin 固定 b 的底层数组并返回其地址，用于把 Go 缓冲区写进结构体字段。
// 空切片返回 0。地址在 pinner.Unpin 之前有效。
func Pin(pinner *runtime.Pinner, b []byte) Pointer {
	if len(b) == 0 {
		return 0
	}
	pinner.Pin(&b[0])
	return Pointer(unsafe.Pointer(&b[0]))
}
