package ffi

import (
	"fmt"
	"math"
)

// MaxRead 是一次拷贝原生内存的最大字节数。
const MaxRead = math.MaxInt32

// TakeBytes 拷贝原生缓冲区 p 的前 n 个字节并用 free 释放它。
// 无论拷贝是否成功 free 都只调用一次。
func TakeBytes(mem Memory, p Pointer, n uint64, free func(Pointer)) ([]byte, error) {
	if p == 0 {
		return nil, ErrNullPointer
	}
	defer free(p)
	if n > MaxRead {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}
	return mem.Read(p, int(n))
}

// TakeCString 拷贝原生 C 字符串并用 free 释放它。
func TakeCString(mem Memory, p Pointer, free func(Pointer)) (string, error) {
	if p == 0 {
		return "", ErrNullPointer
	}
	defer free(p)
	return mem.CString(p)
}
