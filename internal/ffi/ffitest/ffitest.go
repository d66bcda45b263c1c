// Package ffitest 提供一个内存中的 ffi.Library 替身，用 Go 函数模拟原生符号。
package ffitest

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/iabetor/govoicevox/internal/ffi"
)

// Handler 模拟一个原生函数，收到的参数已经通过签名校验。
type Handler func(args []any) (ffi.Ret, error)

// Lib 是一个假的动态库。原生内存由 Alloc 分配并固定，
// 对未知地址的读取被视为调用方固定的 Go 缓冲区。
type Lib struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []string
	allocs   map[ffi.Pointer][]byte
	freed    int
	bad      []string
	closed   bool
	pinner   runtime.Pinner
}

// New 返回空的假库。
func New() *Lib {
	return &Lib{
		handlers: make(map[string]Handler),
		allocs:   make(map[ffi.Pointer][]byte),
	}
}

// Handle 注册符号。
func (l *Lib) Handle(name string, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[name] = h
}

// Remove 删除符号，用于模拟旧版本库。
func (l *Lib) Remove(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.handlers, name)
}

// Lookup 实现 ffi.Library。
func (l *Lib) Lookup(name string, params []*ffi.Type, result *ffi.Type) (ffi.Func, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.handlers[name]; !ok {
		return nil, fmt.Errorf("%s: %w", name, ffi.ErrSymbolNotFound)
	}
	return &fn{lib: l, name: name, params: params}, nil
}

type fn struct {
	lib    *Lib
	name   string
	params []*ffi.Type
}

func (f *fn) Call(args ...any) (ffi.Ret, error) {
	if err := ffi.CheckArgs(f.name, f.params, args); err != nil {
		return ffi.Ret{}, err
	}
	f.lib.mu.Lock()
	if f.lib.closed {
		f.lib.mu.Unlock()
		return ffi.Ret{}, ffi.ErrClosed
	}
	h := f.lib.handlers[f.name]
	f.lib.calls = append(f.lib.calls, f.name)
	f.lib.mu.Unlock()
	return h(args)
}

// Calls 返回所有调用过的符号名，按调用顺序排列。
func (l *Lib) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// Count 返回符号被调用的次数。
func (l *Lib) Count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == name {
			n++
		}
	}
	return n
}

// ResetCalls 清空调用记录。
func (l *Lib) ResetCalls() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

// Alloc 在“原生堆”上分配 b 的拷贝。
func (l *Lib) Alloc(b []byte) ffi.Pointer {
	buf := make([]byte, len(b)+1)
	copy(buf, b)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pinner.Pin(&buf[0])
	p := ffi.Pointer(unsafe.Pointer(&buf[0]))
	l.allocs[p] = buf[:len(b)]
	return p
}

// AllocCString 分配以 NUL 结尾的字符串。
func (l *Lib) AllocCString(s string) ffi.Pointer {
	return l.Alloc(append([]byte(s), 0))
}

// Free 释放 Alloc 分配的内存。释放未知地址会被记录为错误。
func (l *Lib) Free(p ffi.Pointer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.allocs[p]; !ok {
		l.bad = append(l.bad, fmt.Sprintf("free of unknown pointer %#x", uintptr(p)))
		return
	}
	delete(l.allocs, p)
	l.freed++
}

// Live 返回尚未释放的分配数。
func (l *Lib) Live() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.allocs)
}

// Freed 返回成功释放的次数。
func (l *Lib) Freed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.freed
}

// Errors 返回非法释放等错误记录。
func (l *Lib) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.bad...)
}

// Read 实现 ffi.Memory。
func (l *Lib) Read(p ffi.Pointer, n int) ([]byte, error) {
	if p == 0 {
		return nil, ffi.ErrNullPointer
	}
	l.mu.Lock()
	buf, ok := l.allocs[p]
	l.mu.Unlock()
	out := make([]byte, n)
	if ok {
		if n > len(buf) {
			return nil, fmt.Errorf("read %d bytes past allocation of %d", n, len(buf))
		}
		copy(out, buf)
		return out, nil
	}
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
	return out, nil
}

// CString 实现 ffi.Memory。
func (l *Lib) CString(p ffi.Pointer) (string, error) {
	if p == 0 {
		return "", ffi.ErrNullPointer
	}
	l.mu.Lock()
	buf, ok := l.allocs[p]
	l.mu.Unlock()
	if ok {
		for i, c := range buf {
			if c == 0 {
				return string(buf[:i]), nil
			}
		}
		return "", fmt.Errorf("unterminated string at %#x", uintptr(p))
	}
	var out []byte
	for i := uintptr(0); ; i++ {
		c := *(*byte)(unsafe.Pointer(uintptr(p) + i))
		if c == 0 {
			return string(out), nil
		}
		out = append(out, c)
	}
}

// Close 实现 ffi.Library。
func (l *Lib) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Closed 报告 Close 是否已调用。
func (l *Lib) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
