package ffi

import (
	"runtime"
	"sync"
)

// Class 为某一种原生对象创建托管指针。K 只用于在类型层面区分不同种类的句柄。
type Class[K any] struct {
	drop func(Pointer)
}

// NewClass 返回使用 drop 释放原生对象的工厂。
func NewClass[K any](drop func(Pointer)) *Class[K] {
	return &Class[K]{drop: drop}
}

// Handle 独占持有一个原生句柄。
// Dispose 之后任何访问都返回 ErrDisposed；若忘记 Dispose，
// 对象不可达时由运行时清理函数兜底释放。
type Handle[K any] struct {
	mu       sync.Mutex
	raw      Pointer
	drop     func(Pointer)
	disposed bool
	cleanup  runtime.Cleanup
	armed    bool
}

// Wrap 接管 raw 的所有权。空句柄不会注册清理函数，释放时也不调用 drop。
func (c *Class[K]) Wrap(raw Pointer) *Handle[K] {
	h := &Handle[K]{raw: raw, drop: c.drop}
	if raw != 0 && c.drop != nil {
		h.cleanup = runtime.AddCleanup(h, c.drop, raw)
		h.armed = true
	}
	return h
}

// Raw 返回原生句柄。
func (h *Handle[K]) Raw() (Pointer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return 0, ErrDisposed
	}
	return h.raw, nil
}

// Disposed 报告句柄是否已释放。
func (h *Handle[K]) Disposed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disposed
}

// Dispose 释放原生对象，可重复调用。
func (h *Handle[K]) Dispose() {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return
	}
	h.disposed = true
	raw := h.raw
	h.raw = 0
	if h.armed {
		h.cleanup.Stop()
		h.armed = false
	}
	h.mu.Unlock()

	if raw != 0 && h.drop != nil {
		h.drop(raw)
	}
}
