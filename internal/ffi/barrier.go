package ffi

import (
	"runtime"
	"sync"
)

// KeepAlive 保证 objs 在此调用点之前不会被回收。
// 异步原生调用完成之后对所有临时缓冲区调用一次。
func KeepAlive(objs ...any) {
	for _, o := range objs {
		runtime.KeepAlive(o)
	}
}

// inflight 持有正在进行的异步调用的参数，直到调用结束。
type inflight struct {
	mu   sync.Mutex
	next uint64
	held map[uint64][]any
}

func newInflight() *inflight {
	return &inflight{held: make(map[uint64][]any)}
}

func (r *inflight) open() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.held[r.next] = nil
	return r.next
}

func (r *inflight) hold(id uint64, objs ...any) {
	r.mu.Lock()
	r.held[id] = append(r.held[id], objs...)
	r.mu.Unlock()
}

func (r *inflight) release(id uint64) {
	r.mu.Lock()
	objs := r.held[id]
	delete(r.held, id)
	r.mu.Unlock()
	KeepAlive(objs...)
}

func (r *inflight) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.held)
}
