package ffi

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type boundEntry struct {
	Entry
	fn Func
}

// Funcs 是绑定到动态库的入口表。
type Funcs struct {
	lib     Library
	entries map[string]*boundEntry

	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
	inflight *inflight
}

// Bind 解析 table 中的每个原生符号。
// 必需符号缺失返回 *LinkError；可选符号缺失时该入口不存在。
func Bind(lib Library, table Table) (*Funcs, error) {
	f := &Funcs{
		lib:      lib,
		entries:  make(map[string]*boundEntry, len(table)),
		inflight: newInflight(),
	}
	resolved := make(map[string]Func)
	for _, name := range table.Names() {
		e := table[name]
		fn, ok := resolved[e.Symbol]
		if !ok {
			var err error
			fn, err = lib.Lookup(e.Symbol, e.Params, e.Result)
			switch {
			case err == nil:
			case e.Optional && errors.Is(err, ErrSymbolNotFound):
				continue
			default:
				return nil, &LinkError{Symbol: e.Symbol, Err: err}
			}
			resolved[e.Symbol] = fn
		}
		f.entries[name] = &boundEntry{Entry: e, fn: fn}
	}
	return f, nil
}

// Has 报告入口是否可用。
func (f *Funcs) Has(name string) bool {
	_, ok := f.entries[name]
	return ok
}

// Memory 返回库的内存读取器。
func (f *Funcs) Memory() Memory { return f.lib }

func (f *Funcs) lookup(name string, blocking bool) (*boundEntry, error) {
	e, ok := f.entries[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnavailable)
	}
	if blocking && !e.Blocking {
		return nil, fmt.Errorf("%s: %w", name, ErrConvention)
	}
	return e, nil
}

func (e *boundEntry) call(name string, args []any) (Ret, error) {
	if err := CheckArgs(name, e.Params, args); err != nil {
		return Ret{}, err
	}
	return e.fn.Call(args...)
}

// Call 在当前 goroutine 上调用阻塞入口。
func (f *Funcs) Call(name string, args ...any) (Ret, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return Ret{}, ErrClosed
	}
	e, err := f.lookup(name, true)
	if err != nil {
		return Ret{}, err
	}
	ret, err := e.call(name, args)
	KeepAlive(args...)
	return ret, err
}

// Task 是一次异步调用的上下文，通过它发起的调用参数在任务结束前保持可达。
type Task struct {
	f  *Funcs
	id uint64
}

// Call 调用任意入口（阻塞或非阻塞）。
func (t *Task) Call(name string, args ...any) (Ret, error) {
	e, err := t.f.lookup(name, false)
	if err != nil {
		return Ret{}, err
	}
	t.f.inflight.hold(t.id, args...)
	return e.call(name, args)
}

// Hold 让 objs 在任务结束前保持可达，即使等待方已经放弃。
func (t *Task) Hold(objs ...any) {
	t.f.inflight.hold(t.id, objs...)
}

// Await 在工作 goroutine 上执行 fn 并等待结果。
// ctx 结束时立即返回 ctx.Err()，但 fn 会继续执行完毕，原生调用不可取消。
// Close 会等待所有未完成的任务。
func Await[T any](ctx context.Context, f *Funcs, fn func(*Task) (T, error)) (T, error) {
	return AwaitOwned(ctx, f, fn, nil)
}

// AwaitOwned 与 Await 相同，但 fn 成功而结果没有交给等待方时，
// 在工作 goroutine 上用 discard 释放结果。结果恰好归属于其中一方。
func AwaitOwned[T any](ctx context.Context, f *Funcs, fn func(*Task) (T, error), discard func(*Task, T)) (T, error) {
	var zero T
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return zero, ErrClosed
	}
	f.wg.Add(1)
	f.mu.RUnlock()

	type result struct {
		v   T
		err error
	}
	var (
		mu        sync.Mutex
		abandoned bool
	)
	done := make(chan result, 1)
	task := &Task{f: f, id: f.inflight.open()}
	go func() {
		defer f.wg.Done()
		defer f.inflight.release(task.id)
		v, err := fn(task)
		mu.Lock()
		if !abandoned {
			done <- result{v, err}
			mu.Unlock()
			return
		}
		mu.Unlock()
		if err == nil && discard != nil {
			discard(task, v)
		}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		mu.Lock()
		defer mu.Unlock()
		select {
		case r := <-done:
			return r.v, r.err
		default:
		}
		abandoned = true
		return zero, ctx.Err()
	}
}

// InFlight 返回尚未结束的异步任务数。
func (f *Funcs) InFlight() int { return f.inflight.len() }

// Closed 报告库是否已卸载。
func (f *Funcs) Closed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.closed
}

// Close 等待未完成的异步任务后卸载动态库，可重复调用。
func (f *Funcs) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	f.wg.Wait()
	return f.lib.Close()
}
