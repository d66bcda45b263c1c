// Package voicevox 是 VOICEVOX CORE 动态库的 Go 绑定。
//
// 所有对象都通过 Core 上的工厂函数创建。每个对象独占一个原生句柄，
// Close 可重复调用；忘记 Close 的对象在不可达时由运行时兜底释放。
// 每个耗时操作都有阻塞版本和带 context 的 Async 版本，两者结果一致。
// 同一个对象上的操作需要调用方自行串行化，不同对象之间互不影响。
package voicevox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/iabetor/govoicevox/internal/ffi"
	"github.com/iabetor/govoicevox/internal/ffi/dylib"
)

type (
	synthesizerKind    struct{}
	voiceModelFileKind struct{}
	openJtalkKind      struct{}
	userDictKind       struct{}
)

// Core 是已加载的 VOICEVOX CORE 动态库。
type Core struct {
	funcs   *ffi.Funcs
	log     *zap.Logger
	version string
	style   keyStyle

	synthesizers *ffi.Class[synthesizerKind]
	models       *ffi.Class[voiceModelFileKind]
	openJtalks   *ffi.Class[openJtalkKind]
	userDicts    *ffi.Class[userDictKind]

	mu      sync.Mutex
	ort     *Onnxruntime
	ortErr  error
	devices *SupportedDevices
}

// Option 配置 Core。
type Option func(*Core)

// WithLogger 设置日志输出，默认不输出。
func WithLogger(l *zap.Logger) Option {
	return func(c *Core) {
		if l != nil {
			c.log = l
		}
	}
}

// Load 打开 path 指向的 VOICEVOX CORE 动态库。
func Load(path string, opts ...Option) (*Core, error) {
	lib, err := dylib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load voicevox core: %w", err)
	}
	c, err := New(lib, opts...)
	if err != nil {
		_ = lib.Close()
		return nil, err
	}
	return c, nil
}

// New 在已打开的库上建立绑定。必需符号缺失时返回 *ffi.LinkError。
func New(lib ffi.Library, opts ...Option) (*Core, error) {
	table, err := symbolTable()
	if err != nil {
		return nil, err
	}
	funcs, err := ffi.Bind(lib, table)
	if err != nil {
		return nil, fmt.Errorf("bind voicevox core: %w", err)
	}
	c := &Core{funcs: funcs, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	c.synthesizers = ffi.NewClass[synthesizerKind](c.dropper("voicevox_synthesizer_delete"))
	c.models = ffi.NewClass[voiceModelFileKind](c.dropper("voicevox_voice_model_file_delete"))
	c.openJtalks = ffi.NewClass[openJtalkKind](c.dropper("voicevox_open_jtalk_rc_delete"))
	c.userDicts = ffi.NewClass[userDictKind](c.dropper("voicevox_user_dict_delete"))

	ret, err := funcs.Call("voicevox_get_version")
	if err != nil {
		return nil, err
	}
	if c.version, err = ffi.DecodeCString(funcs.Memory(), ret.Pointer()); err != nil {
		return nil, fmt.Errorf("voicevox_get_version: %w", err)
	}
	c.style = styleForVersion(c.version)
	c.log.Debug("voicevox core loaded",
		zap.String("version", c.version),
		zap.Bool("camel_case_query", c.style == camelCase),
		zap.Bool("load_once", funcs.Has("voicevox_onnxruntime_load_once")),
		zap.Bool("init_once", funcs.Has("voicevox_onnxruntime_init_once")))
	return c, nil
}

// Version 返回库版本。
func (c *Core) Version() string { return c.version }

// Close 卸载动态库。会等待进行中的 Async 调用结束。
// 之后由该库创建的对象都不可再使用，它们的 Close 不会再调用原生函数。
func (c *Core) Close() error {
	c.mu.Lock()
	c.ort, c.ortErr, c.devices = nil, nil, nil
	c.mu.Unlock()
	return c.funcs.Close()
}

// dropper 返回释放原生对象的函数。库卸载后什么都不做。
func (c *Core) dropper(name string) func(ffi.Pointer) {
	return func(p ffi.Pointer) {
		if _, err := c.funcs.Call(name, p); err != nil && !errors.Is(err, ffi.ErrClosed) {
			c.log.Warn("release native object", zap.String("func", name), zap.Error(err))
		}
	}
}

// callFunc 发起一次原生调用。同步路径直接调用，异步路径经由 ffi.Task。
type callFunc func(name string, args ...any) (ffi.Ret, error)

// run 执行只包含原生调用和结果拷贝的 fn。async 为 true 时 fn 在工作 goroutine 上执行，
// 其中 Varies 函数使用 _async 入口。keep 在原生调用结束前保持可达，等待方放弃时也一样。
func run[T any](ctx context.Context, c *Core, async bool, fn func(call callFunc) (T, error), keep ...any) (T, error) {
	return runOwned(ctx, c, async, fn, nil, keep...)
}

// runOwned 与 run 相同。异步调用被放弃而 fn 已经成功时，在工作 goroutine 上用
// discard 释放结果中的原生对象。
func runOwned[T any](ctx context.Context, c *Core, async bool, fn func(call callFunc) (T, error), discard func(call callFunc, v T), keep ...any) (T, error) {
	if !async {
		defer ffi.KeepAlive(keep...)
		return fn(c.funcs.Call)
	}
	var drop func(*ffi.Task, T)
	if discard != nil {
		drop = func(t *ffi.Task, v T) { discard(t.Call, v) }
	}
	return ffi.AwaitOwned(ctx, c.funcs, func(t *ffi.Task) (T, error) {
		t.Hold(keep...)
		return fn(func(name string, args ...any) (ffi.Ret, error) {
			if n := name + ffi.AsyncSuffix; c.funcs.Has(n) {
				name = n
			}
			return t.Call(name, args...)
		})
	}, drop)
}

// deleter 返回在异步任务中释放原生对象的 discard 函数。
func deleter(name string) func(call callFunc, p ffi.Pointer) {
	return func(call callFunc, p ffi.Pointer) {
		if p != 0 {
			_, _ = call(name, p)
		}
	}
}

// check 将非零状态码转换为 *Error。
func (c *Core) check(call callFunc, op string, ret ffi.Ret, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	code := ResultCode(ret.Int32())
	if code == ResultOK {
		return nil
	}
	e := &Error{Op: op, Code: code}
	if r, err := call("voicevox_error_result_to_message", int32(code)); err == nil {
		e.Message, _ = ffi.DecodeCString(c.funcs.Memory(), r.Pointer())
	}
	c.log.Debug("voicevox call failed", zap.String("func", op), zap.Stringer("code", code), zap.String("message", e.Message))
	return e
}

// takeJSON 拷贝并释放原生 JSON 字符串。
func (c *Core) takeJSON(call callFunc, p ffi.Pointer) (string, error) {
	return ffi.TakeCString(c.funcs.Memory(), p, func(p ffi.Pointer) {
		_, _ = call("voicevox_json_free", p)
	})
}

// takeWAV 拷贝并释放原生 WAV 缓冲区。
func (c *Core) takeWAV(call callFunc, p ffi.Pointer, n uint64) ([]byte, error) {
	return ffi.TakeBytes(c.funcs.Memory(), p, n, func(p ffi.Pointer) {
		_, _ = call("voicevox_wav_free", p)
	})
}

// defaults 调用 make_default_* 取得原生默认选项。
func (c *Core) defaults(name string, t *ffi.Type) (*ffi.Struct, error) {
	ret, err := c.funcs.Call(name)
	if err != nil {
		return nil, err
	}
	return ret.Struct(t)
}

func cstrings(ss ...string) ([][]byte, error) {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		b, err := ffi.EncodeCString(s)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
