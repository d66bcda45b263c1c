//go:build !cgo || !(linux || darwin || freebsd)

package dylib

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/iabetor/govoicevox/internal/ffi"
)

// ErrUnsupported 表示当前构建不支持动态调用（需要 cgo 和 libffi）。
var ErrUnsupported = errors.New("dynamic library calls require cgo and libffi")

// Library 在不支持的平台上无法构造。
type Library struct{}

// Open 总是返回 ErrUnsupported。
func Open(path string) (*Library, error) {
	return nil, fmt.Errorf("open %s on %s/%s: %w", path, runtime.GOOS, runtime.GOARCH, ErrUnsupported)
}

func (l *Library) Path() string { return "" }

func (l *Library) Lookup(name string, params []*ffi.Type, result *ffi.Type) (ffi.Func, error) {
	return nil, ErrUnsupported
}

func (l *Library) Read(p ffi.Pointer, n int) ([]byte, error) { return nil, ErrUnsupported }

func (l *Library) CString(p ffi.Pointer) (string, error) { return "", ErrUnsupported }

func (l *Library) Close() error { return nil }
