package voicevox

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/iabetor/govoicevox/internal/ffi"
)

// Onnxruntime 是进程内共享的 ONNX Runtime，由原生库持有，不需要释放。
type Onnxruntime struct {
	core *Core
	raw  ffi.Pointer
}

// LoadOnnxruntime 加载或初始化 ONNX Runtime，每个 Core 只执行一次。
// 首次失败的错误会被缓存并在之后的调用中返回，直到 Core.Close。
func (c *Core) LoadOnnxruntime(opts *OnnxruntimeOptions) (*Onnxruntime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ort != nil {
		return c.ort, nil
	}
	if c.ortErr != nil {
		return nil, c.ortErr
	}
	raw, err := c.loadOnnxruntime(opts)
	if err != nil {
		c.ortErr = err
		return nil, err
	}
	c.ort = &Onnxruntime{core: c, raw: raw}
	return c.ort, nil
}

func (c *Core) loadOnnxruntime(opts *OnnxruntimeOptions) (ffi.Pointer, error) {
	var filename []byte
	if opts != nil && opts.Filename != "" {
		b, err := ffi.EncodeCString(opts.Filename)
		if err != nil {
			return 0, fmt.Errorf("onnxruntime filename: %w", err)
		}
		filename = b
	}

	out := ffi.NewCell()
	switch {
	case c.funcs.Has("voicevox_onnxruntime_load_once"):
		s := ffi.NewStruct(tLoadOnnxruntimeOptions)
		if c.funcs.Has("voicevox_make_default_load_onnxruntime_options") {
			d, err := c.defaults("voicevox_make_default_load_onnxruntime_options", tLoadOnnxruntimeOptions)
			if err != nil {
				return 0, err
			}
			s = d
		}
		var pinner runtime.Pinner
		defer pinner.Unpin()
		if filename != nil {
			s.SetPointer(0, ffi.Pin(&pinner, filename))
		}
		c.log.Debug("loading onnxruntime", zap.String("filename", string(filename)))
		ret, err := c.funcs.Call("voicevox_onnxruntime_load_once", s, out.Bytes())
		if err := c.check(c.funcs.Call, "voicevox_onnxruntime_load_once", ret, err); err != nil {
			return 0, err
		}
	case c.funcs.Has("voicevox_onnxruntime_init_once"):
		ret, err := c.funcs.Call("voicevox_onnxruntime_init_once", out.Bytes())
		if err := c.check(c.funcs.Call, "voicevox_onnxruntime_init_once", ret, err); err != nil {
			return 0, err
		}
	default:
		ret, err := c.funcs.Call("voicevox_onnxruntime_get")
		if err != nil {
			return 0, err
		}
		if ret.Pointer() == 0 {
			return 0, fmt.Errorf("onnxruntime: %w", ErrUnavailable)
		}
		return ret.Pointer(), nil
	}
	if out.Pointer() == 0 {
		return 0, fmt.Errorf("onnxruntime: %w", ffi.ErrNullPointer)
	}
	return out.Pointer(), nil
}

// Onnxruntime 返回已经初始化的 ONNX Runtime。LoadOnnxruntime 失败过时返回 false。
func (c *Core) Onnxruntime() (*Onnxruntime, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ort != nil {
		return c.ort, true
	}
	if c.ortErr != nil {
		return nil, false
	}
	ret, err := c.funcs.Call("voicevox_onnxruntime_get")
	if err != nil || ret.Pointer() == 0 {
		return nil, false
	}
	c.ort = &Onnxruntime{core: c, raw: ret.Pointer()}
	return c.ort, true
}

// OnnxruntimeLibFilenames 返回 ONNX Runtime 动态库的带版本和不带版本的文件名。
// 旧版本库不提供这些函数，此时返回 ErrUnavailable。
func (c *Core) OnnxruntimeLibFilenames() (versioned, unversioned string, err error) {
	get := func(name string) (string, error) {
		ret, err := c.funcs.Call(name)
		if err != nil {
			return "", err
		}
		return ffi.DecodeCString(c.funcs.Memory(), ret.Pointer())
	}
	if versioned, err = get("voicevox_get_onnxruntime_lib_versioned_filename"); err != nil {
		return "", "", err
	}
	if unversioned, err = get("voicevox_get_onnxruntime_lib_unversioned_filename"); err != nil {
		return "", "", err
	}
	return versioned, unversioned, nil
}

// SupportedDevices 返回可用设备，结果在 Core 内缓存。
func (o *Onnxruntime) SupportedDevices() (SupportedDevices, error) {
	if o == nil || o.core == nil {
		return SupportedDevices{}, ErrIllegalConstruction
	}
	c := o.core
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.devices != nil {
		return *c.devices, nil
	}

	out := ffi.NewCell()
	ret, err := c.funcs.Call("voicevox_onnxruntime_create_supported_devices_json", o.raw, out.Bytes())
	if err := c.check(c.funcs.Call, "voicevox_onnxruntime_create_supported_devices_json", ret, err); err != nil {
		return SupportedDevices{}, err
	}
	s, err := c.takeJSON(c.funcs.Call, out.Pointer())
	if err != nil {
		return SupportedDevices{}, err
	}
	var d SupportedDevices
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return SupportedDevices{}, fmt.Errorf("decode supported devices: %w", err)
	}
	c.devices = &d
	return d, nil
}

// IsUnavailable 报告 err 是否表示当前库版本缺少该功能。
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
