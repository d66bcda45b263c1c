package voicevox

import (
	"context"

	"github.com/iabetor/govoicevox/internal/ffi"
)

// OpenJtalk 是文本分析器，持有 Open JTalk 词典。
type OpenJtalk struct {
	core   *Core
	handle *ffi.Handle[openJtalkKind]
}

// NewOpenJtalk 用 dictDir 中的系统词典创建 OpenJtalk。
func (c *Core) NewOpenJtalk(dictDir string) (*OpenJtalk, error) {
	return c.newOpenJtalk(context.Background(), false, dictDir)
}

// NewOpenJtalkAsync 是 NewOpenJtalk 的异步版本。
func (c *Core) NewOpenJtalkAsync(ctx context.Context, dictDir string) (*OpenJtalk, error) {
	return c.newOpenJtalk(ctx, true, dictDir)
}

func (c *Core) newOpenJtalk(ctx context.Context, async bool, dictDir string) (*OpenJtalk, error) {
	dir, err := ffi.EncodeCString(dictDir)
	if err != nil {
		return nil, err
	}
	out := ffi.NewCell()
	raw, err := runOwned(ctx, c, async, func(call callFunc) (ffi.Pointer, error) {
		ret, err := call("voicevox_open_jtalk_rc_new", dir, out.Bytes())
		if err := c.check(call, "voicevox_open_jtalk_rc_new", ret, err); err != nil {
			return 0, err
		}
		return out.Pointer(), nil
	}, deleter("voicevox_open_jtalk_rc_delete"), dir, out)
	if err != nil {
		return nil, err
	}
	return &OpenJtalk{core: c, handle: c.openJtalks.Wrap(raw)}, nil
}

func (o *OpenJtalk) raw() (ffi.Pointer, error) {
	if o == nil || o.handle == nil {
		return 0, ErrIllegalConstruction
	}
	return o.handle.Raw()
}

// UseUserDict 让文本分析使用 dict 中的单词。
func (o *OpenJtalk) UseUserDict(dict *UserDict) error {
	return o.useUserDict(context.Background(), false, dict)
}

// UseUserDictAsync 是 UseUserDict 的异步版本。
func (o *OpenJtalk) UseUserDictAsync(ctx context.Context, dict *UserDict) error {
	return o.useUserDict(ctx, true, dict)
}

func (o *OpenJtalk) useUserDict(ctx context.Context, async bool, dict *UserDict) error {
	raw, err := o.raw()
	if err != nil {
		return err
	}
	dictRaw, err := dict.raw()
	if err != nil {
		return err
	}
	_, err = run(ctx, o.core, async, func(call callFunc) (struct{}, error) {
		ret, err := call("voicevox_open_jtalk_rc_use_user_dict", raw, dictRaw)
		return struct{}{}, o.core.check(call, "voicevox_open_jtalk_rc_use_user_dict", ret, err)
	}, o.handle, dict.handle)
	return err
}

// Close 释放原生对象，可重复调用。
func (o *OpenJtalk) Close() error {
	if o == nil || o.handle == nil {
		return ErrIllegalConstruction
	}
	o.handle.Dispose()
	return nil
}
