package voicevox

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/iabetor/govoicevox/internal/ffi"
)

// UserDict 是用户词典。
type UserDict struct {
	core   *Core
	handle *ffi.Handle[userDictKind]
}

// NewUserDict 创建空的用户词典。
func (c *Core) NewUserDict() (*UserDict, error) {
	ret, err := c.funcs.Call("voicevox_user_dict_new")
	if err != nil {
		return nil, fmt.Errorf("voicevox_user_dict_new: %w", err)
	}
	if ret.Pointer() == 0 {
		return nil, fmt.Errorf("voicevox_user_dict_new: %w", ffi.ErrNullPointer)
	}
	return &UserDict{core: c, handle: c.userDicts.Wrap(ret.Pointer())}, nil
}

func (d *UserDict) raw() (ffi.Pointer, error) {
	if d == nil || d.handle == nil {
		return 0, ErrIllegalConstruction
	}
	return d.handle.Raw()
}

// word 构造原生单词结构。surface 和 pronunciation 被固定在 pinner 上，
// 结构体中的指针在 pinner.Unpin 之前有效。
func (d *UserDict) word(pinner *runtime.Pinner, surface, pronunciation string, opts *WordOptions) (*ffi.Struct, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	bufs, err := cstrings(surface, pronunciation)
	if err != nil {
		return nil, err
	}
	ret, err := d.core.funcs.Call("voicevox_user_dict_word_make", bufs[0], bufs[1])
	if err != nil {
		return nil, fmt.Errorf("voicevox_user_dict_word_make: %w", err)
	}
	s, err := ret.Struct(tUserDictWord)
	if err != nil {
		return nil, err
	}
	s.SetPointer(0, ffi.Pin(pinner, bufs[0]))
	s.SetPointer(1, ffi.Pin(pinner, bufs[1]))
	if err := opts.overlay(s); err != nil {
		return nil, err
	}
	return s, nil
}

// AddWord 添加单词并返回其 UUID。
func (d *UserDict) AddWord(surface, pronunciation string, opts *WordOptions) (string, error) {
	raw, err := d.raw()
	if err != nil {
		return "", err
	}
	var pinner runtime.Pinner
	defer pinner.Unpin()
	w, err := d.word(&pinner, surface, pronunciation, opts)
	if err != nil {
		return "", err
	}
	id := make([]byte, 16)
	ret, err := d.core.funcs.Call("voicevox_user_dict_add_word", raw, w.Bytes(), id)
	ffi.KeepAlive(d.handle)
	if err := d.core.check(d.core.funcs.Call, "voicevox_user_dict_add_word", ret, err); err != nil {
		return "", err
	}
	return FormatID(id)
}

// UpdateWord 替换 id 对应的单词。
func (d *UserDict) UpdateWord(id, surface, pronunciation string, opts *WordOptions) error {
	raw, err := d.raw()
	if err != nil {
		return err
	}
	idBuf, err := ParseID(id)
	if err != nil {
		return err
	}
	var pinner runtime.Pinner
	defer pinner.Unpin()
	w, err := d.word(&pinner, surface, pronunciation, opts)
	if err != nil {
		return err
	}
	ret, err := d.core.funcs.Call("voicevox_user_dict_update_word", raw, idBuf, w.Bytes())
	ffi.KeepAlive(d.handle)
	return d.core.check(d.core.funcs.Call, "voicevox_user_dict_update_word", ret, err)
}

// RemoveWord 删除 id 对应的单词。
func (d *UserDict) RemoveWord(id string) error {
	raw, err := d.raw()
	if err != nil {
		return err
	}
	idBuf, err := ParseID(id)
	if err != nil {
		return err
	}
	ret, err := d.core.funcs.Call("voicevox_user_dict_remove_word", raw, idBuf)
	ffi.KeepAlive(d.handle)
	return d.core.check(d.core.funcs.Call, "voicevox_user_dict_remove_word", ret, err)
}

// Import 把 other 中的单词合并进来。
func (d *UserDict) Import(other *UserDict) error {
	raw, err := d.raw()
	if err != nil {
		return err
	}
	otherRaw, err := other.raw()
	if err != nil {
		return err
	}
	ret, err := d.core.funcs.Call("voicevox_user_dict_import", raw, otherRaw)
	ffi.KeepAlive(d.handle, other.handle)
	return d.core.check(d.core.funcs.Call, "voicevox_user_dict_import", ret, err)
}

// Load 从文件读取单词并合并。
func (d *UserDict) Load(path string) error {
	return d.file(context.Background(), false, "voicevox_user_dict_load", path)
}

// LoadAsync 是 Load 的异步版本。
func (d *UserDict) LoadAsync(ctx context.Context, path string) error {
	return d.file(ctx, true, "voicevox_user_dict_load", path)
}

// Save 把词典写入文件。
func (d *UserDict) Save(path string) error {
	return d.file(context.Background(), false, "voicevox_user_dict_save", path)
}

// SaveAsync 是 Save 的异步版本。
func (d *UserDict) SaveAsync(ctx context.Context, path string) error {
	return d.file(ctx, true, "voicevox_user_dict_save", path)
}

func (d *UserDict) file(ctx context.Context, async bool, op, path string) error {
	raw, err := d.raw()
	if err != nil {
		return err
	}
	p, err := ffi.EncodeCString(path)
	if err != nil {
		return err
	}
	_, err = run(ctx, d.core, async, func(call callFunc) (struct{}, error) {
		ret, err := call(op, raw, p)
		return struct{}{}, d.core.check(call, op, ret, err)
	}, d.handle, p)
	return err
}

// ToJSON 返回原生库序列化的词典 JSON。
func (d *UserDict) ToJSON() (string, error) {
	raw, err := d.raw()
	if err != nil {
		return "", err
	}
	out := ffi.NewCell()
	ret, err := d.core.funcs.Call("voicevox_user_dict_to_json", raw, out.Bytes())
	ffi.KeepAlive(d.handle)
	if err := d.core.check(d.core.funcs.Call, "voicevox_user_dict_to_json", ret, err); err != nil {
		return "", err
	}
	return d.core.takeJSON(d.core.funcs.Call, out.Pointer())
}

// Words 返回以 UUID 为键的所有单词。
func (d *UserDict) Words() (map[string]UserDictWord, error) {
	s, err := d.ToJSON()
	if err != nil {
		return nil, err
	}
	words := make(map[string]UserDictWord)
	if err := json.Unmarshal([]byte(s), &words); err != nil {
		return nil, fmt.Errorf("decode user dict: %w", err)
	}
	return words, nil
}

// Close 释放原生对象，可重复调用。
func (d *UserDict) Close() error {
	if d == nil || d.handle == nil {
		return ErrIllegalConstruction
	}
	d.handle.Dispose()
	return nil
}
