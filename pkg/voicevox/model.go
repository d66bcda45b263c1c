package voicevox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/iabetor/govoicevox/internal/ffi"
)

// VoiceModelFile 是打开的 VVM 音声模型文件。
type VoiceModelFile struct {
	core   *Core
	handle *ffi.Handle[voiceModelFileKind]
	id     string

	mu    sync.Mutex
	metas []SpeakerMeta
}

// OpenVoiceModelFile 打开 path 指向的 VVM 文件。
func (c *Core) OpenVoiceModelFile(path string) (*VoiceModelFile, error) {
	return c.openVoiceModelFile(context.Background(), false, path)
}

// OpenVoiceModelFileAsync 是 OpenVoiceModelFile 的异步版本。
func (c *Core) OpenVoiceModelFileAsync(ctx context.Context, path string) (*VoiceModelFile, error) {
	return c.openVoiceModelFile(ctx, true, path)
}

func (c *Core) openVoiceModelFile(ctx context.Context, async bool, path string) (*VoiceModelFile, error) {
	p, err := ffi.EncodeCString(path)
	if err != nil {
		return nil, err
	}
	out := ffi.NewCell()
	raw, err := runOwned(ctx, c, async, func(call callFunc) (ffi.Pointer, error) {
		ret, err := call("voicevox_voice_model_file_open", p, out.Bytes())
		if err := c.check(call, "voicevox_voice_model_file_open", ret, err); err != nil {
			return 0, err
		}
		return out.Pointer(), nil
	}, deleter("voicevox_voice_model_file_delete"), p, out)
	if err != nil {
		return nil, err
	}
	m := &VoiceModelFile{core: c, handle: c.models.Wrap(raw)}

	idBuf := make([]byte, 16)
	if _, err := c.funcs.Call("voicevox_voice_model_file_id", raw, idBuf); err != nil {
		m.handle.Dispose()
		return nil, fmt.Errorf("voicevox_voice_model_file_id: %w", err)
	}
	if m.id, err = FormatID(idBuf); err != nil {
		m.handle.Dispose()
		return nil, err
	}
	return m, nil
}

func (m *VoiceModelFile) raw() (ffi.Pointer, error) {
	if m == nil || m.handle == nil {
		return 0, ErrIllegalConstruction
	}
	return m.handle.Raw()
}

// ID 返回模型的 UUID。
func (m *VoiceModelFile) ID() (string, error) {
	if _, err := m.raw(); err != nil {
		return "", err
	}
	return m.id, nil
}

// Metas 返回模型包含的角色元数据。
func (m *VoiceModelFile) Metas() ([]SpeakerMeta, error) {
	raw, err := m.raw()
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.metas != nil {
		return cloneMetas(m.metas), nil
	}
	c := m.core
	ret, err := c.funcs.Call("voicevox_voice_model_file_create_metas_json", raw)
	ffi.KeepAlive(m.handle)
	if err != nil {
		return nil, fmt.Errorf("voicevox_voice_model_file_create_metas_json: %w", err)
	}
	s, err := c.takeJSON(c.funcs.Call, ret.Pointer())
	if err != nil {
		return nil, err
	}
	metas, err := decodeMetas(s)
	if err != nil {
		return nil, err
	}
	m.metas = metas
	return cloneMetas(metas), nil
}

// Close 释放原生对象，可重复调用。
func (m *VoiceModelFile) Close() error {
	if m == nil || m.handle == nil {
		return ErrIllegalConstruction
	}
	m.handle.Dispose()
	m.mu.Lock()
	m.metas = nil
	m.mu.Unlock()
	return nil
}

func decodeMetas(s string) ([]SpeakerMeta, error) {
	metas := []SpeakerMeta{}
	if err := json.Unmarshal([]byte(s), &metas); err != nil {
		return nil, fmt.Errorf("decode speaker metas: %w", err)
	}
	return metas, nil
}
