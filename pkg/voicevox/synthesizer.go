package voicevox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/iabetor/govoicevox/internal/ffi"
)

// Synthesizer 是音声合成器。
type Synthesizer struct {
	core   *Core
	handle *ffi.Handle[synthesizerKind]

	mu    sync.Mutex
	metas []SpeakerMeta
}

// NewSynthesizer 创建合成器。opts 中未设置的字段使用原生默认值。
func (c *Core) NewSynthesizer(ort *Onnxruntime, ojt *OpenJtalk, opts *SynthesizerOptions) (*Synthesizer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if ort == nil || ort.core != c {
		return nil, fmt.Errorf("voicevox_synthesizer_new: %w", ErrIllegalConstruction)
	}
	ojtRaw, err := ojt.raw()
	if err != nil {
		return nil, err
	}
	s, err := c.defaults("voicevox_make_default_initialize_options", tInitializeOptions)
	if err != nil {
		return nil, err
	}
	if err := opts.overlay(s); err != nil {
		return nil, err
	}
	out := ffi.NewCell()
	ret, err := c.funcs.Call("voicevox_synthesizer_new", ort.raw, ojtRaw, s, out.Bytes())
	ffi.KeepAlive(ojt.handle)
	if err := c.check(c.funcs.Call, "voicevox_synthesizer_new", ret, err); err != nil {
		return nil, err
	}
	return &Synthesizer{core: c, handle: c.synthesizers.Wrap(out.Pointer())}, nil
}

func (s *Synthesizer) raw() (ffi.Pointer, error) {
	if s == nil || s.handle == nil {
		return 0, ErrIllegalConstruction
	}
	return s.handle.Raw()
}

// Onnxruntime 返回合成器使用的 ONNX Runtime。
func (s *Synthesizer) Onnxruntime() (*Onnxruntime, error) {
	raw, err := s.raw()
	if err != nil {
		return nil, err
	}
	ret, err := s.core.funcs.Call("voicevox_synthesizer_get_onnxruntime", raw)
	ffi.KeepAlive(s.handle)
	if err != nil {
		return nil, err
	}
	return &Onnxruntime{core: s.core, raw: ret.Pointer()}, nil
}

// IsGPUMode 报告合成器是否运行在 GPU 上。
func (s *Synthesizer) IsGPUMode() (bool, error) {
	raw, err := s.raw()
	if err != nil {
		return false, err
	}
	ret, err := s.core.funcs.Call("voicevox_synthesizer_is_gpu_mode", raw)
	ffi.KeepAlive(s.handle)
	if err != nil {
		return false, err
	}
	return ret.Bool(), nil
}

// LoadVoiceModel 载入模型。
func (s *Synthesizer) LoadVoiceModel(model *VoiceModelFile) error {
	return s.loadVoiceModel(context.Background(), false, model)
}

// LoadVoiceModelAsync 是 LoadVoiceModel 的异步版本。
func (s *Synthesizer) LoadVoiceModelAsync(ctx context.Context, model *VoiceModelFile) error {
	return s.loadVoiceModel(ctx, true, model)
}

func (s *Synthesizer) loadVoiceModel(ctx context.Context, async bool, model *VoiceModelFile) error {
	raw, err := s.raw()
	if err != nil {
		return err
	}
	modelRaw, err := model.raw()
	if err != nil {
		return err
	}
	c := s.core
	_, err = run(ctx, c, async, func(call callFunc) (struct{}, error) {
		ret, err := call("voicevox_synthesizer_load_voice_model", raw, modelRaw)
		return struct{}{}, c.check(call, "voicevox_synthesizer_load_voice_model", ret, err)
	}, s.handle, model.handle)
	if err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// UnloadVoiceModel 卸载 UUID 为 id 的模型。
func (s *Synthesizer) UnloadVoiceModel(id string) error {
	raw, err := s.raw()
	if err != nil {
		return err
	}
	idBuf, err := ParseID(id)
	if err != nil {
		return err
	}
	ret, err := s.core.funcs.Call("voicevox_synthesizer_unload_voice_model", raw, idBuf)
	ffi.KeepAlive(s.handle)
	if err := s.core.check(s.core.funcs.Call, "voicevox_synthesizer_unload_voice_model", ret, err); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// IsLoadedVoiceModel 报告 UUID 为 id 的模型是否已载入。
func (s *Synthesizer) IsLoadedVoiceModel(id string) (bool, error) {
	raw, err := s.raw()
	if err != nil {
		return false, err
	}
	idBuf, err := ParseID(id)
	if err != nil {
		return false, err
	}
	ret, err := s.core.funcs.Call("voicevox_synthesizer_is_loaded_voice_model", raw, idBuf)
	ffi.KeepAlive(s.handle)
	if err != nil {
		return false, err
	}
	return ret.Bool(), nil
}

func (s *Synthesizer) invalidate() {
	s.mu.Lock()
	s.metas = nil
	s.mu.Unlock()
}

// Metas 返回所有已载入模型的角色元数据。结果会缓存到下一次成功的载入或卸载。
func (s *Synthesizer) Metas() ([]SpeakerMeta, error) {
	raw, err := s.raw()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metas != nil {
		return cloneMetas(s.metas), nil
	}
	c := s.core
	ret, err := c.funcs.Call("voicevox_synthesizer_create_metas_json", raw)
	ffi.KeepAlive(s.handle)
	if err != nil {
		return nil, fmt.Errorf("voicevox_synthesizer_create_metas_json: %w", err)
	}
	js, err := c.takeJSON(c.funcs.Call, ret.Pointer())
	if err != nil {
		return nil, err
	}
	metas, err := decodeMetas(js)
	if err != nil {
		return nil, err
	}
	s.metas = metas
	return cloneMetas(metas), nil
}

// textJSON 执行 “输入 → JSON 输出” 形式的原生函数。
func (s *Synthesizer) textJSON(ctx context.Context, async bool, op string, input []byte, styleID uint32) (string, error) {
	raw, err := s.raw()
	if err != nil {
		return "", err
	}
	c := s.core
	out := ffi.NewCell()
	return run(ctx, c, async, func(call callFunc) (string, error) {
		ret, err := call(op, raw, input, styleID, out.Bytes())
		if err := c.check(call, op, ret, err); err != nil {
			return "", err
		}
		return c.takeJSON(call, out.Pointer())
	}, s.handle, input, out)
}

func (s *Synthesizer) audioQuery(ctx context.Context, async bool, op, text string, styleID uint32) (*AudioQuery, error) {
	in, err := ffi.EncodeCString(text)
	if err != nil {
		return nil, err
	}
	js, err := s.textJSON(ctx, async, op, in, styleID)
	if err != nil {
		return nil, err
	}
	var q AudioQuery
	if err := json.Unmarshal([]byte(js), &q); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &q, nil
}

// CreateAudioQuery 从日语文本生成 AudioQuery。
func (s *Synthesizer) CreateAudioQuery(text string, styleID uint32) (*AudioQuery, error) {
	return s.audioQuery(context.Background(), false, "voicevox_synthesizer_create_audio_query", text, styleID)
}

// CreateAudioQueryAsync 是 CreateAudioQuery 的异步版本。
func (s *Synthesizer) CreateAudioQueryAsync(ctx context.Context, text string, styleID uint32) (*AudioQuery, error) {
	return s.audioQuery(ctx, true, "voicevox_synthesizer_create_audio_query", text, styleID)
}

// CreateAudioQueryFromKana 从 AquesTalk 风格的假名生成 AudioQuery。
func (s *Synthesizer) CreateAudioQueryFromKana(kana string, styleID uint32) (*AudioQuery, error) {
	return s.audioQuery(context.Background(), false, "voicevox_synthesizer_create_audio_query_from_kana", kana, styleID)
}

// CreateAudioQueryFromKanaAsync 是 CreateAudioQueryFromKana 的异步版本。
func (s *Synthesizer) CreateAudioQueryFromKanaAsync(ctx context.Context, kana string, styleID uint32) (*AudioQuery, error) {
	return s.audioQuery(ctx, true, "voicevox_synthesizer_create_audio_query_from_kana", kana, styleID)
}

func (s *Synthesizer) accentPhrases(ctx context.Context, async bool, op string, in []byte, styleID uint32) ([]AccentPhrase, error) {
	js, err := s.textJSON(ctx, async, op, in, styleID)
	if err != nil {
		return nil, err
	}
	phrases := []AccentPhrase{}
	if err := json.Unmarshal([]byte(js), &phrases); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return phrases, nil
}

func (s *Synthesizer) fromText(ctx context.Context, async bool, op, text string, styleID uint32) ([]AccentPhrase, error) {
	in, err := ffi.EncodeCString(text)
	if err != nil {
		return nil, err
	}
	return s.accentPhrases(ctx, async, op, in, styleID)
}

func (s *Synthesizer) replace(ctx context.Context, async bool, op string, phrases []AccentPhrase, styleID uint32) ([]AccentPhrase, error) {
	js, err := encodeAccentPhrases(phrases)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.accentPhrases(ctx, async, op, append(js, 0), styleID)
}

// CreateAccentPhrases 从日语文本生成重音句。
func (s *Synthesizer) CreateAccentPhrases(text string, styleID uint32) ([]AccentPhrase, error) {
	return s.fromText(context.Background(), false, "voicevox_synthesizer_create_accent_phrases", text, styleID)
}

// CreateAccentPhrasesAsync 是 CreateAccentPhrases 的异步版本。
func (s *Synthesizer) CreateAccentPhrasesAsync(ctx context.Context, text string, styleID uint32) ([]AccentPhrase, error) {
	return s.fromText(ctx, true, "voicevox_synthesizer_create_accent_phrases", text, styleID)
}

// CreateAccentPhrasesFromKana 从假名生成重音句。
func (s *Synthesizer) CreateAccentPhrasesFromKana(kana string, styleID uint32) ([]AccentPhrase, error) {
	return s.fromText(context.Background(), false, "voicevox_synthesizer_create_accent_phrases_from_kana", kana, styleID)
}

// CreateAccentPhrasesFromKanaAsync 是 CreateAccentPhrasesFromKana 的异步版本。
func (s *Synthesizer) CreateAccentPhrasesFromKanaAsync(ctx context.Context, kana string, styleID uint32) ([]AccentPhrase, error) {
	return s.fromText(ctx, true, "voicevox_synthesizer_create_accent_phrases_from_kana", kana, styleID)
}

// ReplaceMoraData 重新推断音高和音素长度。
func (s *Synthesizer) ReplaceMoraData(phrases []AccentPhrase, styleID uint32) ([]AccentPhrase, error) {
	return s.replace(context.Background(), false, "voicevox_synthesizer_replace_mora_data", phrases, styleID)
}

// ReplaceMoraDataAsync 是 ReplaceMoraData 的异步版本。
func (s *Synthesizer) ReplaceMoraDataAsync(ctx context.Context, phrases []AccentPhrase, styleID uint32) ([]AccentPhrase, error) {
	return s.replace(ctx, true, "voicevox_synthesizer_replace_mora_data", phrases, styleID)
}

// ReplacePhonemeLength 重新推断音素长度。
func (s *Synthesizer) ReplacePhonemeLength(phrases []AccentPhrase, styleID uint32) ([]AccentPhrase, error) {
	return s.replace(context.Background(), false, "voicevox_synthesizer_replace_phoneme_length", phrases, styleID)
}

// ReplacePhonemeLengthAsync 是 ReplacePhonemeLength 的异步版本。
func (s *Synthesizer) ReplacePhonemeLengthAsync(ctx context.Context, phrases []AccentPhrase, styleID uint32) ([]AccentPhrase, error) {
	return s.replace(ctx, true, "voicevox_synthesizer_replace_phoneme_length", phrases, styleID)
}

// ReplaceMoraPitch 重新推断音高。
func (s *Synthesizer) ReplaceMoraPitch(phrases []AccentPhrase, styleID uint32) ([]AccentPhrase, error) {
	return s.replace(context.Background(), false, "voicevox_synthesizer_replace_mora_pitch", phrases, styleID)
}

// ReplaceMoraPitchAsync 是 ReplaceMoraPitch 的异步版本。
func (s *Synthesizer) ReplaceMoraPitchAsync(ctx context.Context, phrases []AccentPhrase, styleID uint32) ([]AccentPhrase, error) {
	return s.replace(ctx, true, "voicevox_synthesizer_replace_mora_pitch", phrases, styleID)
}

// wav 执行输出 WAV 的原生函数，options 是已填好的按值结构体。
func (s *Synthesizer) wav(ctx context.Context, async bool, op string, input []byte, styleID uint32, options *ffi.Struct) ([]byte, error) {
	raw, err := s.raw()
	if err != nil {
		return nil, err
	}
	c := s.core
	length, ptr := ffi.NewCell(), ffi.NewCell()
	return run(ctx, c, async, func(call callFunc) ([]byte, error) {
		ret, err := call(op, raw, input, styleID, options, length.Bytes(), ptr.Bytes())
		if err := c.check(call, op, ret, err); err != nil {
			return nil, err
		}
		return c.takeWAV(call, ptr.Pointer(), length.Usize())
	}, s.handle, input, options, length, ptr)
}

func (s *Synthesizer) synthesis(ctx context.Context, async bool, query *AudioQuery, styleID uint32, opts *SynthesisOptions) ([]byte, error) {
	const op = "voicevox_synthesizer_synthesis"
	if query == nil {
		return nil, fmt.Errorf("%s: %w: nil audio query", op, ffi.ErrArgument)
	}
	if _, err := s.raw(); err != nil {
		return nil, err
	}
	js, err := query.encode(s.core.style)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	o, err := s.core.defaults("voicevox_make_default_synthesis_options", tSynthesisOptions)
	if err != nil {
		return nil, err
	}
	opts.overlay(o)
	return s.wav(ctx, async, op, append(js, 0), styleID, o)
}

// Synthesis 按 AudioQuery 合成 WAV。
func (s *Synthesizer) Synthesis(query *AudioQuery, styleID uint32, opts *SynthesisOptions) ([]byte, error) {
	return s.synthesis(context.Background(), false, query, styleID, opts)
}

// SynthesisAsync 是 Synthesis 的异步版本。
func (s *Synthesizer) SynthesisAsync(ctx context.Context, query *AudioQuery, styleID uint32, opts *SynthesisOptions) ([]byte, error) {
	return s.synthesis(ctx, true, query, styleID, opts)
}

func (s *Synthesizer) tts(ctx context.Context, async bool, op, text string, styleID uint32, opts *TTSOptions) ([]byte, error) {
	if _, err := s.raw(); err != nil {
		return nil, err
	}
	in, err := ffi.EncodeCString(text)
	if err != nil {
		return nil, err
	}
	o, err := s.core.defaults("voicevox_make_default_tts_options", tTtsOptions)
	if err != nil {
		return nil, err
	}
	opts.overlay(o)
	return s.wav(ctx, async, op, in, styleID, o)
}

// TTS 直接把日语文本合成为 WAV。
func (s *Synthesizer) TTS(text string, styleID uint32, opts *TTSOptions) ([]byte, error) {
	return s.tts(context.Background(), false, "voicevox_synthesizer_tts", text, styleID, opts)
}

// TTSAsync 是 TTS 的异步版本。
func (s *Synthesizer) TTSAsync(ctx context.Context, text string, styleID uint32, opts *TTSOptions) ([]byte, error) {
	return s.tts(ctx, true, "voicevox_synthesizer_tts", text, styleID, opts)
}

// TTSFromKana 把假名合成为 WAV。
func (s *Synthesizer) TTSFromKana(kana string, styleID uint32, opts *TTSOptions) ([]byte, error) {
	return s.tts(context.Background(), false, "voicevox_synthesizer_tts_from_kana", kana, styleID, opts)
}

// TTSFromKanaAsync 是 TTSFromKana 的异步版本。
func (s *Synthesizer) TTSFromKanaAsync(ctx context.Context, kana string, styleID uint32, opts *TTSOptions) ([]byte, error) {
	return s.tts(ctx, true, "voicevox_synthesizer_tts_from_kana", kana, styleID, opts)
}

// Close 释放原生对象，可重复调用。
func (s *Synthesizer) Close() error {
	if s == nil || s.handle == nil {
		return ErrIllegalConstruction
	}
	s.handle.Dispose()
	s.invalidate()
	return nil
}
