package tts

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/iabetor/govoicevox/internal/audio"
	"github.com/iabetor/govoicevox/internal/config"
	"github.com/iabetor/govoicevox/internal/database"
	"github.com/iabetor/govoicevox/internal/logger"
	"github.com/iabetor/govoicevox/pkg/voicevox"
)

// WAVSynthesizer 是 VoicevoxEngine 使用的合成能力，*voicevox.Synthesizer 实现了它。
type WAVSynthesizer interface {
	TTS(text string, styleID uint32, opts *voicevox.TTSOptions) ([]byte, error)
	TTSAsync(ctx context.Context, text string, styleID uint32, opts *voicevox.TTSOptions) ([]byte, error)
	TTSFromKana(kana string, styleID uint32, opts *voicevox.TTSOptions) ([]byte, error)
	TTSFromKanaAsync(ctx context.Context, kana string, styleID uint32, opts *voicevox.TTSOptions) ([]byte, error)
}

var _ Engine = (*VoicevoxEngine)(nil)

// VoicevoxEngine 使用 VOICEVOX CORE 实现语音合成，可选用 SQLite 缓存合成结果。
type VoicevoxEngine struct {
	synth   WAVSynthesizer
	version string
	voiceID uint32
	opts    *voicevox.TTSOptions
	async   bool
	cache   *database.SynthesisCache

	// 由 OpenVoicevox 创建、Close 时释放
	core   *voicevox.Core
	vsynth *voicevox.Synthesizer
	ojt    *voicevox.OpenJtalk
	dict   *voicevox.UserDict
	db     *database.DB
}

// NewVoicevoxEngine 用已有的合成器创建引擎。cache 可以为 nil。
func NewVoicevoxEngine(synth WAVSynthesizer, version string, sc config.SynthesizerConfig, cache *database.SynthesisCache) *VoicevoxEngine {
	e := &VoicevoxEngine{}
	e.configure(synth, version, sc, cache)
	return e
}

func (e *VoicevoxEngine) configure(synth WAVSynthesizer, version string, sc config.SynthesizerConfig, cache *database.SynthesisCache) {
	e.synth = synth
	e.version = version
	e.voiceID = sc.VoiceID
	e.async = sc.Async
	e.cache = cache
	if sc.InterrogativeUpspeak != nil {
		e.opts = &voicevox.TTSOptions{EnableInterrogativeUpspeak: voicevox.Ptr(*sc.InterrogativeUpspeak)}
	}
}

// SynthesizerOptions 把配置转换为合成器选项。
func SynthesizerOptions(sc config.SynthesizerConfig) *voicevox.SynthesizerOptions {
	opts := &voicevox.SynthesizerOptions{AccelerationMode: voicevox.AccelerationMode(sc.Acceleration)}
	if sc.NumThreads > 0 {
		opts.NumThreads = voicevox.Ptr(uint16(sc.NumThreads))
	}
	return opts
}

// OpenVoicevox 按配置加载原生库、ONNX Runtime、词典和模型，返回可用的引擎。
func OpenVoicevox(cfg *config.Config) (*VoicevoxEngine, error) {
	core, err := voicevox.Load(cfg.Core.Library, voicevox.WithLogger(logger.Named("voicevox")))
	if err != nil {
		return nil, fmt.Errorf("[tts] voicevox: 加载 %s 失败: %w", cfg.Core.Library, err)
	}
	e := &VoicevoxEngine{core: core}
	if err := e.open(cfg); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *VoicevoxEngine) open(cfg *config.Config) error {
	core := e.core
	logger.Infof("[tts] voicevox: 已加载 VOICEVOX CORE %s", core.Version())

	ort, err := core.LoadOnnxruntime(&voicevox.OnnxruntimeOptions{Filename: cfg.Core.Onnxruntime})
	if err != nil {
		return fmt.Errorf("[tts] voicevox: 加载 ONNX Runtime 失败: %w", err)
	}
	if e.ojt, err = core.NewOpenJtalk(cfg.Core.DictDir); err != nil {
		return fmt.Errorf("[tts] voicevox: 加载词典 %s 失败: %w", cfg.Core.DictDir, err)
	}
	if err := e.useUserDict(cfg.Core.UserDict); err != nil {
		return err
	}
	if e.vsynth, err = core.NewSynthesizer(ort, e.ojt, SynthesizerOptions(cfg.Synthesizer)); err != nil {
		return fmt.Errorf("[tts] voicevox: 创建合成器失败: %w", err)
	}
	if err = LoadModels(e.vsynth, core, cfg); err != nil {
		return err
	}

	var cache *database.SynthesisCache
	if cfg.Cache.Enabled {
		if e.db, err = database.Open(cfg.Cache.Path); err != nil {
			return err
		}
		if cache, err = database.NewSynthesisCache(e.db, cfg.Cache.MaxEntries); err != nil {
			return err
		}
	}

	e.configure(e.vsynth, core.Version(), cfg.Synthesizer, cache)
	return nil
}

// useUserDict 载入用户词典并应用到 OpenJtalk。文件不存在时跳过。
func (e *VoicevoxEngine) useUserDict(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warnf("[tts] voicevox: 跳过用户词典 %s: %v", path, err)
		return nil
	}
	var err error
	if e.dict, err = e.core.NewUserDict(); err != nil {
		return err
	}
	if err := e.dict.Load(path); err != nil {
		return fmt.Errorf("[tts] voicevox: 加载用户词典失败: %w", err)
	}
	return e.ojt.UseUserDict(e.dict)
}

// LoadModels 打开并载入配置中的所有 VVM 文件。模型文件载入后即关闭。
func LoadModels(synth *voicevox.Synthesizer, core *voicevox.Core, cfg *config.Config) error {
	files, err := cfg.ModelFiles()
	if err != nil {
		return err
	}
	for _, path := range files {
		model, err := core.OpenVoiceModelFile(path)
		if err != nil {
			return fmt.Errorf("[tts] voicevox: 打开模型 %s 失败: %w", path, err)
		}
		err = synth.LoadVoiceModel(model)
		id, _ := model.ID()
		model.Close()
		if err != nil && !errors.Is(err, &voicevox.Error{Code: voicevox.ResultModelAlreadyLoaded}) {
			return fmt.Errorf("[tts] voicevox: 载入模型 %s 失败: %w", path, err)
		}
		logger.Debugf("[tts] voicevox: 已载入模型 %s (%s)", path, id)
	}
	return nil
}

// Core 返回底层的 VOICEVOX CORE，引擎不是由 OpenVoicevox 创建时为 nil。
func (e *VoicevoxEngine) Core() *voicevox.Core { return e.core }

// Synthesizer 返回底层合成器，引擎不是由 OpenVoicevox 创建时为 nil。
func (e *VoicevoxEngine) Synthesizer() *voicevox.Synthesizer { return e.vsynth }

// VoiceID 返回默认使用的风格 ID。
func (e *VoicevoxEngine) VoiceID() uint32 { return e.voiceID }

// Synthesize 将日语文本合成为单声道 float32 音频样本。
func (e *VoicevoxEngine) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	wav, err := e.SynthesizeWAV(ctx, text, e.voiceID, false)
	if err != nil {
		return nil, 0, err
	}
	samples, rate, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] voicevox: 解码 WAV 失败: %w", err)
	}
	logger.Debugf("[tts] voicevox: 生成 %d 个样本，采样率 %d", len(samples), rate)
	return samples, rate, nil
}

// SynthesizeWAV 合成 WAV。kana 为 true 时 text 按 AquesTalk 风格假名解释。
func (e *VoicevoxEngine) SynthesizeWAV(ctx context.Context, text string, styleID uint32, kana bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := database.CacheKey{
		Version: e.version,
		StyleID: styleID,
		Text:    text,
		Kana:    kana,
		Options: e.optionsKey(),
	}
	if e.cache != nil {
		wav, ok, err := e.cache.Get(key)
		if err != nil {
			logger.Warnf("[tts] voicevox: 读取缓存失败: %v", err)
		} else if ok {
			logger.Debugf("[tts] voicevox: 命中缓存 (%d 字节)", len(wav))
			return wav, nil
		}
	}

	logger.Debugf("[tts] voicevox: 正在合成 %d 个字符，风格=%d", len([]rune(text)), styleID)
	wav, err := e.call(ctx, text, styleID, kana)
	if err != nil {
		return nil, fmt.Errorf("[tts] voicevox 合成失败: %w", err)
	}

	if e.cache != nil {
		if err := e.cache.Put(key, wav); err != nil {
			logger.Warnf("[tts] voicevox: 写入缓存失败: %v", err)
		}
	}
	return wav, nil
}

func (e *VoicevoxEngine) call(ctx context.Context, text string, styleID uint32, kana bool) ([]byte, error) {
	switch {
	case kana && e.async:
		return e.synth.TTSFromKanaAsync(ctx, text, styleID, e.opts)
	case kana:
		return e.synth.TTSFromKana(text, styleID, e.opts)
	case e.async:
		return e.synth.TTSAsync(ctx, text, styleID, e.opts)
	default:
		return e.synth.TTS(text, styleID, e.opts)
	}
}

func (e *VoicevoxEngine) optionsKey() string {
	if e.opts == nil || e.opts.EnableInterrogativeUpspeak == nil {
		return ""
	}
	if *e.opts.EnableInterrogativeUpspeak {
		return "upspeak=1"
	}
	return "upspeak=0"
}

// Close 释放引擎持有的所有原生对象并卸载库。
func (e *VoicevoxEngine) Close() error {
	var errs []error
	if e.vsynth != nil {
		errs = append(errs, e.vsynth.Close())
	}
	if e.ojt != nil {
		errs = append(errs, e.ojt.Close())
	}
	if e.dict != nil {
		errs = append(errs, e.dict.Close())
	}
	if e.db != nil {
		errs = append(errs, e.db.Close())
	}
	if e.core != nil {
		errs = append(errs, e.core.Close())
	}
	return errors.Join(errs...)
}
