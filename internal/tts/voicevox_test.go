package tts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/iabetor/govoicevox/internal/audio"
	"github.com/iabetor/govoicevox/internal/config"
	"github.com/iabetor/govoicevox/internal/database"
	"github.com/iabetor/govoicevox/pkg/voicevox"
)

type stubSynth struct {
	calls []string
	opts  *voicevox.TTSOptions
	err   error
}

func (s *stubSynth) wav(kind string, opts *voicevox.TTSOptions) ([]byte, error) {
	s.calls = append(s.calls, kind)
	s.opts = opts
	if s.err != nil {
		return nil, s.err
	}
	return audio.EncodeWAV([]float32{0, 0.5, -0.5}, 24000), nil
}

func (s *stubSynth) TTS(_ string, _ uint32, o *voicevox.TTSOptions) ([]byte, error) {
	return s.wav("tts", o)
}

func (s *stubSynth) TTSAsync(_ context.Context, _ string, _ uint32, o *voicevox.TTSOptions) ([]byte, error) {
	return s.wav("tts-async", o)
}

func (s *stubSynth) TTSFromKana(_ string, _ uint32, o *voicevox.TTSOptions) ([]byte, error) {
	return s.wav("kana", o)
}

func (s *stubSynth) TTSFromKanaAsync(_ context.Context, _ string, _ uint32, o *voicevox.TTSOptions) ([]byte, error) {
	return s.wav("kana-async", o)
}

func newCache(t *testing.T) *database.SynthesisCache {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	c, err := database.NewSynthesisCache(db, 10)
	if err != nil {
		t.Fatalf("NewSynthesisCache failed: %v", err)
	}
	return c
}

func TestVoicevoxEngine_Synthesize(t *testing.T) {
	s := &stubSynth{}
	e := NewVoicevoxEngine(s, "0.16.0", config.SynthesizerConfig{VoiceID: 2}, nil)

	samples, rate, err := e.Synthesize(context.Background(), "こんにちは")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if rate != 24000 || len(samples) != 3 {
		t.Errorf("got %d samples @ %d Hz", len(samples), rate)
	}
	if len(s.calls) != 1 || s.calls[0] != "tts" {
		t.Errorf("calls: %v", s.calls)
	}
}

func TestVoicevoxEngine_Dispatch(t *testing.T) {
	upspeak := false
	tests := []struct {
		name  string
		async bool
		kana  bool
		want  string
	}{
		{"sync text", false, false, "tts"},
		{"async text", true, false, "tts-async"},
		{"sync kana", false, true, "kana"},
		{"async kana", true, true, "kana-async"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stubSynth{}
			e := NewVoicevoxEngine(s, "0.16.0", config.SynthesizerConfig{Async: tt.async, InterrogativeUpspeak: &upspeak}, nil)
			if _, err := e.SynthesizeWAV(context.Background(), "テスト", 1, tt.kana); err != nil {
				t.Fatalf("SynthesizeWAV failed: %v", err)
			}
			if len(s.calls) != 1 || s.calls[0] != tt.want {
				t.Errorf("calls: %v, want [%s]", s.calls, tt.want)
			}
			if s.opts == nil || *s.opts.EnableInterrogativeUpspeak {
				t.Errorf("tts options not forwarded: %+v", s.opts)
			}
		})
	}
}

func TestVoicevoxEngine_Cache(t *testing.T) {
	s := &stubSynth{}
	e := NewVoicevoxEngine(s, "0.16.0", config.SynthesizerConfig{VoiceID: 2}, newCache(t))
	ctx := context.Background()

	first, err := e.SynthesizeWAV(ctx, "キャッシュ", 2, false)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	second, err := e.SynthesizeWAV(ctx, "キャッシュ", 2, false)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if string(first) != string(second) {
		t.Error("cached WAV differs")
	}
	if len(s.calls) != 1 {
		t.Errorf("synthesizer called %d times, want 1", len(s.calls))
	}

	// 不同风格不命中
	if _, err := e.SynthesizeWAV(ctx, "キャッシュ", 3, false); err != nil {
		t.Fatal(err)
	}
	if len(s.calls) != 2 {
		t.Errorf("synthesizer called %d times, want 2", len(s.calls))
	}
}

func TestVoicevoxEngine_Errors(t *testing.T) {
	native := &voicevox.Error{Op: "voicevox_synthesizer_tts", Code: voicevox.ResultStyleNotFound, Message: "not found"}
	s := &stubSynth{err: native}
	c := newCache(t)
	e := NewVoicevoxEngine(s, "0.16.0", config.SynthesizerConfig{}, c)

	_, _, err := e.Synthesize(context.Background(), "あ")
	if !errors.Is(err, &voicevox.Error{Code: voicevox.ResultStyleNotFound}) {
		t.Errorf("err = %v, want STYLE_NOT_FOUND", err)
	}
	if st, _ := c.Stats(); st.Entries != 0 {
		t.Errorf("failed synthesis was cached: %+v", st)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := e.Synthesize(ctx, "あ"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSynthesizerOptions(t *testing.T) {
	opts := SynthesizerOptions(config.SynthesizerConfig{Acceleration: "cpu"})
	if opts.AccelerationMode != voicevox.AccelerationCPU || opts.NumThreads != nil {
		t.Errorf("got %+v", opts)
	}
	opts = SynthesizerOptions(config.SynthesizerConfig{Acceleration: "gpu", NumThreads: 6})
	if opts.AccelerationMode != voicevox.AccelerationGPU || opts.NumThreads == nil || *opts.NumThreads != 6 {
		t.Errorf("got %+v", opts)
	}
}
