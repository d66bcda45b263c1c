package voicevox

import (
	"fmt"

	"github.com/iabetor/govoicevox/internal/ffi"
)

// AccelerationMode 是推理设备选择方式。
type AccelerationMode string

const (
	AccelerationAuto AccelerationMode = "auto"
	AccelerationCPU  AccelerationMode = "cpu"
	AccelerationGPU  AccelerationMode = "gpu"
)

func (m AccelerationMode) native() (int32, error) {
	switch m {
	case AccelerationAuto:
		return 0, nil
	case AccelerationCPU:
		return 1, nil
	case AccelerationGPU:
		return 2, nil
	}
	return 0, fmt.Errorf(`%w: acceleration mode %q; accepted values are "auto", "cpu" and "gpu"`, ErrOutOfRange, string(m))
}

// PartOfSpeech 是用户词典单词的词性。
type PartOfSpeech string

const (
	ProperNoun PartOfSpeech = "proper noun"
	CommonNoun PartOfSpeech = "common noun"
	Verb       PartOfSpeech = "verb"
	Adjective  PartOfSpeech = "adjective"
	Suffix     PartOfSpeech = "suffix"
)

func (p PartOfSpeech) native() (int32, error) {
	switch p {
	case ProperNoun:
		return 0, nil
	case CommonNoun:
		return 1, nil
	case Verb:
		return 2, nil
	case Adjective:
		return 3, nil
	case Suffix:
		return 4, nil
	}
	return 0, fmt.Errorf(`%w: part of speech %q; accepted values are "proper noun", "common noun", "verb", "adjective" and "suffix"`, ErrOutOfRange, string(p))
}

// Ptr 返回 v 的指针，便于填写可选字段。
func Ptr[T any](v T) *T { return &v }

// 以下选项结构中，nil（或空字符串）字段保留原生库的默认值。

// SynthesizerOptions 是创建 Synthesizer 的选项。
type SynthesizerOptions struct {
	AccelerationMode AccelerationMode
	NumThreads       *uint16
}

func (o *SynthesizerOptions) validate() error {
	if o == nil || o.AccelerationMode == "" {
		return nil
	}
	_, err := o.AccelerationMode.native()
	return err
}

func (o *SynthesizerOptions) overlay(s *ffi.Struct) error {
	if o == nil {
		return nil
	}
	if o.AccelerationMode != "" {
		v, err := o.AccelerationMode.native()
		if err != nil {
			return err
		}
		s.SetInt32(0, v)
	}
	if o.NumThreads != nil {
		s.SetUint16(1, *o.NumThreads)
	}
	return nil
}

// SynthesisOptions 是 Synthesis 的选项。
type SynthesisOptions struct {
	EnableInterrogativeUpspeak *bool
}

func (o *SynthesisOptions) overlay(s *ffi.Struct) {
	if o != nil && o.EnableInterrogativeUpspeak != nil {
		s.SetBool(0, *o.EnableInterrogativeUpspeak)
	}
}

// TTSOptions 是 TTS 的选项。
type TTSOptions struct {
	EnableInterrogativeUpspeak *bool
}

func (o *TTSOptions) overlay(s *ffi.Struct) {
	if o != nil && o.EnableInterrogativeUpspeak != nil {
		s.SetBool(0, *o.EnableInterrogativeUpspeak)
	}
}

// WordOptions 是用户词典单词的可选属性。
type WordOptions struct {
	AccentType   *uint64
	PartOfSpeech PartOfSpeech
	Priority     *uint32
}

func (o *WordOptions) validate() error {
	if o == nil || o.PartOfSpeech == "" {
		return nil
	}
	_, err := o.PartOfSpeech.native()
	return err
}

func (o *WordOptions) overlay(s *ffi.Struct) error {
	if o == nil {
		return nil
	}
	if o.AccentType != nil {
		s.SetUsize(2, *o.AccentType)
	}
	if o.PartOfSpeech != "" {
		v, err := o.PartOfSpeech.native()
		if err != nil {
			return err
		}
		s.SetInt32(3, v)
	}
	if o.Priority != nil {
		s.SetUint32(4, *o.Priority)
	}
	return nil
}

// OnnxruntimeOptions 是加载 ONNX Runtime 的选项。
type OnnxruntimeOptions struct {
	// Filename 是 ONNX Runtime 动态库的路径或文件名，空表示使用原生默认值。
	Filename string
}
