package voicevox

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mora 是一个音拍。
type Mora struct {
	Text            string   `json:"text"`
	Consonant       *string  `json:"consonant"`
	ConsonantLength *float64 `json:"consonant_length"`
	Vowel           string   `json:"vowel"`
	VowelLength     float64  `json:"vowel_length"`
	Pitch           float64  `json:"pitch"`
}

// AccentPhrase 是一个重音句。
type AccentPhrase struct {
	Moras           []Mora `json:"moras"`
	Accent          int    `json:"accent"`
	PauseMora       *Mora  `json:"pause_mora"`
	IsInterrogative bool   `json:"is_interrogative"`
}

// AudioQuery 是合成参数。
// 顶层字段在 0.16 之前的库里是 snake_case，之后是 camelCase；两种写法都能解码，
// 发送给原生库时使用已加载库的写法。
type AudioQuery struct {
	AccentPhrases      []AccentPhrase
	SpeedScale         float64
	PitchScale         float64
	IntonationScale    float64
	VolumeScale        float64
	PrePhonemeLength   float64
	PostPhonemeLength  float64
	OutputSamplingRate int
	OutputStereo       bool
	Kana               *string

	// Extra 保存未识别的顶层字段，编码时原样写回。
	Extra map[string]json.RawMessage
}

// SpeakerMeta 是一个角色的元数据。
type SpeakerMeta struct {
	Name        string      `json:"name"`
	Styles      []StyleMeta `json:"styles"`
	SpeakerUUID string      `json:"speaker_uuid"`
	Version     string      `json:"version"`
	Order       *int        `json:"order,omitempty"`
}

// StyleMeta 是角色的一种声音风格。
type StyleMeta struct {
	Name  string  `json:"name"`
	ID    uint32  `json:"id"`
	Type  *string `json:"type,omitempty"`
	Order *int    `json:"order,omitempty"`
}

// cloneMetas 深拷贝元数据，缓存不会被调用方修改。
func cloneMetas(metas []SpeakerMeta) []SpeakerMeta {
	out := make([]SpeakerMeta, len(metas))
	for i, sp := range metas {
		sp.Order = clonePtr(sp.Order)
		styles := make([]StyleMeta, len(sp.Styles))
		for j, st := range sp.Styles {
			st.Type = clonePtr(st.Type)
			st.Order = clonePtr(st.Order)
			styles[j] = st
		}
		sp.Styles = styles
		out[i] = sp
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// FindStyle 在 metas 中查找风格 id。
func FindStyle(metas []SpeakerMeta, id uint32) (SpeakerMeta, StyleMeta, bool) {
	for _, sp := range metas {
		for _, st := range sp.Styles {
			if st.ID == id {
				return sp, st, true
			}
		}
	}
	return SpeakerMeta{}, StyleMeta{}, false
}

// SupportedDevices 是 ONNX Runtime 可用的设备。
type SupportedDevices struct {
	CPU  bool `json:"cpu"`
	CUDA bool `json:"cuda"`
	DML  bool `json:"dml"`
}

// UserDictWord 是用户词典中的一个单词。
type UserDictWord struct {
	Surface       string       `json:"surface"`
	Pronunciation string       `json:"pronunciation"`
	AccentType    uint64       `json:"accent_type"`
	WordType      PartOfSpeech `json:"word_type"`
	Priority      uint32       `json:"priority"`
}

// UnmarshalJSON 将 PROPER_NOUN 形式的词性转换为 PartOfSpeech。
func (p *PartOfSpeech) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("word_type: %w", err)
	}
	*p = PartOfSpeech(strings.ToLower(strings.ReplaceAll(s, "_", " ")))
	return nil
}

// MarshalJSON 输出 PROPER_NOUN 形式。
func (p PartOfSpeech) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToUpper(strings.ReplaceAll(string(p), " ", "_")))
}
