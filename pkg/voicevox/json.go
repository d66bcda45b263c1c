package voicevox

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type keyStyle int

const (
	snakeCase keyStyle = iota
	camelCase
)

// camelCaseSince 是 AudioQuery 顶层字段改为 camelCase 的库版本。
var camelCaseSince = [2]int{0, 16}

// styleForVersion 根据 "0.16.0" 形式的版本号选择字段写法，无法解析时使用最新写法。
func styleForVersion(version string) keyStyle {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return camelCase
	}
	major, err1 := strconv.Atoi(parts[0])
	minor, err2 := strconv.Atoi(strings.TrimLeftFunc(parts[1], func(r rune) bool { return r < '0' || r > '9' }))
	if err1 != nil || err2 != nil {
		return camelCase
	}
	if major > camelCaseSince[0] || (major == camelCaseSince[0] && minor >= camelCaseSince[1]) {
		return camelCase
	}
	return snakeCase
}

type queryKey struct{ snake, camel string }

func (k queryKey) in(style keyStyle) string {
	if style == camelCase {
		return k.camel
	}
	return k.snake
}

var (
	keyAccentPhrases      = queryKey{"accent_phrases", "accent_phrases"}
	keySpeedScale         = queryKey{"speed_scale", "speedScale"}
	keyPitchScale         = queryKey{"pitch_scale", "pitchScale"}
	keyIntonationScale    = queryKey{"intonation_scale", "intonationScale"}
	keyVolumeScale        = queryKey{"volume_scale", "volumeScale"}
	keyPrePhonemeLength   = queryKey{"pre_phoneme_length", "prePhonemeLength"}
	keyPostPhonemeLength  = queryKey{"post_phoneme_length", "postPhonemeLength"}
	keyOutputSamplingRate = queryKey{"output_sampling_rate", "outputSamplingRate"}
	keyOutputStereo       = queryKey{"output_stereo", "outputStereo"}
	keyKana               = queryKey{"kana", "kana"}
)

func (q *AudioQuery) fields() []struct {
	key queryKey
	ptr any
} {
	return []struct {
		key queryKey
		ptr any
	}{
		{keyAccentPhrases, &q.AccentPhrases},
		{keySpeedScale, &q.SpeedScale},
		{keyPitchScale, &q.PitchScale},
		{keyIntonationScale, &q.IntonationScale},
		{keyVolumeScale, &q.VolumeScale},
		{keyPrePhonemeLength, &q.PrePhonemeLength},
		{keyPostPhonemeLength, &q.PostPhonemeLength},
		{keyOutputSamplingRate, &q.OutputSamplingRate},
		{keyOutputStereo, &q.OutputStereo},
		{keyKana, &q.Kana},
	}
}

// UnmarshalJSON 接受 snake_case 和 camelCase 两种写法。
func (q *AudioQuery) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("audio query: %w", err)
	}
	var out AudioQuery
	for _, f := range out.fields() {
		key := f.key.snake
		v, ok := raw[key]
		if !ok {
			key = f.key.camel
			if v, ok = raw[key]; !ok {
				continue
			}
		}
		delete(raw, key)
		if err := json.Unmarshal(v, f.ptr); err != nil {
			return fmt.Errorf("audio query %s: %w", key, err)
		}
	}
	if len(raw) > 0 {
		out.Extra = raw
	}
	*q = out
	return nil
}

// MarshalJSON 使用 camelCase 写法。
func (q AudioQuery) MarshalJSON() ([]byte, error) {
	return q.encode(camelCase)
}

func (q *AudioQuery) encode(style keyStyle) ([]byte, error) {
	m := make(map[string]any, len(q.Extra)+10)
	for k, v := range q.Extra {
		m[k] = v
	}
	for _, f := range q.fields() {
		m[f.key.in(style)] = f.ptr
	}
	if q.AccentPhrases == nil {
		m[keyAccentPhrases.in(style)] = []AccentPhrase{}
	}
	if q.Kana == nil {
		delete(m, keyKana.in(style))
	}
	return json.Marshal(m)
}

func encodeAccentPhrases(phrases []AccentPhrase) ([]byte, error) {
	if phrases == nil {
		phrases = []AccentPhrase{}
	}
	return json.Marshal(phrases)
}
