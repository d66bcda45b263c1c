package voicevox

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestStyleForVersion(t *testing.T) {
	tests := []struct {
		version string
		want    keyStyle
	}{
		{"0.15.4", snakeCase},
		{"0.14.0", snakeCase},
		{"0.16.0", camelCase},
		{"0.16.0-preview.1", camelCase},
		{"1.0.0", camelCase},
		{"unknown", camelCase},
	}
	for _, tt := range tests {
		if got := styleForVersion(tt.version); got != tt.want {
			t.Errorf("styleForVersion(%q) = %v, want %v", tt.version, got, tt.want)
		}
	}
}

const snakeQuery = `{
	"accent_phrases": [{"moras": [{"text": "ア", "consonant": null, "consonant_length": null, "vowel": "a", "vowel_length": 0.1, "pitch": 5.5}], "accent": 1, "pause_mora": null, "is_interrogative": false}],
	"speed_scale": 1.2, "pitch_scale": 0.1, "intonation_scale": 1, "volume_scale": 0.9,
	"pre_phoneme_length": 0.1, "post_phoneme_length": 0.2,
	"output_sampling_rate": 24000, "output_stereo": true, "kana": "ア'"
}`

const camelQuery = `{
	"accent_phrases": [{"moras": [{"text": "ア", "consonant": null, "consonant_length": null, "vowel": "a", "vowel_length": 0.1, "pitch": 5.5}], "accent": 1, "pause_mora": null, "is_interrogative": false}],
	"speedScale": 1.2, "pitchScale": 0.1, "intonationScale": 1, "volumeScale": 0.9,
	"prePhonemeLength": 0.1, "postPhonemeLength": 0.2,
	"outputSamplingRate": 24000, "outputStereo": true, "kana": "ア'",
	"pauseLengthScale": 1
}`

func TestAudioQueryDecodesBothStyles(t *testing.T) {
	var snake, camel AudioQuery
	if err := json.Unmarshal([]byte(snakeQuery), &snake); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(camelQuery), &camel); err != nil {
		t.Fatal(err)
	}
	if snake.SpeedScale != 1.2 || snake.OutputSamplingRate != 24000 || !snake.OutputStereo {
		t.Errorf("snake decode = %+v", snake)
	}
	if snake.Kana == nil || *snake.Kana != "ア'" {
		t.Errorf("kana = %v", snake.Kana)
	}
	if len(snake.AccentPhrases) != 1 || snake.AccentPhrases[0].Moras[0].Text != "ア" {
		t.Errorf("accent phrases = %+v", snake.AccentPhrases)
	}
	if string(camel.Extra["pauseLengthScale"]) != "1" {
		t.Errorf("unknown field not kept: %v", camel.Extra)
	}
	camel.Extra = nil
	if !reflect.DeepEqual(snake, camel) {
		t.Errorf("styles decode differently:\nsnake %+v\ncamel %+v", snake, camel)
	}
}

func TestAudioQueryRoundTrip(t *testing.T) {
	for _, tt := range []struct {
		name  string
		in    string
		style keyStyle
	}{
		{"snake", snakeQuery, snakeCase},
		{"camel", camelQuery, camelCase},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var q AudioQuery
			if err := json.Unmarshal([]byte(tt.in), &q); err != nil {
				t.Fatal(err)
			}
			out, err := q.encode(tt.style)
			if err != nil {
				t.Fatal(err)
			}
			var want, got any
			_ = json.Unmarshal([]byte(tt.in), &want)
			_ = json.Unmarshal(out, &got)
			if !reflect.DeepEqual(want, got) {
				t.Errorf("round trip differs:\nwant %v\ngot  %v", want, got)
			}
		})
	}
}

func TestAudioQueryEncodeDefaults(t *testing.T) {
	out, err := (&AudioQuery{SpeedScale: 1}).encode(snakeCase)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	_ = json.Unmarshal(out, &m)
	if _, ok := m["kana"]; ok {
		t.Error("nil kana should be omitted")
	}
	if ps, ok := m["accent_phrases"].([]any); !ok || len(ps) != 0 {
		t.Errorf("accent_phrases = %v, want []", m["accent_phrases"])
	}
	if m["speed_scale"] != 1.0 {
		t.Errorf("speed_scale = %v", m["speed_scale"])
	}
}

func TestUserDictWordJSON(t *testing.T) {
	in := `{"surface":"ｔｅｓｔ","pronunciation":"テスト","accent_type":1,"word_type":"COMMON_NOUN","priority":5}`
	var w UserDictWord
	if err := json.Unmarshal([]byte(in), &w); err != nil {
		t.Fatal(err)
	}
	if w.WordType != CommonNoun || w.AccentType != 1 || w.Priority != 5 {
		t.Errorf("decoded %+v", w)
	}
	out, _ := json.Marshal(w)
	var want, got any
	_ = json.Unmarshal([]byte(in), &want)
	_ = json.Unmarshal(out, &got)
	if !reflect.DeepEqual(want, got) {
		t.Errorf("round trip differs: %s", out)
	}
}
