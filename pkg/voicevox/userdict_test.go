package voicevox

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestUserDictWords(t *testing.T) {
	e := newFakeEngine(t, "0.16.0")
	c := e.core(t)
	dict, err := c.NewUserDict()
	if err != nil {
		t.Fatal(err)
	}
	defer dict.Close()

	id, err := dict.AddWord("ｔｅｓｔ", "テスト", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseID(id); err != nil {
		t.Fatalf("AddWord returned bad id %q", id)
	}

	words, err := dict.Words()
	if err != nil {
		t.Fatal(err)
	}
	want := UserDictWord{Surface: "ｔｅｓｔ", Pronunciation: "テスト", WordType: CommonNoun, Priority: 5}
	if words[id] != want {
		t.Errorf("word = %+v, want %+v", words[id], want)
	}

	if err := dict.UpdateWord(id, "ｔｅｓｔ", "テストー", &WordOptions{Priority: Ptr[uint32](9)}); err != nil {
		t.Fatal(err)
	}
	words, _ = dict.Words()
	if w := words[id]; w.Pronunciation != "テストー" || w.Priority != 9 || w.WordType != CommonNoun {
		t.Errorf("updated word = %+v", w)
	}

	if err := dict.RemoveWord(id); err != nil {
		t.Fatal(err)
	}
	words, _ = dict.Words()
	if len(words) != 0 {
		t.Errorf("words after remove = %v", words)
	}

	err = dict.RemoveWord(id)
	var ve *Error
	if !errors.As(err, &ve) || ve.Code != ResultUserDictWordNotFound {
		t.Errorf("remove twice: err = %v, want USER_DICT_WORD_NOT_FOUND", err)
	}
	if err := dict.UpdateWord("not-a-uuid", "a", "ア", nil); !errors.Is(err, ErrInvalidID) {
		t.Errorf("UpdateWord(bad id): err = %v, want ErrInvalidID", err)
	}
	if e.liveOutputs() != 0 {
		t.Errorf("%d JSON outputs not freed", e.liveOutputs())
	}
}

func TestWordOptionsOverlay(t *testing.T) {
	e := newFakeEngine(t, "0.16.0")
	dict, err := e.core(t).NewUserDict()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts *WordOptions
		want UserDictWord
	}{
		{"defaults", nil, UserDictWord{AccentType: 0, WordType: CommonNoun, Priority: 5}},
		{"accent only", &WordOptions{AccentType: Ptr[uint64](3)}, UserDictWord{AccentType: 3, WordType: CommonNoun, Priority: 5}},
		{"part of speech", &WordOptions{PartOfSpeech: Suffix}, UserDictWord{WordType: Suffix, Priority: 5}},
		{"all", &WordOptions{AccentType: Ptr[uint64](1), PartOfSpeech: ProperNoun, Priority: Ptr[uint32](10)}, UserDictWord{AccentType: 1, WordType: ProperNoun, Priority: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := dict.AddWord("単語", "タンゴ", tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			words, err := dict.Words()
			if err != nil {
				t.Fatal(err)
			}
			tt.want.Surface, tt.want.Pronunciation = "単語", "タンゴ"
			if words[id] != tt.want {
				t.Errorf("word = %+v, want %+v", words[id], tt.want)
			}
		})
	}
}

func TestInvalidWord(t *testing.T) {
	e := newFakeEngine(t, "0.16.0")
	dict, err := e.core(t).NewUserDict()
	if err != nil {
		t.Fatal(err)
	}
	e.lib.ResetCalls()

	if _, err := dict.AddWord("a", "ア", &WordOptions{PartOfSpeech: "adverb"}); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("err = %v, want ErrOutOfRange", err)
	}
	if _, err := dict.AddWord("a\x00", "ア", nil); !errors.Is(err, ErrNulInString) {
		t.Errorf("err = %v, want ErrNulInString", err)
	}
	if n := e.lib.Count("voicevox_user_dict_word_make"); n != 0 {
		t.Errorf("word_make called %d times", n)
	}

	_, err = dict.AddWord("", "ア", nil)
	var ve *Error
	if !errors.As(err, &ve) || ve.Code != ResultInvalidUserDictWord {
		t.Errorf("empty surface: err = %v, want INVALID_USER_DICT_WORD", err)
	}
}

func TestUserDictSaveLoadImport(t *testing.T) {
	e := newFakeEngine(t, "0.16.0")
	c := e.core(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dict.json")

	src, _ := c.NewUserDict()
	id, err := src.AddWord("ボイボ", "ボイボ", &WordOptions{PartOfSpeech: ProperNoun})
	if err != nil {
		t.Fatal(err)
	}
	if err := src.SaveAsync(ctx, path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := c.NewUserDict()
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	words, _ := loaded.Words()
	if w, ok := words[id]; !ok || w.WordType != ProperNoun {
		t.Errorf("loaded words = %v", words)
	}

	err = loaded.LoadAsync(ctx, filepath.Join(t.TempDir(), "missing.json"))
	var ve *Error
	if !errors.As(err, &ve) || ve.Code != ResultLoadUserDict {
		t.Errorf("load missing: err = %v, want LOAD_USER_DICT", err)
	}

	merged, _ := c.NewUserDict()
	if _, err := merged.AddWord("別", "ベツ", nil); err != nil {
		t.Fatal(err)
	}
	if err := merged.Import(loaded); err != nil {
		t.Fatal(err)
	}
	words, _ = merged.Words()
	if len(words) != 2 {
		t.Errorf("merged %d words, want 2", len(words))
	}

	ojt, err := c.NewOpenJtalkAsync(ctx, "dict")
	if err != nil {
		t.Fatal(err)
	}
	if err := ojt.UseUserDict(merged); err != nil {
		t.Fatal(err)
	}
	if err := ojt.UseUserDictAsync(ctx, merged); err != nil {
		t.Fatal(err)
	}

	merged.Close()
	if err := ojt.UseUserDict(merged); !errors.Is(err, ErrDisposed) {
		t.Errorf("UseUserDict(disposed): err = %v, want ErrDisposed", err)
	}
	if n := e.deletedCount("userdict"); n != 1 {
		t.Errorf("userdict deleted %d times, want 1", n)
	}
}

func TestOpenJtalkMissingDict(t *testing.T) {
	e := newFakeEngine(t, "0.16.0")
	_, err := e.core(t).NewOpenJtalk("")
	var ve *Error
	if !errors.As(err, &ve) || ve.Code != ResultNotLoadedOpenjtalkDict {
		t.Errorf("err = %v, want NOT_LOADED_OPENJTALK_DICT", err)
	}
}
