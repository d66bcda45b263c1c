package voicevox

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/iabetor/govoicevox/internal/ffi"
	"github.com/iabetor/govoicevox/internal/ffi/ffitest"
)

const (
	sampleModelID = "0f4b6d9a-6a64-4a8e-9a3c-12c0f1b8e001"
	otherModelID  = "7d1c9b0e-2a3f-4f5e-8b6d-3e2f1a0c9b02"
	sampleStyle   = uint32(2)
	otherStyle    = uint32(3)
)

var fakeModels = map[string]struct {
	id    string
	metas string
}{
	"sample.vvm": {sampleModelID, `[{"name":"四国めたん","styles":[{"name":"ノーマル","id":2}],"speaker_uuid":"7ffcb7ce-00ec-4bdc-82cd-45a8889e43ff","version":"0.16.0"}]`},
	"other.vvm":  {otherModelID, `[{"name":"ずんだもん","styles":[{"name":"ノーマル","id":3}],"speaker_uuid":"388f246b-8c41-4ac1-8e2d-5d79f3ff56d9","version":"0.16.0"}]`},
}

// fakeEngine 用 ffitest.Lib 模拟 VOICEVOX CORE 的行为。
type fakeEngine struct {
	t   *testing.T
	lib *ffitest.Lib

	mu        sync.Mutex
	next      ffi.Pointer
	ort       ffi.Pointer
	ortFile   string
	ortLoads  int
	noGPU     bool
	camel     bool
	models    map[ffi.Pointer]string
	loaded    map[ffi.Pointer]map[string]bool
	gpu       map[ffi.Pointer]bool
	dicts     map[ffi.Pointer]map[string]UserDictWord
	deleted   []string
	lastInit  []byte
	lastTTS   []byte
	lastQuery string
	outputs   int // 尚未释放的 JSON/WAV 输出
	messages  map[int32]ffi.Pointer
}

func newFakeEngine(t *testing.T, version string) *fakeEngine {
	t.Helper()
	e := &fakeEngine{
		t:        t,
		lib:      ffitest.New(),
		next:     0x1000,
		camel:    styleForVersion(version) == camelCase,
		models:   make(map[ffi.Pointer]string),
		loaded:   make(map[ffi.Pointer]map[string]bool),
		gpu:      make(map[ffi.Pointer]bool),
		dicts:    make(map[ffi.Pointer]map[string]UserDictWord),
		messages: make(map[int32]ffi.Pointer),
	}
	versionPtr := e.lib.AllocCString(version)
	e.handle("voicevox_get_version", func([]any) (ffi.Ret, error) { return ffi.PointerRet(versionPtr), nil })
	e.registerRuntime()
	e.registerOpenJtalk()
	e.registerModels()
	e.registerSynthesizer()
	e.registerUserDict()
	return e
}

func (e *fakeEngine) handle(name string, h ffitest.Handler) { e.lib.Handle(name, h) }

func (e *fakeEngine) core(t *testing.T) *Core {
	t.Helper()
	c, err := New(e.lib)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func (e *fakeEngine) newHandle() ffi.Pointer {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next += 0x10
	return e.next
}

func putOut(arg any, p ffi.Pointer) { ffi.PutWord(arg.([]byte), uint64(p)) }

func (e *fakeEngine) output(b []byte) ffi.Pointer {
	e.mu.Lock()
	e.outputs++
	e.mu.Unlock()
	return e.lib.Alloc(b)
}

func (e *fakeEngine) outputJSON(s string) ffi.Pointer { return e.output(append([]byte(s), 0)) }

func (e *fakeEngine) free(args []any) (ffi.Ret, error) {
	e.mu.Lock()
	e.outputs--
	e.mu.Unlock()
	e.lib.Free(args[0].(ffi.Pointer))
	return ffi.Ret{}, nil
}

func (e *fakeEngine) liveOutputs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outputs
}

func (e *fakeEngine) deleter(kind string) ffitest.Handler {
	return func(args []any) (ffi.Ret, error) {
		e.mu.Lock()
		e.deleted = append(e.deleted, kind)
		e.mu.Unlock()
		return ffi.Ret{}, nil
	}
}

func (e *fakeEngine) deletedCount(kind string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, k := range e.deleted {
		if k == kind {
			n++
		}
	}
	return n
}

func cstr(arg any) string {
	b := arg.([]byte)
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func (e *fakeEngine) registerRuntime() {
	e.handle("voicevox_json_free", e.free)
	e.handle("voicevox_wav_free", e.free)
	e.handle("voicevox_error_result_to_message", func(args []any) (ffi.Ret, error) {
		code := args[0].(int32)
		e.mu.Lock()
		defer e.mu.Unlock()
		p, ok := e.messages[code]
		if !ok {
			p = e.lib.AllocCString("fake error " + ResultCode(code).String())
			e.messages[code] = p
		}
		return ffi.PointerRet(p), nil
	})

	versioned := e.lib.AllocCString("libvoicevox_onnxruntime.so.1.17.3")
	unversioned := e.lib.AllocCString("libvoicevox_onnxruntime.so")
	e.handle("voicevox_get_onnxruntime_lib_versioned_filename", func([]any) (ffi.Ret, error) { return ffi.PointerRet(versioned), nil })
	e.handle("voicevox_get_onnxruntime_lib_unversioned_filename", func([]any) (ffi.Ret, error) { return ffi.PointerRet(unversioned), nil })
	e.handle("voicevox_make_default_load_onnxruntime_options", func([]any) (ffi.Ret, error) {
		s := ffi.NewStruct(tLoadOnnxruntimeOptions)
		s.SetPointer(0, unversioned)
		return ffi.Aggregate(s.Bytes()), nil
	})
	e.handle("voicevox_onnxruntime_load_once", func(args []any) (ffi.Ret, error) {
		opts := args[0].(*ffi.Struct)
		name, err := e.lib.CString(opts.Pointer(0))
		if err != nil {
			return ffi.Ret{}, err
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		e.ortLoads++
		e.ortFile = name
		if name == "missing.so" {
			return ffi.Status(int32(ResultInitInferenceRuntime)), nil
		}
		if e.ort == 0 {
			e.ort = 0xbeef0
		}
		putOut(args[1], e.ort)
		return ffi.Status(0), nil
	})
	e.handle("voicevox_onnxruntime_init_once", func(args []any) (ffi.Ret, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.ortLoads++
		e.ort = 0xbeef0
		putOut(args[0], e.ort)
		return ffi.Status(0), nil
	})
	e.handle("voicevox_onnxruntime_get", func([]any) (ffi.Ret, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return ffi.PointerRet(e.ort), nil
	})
	e.handle("voicevox_onnxruntime_create_supported_devices_json", func(args []any) (ffi.Ret, error) {
		putOut(args[1], e.outputJSON(`{"cpu":true,"cuda":false,"dml":true}`))
		return ffi.Status(0), nil
	})
}

func (e *fakeEngine) registerOpenJtalk() {
	e.handle("voicevox_open_jtalk_rc_new", func(args []any) (ffi.Ret, error) {
		if cstr(args[0]) == "" {
			return ffi.Status(int32(ResultNotLoadedOpenjtalkDict)), nil
		}
		putOut(args[1], e.newHandle())
		return ffi.Status(0), nil
	})
	e.handle("voicevox_open_jtalk_rc_use_user_dict", func([]any) (ffi.Ret, error) { return ffi.Status(0), nil })
	e.handle("voicevox_open_jtalk_rc_delete", e.deleter("openjtalk"))
}

func (e *fakeEngine) registerModels() {
	e.handle("voicevox_voice_model_file_open", func(args []any) (ffi.Ret, error) {
		m, ok := fakeModels[cstr(args[0])]
		if !ok {
			return ffi.Status(int32(ResultOpenZipFile)), nil
		}
		h := e.newHandle()
		e.mu.Lock()
		e.models[h] = m.id
		e.mu.Unlock()
		putOut(args[1], h)
		return ffi.Status(0), nil
	})
	e.handle("voicevox_voice_model_file_id", func(args []any) (ffi.Ret, error) {
		e.mu.Lock()
		id := uuid.MustParse(e.models[args[0].(ffi.Pointer)])
		e.mu.Unlock()
		copy(args[1].([]byte), id[:])
		return ffi.Ret{}, nil
	})
	e.handle("voicevox_voice_model_file_create_metas_json", func(args []any) (ffi.Ret, error) {
		e.mu.Lock()
		id := e.models[args[0].(ffi.Pointer)]
		e.mu.Unlock()
		return ffi.PointerRet(e.outputJSON(e.metasOf(id))), nil
	})
	e.handle("voicevox_voice_model_file_delete", e.deleter("model"))
}

func (e *fakeEngine) metasOf(id string) string {
	for _, m := range fakeModels {
		if m.id == id {
			return m.metas
		}
	}
	return "[]"
}

func (e *fakeEngine) styleLoaded(synth ffi.Pointer, style uint32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	loaded := e.loaded[synth]
	return (style == sampleStyle && loaded[sampleModelID]) || (style == otherStyle && loaded[otherModelID])
}

func (e *fakeEngine) queryJSON(text string) string {
	mora := map[string]any{
		"text": text, "consonant": nil, "consonant_length": nil,
		"vowel": "a", "vowel_length": 0.1, "pitch": 5.5,
	}
	q := map[string]any{
		"accent_phrases": []any{map[string]any{
			"moras": []any{mora}, "accent": 1, "pause_mora": nil, "is_interrogative": false,
		}},
		"kana": text,
	}
	keys := map[string]any{
		"speed_scale": 1.0, "pitch_scale": 0.0, "intonation_scale": 1.0, "volume_scale": 1.0,
		"pre_phoneme_length": 0.1, "post_phoneme_length": 0.1,
		"output_sampling_rate": 24000, "output_stereo": false,
	}
	for k, v := range keys {
		if e.camel {
			k = toCamel(k)
		}
		q[k] = v
	}
	if e.camel {
		q["pauseLengthScale"] = 1.0
	}
	b, err := json.Marshal(q)
	if err != nil {
		e.t.Fatal(err)
	}
	return string(b)
}

func toCamel(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}

func fakeWAV(payload []byte) []byte {
	b := []byte("RIFF\x00\x00\x00\x00WAVE")
	return append(b, payload...)
}

func (e *fakeEngine) registerSynthesizer() {
	e.handle("voicevox_make_default_initialize_options", func([]any) (ffi.Ret, error) {
		s := ffi.NewStruct(tInitializeOptions)
		s.SetInt32(0, 0)
		s.SetUint16(1, 4)
		return ffi.Aggregate(s.Bytes()), nil
	})
	e.handle("voicevox_make_default_synthesis_options", func([]any) (ffi.Ret, error) {
		return ffi.Aggregate([]byte{1}), nil
	})
	e.handle("voicevox_make_default_tts_options", func([]any) (ffi.Ret, error) {
		return ffi.Aggregate([]byte{1}), nil
	})
	e.handle("voicevox_synthesizer_new", func(args []any) (ffi.Ret, error) {
		opts := args[2].(*ffi.Struct)
		e.mu.Lock()
		e.lastInit = append([]byte(nil), opts.Bytes()...)
		noGPU := e.noGPU
		e.mu.Unlock()
		gpu := opts.Int32(0) == 2
		if gpu && noGPU {
			return ffi.Status(int32(ResultGPUSupport)), nil
		}
		h := e.newHandle()
		e.mu.Lock()
		e.loaded[h] = make(map[string]bool)
		e.gpu[h] = gpu
		e.mu.Unlock()
		putOut(args[3], h)
		return ffi.Status(0), nil
	})
	e.handle("voicevox_synthesizer_delete", e.deleter("synthesizer"))
	e.handle("voicevox_synthesizer_get_onnxruntime", func([]any) (ffi.Ret, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return ffi.PointerRet(e.ort), nil
	})
	e.handle("voicevox_synthesizer_is_gpu_mode", func(args []any) (ffi.Ret, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return ffi.BoolRet(e.gpu[args[0].(ffi.Pointer)]), nil
	})
	e.handle("voicevox_synthesizer_load_voice_model", func(args []any) (ffi.Ret, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		id := e.models[args[1].(ffi.Pointer)]
		loaded := e.loaded[args[0].(ffi.Pointer)]
		if loaded[id] {
			return ffi.Status(int32(ResultModelAlreadyLoaded)), nil
		}
		loaded[id] = true
		return ffi.Status(0), nil
	})
	e.handle("voicevox_synthesizer_unload_voice_model", func(args []any) (ffi.Ret, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		id, _ := uuid.FromBytes(args[1].([]byte))
		loaded := e.loaded[args[0].(ffi.Pointer)]
		if !loaded[id.String()] {
			return ffi.Status(int32(ResultModelNotFound)), nil
		}
		delete(loaded, id.String())
		return ffi.Status(0), nil
	})
	e.handle("voicevox_synthesizer_is_loaded_voice_model", func(args []any) (ffi.Ret, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		id, _ := uuid.FromBytes(args[1].([]byte))
		return ffi.BoolRet(e.loaded[args[0].(ffi.Pointer)][id.String()]), nil
	})
	e.handle("voicevox_synthesizer_create_metas_json", func(args []any) (ffi.Ret, error) {
		e.mu.Lock()
		var all []json.RawMessage
		for id := range e.loaded[args[0].(ffi.Pointer)] {
			var metas []json.RawMessage
			_ = json.Unmarshal([]byte(e.metasOf(id)), &metas)
			all = append(all, metas...)
		}
		e.mu.Unlock()
		b, _ := json.Marshal(all)
		if all == nil {
			b = []byte("[]")
		}
		return ffi.PointerRet(e.outputJSON(string(b))), nil
	})

	textOp := func(render func(in string) (string, bool)) ffitest.Handler {
		return func(args []any) (ffi.Ret, error) {
			if !e.styleLoaded(args[0].(ffi.Pointer), args[2].(uint32)) {
				return ffi.Status(int32(ResultStyleNotFound)), nil
			}
			out, ok := render(cstr(args[1]))
			if !ok {
				return ffi.Status(int32(ResultInvalidAccentPhrase)), nil
			}
			putOut(args[3], e.outputJSON(out))
			return ffi.Status(0), nil
		}
	}
	query := func(in string) (string, bool) { return e.queryJSON(in), true }
	phrases := func(in string) (string, bool) {
		var q map[string]json.RawMessage
		_ = json.Unmarshal([]byte(e.queryJSON(in)), &q)
		return string(q["accent_phrases"]), true
	}
	replace := func(in string) (string, bool) {
		var ps []AccentPhrase
		if err := json.Unmarshal([]byte(in), &ps); err != nil {
			return "", false
		}
		for i := range ps {
			for j := range ps[i].Moras {
				ps[i].Moras[j].Pitch = 6
			}
		}
		b, _ := json.Marshal(ps)
		return string(b), true
	}
	for _, n := range []string{"voicevox_synthesizer_create_audio_query", "voicevox_synthesizer_create_audio_query_from_kana"} {
		e.handle(n, textOp(query))
	}
	for _, n := range []string{"voicevox_synthesizer_create_accent_phrases", "voicevox_synthesizer_create_accent_phrases_from_kana"} {
		e.handle(n, textOp(phrases))
	}
	for _, n := range []string{"voicevox_synthesizer_replace_mora_data", "voicevox_synthesizer_replace_phoneme_length", "voicevox_synthesizer_replace_mora_pitch"} {
		e.handle(n, textOp(replace))
	}

	wavOp := func(record func(in string, opts *ffi.Struct)) ffitest.Handler {
		return func(args []any) (ffi.Ret, error) {
			if !e.styleLoaded(args[0].(ffi.Pointer), args[2].(uint32)) {
				return ffi.Status(int32(ResultStyleNotFound)), nil
			}
			in := cstr(args[1])
			opts := args[3].(*ffi.Struct)
			record(in, opts)
			flag := byte('0')
			if opts.Bool(0) {
				flag = '1'
			}
			wav := fakeWAV(append([]byte(in), flag))
			putOut(args[4], ffi.Pointer(len(wav)))
			putOut(args[5], e.output(wav))
			return ffi.Status(0), nil
		}
	}
	e.handle("voicevox_synthesizer_synthesis", wavOp(func(in string, _ *ffi.Struct) {
		e.mu.Lock()
		e.lastQuery = in
		e.mu.Unlock()
	}))
	ttsOp := wavOp(func(_ string, opts *ffi.Struct) {
		e.mu.Lock()
		e.lastTTS = append([]byte(nil), opts.Bytes()...)
		e.mu.Unlock()
	})
	e.handle("voicevox_synthesizer_tts", ttsOp)
	e.handle("voicevox_synthesizer_tts_from_kana", ttsOp)
}

var wordTypes = []PartOfSpeech{ProperNoun, CommonNoun, Verb, Adjective, Suffix}

func (e *fakeEngine) registerUserDict() {
	e.handle("voicevox_user_dict_word_make", func([]any) (ffi.Ret, error) {
		s := ffi.NewStruct(tUserDictWord)
		s.SetInt32(3, 1)
		s.SetUint32(4, 5)
		return ffi.Aggregate(s.Bytes()), nil
	})
	e.handle("voicevox_user_dict_new", func([]any) (ffi.Ret, error) {
		h := e.newHandle()
		e.mu.Lock()
		e.dicts[h] = make(map[string]UserDictWord)
		e.mu.Unlock()
		return ffi.PointerRet(h), nil
	})
	e.handle("voicevox_user_dict_delete", e.deleter("userdict"))

	readWord := func(b []byte) (UserDictWord, bool) {
		s, err := ffi.StructFrom(tUserDictWord, b)
		if err != nil {
			return UserDictWord{}, false
		}
		surface, err1 := e.lib.CString(s.Pointer(0))
		pron, err2 := e.lib.CString(s.Pointer(1))
		wt := s.Int32(3)
		if err1 != nil || err2 != nil || surface == "" || wt < 0 || int(wt) >= len(wordTypes) {
			return UserDictWord{}, false
		}
		return UserDictWord{
			Surface:       surface,
			Pronunciation: pron,
			AccentType:    s.Usize(2),
			WordType:      wordTypes[wt],
			Priority:      s.Uint32(4),
		}, true
	}
	e.handle("voicevox_user_dict_add_word", func(args []any) (ffi.Ret, error) {
		w, ok := readWord(args[1].([]byte))
		if !ok {
			return ffi.Status(int32(ResultInvalidUserDictWord)), nil
		}
		id := uuid.New()
		e.mu.Lock()
		e.dicts[args[0].(ffi.Pointer)][id.String()] = w
		e.mu.Unlock()
		copy(args[2].([]byte), id[:])
		return ffi.Status(0), nil
	})
	e.handle("voicevox_user_dict_update_word", func(args []any) (ffi.Ret, error) {
		id, _ := uuid.FromBytes(args[1].([]byte))
		w, ok := readWord(args[2].([]byte))
		if !ok {
			return ffi.Status(int32(ResultInvalidUserDictWord)), nil
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		words := e.dicts[args[0].(ffi.Pointer)]
		if _, found := words[id.String()]; !found {
			return ffi.Status(int32(ResultUserDictWordNotFound)), nil
		}
		words[id.String()] = w
		return ffi.Status(0), nil
	})
	e.handle("voicevox_user_dict_remove_word", func(args []any) (ffi.Ret, error) {
		id, _ := uuid.FromBytes(args[1].([]byte))
		e.mu.Lock()
		defer e.mu.Unlock()
		words := e.dicts[args[0].(ffi.Pointer)]
		if _, found := words[id.String()]; !found {
			return ffi.Status(int32(ResultUserDictWordNotFound)), nil
		}
		delete(words, id.String())
		return ffi.Status(0), nil
	})
	e.handle("voicevox_user_dict_import", func(args []any) (ffi.Ret, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		dst := e.dicts[args[0].(ffi.Pointer)]
		for k, v := range e.dicts[args[1].(ffi.Pointer)] {
			dst[k] = v
		}
		return ffi.Status(0), nil
	})
	e.handle("voicevox_user_dict_to_json", func(args []any) (ffi.Ret, error) {
		e.mu.Lock()
		b, err := json.Marshal(e.dicts[args[0].(ffi.Pointer)])
		e.mu.Unlock()
		if err != nil {
			return ffi.Ret{}, err
		}
		putOut(args[1], e.outputJSON(string(b)))
		return ffi.Status(0), nil
	})
	e.handle("voicevox_user_dict_save", func(args []any) (ffi.Ret, error) {
		e.mu.Lock()
		b, _ := json.Marshal(e.dicts[args[0].(ffi.Pointer)])
		e.mu.Unlock()
		if err := os.WriteFile(cstr(args[1]), b, 0644); err != nil {
			return ffi.Status(int32(ResultSaveUserDict)), nil
		}
		return ffi.Status(0), nil
	})
	e.handle("voicevox_user_dict_load", func(args []any) (ffi.Ret, error) {
		b, err := os.ReadFile(cstr(args[1]))
		if err != nil {
			return ffi.Status(int32(ResultLoadUserDict)), nil
		}
		var words map[string]UserDictWord
		if err := json.Unmarshal(b, &words); err != nil {
			return ffi.Status(int32(ResultLoadUserDict)), nil
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		dst := e.dicts[args[0].(ffi.Pointer)]
		for k, v := range words {
			dst[k] = v
		}
		return ffi.Status(0), nil
	})
}
