package voicevox

import (
	"sync"

	"github.com/iabetor/govoicevox/internal/ffi"
)

var (
	tOpenJtalkRc    = ffi.PointerTo("OpenJtalkRc")
	tOnnxruntime    = ffi.PointerTo("VoicevoxOnnxruntime")
	tSynthesizer    = ffi.PointerTo("VoicevoxSynthesizer")
	tUserDict       = ffi.PointerTo("VoicevoxUserDict")
	tVoiceModelFile = ffi.PointerTo("VoicevoxVoiceModelFile")

	tResultCode       = ffi.I32
	tAccelerationMode = ffi.I32
	tUserDictWordType = ffi.I32

	tLoadOnnxruntimeOptions = ffi.StructOf("VoicevoxLoadOnnxruntimeOptions", ffi.Ptr)
	tInitializeOptions      = ffi.StructOf("VoicevoxInitializeOptions", tAccelerationMode, ffi.U16)
	tSynthesisOptions       = ffi.StructOf("VoicevoxSynthesisOptions", ffi.Bool)
	tTtsOptions             = ffi.StructOf("VoicevoxTtsOptions", ffi.Bool)
	tUserDictWord           = ffi.StructOf("VoicevoxUserDictWord",
		ffi.Ptr, ffi.Ptr, ffi.Usize, tUserDictWordType, ffi.U32)
)

func params(ts ...*ffi.Type) []*ffi.Type { return ts }

// synthesizer 上 “文本 → JSON” 一类函数共用的签名
var textToJSON = params(tSynthesizer, ffi.Buffer, ffi.U32, ffi.Buffer)

// 与 voicevox_core.h 对应的函数表。
var schema = ffi.Schema{
	{Name: "voicevox_get_onnxruntime_lib_versioned_filename", Result: ffi.Ptr, Optional: true},
	{Name: "voicevox_get_onnxruntime_lib_unversioned_filename", Result: ffi.Ptr, Optional: true},
	{Name: "voicevox_make_default_load_onnxruntime_options", Result: tLoadOnnxruntimeOptions, Optional: true},
	{Name: "voicevox_onnxruntime_get", Result: tOnnxruntime},
	{Name: "voicevox_onnxruntime_load_once", Params: params(tLoadOnnxruntimeOptions, ffi.Buffer), Result: tResultCode, Optional: true},
	{Name: "voicevox_onnxruntime_init_once", Params: params(ffi.Buffer), Result: tResultCode, Optional: true},
	{Name: "voicevox_onnxruntime_create_supported_devices_json", Params: params(tOnnxruntime, ffi.Buffer), Result: tResultCode},

	{Name: "voicevox_open_jtalk_rc_new", Params: params(ffi.Buffer, ffi.Buffer), Result: tResultCode, Mode: ffi.Varies},
	{Name: "voicevox_open_jtalk_rc_use_user_dict", Params: params(tOpenJtalkRc, tUserDict), Result: tResultCode, Mode: ffi.Varies},
	{Name: "voicevox_open_jtalk_rc_delete", Params: params(tOpenJtalkRc)},

	{Name: "voicevox_make_default_initialize_options", Result: tInitializeOptions},
	{Name: "voicevox_get_version", Result: ffi.Ptr},

	{Name: "voicevox_voice_model_file_open", Params: params(ffi.Buffer, ffi.Buffer), Result: tResultCode, Mode: ffi.Varies},
	{Name: "voicevox_voice_model_file_id", Params: params(tVoiceModelFile, ffi.Buffer)},
	{Name: "voicevox_voice_model_file_create_metas_json", Params: params(tVoiceModelFile), Result: ffi.Ptr},
	{Name: "voicevox_voice_model_file_delete", Params: params(tVoiceModelFile)},

	{Name: "voicevox_synthesizer_new", Params: params(tOnnxruntime, tOpenJtalkRc, tInitializeOptions, ffi.Buffer), Result: tResultCode},
	{Name: "voicevox_synthesizer_delete", Params: params(tSynthesizer)},
	{Name: "voicevox_synthesizer_load_voice_model", Params: params(tSynthesizer, tVoiceModelFile), Result: tResultCode, Mode: ffi.Varies},
	{Name: "voicevox_synthesizer_unload_voice_model", Params: params(tSynthesizer, ffi.Buffer), Result: tResultCode},
	{Name: "voicevox_synthesizer_get_onnxruntime", Params: params(tSynthesizer), Result: tOnnxruntime},
	{Name: "voicevox_synthesizer_is_gpu_mode", Params: params(tSynthesizer), Result: ffi.Bool},
	{Name: "voicevox_synthesizer_is_loaded_voice_model", Params: params(tSynthesizer, ffi.Buffer), Result: ffi.Bool},
	{Name: "voicevox_synthesizer_create_metas_json", Params: params(tSynthesizer), Result: ffi.Ptr},

	{Name: "voicevox_synthesizer_create_audio_query_from_kana", Params: textToJSON, Result: tResultCode, Mode: ffi.Varies},
	{Name: "voicevox_synthesizer_create_audio_query", Params: textToJSON, Result: tResultCode, Mode: ffi.Varies},
	{Name: "voicevox_synthesizer_create_accent_phrases_from_kana", Params: textToJSON, Result: tResultCode, Mode: ffi.Varies},
	{Name: "voicevox_synthesizer_create_accent_phrases", Params: textToJSON, Result: tResultCode, Mode: ffi.Varies},
	{Name: "voicevox_synthesizer_replace_mora_data", Params: textToJSON, Result: tResultCode, Mode: ffi.Varies},
	{Name: "voicevox_synthesizer_replace_phoneme_length", Params: textToJSON, Result: tResultCode, Mode: ffi.Varies},
	{Name: "voicevox_synthesizer_replace_mora_pitch", Params: textToJSON, Result: tResultCode, Mode: ffi.Varies},

	{Name: "voicevox_make_default_synthesis_options", Result: tSynthesisOptions},
	{Name: "voicevox_synthesizer_synthesis", Params: params(tSynthesizer, ffi.Buffer, ffi.U32, tSynthesisOptions, ffi.Buffer, ffi.Buffer), Result: tResultCode, Mode: ffi.Varies},
	{Name: "voicevox_make_default_tts_options", Result: tTtsOptions},
	{Name: "voicevox_synthesizer_tts_from_kana", Params: params(tSynthesizer, ffi.Buffer, ffi.U32, tTtsOptions, ffi.Buffer, ffi.Buffer), Result: tResultCode, Mode: ffi.Varies},
	{Name: "voicevox_synthesizer_tts", Params: params(tSynthesizer, ffi.Buffer, ffi.U32, tTtsOptions, ffi.Buffer, ffi.Buffer), Result: tResultCode, Mode: ffi.Varies},

	{Name: "voicevox_json_free", Params: params(ffi.Ptr)},
	{Name: "voicevox_wav_free", Params: params(ffi.Ptr)},
	{Name: "voicevox_error_result_to_message", Params: params(tResultCode), Result: ffi.Ptr},

	{Name: "voicevox_user_dict_word_make", Params: params(ffi.Buffer, ffi.Buffer), Result: tUserDictWord},
	{Name: "voicevox_user_dict_new", Result: tUserDict},
	{Name: "voicevox_user_dict_load", Params: params(tUserDict, ffi.Buffer), Result: tResultCode, Mode: ffi.Varies},
	{Name: "voicevox_user_dict_add_word", Params: params(tUserDict, ffi.Buffer, ffi.Buffer), Result: tResultCode},
	{Name: "voicevox_user_dict_update_word", Params: params(tUserDict, ffi.Buffer, ffi.Buffer), Result: tResultCode},
	{Name: "voicevox_user_dict_remove_word", Params: params(tUserDict, ffi.Buffer), Result: tResultCode},
	{Name: "voicevox_user_dict_to_json", Params: params(tUserDict, ffi.Buffer), Result: tResultCode},
	{Name: "voicevox_user_dict_import", Params: params(tUserDict, tUserDict), Result: tResultCode},
	{Name: "voicevox_user_dict_save", Params: params(tUserDict, ffi.Buffer), Result: tResultCode, Mode: ffi.Varies},
	{Name: "voicevox_user_dict_delete", Params: params(tUserDict)},
}

var symbolTable = sync.OnceValues(func() (ffi.Table, error) {
	return ffi.GenerateVariants(schema)
})
