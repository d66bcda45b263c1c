package voicevox

import (
	"errors"
	"fmt"

	"github.com/iabetor/govoicevox/internal/ffi"
)

// ResultCode 是原生函数返回的状态码，0 表示成功。
type ResultCode int32

const (
	ResultOK                     ResultCode = 0
	ResultNotLoadedOpenjtalkDict ResultCode = 1
	ResultGetSupportedDevices    ResultCode = 3
	ResultGPUSupport             ResultCode = 4
	ResultStyleNotFound          ResultCode = 6
	ResultModelNotFound          ResultCode = 7
	ResultRunModel               ResultCode = 8
	ResultAnalyzeText            ResultCode = 11
	ResultInvalidUTF8Input       ResultCode = 12
	ResultParseKana              ResultCode = 13
	ResultInvalidAudioQuery      ResultCode = 14
	ResultInvalidAccentPhrase    ResultCode = 15
	ResultOpenZipFile            ResultCode = 16
	ResultReadZipEntry           ResultCode = 17
	ResultModelAlreadyLoaded     ResultCode = 18
	ResultLoadUserDict           ResultCode = 20
	ResultSaveUserDict           ResultCode = 21
	ResultUserDictWordNotFound   ResultCode = 22
	ResultUseUserDict            ResultCode = 23
	ResultInvalidUserDictWord    ResultCode = 24
	ResultInvalidUUID            ResultCode = 25
	ResultStyleAlreadyLoaded     ResultCode = 26
	ResultInvalidModelData       ResultCode = 27
	ResultInvalidModelHeader     ResultCode = 28
	ResultInitInferenceRuntime   ResultCode = 29
)

var resultNames = map[ResultCode]string{
	ResultOK:                     "OK",
	ResultNotLoadedOpenjtalkDict: "NOT_LOADED_OPENJTALK_DICT",
	ResultGetSupportedDevices:    "GET_SUPPORTED_DEVICES",
	ResultGPUSupport:             "GPU_SUPPORT",
	ResultInitInferenceRuntime:   "INIT_INFERENCE_RUNTIME",
	ResultStyleNotFound:          "STYLE_NOT_FOUND",
	ResultModelNotFound:          "MODEL_NOT_FOUND",
	ResultRunModel:               "RUN_MODEL",
	ResultAnalyzeText:            "ANALYZE_TEXT",
	ResultInvalidUTF8Input:       "INVALID_UTF8_INPUT",
	ResultParseKana:              "PARSE_KANA",
	ResultInvalidAudioQuery:      "INVALID_AUDIO_QUERY",
	ResultInvalidAccentPhrase:    "INVALID_ACCENT_PHRASE",
	ResultOpenZipFile:            "OPEN_ZIP_FILE",
	ResultReadZipEntry:           "READ_ZIP_ENTRY",
	ResultModelAlreadyLoaded:     "MODEL_ALREADY_LOADED",
	ResultLoadUserDict:           "LOAD_USER_DICT",
	ResultSaveUserDict:           "SAVE_USER_DICT",
	ResultUserDictWordNotFound:   "USER_DICT_WORD_NOT_FOUND",
	ResultUseUserDict:            "USE_USER_DICT",
	ResultInvalidUserDictWord:    "INVALID_USER_DICT_WORD",
	ResultInvalidUUID:            "INVALID_UUID",
	ResultStyleAlreadyLoaded:     "STYLE_ALREADY_LOADED",
	ResultInvalidModelData:       "INVALID_MODEL_DATA",
	ResultInvalidModelHeader:     "INVALID_MODEL_HEADER",
}

func (c ResultCode) String() string {
	if n, ok := resultNames[c]; ok {
		return n
	}
	return fmt.Sprintf("RESULT_%d", int32(c))
}

// Error 是原生函数返回非零状态码时的错误。
type Error struct {
	Op      string     // 原生函数名
	Code    ResultCode // 状态码
	Message string     // 原生库给出的描述
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: (%d) %s", e.Op, int32(e.Code), e.Message)
}

// Is 使 errors.Is(err, &Error{Code: c}) 按状态码匹配。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Op == "" && t.Code == e.Code
}

var (
	// ErrDisposed 表示对象已经 Close。
	ErrDisposed = ffi.ErrDisposed
	// ErrIllegalConstruction 表示对象不是通过工厂函数创建的。
	ErrIllegalConstruction = errors.New("voicevox: illegal constructor")
	// ErrOutOfRange 表示枚举值不在可接受范围内。
	ErrOutOfRange = errors.New("voicevox: value out of range")
	// ErrInvalidID 表示 UUID 文本格式不正确。
	ErrInvalidID = errors.New("voicevox: invalid UUID")
	// ErrNulInString 表示字符串中含有 NUL 字符。
	ErrNulInString = ffi.ErrNulInString
	// ErrUnavailable 表示当前库版本不提供该功能。
	ErrUnavailable = ffi.ErrUnavailable
	// ErrClosed 表示库已卸载。
	ErrClosed = ffi.ErrClosed
)
