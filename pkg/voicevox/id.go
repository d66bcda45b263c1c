package voicevox

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// 只接受 8-4-4-4-12 形式，uuid.Parse 还接受带花括号和 urn 前缀的写法。
var idPattern = regexp.MustCompile(`^[0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12}$`)

// FormatID 将 16 字节 UUID 格式化为小写的 8-4-4-4-12 文本。
func FormatID(b []byte) (string, error) {
	id, err := uuid.FromBytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: length of UUID must be 16 bytes, got %d", ErrInvalidID, len(b))
	}
	return id.String(), nil
}

// ParseID 解析 8-4-4-4-12 文本（大小写均可）为 16 字节。
func ParseID(s string) ([]byte, error) {
	if !idPattern.MatchString(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	b := make([]byte, 16)
	copy(b, id[:])
	return b, nil
}
