package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNotWAV 表示数据不是可识别的 RIFF/WAVE。
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE stream")

// Format 是 WAV 的 fmt 块中关心的字段。
type Format struct {
	AudioFormat   uint16 // 1 = PCM
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// ParseWAV 解析 RIFF/WAVE 数据，返回格式和 data 块内容。
// 未知的块（LIST 等）被跳过。
func ParseWAV(b []byte) (Format, []byte, error) {
	var f Format
	if len(b) < 12 || !bytes.Equal(b[0:4], []byte("RIFF")) || !bytes.Equal(b[8:12], []byte("WAVE")) {
		return f, nil, ErrNotWAV
	}
	var haveFmt bool
	rest := b[12:]
	for len(rest) >= 8 {
		id := string(rest[0:4])
		size := int(binary.LittleEndian.Uint32(rest[4:8]))
		body := rest[8:]
		if size > len(body) {
			// 流式写出的 WAV 常把 data 长度写成 0 或最大值
			if id != "data" {
				return f, nil, fmt.Errorf("%w: chunk %q truncated", ErrNotWAV, id)
			}
			size = len(body)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return f, nil, fmt.Errorf("%w: fmt chunk too short", ErrNotWAV)
			}
			f.AudioFormat = binary.LittleEndian.Uint16(body[0:2])
			f.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			f.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return f, nil, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			return f, body[:size], nil
		}
		// 块按 2 字节对齐
		next := 8 + size + size&1
		if next > len(rest) {
			break
		}
		rest = rest[next:]
	}
	return f, nil, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}

// DecodeWAV 将 16 位 PCM WAV 解码为单声道 float32 样本和采样率。
func DecodeWAV(b []byte) ([]float32, int, error) {
	f, data, err := ParseWAV(b)
	if err != nil {
		return nil, 0, err
	}
	if f.AudioFormat != 1 || f.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("audio: unsupported WAV format %d/%d bit", f.AudioFormat, f.BitsPerSample)
	}
	if f.Channels < 1 || f.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("audio: invalid WAV header: %d channels, %d Hz", f.Channels, f.SampleRate)
	}
	return PCM16ToFloat32(data, f.Channels), f.SampleRate, nil
}

// EncodeWAV 把单声道 float32 样本写成 16 位 PCM WAV。
func EncodeWAV(samples []float32, sampleRate int) []byte {
	data := Float32ToPCM16(samples)
	le := binary.LittleEndian
	b := make([]byte, 44, 44+len(data))
	copy(b[0:], "RIFF")
	le.PutUint32(b[4:], uint32(36+len(data)))
	copy(b[8:], "WAVEfmt ")
	le.PutUint32(b[16:], 16)
	le.PutUint16(b[20:], 1) // PCM
	le.PutUint16(b[22:], 1) // 单声道
	le.PutUint32(b[24:], uint32(sampleRate))
	le.PutUint32(b[28:], uint32(sampleRate*2))
	le.PutUint16(b[32:], 2)
	le.PutUint16(b[34:], 16)
	copy(b[36:], "data")
	le.PutUint32(b[40:], uint32(len(data)))
	return append(b, data...)
}
