package audio

import (
	"encoding/binary"
	"math"
)

// PCM16ToFloat32 将小端 int16 交错样本转换为 [-1.0, 1.0] 范围的单声道 float32。
// 多声道时取各声道平均值。
func PCM16ToFloat32(b []byte, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(b) / (2 * channels)
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * 2
			sum += float32(int16(binary.LittleEndian.Uint16(b[off:])))
		}
		out[i] = sum / float32(channels) / math.MaxInt16
	}
	return out
}

// Float32ToPCM16 将 float32 样本转换为小端 int16 字节，超出 [-1.0, 1.0] 的值被钳位。
func Float32ToPCM16(in []float32) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(s*math.MaxInt16)))
	}
	return out
}
