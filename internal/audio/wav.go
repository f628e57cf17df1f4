package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// 产物固定为单声道 16-bit 小端 PCM。
const (
	DefaultSampleRate = 24000
	Channels          = 1
	BitsPerSample     = 16

	HeaderSize = 44

	riffHeaderSize  = 12 // "RIFF" + size + "WAVE"
	chunkHeaderSize = 8  // id + size
	fmtChunkSize    = 16
	pcmFormatTag    = 1
)

// ErrInvalidWAV 表示输入不是可解析的 PCM WAV。
var ErrInvalidWAV = errors.New("[audio] 无效的 WAV 数据")

// Format 描述 WAV 的 PCM 参数。
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// BlockAlign 返回每帧字节数。
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// ByteRate 返回每秒字节数。
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// EncodeWAV 在 PCM 数据前加上 44 字节 RIFF/WAVE 头。
// 声道数和位深固定为 1 和 16，结果只取决于输入字节和采样率。
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	f := Format{SampleRate: sampleRate, Channels: Channels, BitsPerSample: BitsPerSample}
	n := len(pcm)

	out := make([]byte, HeaderSize+n)
	le := binary.LittleEndian

	copy(out[0:4], "RIFF")
	le.PutUint32(out[4:8], uint32(HeaderSize-8+n))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	le.PutUint32(out[16:20], fmtChunkSize)
	le.PutUint16(out[20:22], pcmFormatTag)
	le.PutUint16(out[22:24], uint16(f.Channels))
	le.PutUint32(out[24:28], uint32(f.SampleRate))
	le.PutUint32(out[28:32], uint32(f.ByteRate()))
	le.PutUint16(out[32:34], uint16(f.BlockAlign()))
	le.PutUint16(out[34:36], uint16(f.BitsPerSample))

	copy(out[36:40], "data")
	le.PutUint32(out[40:44], uint32(n))
	copy(out[HeaderSize:], pcm)
	return out
}

// DecodeWAV 解析 WAV，返回 data 块内容和格式。
// fmt 与 data 之间的其他块（LIST 等）会被跳过。
func DecodeWAV(b []byte) ([]byte, Format, error) {
	var f Format
	if len(b) < riffHeaderSize || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, f, fmt.Errorf("%w: 缺少 RIFF/WAVE 头", ErrInvalidWAV)
	}

	le := binary.LittleEndian
	haveFmt := false
	offset := riffHeaderSize
	for offset+chunkHeaderSize <= len(b) {
		id := string(b[offset : offset+4])
		size := int(le.Uint32(b[offset+4 : offset+8]))
		body := offset + chunkHeaderSize
		if size < 0 || body+size > len(b) {
			return nil, f, fmt.Errorf("%w: %q 块长度 %d 超出文件", ErrInvalidWAV, id, size)
		}

		switch id {
		case "fmt ":
			if size < fmtChunkSize {
				return nil, f, fmt.Errorf("%w: fmt 块过短", ErrInvalidWAV)
			}
			if tag := le.Uint16(b[body : body+2]); tag != pcmFormatTag {
				return nil, f, fmt.Errorf("%w: 不支持的格式标记 %d", ErrInvalidWAV, tag)
			}
			f.Channels = int(le.Uint16(b[body+2 : body+4]))
			f.SampleRate = int(le.Uint32(b[body+4 : body+8]))
			f.BitsPerSample = int(le.Uint16(b[body+14 : body+16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, f, fmt.Errorf("%w: data 块出现在 fmt 之前", ErrInvalidWAV)
			}
			return b[body : body+size], f, nil
		}

		offset = body + size
		if size%2 != 0 {
			offset++
		}
	}
	return nil, f, fmt.Errorf("%w: 未找到 data 块", ErrInvalidWAV)
}

// Duration 返回 PCM 数据的播放时长（秒）。
func Duration(pcmLen int, f Format) float64 {
	if f.ByteRate() == 0 {
		return 0
	}
	return float64(pcmLen) / float64(f.ByteRate())
}
