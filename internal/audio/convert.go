package audio

// BytesToInt16 将 16-bit 小端 PCM 字节转换为样本，末尾不足两字节的部分被丢弃。
func BytesToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return out
}

// Int16ToBytes 将样本转换为 16-bit 小端 PCM 字节。
func Int16ToBytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// DownmixStereo 把交错的立体声 16-bit PCM 混合成单声道，左右取平均。
// 不完整的尾帧被截掉。
func DownmixStereo(pcm []byte) []byte {
	samples := BytesToInt16(pcm)
	frames := len(samples) / 2
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		left := int32(samples[2*i])
		right := int32(samples[2*i+1])
		mono[i] = int16((left + right) / 2)
	}
	return Int16ToBytes(mono)
}
