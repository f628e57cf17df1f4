package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidBase64 表示合成服务返回的音频不是合法的 base64。
var ErrInvalidBase64 = errors.New("[audio] 音频数据不是合法的 base64")

// DecodeBase64 把服务返回的 base64 音频解码为原始 PCM 字节。
func DecodeBase64(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	return data, nil
}

// EncodeBase64 是 DecodeBase64 的逆操作，供非 base64 来源的引擎统一输出。
func EncodeBase64(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}
