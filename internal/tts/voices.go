package tts

// resolveVoice 把音色目录 ID 换成具体后端的音色名。
// override 非空时总是优先；表中没有的 ID 原样返回。
func resolveVoice(table map[string]string, override, voiceID string) string {
	if override != "" {
		return override
	}
	if v, ok := table[voiceID]; ok {
		return v
	}
	return voiceID
}

// OpenAI 预置音色。
var openAIVoices = map[string]string{
	"Kore":   "nova",
	"Puck":   "echo",
	"Zephyr": "shimmer",
	"Charon": "alloy",
	"Fenrir": "onyx",
}

// Edge 神经网络音色。
var edgeVoices = map[string]string{
	"Kore":   "en-US-AriaNeural",
	"Puck":   "en-US-GuyNeural",
	"Zephyr": "en-US-JennyNeural",
	"Charon": "en-US-MichelleNeural",
	"Fenrir": "en-US-ChristopherNeural",
}

// 腾讯云英文音色：101051 WeRose（女）、101050 WeJack（男）。
var tencentVoices = map[string]int64{
	"Kore":   101051,
	"Puck":   101050,
	"Zephyr": 101051,
	"Charon": 101051,
	"Fenrir": 101050,
}
