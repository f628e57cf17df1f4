// Package voice 定义可选的预置音色目录。
package voice

// Gender 音色性别。
type Gender string

const (
	Male    Gender = "Male"
	Female  Gender = "Female"
	Neutral Gender = "Neutral"
)

// UnknownName 是目录中找不到音色时使用的显示名。
const UnknownName = "Unknown"

// Option 是目录中的一个音色条目，创建后不再修改。
type Option struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Gender Gender `json:"gender"`
	Accent string `json:"accent"`
}

const multilingual = "English (US), Multilingual"

// 音色名来自 Gemini 预置音色，均支持多语种输入。
var catalog = []Option{
	{ID: "Kore", Name: "Kore", Gender: Female, Accent: multilingual},
	{ID: "Puck", Name: "Puck", Gender: Male, Accent: multilingual},
	{ID: "Zephyr", Name: "Zephyr", Gender: Female, Accent: multilingual},
	{ID: "Charon", Name: "Charon", Gender: Female, Accent: multilingual},
	{ID: "Fenrir", Name: "Fenrir", Gender: Male, Accent: multilingual},
}

// DefaultID 是未指定音色时使用的音色。
const DefaultID = "Kore"

// All 返回目录的副本。
func All() []Option {
	out := make([]Option, len(catalog))
	copy(out, catalog)
	return out
}

// Find 按 ID 查找音色。
func Find(id string) (Option, bool) {
	for _, o := range catalog {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Known 报告 id 是否在目录中。
func Known(id string) bool {
	_, ok := Find(id)
	return ok
}

// DisplayName 返回音色显示名，未知音色返回 "Unknown"。
func DisplayName(id string) string {
	if o, ok := Find(id); ok {
		return o.Name
	}
	return UnknownName
}
