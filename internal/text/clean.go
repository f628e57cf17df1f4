// Package text 负责合成前的输入清洗。
package text

import (
	"regexp"
	"strings"
)

var (
	// 版权/注册商标符号、U+2000–U+3300 的标点与符号区，以及 U+1F000–U+1FBFF 的表情图形。
	symbolPattern = regexp.MustCompile(`[\x{00A9}\x{00AE}\x{2000}-\x{3300}\x{1F000}-\x{1FBFF}]`)
	// 两个及以上连续空白。RE2 的 \s 只含 ASCII 空白，这里补上 \v、不换行空格、
	// U+1680 与 BOM；其余 Unicode 空格都在 U+2000–U+3300 内，已被上一步去掉。
	spacePattern = regexp.MustCompile(`[\s\v\x{00A0}\x{1680}\x{FEFF}]{2,}`)
)

// isSpace 与 spacePattern 的字符类一致，用于裁剪首尾。
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', '\u00A0', '\u1680', '\uFEFF':
		return true
	}
	return false
}

// Clean 去掉表情与符号字符，把连续空白压成一个空格，并裁掉首尾空白。
// 返回空字符串时调用方应拒绝发起合成请求。
func Clean(input string) string {
	out := symbolPattern.ReplaceAllString(input, "")
	out = spacePattern.ReplaceAllString(out, " ")
	return strings.TrimFunc(out, isSpace)
}

// IsBlank 报告输入清洗后是否为空。
func IsBlank(input string) bool {
	return Clean(input) == ""
}
