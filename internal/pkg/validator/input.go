package validator

import (
	"strings"
	"unicode"
)

// SafeFileComponent 将非字母数字字符替换为下划线，用于拼接文件名
func SafeFileComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// StripDataURL 去掉 data URL 前缀 (data:image/png;base64,xxx -> xxx)
func StripDataURL(s string) string {
	if idx := strings.IndexByte(s, ','); idx != -1 && strings.HasPrefix(s, "data:") {
		return s[idx+1:]
	}
	return s
}

// Base64DecodedSize estimates the decoded size of a base64 payload
func Base64DecodedSize(s string) int {
	return len(s) * 3 / 4
}

// Truncate shortens s to at most n runes
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
