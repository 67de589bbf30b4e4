package services

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// DefaultSourceLabel 元数据缺失来源时的兜底标签
const DefaultSourceLabel = "Medical Database"

var (
	versionTagPattern = regexp.MustCompile(`(?i)[\s_-]v\d+$`)
	digitRunPattern   = regexp.MustCompile(`\d{4,}`)
	separatorPattern  = regexp.MustCompile(`[_\-/\\.]+`)
	spaceRunPattern   = regexp.MustCompile(`\s+`)
)

// CleanSourceLabel 将文档标识转为用户可读的引用标签
// 纯字符串变换：去路径前缀与扩展名，去版本号后缀与长数字串，
// 分隔符转空格后逐词首字母大写。幂等。
func CleanSourceLabel(source string) string {
	s := strings.TrimSpace(source)
	if s == "" {
		return DefaultSourceLabel
	}

	// 路径前缀
	if idx := strings.LastIndexAny(s, "/\\"); idx >= 0 {
		s = s[idx+1:]
	}

	// 扩展名（只剥离常规短扩展名，避免误伤带点的标题）
	if ext := filepath.Ext(s); ext != "" && len(ext) <= 6 && isAlphaExt(ext[1:]) {
		s = strings.TrimSuffix(s, ext)
	}

	s = versionTagPattern.ReplaceAllString(s, "")
	s = digitRunPattern.ReplaceAllString(s, "")
	s = separatorPattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(spaceRunPattern.ReplaceAllString(s, " "))
	if s == "" {
		return DefaultSourceLabel
	}

	return titleCase(s)
}

func isAlphaExt(ext string) bool {
	for _, r := range ext {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return ext != ""
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// uniqueCitations 去重并保持首次出现顺序
func uniqueCitations(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	result := make([]string, 0, len(labels))
	for _, label := range labels {
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		result = append(result, label)
	}
	return result
}
