package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/izana/backend-go/internal/logger"
	"github.com/izana/backend-go/internal/rag"
	"go.uber.org/zap"
)

// 支持的回答语言
var supportedLanguages = map[string]string{
	"en": "English",
	"ta": "Tamil",
	"hi": "Hindi",
	"te": "Telugu",
	"ml": "Malayalam",
	"es": "Spanish",
	"ja": "Japanese",
}

// LanguageName 语言代码转全名，未知代码按英语处理
func LanguageName(code string) string {
	if name, ok := supportedLanguages[code]; ok {
		return name
	}
	return "English"
}

// IsSupportedLanguage 检查语言代码是否受支持
func IsSupportedLanguage(code string) bool {
	_, ok := supportedLanguages[code]
	return ok
}

// Translator 基于fast档生成器的翻译服务
type Translator struct {
	generator       rag.Generator
	workingLanguage string
}

// NewTranslator 创建翻译服务
func NewTranslator(generator rag.Generator, workingLanguage string) *Translator {
	if workingLanguage == "" {
		workingLanguage = "en"
	}
	return &Translator{
		generator:       generator,
		workingLanguage: workingLanguage,
	}
}

// NeedsTranslation 目标语言是否需要翻译
// 不支持或无法识别的语言代码按工作语言处理，不做翻译
func (t *Translator) NeedsTranslation(lang string) bool {
	if lang == "" || lang == t.workingLanguage {
		return false
	}
	return IsSupportedLanguage(lang)
}

// Translate 翻译单段文本，失败时原样返回
// 每个文本单元独立降级，部分失败不影响整个请求
func (t *Translator) Translate(ctx context.Context, text, lang string) string {
	if strings.TrimSpace(text) == "" || !t.NeedsTranslation(lang) {
		return text
	}
	if t.generator == nil || !t.generator.Ready() {
		return text
	}

	prompt := fmt.Sprintf(
		"Translate the following medical assistant text into %s. Keep the tone warm and professional. Return ONLY the translation, nothing else.\n\n%s",
		LanguageName(lang), text)

	translated, err := t.generator.Generate(ctx, []rag.Message{
		{Role: rag.RoleUser, Content: prompt},
	}, rag.GenerateOptions{
		Tier:        rag.TierFast,
		Temperature: 0.1,
	})
	if err != nil || strings.TrimSpace(translated) == "" {
		logger.Warn("翻译失败，返回原文", zap.String("lang", lang), zap.Error(err))
		return text
	}
	return translated
}
