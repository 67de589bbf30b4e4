package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestNeedsTranslation(t *testing.T) {
	translator := NewTranslator(new(MockGenerator), "en")

	tests := []struct {
		lang     string
		expected bool
	}{
		{"en", false},
		{"", false},
		{"ta", true},
		{"hi", true},
		{"ja", true},
		{"fr", false}, // 不支持的语言按工作语言处理
		{"xx", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, translator.NeedsTranslation(tt.lang), "lang=%s", tt.lang)
	}
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "Tamil", LanguageName("ta"))
	assert.Equal(t, "Spanish", LanguageName("es"))
	assert.Equal(t, "English", LanguageName("unknown"))
}

func TestTranslate(t *testing.T) {
	generator := new(MockGenerator)
	generator.On("Ready").Return(true)
	generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return("வணக்கம்", nil)

	translator := NewTranslator(generator, "en")
	out := translator.Translate(context.Background(), "Hello", "ta")
	assert.Equal(t, "வணக்கம்", out)
}

func TestTranslateFailureReturnsOriginal(t *testing.T) {
	generator := new(MockGenerator)
	generator.On("Ready").Return(true)
	generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("timeout"))

	translator := NewTranslator(generator, "en")
	out := translator.Translate(context.Background(), "Hello", "hi")
	assert.Equal(t, "Hello", out)
}

func TestTranslateSkipsUnsupportedLanguage(t *testing.T) {
	generator := new(MockGenerator)

	translator := NewTranslator(generator, "en")
	out := translator.Translate(context.Background(), "Hello", "fr")

	assert.Equal(t, "Hello", out)
	generator.AssertNotCalled(t, "Generate")
}

func TestTranslateSkipsEmptyText(t *testing.T) {
	generator := new(MockGenerator)

	translator := NewTranslator(generator, "en")
	assert.Equal(t, "  ", translator.Translate(context.Background(), "  ", "ta"))
	generator.AssertNotCalled(t, "Generate")
}
