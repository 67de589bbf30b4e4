package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanSourceLabel(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected string
	}{
		{"空来源使用兜底标签", "", DefaultSourceLabel},
		{"纯空白使用兜底标签", "   ", DefaultSourceLabel},
		{"去路径前缀和扩展名", "docs/fertility/ivf_success_rates.pdf", "Ivf Success Rates"},
		{"反斜杠路径", `C:\kb\amh-levels.txt`, "Amh Levels"},
		{"版本号后缀", "embryo_transfer_guide_v2", "Embryo Transfer Guide"},
		{"长数字串", "protocol_20240115_notes", "Protocol Notes"},
		{"下划线转空格并首字母大写", "male_factor_infertility", "Male Factor Infertility"},
		{"短数字保留", "day 3 vs day 5 transfer", "Day 3 Vs Day 5 Transfer"},
		{"清洗后为空使用兜底标签", "123456789.pdf", DefaultSourceLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanSourceLabel(tt.source))
		})
	}
}

func TestCleanSourceLabelIdempotent(t *testing.T) {
	sources := []string{
		"docs/fertility/ivf_success_rates.pdf",
		"embryo_transfer_guide_v2",
		"Medical Database",
	}
	for _, source := range sources {
		once := CleanSourceLabel(source)
		assert.Equal(t, once, CleanSourceLabel(once))
	}
}

func TestUniqueCitations(t *testing.T) {
	labels := []string{"Ivf Basics", "Amh Levels", "Ivf Basics", "", "Amh Levels"}
	assert.Equal(t, []string{"Ivf Basics", "Amh Levels"}, uniqueCitations(labels))
}
