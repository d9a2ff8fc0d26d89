package util

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Spring Launch 2024!", "spring-launch-2024"},
		{"  --Hello,   World--  ", "hello-world"},
		{"春季发布", "春季发布"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GenerateSlug(tt.in), tt.in)
	}
}

func TestGenerateSlug_Truncates(t *testing.T) {
	slug := GenerateSlug(strings.Repeat("word ", 30))
	assert.LessOrEqual(t, len(slug), 50)
	assert.False(t, strings.HasSuffix(slug, "-"))
}

func TestGeneratePostPath(t *testing.T) {
	date := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024/05/01/spring-launch", GeneratePostPath("Spring Launch", "P1", date))
	assert.Equal(t, "2024/05/01/p1", GeneratePostPath("!!!", "P1", date))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"social", "email"}, SplitList("social, email"))
	assert.Equal(t, []string{"social", "website"}, SplitList(`["social", 'website']`))
	assert.Equal(t, []string{}, SplitList("  "))
	assert.Equal(t, []string{"a"}, SplitList("a,,"))
}
