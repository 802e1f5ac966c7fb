package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenPatterns_AddsRussianStems(t *testing.T) {
	patterns := tokenPatterns("кабеля медного")

	assert.Contains(t, patterns, "%кабеля%")
	assert.Contains(t, patterns, "%кабел%")
	assert.Contains(t, patterns, "%медного%")
}

func TestTokenPatterns_EscapesLikeWildcards(t *testing.T) {
	assert.Equal(t, []string{`%100\%%`}, tokenPatterns("100%"))
}

func TestTokenPatterns_SkipsShortStems(t *testing.T) {
	for _, p := range tokenPatterns("а 12") {
		assert.NotEqual(t, "%%", p)
	}
	assert.Empty(t, tokenPatterns("   "))
}
