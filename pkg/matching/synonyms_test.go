package matching

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynonymExpander_Expand(t *testing.T) {
	expander := NewSynonymExpander(SynonymTable{
		"щит":   {"щиток", "щитовая"},
		"насос": {"насосный"},
	})

	t.Run("canonical token expands to synonyms", func(t *testing.T) {
		assert.Equal(t,
			[]string{"щит управления", "щиток управления", "щитовая управления"},
			expander.Expand("щит управления"))
	})

	t.Run("synonym expands to canonical and siblings", func(t *testing.T) {
		assert.Equal(t, []string{"щиток", "щит", "щитовая"}, expander.Expand("щиток"))
	})

	t.Run("one substitution per variant", func(t *testing.T) {
		variants := expander.Expand("насос щит")
		assert.Equal(t, []string{
			"насос щит",
			"насосный щит",
			"насос щиток",
			"насос щитовая",
		}, variants)
	})

	t.Run("no synonyms yields the input only", func(t *testing.T) {
		assert.Equal(t, []string{"кабель"}, expander.Expand("кабель"))
	})

	t.Run("empty query", func(t *testing.T) {
		assert.Equal(t, []string{""}, expander.Expand(""))
	})
}

func TestSynonymExpander_NormalizesTable(t *testing.T) {
	expander := NewSynonymExpander(SynonymTable{
		"Шкаф": {"ШКАФЧИК", "шкафчик", ""},
		"кот":  {"Котёнок"},
	})

	assert.Equal(t, []string{"шкаф", "шкафчик"}, expander.Expand("шкаф"))
	assert.Equal(t, []string{"котенок", "кот"}, expander.Expand("котенок"))
	assert.Equal(t, 4, expander.Size())
}

func TestSynonymExpander_Nil(t *testing.T) {
	var expander *SynonymExpander
	assert.Equal(t, []string{"щит"}, expander.Expand("щит"))
	assert.Equal(t, 0, expander.Size())
}

func TestParseSynonyms(t *testing.T) {
	table, err := ParseSynonyms([]byte("щит: [щиток, щитовая]\nнасос:\n  - насосный\n"))
	require.NoError(t, err)
	assert.Equal(t, SynonymTable{
		"щит":   {"щиток", "щитовая"},
		"насос": {"насосный"},
	}, table)

	_, err = ParseSynonyms([]byte("щит: [unterminated"))
	assert.Error(t, err)
}

func TestLoadSynonyms(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		table, err := LoadSynonyms("")
		require.NoError(t, err)
		assert.Empty(t, table)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "synonyms.yaml")
		require.NoError(t, os.WriteFile(path, []byte("кот: [котик]\n"), 0o644))

		table, err := LoadSynonyms(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"котик"}, table["кот"])
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSynonyms(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("shipped table", func(t *testing.T) {
		table, err := LoadSynonyms(filepath.Join("..", "..", "synonyms.yaml"))
		require.NoError(t, err)
		assert.Contains(t, table, "щит")
		assert.Contains(t, table["щит"], "щиток")
	})
}
