package matching

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SynonymTable maps a canonical token to its synonym tokens.
type SynonymTable map[string][]string

// LoadSynonyms reads a synonym table from a YAML file of the form:
//
//	щит: [щиток, щитовая]
//	насос: [насосный, насосная]
//
// An empty path yields an empty table.
func LoadSynonyms(path string) (SynonymTable, error) {
	if path == "" {
		return SynonymTable{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonyms file: %w", err)
	}

	return ParseSynonyms(data)
}

// ParseSynonyms parses a YAML synonym table.
func ParseSynonyms(data []byte) (SynonymTable, error) {
	table := SynonymTable{}
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse synonyms: %w", err)
	}
	return table, nil
}

// SynonymExpander generates alternate forms of a normalized query by
// substituting one token at a time with its synonyms.
//
// The index is symmetric within a group: the canonical token expands to its
// synonyms and every synonym expands to the canonical token and the other
// synonyms of the group. The expander is immutable after construction and safe
// for concurrent use.
type SynonymExpander struct {
	index map[string][]string
}

// NewSynonymExpander builds an expander from a synonym table. Tokens are
// normalized so they compare equal to normalized queries.
func NewSynonymExpander(table SynonymTable) *SynonymExpander {
	e := &SynonymExpander{index: make(map[string][]string)}

	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := []string{}
		seen := map[string]struct{}{}
		for _, term := range append([]string{key}, table[key]...) {
			norm := Normalize(term)
			if norm == "" {
				continue
			}
			if _, dup := seen[norm]; dup {
				continue
			}
			seen[norm] = struct{}{}
			group = append(group, norm)
		}
		if len(group) < 2 {
			continue
		}

		for _, member := range group {
			// Only single tokens can be looked up; phrases still serve as replacements.
			if strings.Contains(member, " ") {
				continue
			}
			for _, alt := range group {
				if alt != member {
					e.add(member, alt)
				}
			}
		}
	}

	return e
}

func (e *SynonymExpander) add(token, alt string) {
	for _, existing := range e.index[token] {
		if existing == alt {
			return
		}
	}
	e.index[token] = append(e.index[token], alt)
}

// Size returns the number of tokens that have at least one synonym.
func (e *SynonymExpander) Size() int {
	if e == nil {
		return 0
	}
	return len(e.index)
}

// Expand returns the query followed by every single-substitution variant, in
// token order then synonym order, without duplicates. The result always
// contains the input as its first element.
func (e *SynonymExpander) Expand(normalized string) []string {
	variants := []string{normalized}
	if e == nil || len(e.index) == 0 || normalized == "" {
		return variants
	}

	toks := tokens(normalized)
	seen := map[string]struct{}{normalized: {}}
	for i, tok := range toks {
		for _, alt := range e.index[tok] {
			replaced := make([]string, len(toks))
			copy(replaced, toks)
			replaced[i] = alt

			variant := strings.Join(replaced, " ")
			if _, dup := seen[variant]; dup {
				continue
			}
			seen[variant] = struct{}{}
			variants = append(variants, variant)
		}
	}

	return variants
}
