package riddle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "еж и елка", Normalize("  Ёж   и\tЁлка "))
	assert.Equal(t, "cafe creme", Normalize("Café Crème"))
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		text   string
		want   bool
	}{
		{"exact word", "кот", "это кот!", true},
		{"word inside another word", "кот", "котлета", false},
		{"word after prefix", "кот", "скот", false},
		{"second occurrence stands alone", "кот", "котлета и кот", true},
		{"case and yo folded", "ёлка", "Это ЕЛКА", true},
		{"diacritics folded", "creme", "crème brûlée", true},
		{"full case folding", "strasse", "Die STRAßE ist lang", true},
		{"phrase as substring", "big apple", "the big  apple!", true},
		{"phrase glued to word still matches", "big apple", "abig applesauce", true},
		{"underscore is a word rune", "cat", "cat_food", false},
		{"empty answer", "", "anything", false},
		{"empty text", "cat", "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.answer, tt.text))
		})
	}
}
