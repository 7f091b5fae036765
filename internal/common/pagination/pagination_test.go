package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		page    int
		perPage int
		want    Page
	}{
		{"empty list", 0, 0, 10, Page{Index: 0, Total: 1, Start: 0, End: 0}},
		{"first page", 25, 0, 10, Page{Index: 0, Total: 3, Start: 0, End: 10}},
		{"last partial page", 25, 2, 10, Page{Index: 2, Total: 3, Start: 20, End: 25}},
		{"beyond last clamps", 25, 3, 10, Page{Index: 2, Total: 3, Start: 20, End: 25}},
		{"negative clamps", 25, -4, 10, Page{Index: 0, Total: 3, Start: 0, End: 10}},
		{"exact multiple", 20, 1, 10, Page{Index: 1, Total: 2, Start: 10, End: 20}},
		{"zero per page", 3, 1, 0, Page{Index: 1, Total: 3, Start: 1, End: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Paginate(tt.n, tt.page, tt.perPage))
		})
	}
}

func TestPageNavigation(t *testing.T) {
	p := Paginate(25, 1, 10)
	assert.True(t, p.HasPrev())
	assert.True(t, p.HasNext())

	p = Paginate(5, 0, 10)
	assert.False(t, p.HasPrev())
	assert.False(t, p.HasNext())
}
