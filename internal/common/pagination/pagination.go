package pagination

// Page describes one clamped page of a list.
type Page struct {
	Index int // zero based, clamped to [0, Total-1]
	Total int // at least 1
	Start int
	End   int
}

// Paginate clamps page to the available range and returns the slice bounds
// for a list of n items. perPage below 1 is treated as 1.
func Paginate(n, page, perPage int) Page {
	if perPage < 1 {
		perPage = 1
	}
	if n < 0 {
		n = 0
	}
	total := (n + perPage - 1) / perPage
	if total < 1 {
		total = 1
	}
	if page < 0 {
		page = 0
	}
	if page > total-1 {
		page = total - 1
	}
	start := page * perPage
	end := start + perPage
	if end > n {
		end = n
	}
	if start > n {
		start = n
	}
	return Page{Index: page, Total: total, Start: start, End: end}
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.Index > 0 }

// HasNext reports whether a next page exists.
func (p Page) HasNext() bool { return p.Index < p.Total-1 }
