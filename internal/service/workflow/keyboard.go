package workflow

import (
	"fmt"

	"github.com/open-builders/filmbank/internal/common/pagination"
)

// maxCallbackData is Telegram's callback_data limit in bytes.
const maxCallbackData = 64

// Button is an inline keyboard button carrying a callback payload.
type Button struct {
	Text string
	Data string
}

// Keyboard is a list of button rows.
type Keyboard [][]Button

// Row adds a row, dropping buttons whose payload would be rejected.
func (k Keyboard) Row(buttons ...Button) Keyboard {
	row := make([]Button, 0, len(buttons))
	for _, b := range buttons {
		if len(b.Data) > maxCallbackData {
			continue
		}
		row = append(row, b)
	}
	if len(row) == 0 {
		return k
	}
	return append(k, row)
}

// NavRow renders "⬅️ p/total ➡️" for a clamped page.
func NavRow(p pagination.Page, page func(int) Action) []Button {
	var row []Button
	if p.HasPrev() {
		row = append(row, Button{Text: "⬅️", Data: page(p.Index - 1).String()})
	}
	row = append(row, Button{Text: fmt.Sprintf("%d/%d", p.Index+1, p.Total), Data: NoopAction().String()})
	if p.HasNext() {
		row = append(row, Button{Text: "➡️", Data: page(p.Index + 1).String()})
	}
	return row
}

func backRow() []Button {
	return []Button{{Text: "↩ Back", Data: BackAction().String()}}
}
