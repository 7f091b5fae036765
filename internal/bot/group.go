package bot

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/open-builders/filmbank/internal/common/pagination"
	dl "github.com/open-builders/filmbank/internal/domain/ledger"
	tg "github.com/open-builders/filmbank/internal/service/telegram"
	"github.com/open-builders/filmbank/internal/service/workflow"
	tgfmt "github.com/open-builders/filmbank/internal/utils/telegram"
)

const maxListLimit = 200

// Go's \b is ASCII-only, so command ends are matched explicitly.
var (
	myFilmsRe    = regexp.MustCompile(`(?i)^!(?:(?:my\s+)?films|(?:мои\s+)?пл[её]нки)(?:\s|$)`)
	theirFilmsRe = regexp.MustCompile(`(?is)^!(?:their\s+films|твои\s+пл[её]нки)(?:\s+(.*))?$`)
	listRe       = regexp.MustCompile(`(?i)^!(?:list|список)(?:\s+(\d+))?\s*$`)
)

func (b *Bot) onGroup(ctx context.Context, msg *tg.Message) error {
	if msg.From == nil || msg.From.IsBot {
		return nil
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	if text == "" {
		return nil
	}

	switch {
	case myFilmsRe.MatchString(text):
		return b.myFilms(ctx, msg)
	case theirFilmsRe.MatchString(text):
		m := theirFilmsRe.FindStringSubmatch(text)
		return b.theirFilms(ctx, msg, strings.TrimSpace(m[1]))
	case listRe.MatchString(text):
		m := listRe.FindStringSubmatch(text)
		return b.list(ctx, msg, parseListLimit(m[1]))
	}

	res, err := b.Riddles.Scan(ctx, member(msg.From), text)
	if err != nil {
		return err
	}
	if res.Won {
		zerolog.Ctx(ctx).Info().Int64("user_id", msg.From.ID).Bool("finalized", res.Finalized).Msg("Riddle solved")
	}
	return nil
}

func (b *Bot) myFilms(ctx context.Context, msg *tg.Message) error {
	if err := b.Members.Touch(ctx, member(msg.From)); err != nil {
		return err
	}
	bal, err := b.Ledger.Balance(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	if bal <= 0 {
		b.reply(ctx, msg, "You have no films yet.", nil)
		return nil
	}
	b.reply(ctx, msg, "You have: "+tgfmt.Films(bal), nil)
	return nil
}

func (b *Bot) theirFilms(ctx context.Context, msg *tg.Message, query string) error {
	var (
		entry dl.Entry
		found bool
		err   error
	)
	if r := msg.ReplyToMessage; r != nil && r.From != nil {
		if r.From.IsBot {
			b.reply(ctx, msg, "That's a bot. Bots don't hold films.", nil)
			return nil
		}
		if err := b.Members.Touch(ctx, member(r.From)); err != nil {
			return err
		}
		entry, found, err = b.Ledger.User(ctx, r.From.ID)
	} else if query != "" {
		entry, found, err = b.Ledger.FindUser(ctx, query)
	}
	if err != nil {
		return err
	}
	if !found {
		b.reply(ctx, msg, "Reply to someone's message or put a role, @username or name after the command.", nil)
		return nil
	}
	b.reply(ctx, msg, fmt.Sprintf("%s: %s", tgfmt.RoleHTML(entry.Record), tgfmt.Films(entry.Record.Balance)), nil)
	return nil
}

func (b *Bot) list(ctx context.Context, msg *tg.Message, limit int) error {
	entries, err := b.Ledger.Leaderboard(ctx)
	if err != nil {
		return err
	}
	text, kb := RenderLeaderboard(entries, 0, b.opts.PageSize, limit)
	b.reply(ctx, msg, text, inlineMarkup(kb))
	return nil
}

// parseListLimit reads the optional top-N argument; 0 means no limit.
func parseListLimit(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	if n < 1 {
		return 1
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

// RenderLeaderboard renders one clamped page of the ranking. A positive
// limit keeps only the top entries.
func RenderLeaderboard(entries []dl.Entry, page, perPage, limit int) (string, workflow.Keyboard) {
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	p := pagination.Paginate(len(entries), page, perPage)

	title := "Members by films (↓):"
	if limit > 0 {
		title = fmt.Sprintf("Top %d members (↓):", limit)
	}
	lines := make([]string, 0, p.End-p.Start)
	for i, e := range entries[p.Start:p.End] {
		lines = append(lines, fmt.Sprintf("%d. %s — %s", p.Start+i+1, tgfmt.RoleHTML(e.Record), tgfmt.Films(e.Record.Balance)))
	}
	body := "Nothing here yet."
	if len(lines) > 0 {
		body = strings.Join(lines, "\n")
	}

	var kb workflow.Keyboard
	kb = kb.Row(workflow.NavRow(p, func(n int) workflow.Action {
		return workflow.LeaderboardAction(n, limit)
	})...)
	return title + "\n" + body, kb
}

func inlineMarkup(kb workflow.Keyboard) *tg.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]tg.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		out := make([]tg.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			out = append(out, tg.InlineKeyboardButton{Text: btn.Text, CallbackData: btn.Data})
		}
		rows = append(rows, out)
	}
	return &tg.InlineKeyboardMarkup{InlineKeyboard: rows}
}
