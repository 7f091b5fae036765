package bot

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	tg "github.com/open-builders/filmbank/internal/service/telegram"
	"github.com/open-builders/filmbank/internal/service/workflow"
)

func (b *Bot) onCallback(ctx context.Context, cb *tg.CallbackQuery) error {
	action, err := workflow.ParseAction(cb.Data)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("data", cb.Data).Msg("Ignoring malformed callback")
		b.answer(ctx, cb.ID, "", false)
		return nil
	}

	switch action.Flow {
	case workflow.FlowNoop:
		b.answer(ctx, cb.ID, "", false)
		return nil
	case workflow.FlowLeaderboard:
		return b.leaderboardPage(ctx, cb, action)
	}

	if cb.Message == nil || !cb.Message.Chat.IsPrivate() {
		b.answer(ctx, cb.ID, "", false)
		return nil
	}

	res, err := b.Workflows.Handle(ctx, workflow.Admin{ID: cb.From.ID, FullName: cb.From.FullName(), Username: cb.From.Username}, workflow.Press{Action: action})
	if unauthorized(err) {
		b.answer(ctx, cb.ID, plainText(DenialText(b.Sessions.Denial(cb.From.ID))), true)
		return nil
	}
	if err != nil {
		return err
	}
	if !res.Handled {
		b.answer(ctx, cb.ID, "This menu is out of date.", false)
		return nil
	}
	b.answer(ctx, cb.ID, res.Alert, false)
	b.deliver(ctx, cb.Message.Chat.ID, cb.Message, res)
	return nil
}

func (b *Bot) leaderboardPage(ctx context.Context, cb *tg.CallbackQuery, a workflow.Action) error {
	defer b.answer(ctx, cb.ID, "", false)
	if cb.Message == nil || !b.isTargetGroup(cb.Message.Chat) {
		return nil
	}
	entries, err := b.Ledger.Leaderboard(ctx)
	if err != nil {
		return err
	}
	limit, _ := a.Limit()
	text, kb := RenderLeaderboard(entries, int(a.Int(0)), b.opts.PageSize, limit)
	if err := b.Telegram.EditMessageText(ctx, cb.Message.Chat.ID, cb.Message.MessageID, text, tg.ParseModeHTML, inlineMarkup(kb)); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("Failed to edit leaderboard page")
	}
	return nil
}

var htmlUnescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")

// plainText undoes entity escaping; callback alerts are not parsed as HTML.
func plainText(s string) string { return htmlUnescaper.Replace(s) }
