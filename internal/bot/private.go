package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	apperrors "github.com/open-builders/filmbank/internal/common/errors"
	"github.com/open-builders/filmbank/internal/service/session"
	tg "github.com/open-builders/filmbank/internal/service/telegram"
	"github.com/open-builders/filmbank/internal/service/workflow"
	tgfmt "github.com/open-builders/filmbank/internal/utils/telegram"
)

// Admin menu labels.
const (
	BtnAssignRole     = "Assign role"
	BtnChangeRole     = "Change role"
	BtnGive           = "Give films"
	BtnTake           = "Take films"
	BtnCreateDelta    = "Create delta"
	BtnDeleteDelta    = "Delete delta"
	BtnRiddle         = "Daily riddle"
	BtnBalancesByRole = "Balances by role"
	BtnPing           = "Ping"
	BtnLogout         = "Logout"
)

var menuFlows = map[string]workflow.Flow{
	BtnAssignRole:  workflow.FlowAssignRole,
	BtnChangeRole:  workflow.FlowChangeRole,
	BtnGive:        workflow.FlowGive,
	BtnTake:        workflow.FlowTake,
	BtnCreateDelta: workflow.FlowCreateDelta,
	BtnDeleteDelta: workflow.FlowDeleteDelta,
	BtnRiddle:      workflow.FlowRiddle,
}

func adminMenu() tg.ReplyKeyboardMarkup {
	row := func(labels ...string) []tg.KeyboardButton {
		out := make([]tg.KeyboardButton, 0, len(labels))
		for _, l := range labels {
			out = append(out, tg.KeyboardButton{Text: l})
		}
		return out
	}
	return tg.ReplyKeyboardMarkup{
		Keyboard: [][]tg.KeyboardButton{
			row(BtnAssignRole, BtnChangeRole),
			row(BtnGive, BtnTake),
			row(BtnCreateDelta, BtnDeleteDelta),
			row(BtnRiddle, BtnBalancesByRole),
			row(BtnPing, BtnLogout),
		},
		ResizeKeyboard: true,
		IsPersistent:   true,
	}
}

var removeKeyboard = tg.ReplyKeyboardRemove{RemoveKeyboard: true}

// DenialText is the answer to an admin action without authorization.
func DenialText(d session.Denial) string {
	switch d {
	case session.DenialNotAllowlisted:
		return "Access denied."
	case session.DenialNoSession:
		return "Log in first: /login &lt;password&gt;"
	}
	return "Access closed."
}

// splitCommand parses "/cmd@bot args" into ("cmd", "args").
func splitCommand(text string) (string, string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, args, _ := strings.Cut(text, " ")
	head = strings.TrimPrefix(head, "/")
	if i := strings.IndexByte(head, '@'); i >= 0 {
		head = head[:i]
	}
	return strings.ToLower(head), strings.TrimSpace(args), true
}

func (b *Bot) onPrivate(ctx context.Context, msg *tg.Message) error {
	if msg.From == nil || msg.From.IsBot {
		return nil
	}
	text := strings.TrimSpace(msg.Text)
	if cmd, args, ok := splitCommand(text); ok {
		return b.command(ctx, msg, cmd, args)
	}

	switch text {
	case BtnLogout:
		b.logout(ctx, msg)
		return nil
	case BtnPing:
		if b.deny(ctx, msg) {
			return nil
		}
		b.reply(ctx, msg, "✅ alive", nil)
		return nil
	case BtnBalancesByRole:
		if b.deny(ctx, msg) {
			return nil
		}
		return b.balancesByRole(ctx, msg)
	}
	if flow, ok := menuFlows[text]; ok {
		if b.deny(ctx, msg) {
			return nil
		}
		return b.handleFlow(ctx, msg, nil, workflow.Start{Flow: flow})
	}

	if !b.Sessions.IsAuthorized(msg.From.ID) && !b.Workflows.Active(msg.From.ID) {
		return nil
	}
	return b.handleFlow(ctx, msg, nil, workflow.Text{Text: msg.Text, Link: msg.WholeTextLink()})
}

func (b *Bot) command(ctx context.Context, msg *tg.Message, cmd, args string) error {
	u := msg.From
	switch cmd {
	case "start":
		if b.Sessions.IsAuthorized(u.ID) {
			b.reply(ctx, msg, "Admin panel:", adminMenu())
			return nil
		}
		b.reply(ctx, msg, "Hi. I keep count of films.\nAdmins: /login &lt;password&gt;", removeKeyboard)
	case "login":
		b.login(ctx, msg, args)
	case "logout":
		b.logout(ctx, msg)
	case "ping":
		b.reply(ctx, msg, "✅ alive", nil)
	case "myid":
		b.reply(ctx, msg, fmt.Sprintf("Your id: <code>%d</code>", u.ID), nil)
	case "backup_now":
		if b.deny(ctx, msg) {
			return nil
		}
		path, err := b.Backups.Run(ctx)
		name := "failed"
		if path != "" {
			name = filepath.Base(path)
		}
		if err != nil {
			b.logger.Warn().Err(err).Msg("Manual backup incomplete")
		}
		b.reply(ctx, msg, "OK. Backup: "+tgfmt.Escape(name), nil)
	}
	return nil
}

func (b *Bot) login(ctx context.Context, msg *tg.Message, secret string) {
	u := msg.From
	if _, err := b.Sessions.Login(u.ID, secret); err != nil {
		switch apperrors.CodeOf(err) {
		case apperrors.ErrCodeForbidden:
			b.reply(ctx, msg, DenialText(session.DenialNotAllowlisted), nil)
		case apperrors.ErrCodeBadCredential:
			b.reply(ctx, msg, "Wrong password.", nil)
		default:
			b.reply(ctx, msg, DenialText(session.DenialNone), nil)
		}
		return
	}
	b.reply(ctx, msg, "OK, you are an admin. Here is the panel.", adminMenu())
	b.Notifier.Audit(ctx, "🔐 <b>Login</b>: "+tgfmt.Actor(u.ID, u.FullName(), u.Username))
}

func (b *Bot) logout(ctx context.Context, msg *tg.Message) {
	u := msg.From
	b.Sessions.Logout(u.ID)
	b.Workflows.Reset(u.ID)
	b.reply(ctx, msg, "Logged out.", removeKeyboard)
	b.Notifier.Audit(ctx, "🔓 <b>Logout</b>: "+tgfmt.Actor(u.ID, u.FullName(), u.Username))
}

// deny answers with the denial reason and reports true when u may not act.
func (b *Bot) deny(ctx context.Context, msg *tg.Message) bool {
	if b.Sessions.IsAuthorized(msg.From.ID) {
		return false
	}
	b.reply(ctx, msg, DenialText(b.Sessions.Denial(msg.From.ID)), removeKeyboard)
	return true
}

func (b *Bot) balancesByRole(ctx context.Context, msg *tg.Message) error {
	entries, err := b.Ledger.BalancesByRole(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		b.reply(ctx, msg, "No roles yet.", nil)
		return nil
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s — %s", tgfmt.RoleHTML(e.Record), tgfmt.Films(e.Record.Balance)))
	}
	b.reply(ctx, msg, "Balances by role:\n"+strings.Join(lines, "\n"), nil)
	return nil
}

// handleFlow feeds an admin event to the engine and delivers the result.
// pressed is the message carrying the inline keyboard, if any.
func (b *Bot) handleFlow(ctx context.Context, msg *tg.Message, pressed *tg.Message, ev workflow.Event) error {
	u := msg.From
	res, err := b.Workflows.Handle(ctx, workflow.Admin{ID: u.ID, FullName: u.FullName(), Username: u.Username}, ev)
	if unauthorized(err) {
		b.reply(ctx, msg, DenialText(b.Sessions.Denial(u.ID)), removeKeyboard)
		return nil
	}
	if err != nil {
		return err
	}
	b.deliver(ctx, msg.Chat.ID, pressed, res)
	return nil
}

func unauthorized(err error) bool {
	appErr, ok := apperrors.AsAppError(err)
	return ok && appErr.IsUnauthorized()
}

func (b *Bot) deliver(ctx context.Context, chatID int64, pressed *tg.Message, res workflow.Result) {
	if res.Text == "" {
		return
	}
	markup := inlineMarkup(res.Keyboard)
	if res.Edit && pressed != nil {
		edit := markup
		if edit == nil {
			edit = &tg.InlineKeyboardMarkup{InlineKeyboard: [][]tg.InlineKeyboardButton{}}
		}
		err := b.Telegram.EditMessageText(ctx, chatID, pressed.MessageID, res.Text, tg.ParseModeHTML, edit)
		if err == nil {
			if res.Menu {
				b.send(ctx, chatID, "Menu:", adminMenu())
			}
			return
		}
		b.logger.Debug().Err(err).Msg("Edit failed, sending a new message")
	}

	var rm any
	switch {
	case markup != nil:
		rm = markup
	case res.Menu:
		rm = adminMenu()
	}
	b.send(ctx, chatID, res.Text, rm)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup any) {
	_, err := b.Telegram.SendMessage(ctx, tg.SendMessageParams{ChatID: chatID, Text: text, ParseMode: tg.ParseModeHTML, ReplyMarkup: markup})
	if err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}
