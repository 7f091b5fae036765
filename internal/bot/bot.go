package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	dl "github.com/open-builders/filmbank/internal/domain/ledger"
	"github.com/open-builders/filmbank/internal/service/riddle"
	"github.com/open-builders/filmbank/internal/service/session"
	tg "github.com/open-builders/filmbank/internal/service/telegram"
	"github.com/open-builders/filmbank/internal/service/workflow"
)

const genericFailure = "Something went wrong. The admins have been notified."

// Messenger is the Telegram surface the bot needs.
type Messenger interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]tg.Update, error)
	SendMessage(ctx context.Context, p tg.SendMessageParams) (*tg.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text, parseMode string, markup *tg.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, queryID, text string, alert bool) error
}

type Ledger interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	User(ctx context.Context, userID int64) (dl.Entry, bool, error)
	FindUser(ctx context.Context, query string) (dl.Entry, bool, error)
	Leaderboard(ctx context.Context) ([]dl.Entry, error)
	BalancesByRole(ctx context.Context) ([]dl.Entry, error)
}

type Members interface {
	OnJoin(ctx context.Context, m dl.Member) (dl.UpsertOutcome, error)
	OnLeave(ctx context.Context, m dl.Member) error
	Touch(ctx context.Context, m dl.Member) error
}

type Riddles interface {
	Scan(ctx context.Context, from dl.Member, text string) (riddle.ScanResult, error)
}

type Sessions interface {
	Login(userID int64, secret string) (time.Time, error)
	Logout(userID int64)
	IsAuthorized(userID int64) bool
	Denial(userID int64) session.Denial
}

type Workflows interface {
	Handle(ctx context.Context, admin workflow.Admin, ev workflow.Event) (workflow.Result, error)
	Reset(adminID int64)
	Active(adminID int64) bool
}

type Backups interface {
	Run(ctx context.Context) (string, error)
}

type Notifier interface {
	Audit(ctx context.Context, text string)
	ReportError(ctx context.Context, where string, err error)
}

// Deps groups the services the bot routes updates to.
type Deps struct {
	Telegram  Messenger
	Ledger    Ledger
	Members   Members
	Riddles   Riddles
	Sessions  Sessions
	Workflows Workflows
	Backups   Backups
	Notifier  Notifier
}

// Options are the routing parameters.
type Options struct {
	TargetChatID int64
	PageSize     int
	PollTimeout  time.Duration
}

// Bot long-polls Telegram and dispatches every update on its own goroutine.
type Bot struct {
	Deps
	opts   Options
	logger zerolog.Logger
	wg     sync.WaitGroup
}

func New(deps Deps, opts Options, logger zerolog.Logger) *Bot {
	if opts.PageSize < 1 {
		opts.PageSize = 10
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	return &Bot{Deps: deps, opts: opts, logger: logger}
}

// Run polls until ctx is cancelled, then waits for in-flight handlers.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info().Int64("target_chat_id", b.opts.TargetChatID).Msg("Bot polling started")
	var offset int64
	for ctx.Err() == nil {
		updates, err := b.Telegram.GetUpdates(ctx, offset, b.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			b.logger.Warn().Err(err).Msg("getUpdates failed")
			sleep(ctx, 3*time.Second)
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.wg.Add(1)
			go func(u tg.Update) {
				defer b.wg.Done()
				b.Dispatch(ctx, u)
			}(u)
		}
	}
	b.logger.Info().Msg("Bot polling stopped, draining handlers")
	b.wg.Wait()
}

// Dispatch handles one update. Errors and panics are logged, reported to
// the ops chat and answered with a generic message.
func (b *Bot) Dispatch(ctx context.Context, u tg.Update) {
	log := b.logger.With().Int64("update_id", u.UpdateID).Str("trace_id", uuid.NewString()).Logger()
	ctx = log.WithContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			log.Error().Err(err).Str("stack", string(debug.Stack())).Msg("Update handler panicked")
			b.fail(ctx, u, err)
		}
	}()

	if err := b.route(ctx, u); err != nil {
		log.Error().Err(err).Msg("Update handling failed")
		b.fail(ctx, u, err)
	}
}

func (b *Bot) route(ctx context.Context, u tg.Update) error {
	switch {
	case u.ChatMember != nil:
		return b.onChatMember(ctx, u.ChatMember)
	case u.CallbackQuery != nil:
		return b.onCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		msg := u.Message
		if msg.Chat.IsPrivate() {
			return b.onPrivate(ctx, msg)
		}
		if b.isTargetGroup(msg.Chat) {
			return b.onGroup(ctx, msg)
		}
	}
	return nil
}

func (b *Bot) fail(ctx context.Context, u tg.Update, err error) {
	b.Notifier.ReportError(ctx, fmt.Sprintf("update %d (%s)", u.UpdateID, updateKind(u)), err)
	switch {
	case u.CallbackQuery != nil:
		b.answer(ctx, u.CallbackQuery.ID, genericFailure, true)
	case u.Message != nil && u.Message.Chat.IsPrivate():
		b.reply(ctx, u.Message, genericFailure, nil)
	}
}

func (b *Bot) isTargetGroup(c tg.Chat) bool {
	return c.ID == b.opts.TargetChatID && (c.Type == "group" || c.Type == "supergroup")
}

func updateKind(u tg.Update) string {
	switch {
	case u.ChatMember != nil:
		return "chat_member"
	case u.CallbackQuery != nil:
		return "callback_query"
	case u.Message != nil:
		return "message"
	}
	return "unknown"
}

func member(u *tg.User) dl.Member {
	return dl.Member{ID: u.ID, Username: u.Username, DisplayName: u.FullName(), IsBot: u.IsBot}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// reply sends HTML to the message's chat as a reply. Failures are logged.
func (b *Bot) reply(ctx context.Context, to *tg.Message, text string, markup any) {
	p := tg.SendMessageParams{ChatID: to.Chat.ID, Text: text, ParseMode: tg.ParseModeHTML, ReplyMarkup: markup}
	if !to.Chat.IsPrivate() {
		p.ReplyToMessageID = to.MessageID
	}
	if _, err := b.Telegram.SendMessage(ctx, p); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", to.Chat.ID).Msg("Failed to send reply")
	}
}

func (b *Bot) answer(ctx context.Context, queryID, text string, alert bool) {
	if err := b.Telegram.AnswerCallbackQuery(ctx, queryID, text, alert); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("Failed to answer callback")
	}
}

func (b *Bot) onChatMember(ctx context.Context, ev *tg.ChatMemberUpdated) error {
	if ev.Chat.ID != b.opts.TargetChatID {
		return nil
	}
	was, is := ev.OldChatMember.IsPresent(), ev.NewChatMember.IsPresent()
	switch {
	case !was && is:
		u := ev.NewChatMember.User
		if u.IsBot {
			return nil
		}
		outcome, err := b.Members.OnJoin(ctx, member(&u))
		if err != nil {
			return err
		}
		zerolog.Ctx(ctx).Info().Int64("user_id", u.ID).Int("outcome", int(outcome)).Msg("Member joined")
	case was && !is:
		u := ev.OldChatMember.User
		if u.IsBot {
			return nil
		}
		if err := b.Members.OnLeave(ctx, member(&u)); err != nil {
			return err
		}
		zerolog.Ctx(ctx).Info().Int64("user_id", u.ID).Msg("Member left")
	}
	return nil
}
