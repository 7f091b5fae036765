package notifications

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	tg "github.com/open-builders/filmbank/internal/service/telegram"
	tgfmt "github.com/open-builders/filmbank/internal/utils/telegram"
)

// MaxErrorReport bounds the error text sent to the ops chat.
const MaxErrorReport = 3800

// Sender is the part of the Telegram client used here.
type Sender interface {
	SendMessage(ctx context.Context, p tg.SendMessageParams) (*tg.Message, error)
	SendDocument(ctx context.Context, chatID int64, path, caption string) error
}

// Queue accepts audit lines for asynchronous delivery.
type Queue interface {
	Enqueue(ctx context.Context, text string) error
}

// Chats routes the different kinds of service messages.
type Chats struct {
	Audit         int64
	AdminNotify   int64
	Backup        int64
	BackupToAudit bool
}

// Service delivers audit, admin and backup messages to private chats.
// Every send is best effort: failures are logged and never returned to
// the operation that produced the message.
type Service struct {
	tg     Sender
	chats  Chats
	queue  Queue
	logger zerolog.Logger
}

func NewService(sender Sender, chats Chats, logger zerolog.Logger) *Service {
	return &Service{tg: sender, chats: chats, logger: logger}
}

// WithQueue routes audit lines through q instead of sending them inline.
func (s *Service) WithQueue(q Queue) *Service {
	s.queue = q
	return s
}

// Audit records an HTML audit line.
func (s *Service) Audit(ctx context.Context, text string) {
	if s == nil || s.tg == nil || s.chats.Audit == 0 {
		return
	}
	if s.queue != nil {
		err := s.queue.Enqueue(ctx, text)
		if err == nil {
			return
		}
		s.logger.Warn().Err(err).Msg("Audit queue unavailable, sending directly")
	}
	_ = s.DeliverAudit(ctx, text)
}

// DeliverAudit sends an audit line to the audit chat now. A nil error with
// no audit chat configured means the line is dropped on purpose.
func (s *Service) DeliverAudit(ctx context.Context, text string) error {
	if s == nil || s.tg == nil || s.chats.Audit == 0 {
		return nil
	}
	return s.send(ctx, s.chats.Audit, text, "audit")
}

// NotifyAdmins posts an HTML message to the admin notification chat.
func (s *Service) NotifyAdmins(ctx context.Context, text string) {
	if s == nil || s.tg == nil || s.chats.AdminNotify == 0 {
		return
	}
	_ = s.send(ctx, s.chats.AdminNotify, text, "admin_notify")
}

// MemberLeft tells admins that a member left the group.
func (s *Service) MemberLeft(ctx context.Context, userID int64, username, role string) {
	s.NotifyAdmins(ctx, LeftMessage(userID, username, role))
}

// LeftMessage renders "#left — role (@user)" with the id in place of a
// missing username.
func LeftMessage(userID int64, username, role string) string {
	role = strings.TrimSpace(role)
	if role == "" {
		role = "No role"
	}
	who := "id:" + strconv.FormatInt(userID, 10)
	if u := strings.TrimSpace(username); u != "" {
		who = "@" + u
	}
	return fmt.Sprintf("#left — %s (%s)", tgfmt.Escape(role), tgfmt.Escape(who))
}

// SendBackup uploads a backup file to the backup chat and, when enabled,
// to the audit chat as well.
func (s *Service) SendBackup(ctx context.Context, path string) error {
	if s == nil || s.tg == nil {
		return nil
	}
	caption := "💾 " + tgfmt.Escape(filepath.Base(path))
	var firstErr error
	targets := []int64{s.chats.Backup}
	if s.chats.BackupToAudit && s.chats.Audit != s.chats.Backup {
		targets = append(targets, s.chats.Audit)
	}
	for _, chatID := range targets {
		if chatID == 0 {
			continue
		}
		if err := s.tg.SendDocument(ctx, chatID, path, caption); err != nil {
			s.logger.Warn().Err(err).Int64("chat_id", chatID).Str("path", path).Msg("Failed to send backup")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ReportError posts an abbreviated failure report to the audit chat.
func (s *Service) ReportError(ctx context.Context, where string, err error) {
	if s == nil || s.tg == nil || s.chats.Audit == 0 || err == nil {
		return
	}
	body := tgfmt.Truncate(err.Error(), MaxErrorReport)
	text := fmt.Sprintf("⚠️ <b>error</b> in %s\n<code>%s</code>", tgfmt.Escape(where), tgfmt.Escape(body))
	_ = s.send(ctx, s.chats.Audit, text, "error_report")
}

func (s *Service) send(ctx context.Context, chatID int64, text, kind string) error {
	_, err := s.tg.SendMessage(ctx, tg.SendMessageParams{ChatID: chatID, Text: text, ParseMode: tg.ParseModeHTML})
	if err != nil {
		s.logger.Warn().Err(err).Int64("chat_id", chatID).Str("kind", kind).Msg("Failed to deliver notification")
	}
	return err
}
