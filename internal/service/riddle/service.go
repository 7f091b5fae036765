package riddle

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/filmbank/internal/common/errors"
	dl "github.com/open-builders/filmbank/internal/domain/ledger"
)

const (
	MaxQuestionLen = 3500
	MaxAnswerLen   = 64
	MaxReward      = 100000
	MaxWinners     = 200
)

// Publisher is the chat surface the contest needs.
type Publisher interface {
	SendText(ctx context.Context, chatID int64, text string) (int64, error)
	Pin(ctx context.Context, chatID, messageID int64) error
	Unpin(ctx context.Context, chatID, messageID int64) error
}

// Auditor receives audit lines.
type Auditor interface {
	Audit(ctx context.Context, text string)
}

// Setup is a fully collected contest definition.
type Setup struct {
	Question string
	Answer   string
	Reward   int64
	Quota    int
}

func ValidateQuestion(q string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(q))
	if n == 0 || n > MaxQuestionLen {
		return apperrors.NewValidationError("question", "text is required, up to 3500 characters")
	}
	return nil
}

func ValidateAnswer(a string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(a))
	if n == 0 || n > MaxAnswerLen {
		return apperrors.NewValidationError("answer", "answer must be 1..64 characters")
	}
	return nil
}

func ValidateReward(r int64) error {
	if r <= 0 || r > MaxReward {
		return apperrors.NewValidationError("reward", "reward must be 1..100000")
	}
	return nil
}

func ValidateQuota(q int) error {
	if q <= 0 || q > MaxWinners {
		return apperrors.NewValidationError("winners", "winners must be 1..200")
	}
	return nil
}

// Validate checks every field of s.
func (s Setup) Validate() error {
	for _, err := range []error{
		ValidateQuestion(s.Question),
		ValidateAnswer(s.Answer),
		ValidateReward(s.Reward),
		ValidateQuota(s.Quota),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// ScanResult is what a scanned message did to the contest.
type ScanResult struct {
	Won       bool
	Finalized bool
	Reward    int64
	Winners   []int64
}

// Service runs the single daily riddle contest.
type Service struct {
	repo   dl.Repository
	pub    Publisher
	audit  Auditor
	chatID int64
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo dl.Repository, pub Publisher, audit Auditor, chatID int64, logger zerolog.Logger) *Service {
	return &Service{repo: repo, pub: pub, audit: audit, chatID: chatID, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Active returns a copy of the running contest, or nil.
func (s *Service) Active(ctx context.Context) (*dl.RiddleContest, error) {
	var out *dl.RiddleContest
	err := s.repo.View(ctx, func(snap *dl.Snapshot) error {
		if r := snap.ActiveRiddle(); r != nil {
			cp := *r
			cp.Winners = append([]int64(nil), r.Winners...)
			out = &cp
		}
		return nil
	})
	return out, err
}

// Launch posts the question to the group, pins it and activates the
// contest. It refuses while another contest is running.
func (s *Service) Launch(ctx context.Context, setup Setup, by string) error {
	setup.Question = strings.TrimSpace(setup.Question)
	setup.Answer = strings.TrimSpace(setup.Answer)
	if err := setup.Validate(); err != nil {
		return err
	}

	active, err := s.Active(ctx)
	if err != nil {
		return err
	}
	if active != nil {
		return apperrors.NewConflictError("riddle", "a riddle is already running")
	}

	msgID, err := s.pub.SendText(ctx, s.chatID, setup.Question)
	if err != nil {
		return apperrors.NewPlatformIOError("post riddle", err)
	}
	if err := s.pub.Pin(ctx, s.chatID, msgID); err != nil {
		s.logger.Warn().Err(err).Int64("message_id", msgID).Msg("Pin failed")
	}

	err = s.repo.Update(ctx, func(snap *dl.Snapshot) error {
		if snap.ActiveRiddle() != nil {
			return apperrors.NewConflictError("riddle", "a riddle is already running")
		}
		snap.Riddle = &dl.RiddleContest{
			Active:           true,
			ChatID:           s.chatID,
			ChannelMessageID: msgID,
			QuestionText:     setup.Question,
			AnswerText:       setup.Answer,
			RewardAmount:     setup.Reward,
			WinnerQuota:      setup.Quota,
			Winners:          []int64{},
			CreatedAt:        s.now().UTC(),
		}
		return nil
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCodeConflict) {
			if uerr := s.pub.Unpin(ctx, s.chatID, msgID); uerr != nil {
				s.logger.Warn().Err(uerr).Int64("message_id", msgID).Msg("Unpin of superseded riddle failed")
			}
		}
		return err
	}

	s.logger.Info().Int64("message_id", msgID).Int64("reward", setup.Reward).Int("quota", setup.Quota).Msg("Riddle launched")
	s.audit.Audit(ctx, fmt.Sprintf("🧠 <b>riddle</b>: created (%d🎞️, winners=%d) by %s", setup.Reward, setup.Quota, by))
	return nil
}

// Scan checks a group message against the running contest. A correct
// answer from a new winner is rewarded; the winner that fills the quota
// closes the contest in the same save.
func (s *Service) Scan(ctx context.Context, from dl.Member, text string) (ScanResult, error) {
	if from.IsBot || from.ID == 0 || strings.TrimSpace(text) == "" {
		return ScanResult{}, nil
	}

	var (
		res     ScanResult
		closing dl.RiddleContest
	)
	err := s.repo.Update(ctx, func(snap *dl.Snapshot) error {
		r := snap.ActiveRiddle()
		if r == nil || r.RewardAmount <= 0 || r.WinnerQuota <= 0 {
			return dl.ErrNoChange
		}
		if !Matches(r.AnswerText, text) {
			return dl.ErrNoChange
		}
		if r.HasWinner(from.ID) || r.Full() {
			return dl.ErrNoChange
		}

		now := s.now().UTC()
		r.Winners = append(r.Winners, from.ID)
		dl.Upsert(snap, from, now)
		dl.ApplyDelta(snap, []int64{from.ID}, r.RewardAmount, now)

		res = ScanResult{Won: true, Reward: r.RewardAmount, Winners: append([]int64(nil), r.Winners...)}
		if r.Full() {
			res.Finalized = true
			closing = *r
			closing.Active = false
			snap.Riddle = nil
		}
		return nil
	})
	if err != nil {
		return ScanResult{}, err
	}
	if !res.Won {
		return res, nil
	}

	s.logger.Info().Int64("user_id", from.ID).Int("winners", len(res.Winners)).Msg("Riddle answered")
	if res.Finalized {
		s.finalize(ctx, closing)
	}
	return res, nil
}

func (s *Service) finalize(ctx context.Context, r dl.RiddleContest) {
	chatID := r.ChatID
	if chatID == 0 {
		chatID = s.chatID
	}
	if err := s.pub.Unpin(ctx, chatID, r.ChannelMessageID); err != nil {
		s.logger.Warn().Err(err).Int64("message_id", r.ChannelMessageID).Msg("Unpin failed")
	}

	var lines []string
	err := s.repo.View(ctx, func(snap *dl.Snapshot) error {
		lines = WinnerLines(snap, r.Winners)
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read winners")
	}

	body := "nobody found, which is Telegram magic"
	if len(lines) > 0 {
		body = strings.Join(lines, "\n")
	}
	if _, err := s.pub.SendText(ctx, chatID, "✅ Winners:\n"+body); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to announce riddle winners")
	}
	s.audit.Audit(ctx, fmt.Sprintf("✅ <b>riddle_end</b>: winners=%d reward=%d", len(r.Winners), r.RewardAmount))
}

// WinnerLines renders "@handle - role" for each winner still present.
func WinnerLines(snap *dl.Snapshot, winners []int64) []string {
	lines := make([]string, 0, len(winners))
	for _, id := range winners {
		rec := snap.User(id)
		if rec == nil {
			continue
		}
		who := dl.NormalizeName(rec.DisplayName)
		if rec.Username != "" {
			who = "@" + rec.Username
		}
		if who == "" {
			who = dl.Key(id)
		}
		role := rec.Role
		if role == "" {
			role = "No role"
		}
		lines = append(lines, who+" - "+role)
	}
	return lines
}
