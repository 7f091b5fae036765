package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/filmbank/internal/common/errors"
	"github.com/open-builders/filmbank/internal/common/pagination"
	dl "github.com/open-builders/filmbank/internal/domain/ledger"
	"github.com/open-builders/filmbank/internal/service/riddle"
	tgfmt "github.com/open-builders/filmbank/internal/utils/telegram"
)

const (
	amountPickerDeltas = 12
	auditMaxLines      = 60
)

// Ledger is the subset of the ledger service the workflows drive.
type Ledger interface {
	SetRole(ctx context.Context, userID int64, role, link string) (dl.UserRecord, error)
	ChangeRole(ctx context.Context, userID int64, newRole, link string) (string, dl.UserRecord, error)
	AdjustBalance(ctx context.Context, userIDs []int64, delta int64) ([]dl.BalanceChange, error)
	CreateDelta(ctx context.Context, name string, value int64) error
	DeleteDelta(ctx context.Context, name string) (int64, error)
	DeltaByRef(ctx context.Context, ref string) (dl.NamedDelta, bool, error)
	Deltas(ctx context.Context) ([]dl.NamedDelta, error)
	User(ctx context.Context, userID int64) (dl.Entry, bool, error)
	UsersWithoutRole(ctx context.Context) ([]dl.Entry, error)
	UsersWithRole(ctx context.Context) ([]dl.Entry, error)
	UsersForAdjust(ctx context.Context) ([]dl.Entry, error)
}

// Riddles is the contest surface used by RiddleSetup.
type Riddles interface {
	Active(ctx context.Context) (*dl.RiddleContest, error)
	Launch(ctx context.Context, setup riddle.Setup, by string) error
}

// Authorizer decides whether an admin may act right now.
type Authorizer interface {
	IsAuthorized(userID int64) bool
}

// Auditor receives audit lines.
type Auditor interface {
	Audit(ctx context.Context, text string)
}

// Admin identifies the acting administrator.
type Admin struct {
	ID       int64
	FullName string
	Username string
}

func (a Admin) actor() string { return tgfmt.Actor(a.ID, a.FullName, a.Username) }

// Result tells the delivery layer what to show. Text is HTML.
type Result struct {
	// Handled is false when the event did not apply to the admin's state.
	Handled  bool
	Text     string
	Keyboard Keyboard
	// Edit replaces the pressed message instead of sending a new one.
	Edit bool
	// Alert is the short answer to a button press.
	Alert string
	// Menu asks for the admin reply keyboard to be shown again.
	Menu bool
}

type slot struct {
	mu    sync.Mutex
	state State
}

// Engine owns every admin's workflow state. Events from one admin are
// serialized; different admins proceed independently.
type Engine struct {
	ledger   Ledger
	riddles  Riddles
	auth     Authorizer
	audit    Auditor
	pageSize int
	logger   zerolog.Logger

	mu    sync.Mutex
	slots map[int64]*slot
}

func NewEngine(ledger Ledger, riddles Riddles, auth Authorizer, audit Auditor, pageSize int, logger zerolog.Logger) *Engine {
	if pageSize < 1 {
		pageSize = 10
	}
	return &Engine{
		ledger:   ledger,
		riddles:  riddles,
		auth:     auth,
		audit:    audit,
		pageSize: pageSize,
		logger:   logger,
		slots:    make(map[int64]*slot),
	}
}

func (e *Engine) slot(adminID int64) *slot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.slots[adminID]
	if !ok {
		s = &slot{state: Idle{}}
		e.slots[adminID] = s
	}
	return s
}

// State returns the admin's current state.
func (e *Engine) State(adminID int64) State {
	s := e.slot(adminID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reset drops any workflow in progress.
func (e *Engine) Reset(adminID int64) {
	s := e.slot(adminID)
	s.mu.Lock()
	s.state = Idle{}
	s.mu.Unlock()
}

// Active reports whether the admin is inside a workflow.
func (e *Engine) Active(adminID int64) bool {
	_, idle := e.State(adminID).(Idle)
	return !idle
}

// Handle feeds one event to the admin's workflow. Authorization is checked
// before the transition; a denied event returns ErrCodeNotAuthorized and
// leaves the state untouched.
func (e *Engine) Handle(ctx context.Context, admin Admin, ev Event) (Result, error) {
	if !e.auth.IsAuthorized(admin.ID) {
		return Result{}, apperrors.NewNotAuthorizedError("admin session required").WithUserID(admin.ID)
	}

	s := e.slot(admin.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	next, eff := Step(prev, ev)
	state, res, err := e.apply(ctx, admin, prev, next, eff)
	if err != nil {
		e.logger.Error().Err(err).Int64("admin_id", admin.ID).Str("state", stateName(prev)).Msg("Workflow step failed")
		return Result{}, err
	}
	s.state = state
	if _, ok := eff.(Ignore); !ok {
		res.Handled = true
	}
	e.logger.Debug().Int64("admin_id", admin.ID).Str("from", stateName(prev)).Str("to", stateName(state)).Msg("Workflow step")
	return res, nil
}

func (e *Engine) apply(ctx context.Context, admin Admin, prev, next State, eff Effect) (State, Result, error) {
	switch ef := eff.(type) {
	case Ignore:
		return prev, Result{}, nil
	case Reply:
		return next, Result{Text: tgfmt.Escape(ef.Text)}, nil
	case Reprompt:
		return next, Result{Text: tgfmt.Escape(apperrors.Reason(ef.Err))}, nil
	case Notice:
		return next, Result{Alert: ef.Text}, nil
	case Reset:
		return Idle{}, Result{Text: tgfmt.Escape(ef.Text), Edit: true, Menu: true}, nil
	case Render:
		return e.render(ctx, next, ef.Edit)
	case Lookup:
		return e.lookup(ctx, next, ef.UserID)
	case BeginRiddle:
		active, err := e.riddles.Active(ctx)
		if err != nil {
			return prev, Result{}, err
		}
		if active != nil {
			return Idle{}, Result{Text: "A riddle is already running. Wait until it ends."}, nil
		}
		return next, Result{Text: "Send the riddle post text. It goes to the group and gets pinned:"}, nil
	}

	res, err := e.commit(ctx, admin, eff)
	if err == nil {
		res.Menu = true
		return Idle{}, res, nil
	}
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeConflict:
		if _, ok := eff.(CommitRiddle); ok {
			return Idle{}, Result{Text: tgfmt.Escape(apperrors.Reason(err)), Menu: true}, nil
		}
		return prev, Result{Text: tgfmt.Escape(apperrors.Reason(err))}, nil
	case apperrors.ErrCodeValidation:
		return prev, Result{Text: tgfmt.Escape(apperrors.Reason(err))}, nil
	case apperrors.ErrCodeTargetLost:
		return Idle{}, Result{Text: "The target is gone. Start again.", Alert: "Target lost", Menu: true}, nil
	}
	return prev, Result{}, err
}

func (e *Engine) commit(ctx context.Context, admin Admin, eff Effect) (Result, error) {
	switch ef := eff.(type) {
	case CommitSetRole:
		rec, err := e.ledger.SetRole(ctx, ef.UserID, ef.Role, ef.Link)
		if err != nil {
			return Result{}, err
		}
		e.audit.Audit(ctx, fmt.Sprintf("🧩 <b>set_role</b>: %s -> %s", admin.actor(), tgfmt.UserLink(ef.UserID, rec.Role)))
		who := tgfmt.AdminLabel(ef.UserID, dl.UserRecord{Username: rec.Username, DisplayName: rec.DisplayName})
		return Result{Text: fmt.Sprintf("Done: %s is now %s.", tgfmt.Escape(who), tgfmt.Escape(rec.Role))}, nil

	case CommitChangeRole:
		old, rec, err := e.ledger.ChangeRole(ctx, ef.UserID, ef.Role, ef.Link)
		if err != nil {
			return Result{}, err
		}
		if old == "" {
			old = "No role"
		}
		e.audit.Audit(ctx, fmt.Sprintf("🧩 <b>change_role</b>: %s -> %s → %s",
			admin.actor(), tgfmt.UserLink(ef.UserID, old), tgfmt.UserLink(ef.UserID, rec.Role)))
		return Result{Text: fmt.Sprintf("Done: %s → %s. Balance kept.", tgfmt.Escape(old), tgfmt.Escape(rec.Role))}, nil

	case CommitAdjust:
		return e.commitAdjust(ctx, admin, ef)

	case CommitCreateDelta:
		if err := e.ledger.CreateDelta(ctx, ef.Name, ef.Value); err != nil {
			return Result{}, err
		}
		e.audit.Audit(ctx, fmt.Sprintf("➕ <b>delta_add</b>: %s -> %s=%s", admin.actor(), tgfmt.Escape(ef.Name), tgfmt.Signed(ef.Value)))
		return Result{Text: fmt.Sprintf("Created: %s = %s", tgfmt.Escape(ef.Name), tgfmt.Signed(ef.Value))}, nil

	case CommitDeleteDelta:
		d, err := e.resolveDelta(ctx, ef.Ref)
		if err != nil {
			return Result{}, err
		}
		prev, err := e.ledger.DeleteDelta(ctx, d.Name)
		if err != nil {
			return Result{}, err
		}
		e.audit.Audit(ctx, fmt.Sprintf("➖ <b>delta_del</b>: %s -> %s=%s", admin.actor(), tgfmt.Escape(d.Name), tgfmt.Signed(prev)))
		return Result{Text: fmt.Sprintf("Deleted: %s (was %s)", tgfmt.Escape(d.Name), tgfmt.Signed(prev)), Edit: true, Alert: "Deleted"}, nil

	case CommitRiddle:
		if err := e.riddles.Launch(ctx, ef.Setup, admin.actor()); err != nil {
			return Result{}, err
		}
		return Result{Text: "OK. The riddle is posted and pinned. Waiting for winners."}, nil
	}
	return Result{}, fmt.Errorf("unknown effect %T", eff)
}

func (e *Engine) commitAdjust(ctx context.Context, admin Admin, ef CommitAdjust) (Result, error) {
	amount := ef.Amount
	if ef.DeltaRef != "" {
		d, err := e.resolveDelta(ctx, ef.DeltaRef)
		if err != nil {
			return Result{}, err
		}
		amount = d.Value
	}
	delta := signedAmount(ef.Mode, amount)

	changes, err := e.ledger.AdjustBalance(ctx, ef.UserIDs, delta)
	if err != nil {
		return Result{}, err
	}
	lines := make([]string, 0, len(changes))
	for _, c := range changes {
		lines = append(lines, tgfmt.ChangeLine(c))
	}

	verb := "give"
	if ef.Mode == FlowTake {
		verb = "take"
	}
	if len(lines) == 0 {
		return Result{Text: "Nobody from the selection is still here.", Edit: ef.DeltaRef != ""}, nil
	}
	e.audit.Audit(ctx, fmt.Sprintf("💸 <b>%s</b>: %s (%s)\n%s",
		verb, admin.actor(), tgfmt.Signed(delta), strings.Join(tgfmt.TruncateLines(lines, auditMaxLines), "\n")))
	return Result{Text: "Done:\n" + strings.Join(lines, "\n"), Edit: ef.DeltaRef != ""}, nil
}

// resolveDelta finds the named delta a button refers to.
func (e *Engine) resolveDelta(ctx context.Context, ref string) (dl.NamedDelta, error) {
	d, ok, err := e.ledger.DeltaByRef(ctx, ref)
	if err != nil {
		return dl.NamedDelta{}, err
	}
	if !ok {
		return dl.NamedDelta{}, apperrors.NewTargetLostError("delta", ref)
	}
	return d, nil
}

func (e *Engine) lookup(ctx context.Context, next State, userID int64) (State, Result, error) {
	entry, ok, err := e.ledger.User(ctx, userID)
	if err != nil {
		return nil, Result{}, err
	}
	switch st := next.(type) {
	case EnterRoleText:
		if !ok {
			return Idle{}, Result{Text: "The member is gone.", Alert: "Target lost", Edit: true, Menu: true}, nil
		}
		return st, Result{
			Text:  fmt.Sprintf("OK. Send the role text (up to 64 characters) for %s:", tgfmt.Escape(tgfmt.AdminLabel(userID, entry.Record))),
			Edit:  true,
			Alert: "Waiting for the role",
		}, nil
	case EnterNewRoleText:
		if !ok || entry.Record.Role == "" {
			return Idle{}, Result{Text: "The role is gone.", Alert: "Target lost", Edit: true, Menu: true}, nil
		}
		st.OldRole = entry.Record.Role
		return st, Result{
			Text:  fmt.Sprintf("Send the new role (up to 64 characters). Current: %s", tgfmt.Escape(st.OldRole)),
			Edit:  true,
			Alert: "Waiting for the new role",
		}, nil
	}
	return next, Result{}, nil
}

func (e *Engine) render(ctx context.Context, next State, edit bool) (State, Result, error) {
	switch st := next.(type) {
	case PickUnroledUser:
		users, err := e.ledger.UsersWithoutRole(ctx)
		if err != nil {
			return nil, Result{}, err
		}
		p := pagination.Paginate(len(users), st.Page, e.pageSize)
		var kb Keyboard
		for _, u := range users[p.Start:p.End] {
			kb = kb.Row(Button{Text: tgfmt.AdminLabel(u.UserID, u.Record), Data: PickAction(FlowAssignRole, itoa(u.UserID)).String()})
		}
		kb = kb.Row(NavRow(p, func(n int) Action { return PageAction(FlowAssignRole, n) })...).Row(backRow()...)
		return PickUnroledUser{Page: p.Index}, Result{Text: "Pick a member without a role:", Keyboard: kb, Edit: edit}, nil

	case PickRoledUser:
		users, err := e.ledger.UsersWithRole(ctx)
		if err != nil {
			return nil, Result{}, err
		}
		p := pagination.Paginate(len(users), st.Page, e.pageSize)
		var kb Keyboard
		for _, u := range users[p.Start:p.End] {
			kb = kb.Row(Button{Text: u.Record.Role, Data: PickAction(FlowChangeRole, itoa(u.UserID)).String()})
		}
		kb = kb.Row(NavRow(p, func(n int) Action { return PageAction(FlowChangeRole, n) })...).Row(backRow()...)
		return PickRoledUser{Page: p.Index}, Result{Text: "Pick a role:", Keyboard: kb, Edit: edit}, nil

	case PickUsers:
		users, err := e.ledger.UsersForAdjust(ctx)
		if err != nil {
			return nil, Result{}, err
		}
		p := pagination.Paginate(len(users), st.Page, e.pageSize)
		selected := make(map[int64]bool, len(st.Selected))
		for _, id := range st.Selected {
			selected[id] = true
		}
		var kb Keyboard
		for _, u := range users[p.Start:p.End] {
			label := u.Record.Role
			if label == "" {
				label = tgfmt.AdminLabel(u.UserID, u.Record)
			}
			if selected[u.UserID] {
				label = "✅ " + label
			}
			kb = kb.Row(Button{Text: label, Data: ToggleAction(st.Mode, u.UserID).String()})
		}
		mode := st.Mode
		kb = kb.Row(NavRow(p, func(n int) Action { return PageAction(mode, n) })...).
			Row(Button{Text: "✅ Done", Data: VerbAction(mode, VerbDone).String()},
				Button{Text: "✖ Cancel", Data: VerbAction(mode, VerbCancel).String()}).
			Row(backRow()...)
		st.Page = p.Index
		text := fmt.Sprintf("Pick people (several allowed), then press Done. Selected: %d", len(st.Selected))
		return st, Result{Text: text, Keyboard: kb, Edit: edit}, nil

	case PickAmount:
		if st.Manual {
			return st, Result{Text: "Send an integer:", Edit: edit}, nil
		}
		deltas, err := e.ledger.Deltas(ctx)
		if err != nil {
			return nil, Result{}, err
		}
		if len(deltas) > amountPickerDeltas {
			deltas = deltas[:amountPickerDeltas]
		}
		var kb Keyboard
		for _, d := range deltas {
			kb = kb.Row(Button{Text: fmt.Sprintf("%s (%s)", d.Name, tgfmt.Signed(d.Value)), Data: DeltaAction(st.Mode, dl.DeltaRef(d.Name)).String()})
		}
		kb = kb.Row(Button{Text: "⌨️ Enter a number", Data: VerbAction(st.Mode, VerbManual).String()}).
			Row(Button{Text: "✖ Cancel", Data: VerbAction(st.Mode, VerbCancel).String()})
		text := fmt.Sprintf("Selected: %d. Pick a delta or enter a number:", len(st.Selected))
		return st, Result{Text: text, Keyboard: kb, Edit: edit}, nil

	case PickDelta:
		deltas, err := e.ledger.Deltas(ctx)
		if err != nil {
			return nil, Result{}, err
		}
		if len(deltas) == 0 {
			return Idle{}, Result{Text: "There are no deltas.", Edit: edit}, nil
		}
		p := pagination.Paginate(len(deltas), st.Page, e.pageSize)
		var kb Keyboard
		for _, d := range deltas[p.Start:p.End] {
			kb = kb.Row(Button{Text: fmt.Sprintf("%s = %s", d.Name, tgfmt.Signed(d.Value)), Data: PickAction(FlowDeleteDelta, dl.DeltaRef(d.Name)).String()})
		}
		kb = kb.Row(NavRow(p, func(n int) Action { return PageAction(FlowDeleteDelta, n) })...).Row(backRow()...)
		return PickDelta{Page: p.Index}, Result{Text: "Pick a delta to delete:", Keyboard: kb, Edit: edit}, nil
	}
	return next, Result{}, nil
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func stateName(s State) string {
	if s == nil {
		return "Idle"
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", s), "workflow.")
}
