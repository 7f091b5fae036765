package workflow

import (
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/open-builders/filmbank/internal/common/errors"
	dl "github.com/open-builders/filmbank/internal/domain/ledger"
	"github.com/open-builders/filmbank/internal/service/riddle"
)

// Step is the pure transition function. It never touches the store; effects
// that need data or commit changes are carried out by the Engine.
func Step(s State, ev Event) (State, Effect) {
	if s == nil {
		s = Idle{}
	}
	switch e := ev.(type) {
	case Start:
		return start(e.Flow)
	case Press:
		if e.Action.Flow == FlowAdmin && e.Action.Verb == VerbBack {
			return Idle{}, Reset{Text: "Back to the menu."}
		}
		return press(s, e.Action)
	case Text:
		return text(s, e)
	}
	return s, Ignore{}
}

func start(flow Flow) (State, Effect) {
	switch flow {
	case FlowAssignRole:
		return PickUnroledUser{}, Render{}
	case FlowChangeRole:
		return PickRoledUser{}, Render{}
	case FlowGive, FlowTake:
		return PickUsers{Mode: flow}, Render{}
	case FlowCreateDelta:
		return EnterDeltaValue{}, Reply{Text: "Send an integer for the delta (for example 10):"}
	case FlowDeleteDelta:
		return PickDelta{}, Render{}
	case FlowRiddle:
		return EnterQuestion{}, BeginRiddle{}
	}
	return Idle{}, Ignore{}
}

func press(s State, a Action) (State, Effect) {
	switch st := s.(type) {
	case PickUnroledUser:
		if a.Flow != FlowAssignRole {
			break
		}
		switch a.Verb {
		case VerbPage:
			return PickUnroledUser{Page: int(a.Int(0))}, Render{Edit: true}
		case VerbPick:
			return EnterRoleText{UserID: a.Int(0)}, Lookup{UserID: a.Int(0)}
		}

	case PickRoledUser:
		if a.Flow != FlowChangeRole {
			break
		}
		switch a.Verb {
		case VerbPage:
			return PickRoledUser{Page: int(a.Int(0))}, Render{Edit: true}
		case VerbPick:
			return EnterNewRoleText{UserID: a.Int(0)}, Lookup{UserID: a.Int(0)}
		}

	case PickUsers:
		if a.Flow != st.Mode {
			break
		}
		switch a.Verb {
		case VerbPage:
			st.Page = int(a.Int(0))
			return st, Render{Edit: true}
		case VerbToggle:
			st.Selected = toggle(st.Selected, a.Int(0))
			return st, Render{Edit: true}
		case VerbDone:
			if len(st.Selected) == 0 {
				return st, Notice{Text: "Select at least one person."}
			}
			return PickAmount{Mode: st.Mode, Selected: st.Selected}, Render{Edit: true}
		case VerbCancel:
			return Idle{}, Reset{Text: "Cancelled."}
		}

	case PickAmount:
		if a.Flow != st.Mode {
			break
		}
		switch a.Verb {
		case VerbDelta:
			return st, CommitAdjust{Mode: st.Mode, UserIDs: st.Selected, DeltaRef: a.Text(0)}
		case VerbManual:
			st.Manual = true
			return st, Render{Edit: true}
		case VerbCancel:
			return Idle{}, Reset{Text: "Cancelled."}
		}

	case PickDelta:
		if a.Flow != FlowDeleteDelta {
			break
		}
		switch a.Verb {
		case VerbPage:
			return PickDelta{Page: int(a.Int(0))}, Render{Edit: true}
		case VerbPick:
			return st, CommitDeleteDelta{Ref: a.Text(0)}
		}
	}
	return s, Ignore{}
}

func text(s State, t Text) (State, Effect) {
	raw := strings.TrimSpace(t.Text)
	switch st := s.(type) {
	case EnterRoleText:
		if err := dl.ValidateRole(raw); err != nil {
			return st, Reprompt{Err: err}
		}
		return st, CommitSetRole{UserID: st.UserID, Role: raw, Link: roleLink(t.Link)}

	case EnterNewRoleText:
		if err := dl.ValidateRole(raw); err != nil {
			return st, Reprompt{Err: err}
		}
		return st, CommitChangeRole{UserID: st.UserID, Role: raw, Link: roleLink(t.Link)}

	case PickAmount:
		v, err := parseInt(raw)
		if err != nil {
			return st, Reprompt{Err: err}
		}
		if err := dl.ValidateDeltaValue(v); err != nil {
			return st, Reprompt{Err: err}
		}
		return st, CommitAdjust{Mode: st.Mode, UserIDs: st.Selected, Amount: v}

	case EnterDeltaValue:
		v, err := parseInt(raw)
		if err != nil {
			return st, Reprompt{Err: err}
		}
		if err := dl.ValidateDeltaValue(v); err != nil {
			return st, Reprompt{Err: err}
		}
		return EnterDeltaName{Value: v}, Reply{Text: "Now send a name without spaces, for example boost10:"}

	case EnterDeltaName:
		if err := dl.ValidateDeltaName(raw); err != nil {
			return st, Reprompt{Err: err}
		}
		return st, CommitCreateDelta{Name: raw, Value: st.Value}

	case EnterQuestion:
		if err := riddle.ValidateQuestion(raw); err != nil {
			return st, Reprompt{Err: err}
		}
		return EnterAnswer{Question: raw}, Reply{Text: "Now send the answer (a word or a phrase). I will look for it in group messages:"}

	case EnterAnswer:
		if err := riddle.ValidateAnswer(raw); err != nil {
			return st, Reprompt{Err: err}
		}
		return EnterReward{Question: st.Question, Answer: raw}, Reply{Text: "How many films does a winner get? (integer > 0)"}

	case EnterReward:
		v, err := parseInt(raw)
		if err != nil {
			return st, Reprompt{Err: err}
		}
		if err := riddle.ValidateReward(v); err != nil {
			return st, Reprompt{Err: err}
		}
		return EnterQuota{Question: st.Question, Answer: st.Answer, Reward: v}, Reply{Text: "How many winners? (integer > 0)"}

	case EnterQuota:
		v, err := parseInt(raw)
		if err != nil {
			return st, Reprompt{Err: err}
		}
		if err := riddle.ValidateQuota(int(v)); err != nil {
			return st, Reprompt{Err: err}
		}
		return st, CommitRiddle{Setup: riddle.Setup{
			Question: st.Question,
			Answer:   st.Answer,
			Reward:   st.Reward,
			Quota:    int(v),
		}}
	}
	return s, Ignore{}
}

func toggle(selected []int64, id int64) []int64 {
	out := make([]int64, 0, len(selected)+1)
	found := false
	for _, v := range selected {
		if v == id {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func parseInt(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("number", "an integer is required")
	}
	return v, nil
}

func roleLink(link string) string {
	link = strings.TrimSpace(link)
	if !dl.IsHTTPURL(link) {
		return ""
	}
	return link
}

// signedAmount turns an admin-entered amount into the applied delta: Take
// always subtracts the magnitude.
func signedAmount(mode Flow, v int64) int64 {
	if mode != FlowTake {
		return v
	}
	if v < 0 {
		return v
	}
	return -v
}
