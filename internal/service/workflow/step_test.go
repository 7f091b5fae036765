package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/open-builders/filmbank/internal/common/errors"
	"github.com/open-builders/filmbank/internal/service/riddle"
)

func tap(a Action) Event { return Press{Action: a} }

func TestStepStart(t *testing.T) {
	tests := []struct {
		flow  Flow
		state State
		eff   Effect
	}{
		{FlowAssignRole, PickUnroledUser{}, Render{}},
		{FlowChangeRole, PickRoledUser{}, Render{}},
		{FlowGive, PickUsers{Mode: FlowGive}, Render{}},
		{FlowTake, PickUsers{Mode: FlowTake}, Render{}},
		{FlowDeleteDelta, PickDelta{}, Render{}},
		{FlowRiddle, EnterQuestion{}, BeginRiddle{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.flow), func(t *testing.T) {
			s, eff := Step(Idle{}, Start{Flow: tt.flow})
			assert.Equal(t, tt.state, s)
			assert.Equal(t, tt.eff, eff)
		})
	}

	s, eff := Step(Idle{}, Start{Flow: FlowCreateDelta})
	assert.Equal(t, EnterDeltaValue{}, s)
	assert.IsType(t, Reply{}, eff)
}

func TestStepBulkSelection(t *testing.T) {
	var s State = PickUsers{Mode: FlowGive}

	s, eff := Step(s, tap(ToggleAction(FlowGive, 5)))
	assert.Equal(t, Render{Edit: true}, eff)
	s, _ = Step(s, tap(ToggleAction(FlowGive, 2)))
	s, _ = Step(s, tap(ToggleAction(FlowGive, 9)))
	s, _ = Step(s, tap(ToggleAction(FlowGive, 5)))
	assert.Equal(t, []int64{2, 9}, s.(PickUsers).Selected)

	// a payload from the other adjust flow is stale
	same, eff := Step(s, tap(ToggleAction(FlowTake, 3)))
	assert.Equal(t, s, same)
	assert.Equal(t, Ignore{}, eff)

	s, eff = Step(s, tap(VerbAction(FlowGive, VerbDone)))
	assert.Equal(t, PickAmount{Mode: FlowGive, Selected: []int64{2, 9}}, s)
	assert.Equal(t, Render{Edit: true}, eff)

	_, eff = Step(s, tap(DeltaAction(FlowGive, "ref-1")))
	assert.Equal(t, CommitAdjust{Mode: FlowGive, UserIDs: []int64{2, 9}, DeltaRef: "ref-1"}, eff)

	s, eff = Step(s, tap(VerbAction(FlowGive, VerbManual)))
	assert.True(t, s.(PickAmount).Manual)
	assert.Equal(t, Render{Edit: true}, eff)

	_, eff = Step(s, Text{Text: " 15 "})
	assert.Equal(t, CommitAdjust{Mode: FlowGive, UserIDs: []int64{2, 9}, Amount: 15}, eff)
}

func TestStepDoneRequiresSelection(t *testing.T) {
	s, eff := Step(PickUsers{Mode: FlowTake}, tap(VerbAction(FlowTake, VerbDone)))
	assert.Equal(t, PickUsers{Mode: FlowTake}, s)
	assert.Equal(t, Notice{Text: "Select at least one person."}, eff)
}

func TestStepCancelAndBack(t *testing.T) {
	s, eff := Step(PickUsers{Mode: FlowGive, Selected: []int64{1}}, tap(VerbAction(FlowGive, VerbCancel)))
	assert.Equal(t, Idle{}, s)
	assert.IsType(t, Reset{}, eff)

	for _, from := range []State{EnterRoleText{UserID: 1}, PickDelta{Page: 2}, EnterQuota{Question: "q"}, Idle{}} {
		s, eff := Step(from, tap(BackAction()))
		assert.Equal(t, Idle{}, s)
		assert.IsType(t, Reset{}, eff)
	}
}

func TestStepValidationKeepsState(t *testing.T) {
	tests := []struct {
		name  string
		state State
		input string
	}{
		{"empty role", EnterRoleText{UserID: 1}, "   "},
		{"long role", EnterNewRoleText{UserID: 1}, strings.Repeat("r", 65)},
		{"zero amount", PickAmount{Mode: FlowGive, Selected: []int64{1}, Manual: true}, "0"},
		{"huge amount", PickAmount{Mode: FlowTake, Selected: []int64{1}, Manual: true}, "9223372036854775807"},
		{"not a number", EnterDeltaValue{}, "ten"},
		{"huge delta", EnterDeltaValue{}, "-1000000000001"},
		{"name with space", EnterDeltaName{Value: 5}, "boost 10"},
		{"negative reward", EnterReward{Question: "q", Answer: "a"}, "-1"},
		{"quota too big", EnterQuota{Question: "q", Answer: "a", Reward: 1}, "201"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, eff := Step(tt.state, Text{Text: tt.input})
			assert.Equal(t, tt.state, s)
			rp, ok := eff.(Reprompt)
			require.True(t, ok, "got %T", eff)
			assert.True(t, apperrors.Is(rp.Err, apperrors.ErrCodeValidation))
		})
	}
}

func TestStepRoleTextKeepsOnlyHTTPLink(t *testing.T) {
	_, eff := Step(EnterRoleText{UserID: 3}, Text{Text: "Scout", Link: "https://example.org/s"})
	assert.Equal(t, CommitSetRole{UserID: 3, Role: "Scout", Link: "https://example.org/s"}, eff)

	_, eff = Step(EnterNewRoleText{UserID: 3, OldRole: "Scout"}, Text{Text: "Ranger", Link: "tg://user?id=3"})
	assert.Equal(t, CommitChangeRole{UserID: 3, Role: "Ranger"}, eff)
}

func TestStepRiddleSetup(t *testing.T) {
	var s State = EnterQuestion{}
	s, _ = Step(s, Text{Text: "What has keys but no locks?"})
	s, _ = Step(s, Text{Text: "Piano"})
	s, _ = Step(s, Text{Text: "50"})
	assert.Equal(t, EnterQuota{Question: "What has keys but no locks?", Answer: "Piano", Reward: 50}, s)

	_, eff := Step(s, Text{Text: "3"})
	assert.Equal(t, CommitRiddle{Setup: riddle.Setup{
		Question: "What has keys but no locks?",
		Answer:   "Piano",
		Reward:   50,
		Quota:    3,
	}}, eff)
}

func TestStepCreateDelta(t *testing.T) {
	s, eff := Step(EnterDeltaValue{}, Text{Text: "-7"})
	assert.Equal(t, EnterDeltaName{Value: -7}, s)
	assert.IsType(t, Reply{}, eff)

	_, eff = Step(s, Text{Text: "fine7"})
	assert.Equal(t, CommitCreateDelta{Name: "fine7", Value: -7}, eff)
}

func TestStepIgnoresUnrelatedInput(t *testing.T) {
	s, eff := Step(Idle{}, Text{Text: "hello"})
	assert.Equal(t, Idle{}, s)
	assert.Equal(t, Ignore{}, eff)

	s, eff = Step(EnterRoleText{UserID: 1}, tap(PageAction(FlowAssignRole, 1)))
	assert.Equal(t, EnterRoleText{UserID: 1}, s)
	assert.Equal(t, Ignore{}, eff)

	s, eff = Step(nil, tap(NoopAction()))
	assert.Equal(t, Idle{}, s)
	assert.Equal(t, Ignore{}, eff)
}

func TestSignedAmount(t *testing.T) {
	assert.EqualValues(t, 5, signedAmount(FlowGive, 5))
	assert.EqualValues(t, -5, signedAmount(FlowGive, -5))
	assert.EqualValues(t, -5, signedAmount(FlowTake, 5))
	assert.EqualValues(t, -5, signedAmount(FlowTake, -5))
}
