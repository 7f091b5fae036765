package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Action
		wantErr bool
	}{
		{name: "page", data: "setr:page:2", want: Action{Flow: FlowAssignRole, Verb: VerbPage, Args: []string{"2"}}},
		{name: "pick user", data: "chr:pick:42", want: Action{Flow: FlowChangeRole, Verb: VerbPick, Args: []string{"42"}}},
		{name: "toggle", data: "give:toggle:7", want: Action{Flow: FlowGive, Verb: VerbToggle, Args: []string{"7"}}},
		{name: "done", data: "take:done", want: Action{Flow: FlowTake, Verb: VerbDone}},
		{name: "delta name with colon", data: "give:delta:a:b", want: Action{Flow: FlowGive, Verb: VerbDelta, Args: []string{"a:b"}}},
		{name: "delete delta", data: "ddel:pick:boost10", want: Action{Flow: FlowDeleteDelta, Verb: VerbPick, Args: []string{"boost10"}}},
		{name: "back", data: "adm:back", want: Action{Flow: FlowAdmin, Verb: VerbBack}},
		{name: "noop", data: "noop", want: Action{Flow: FlowNoop}},
		{name: "leaderboard", data: "lb:page:1", want: Action{Flow: FlowLeaderboard, Verb: VerbPage, Args: []string{"1"}}},
		{name: "leaderboard limit", data: "lb:page:0:limit:30", want: Action{Flow: FlowLeaderboard, Verb: VerbPage, Args: []string{"0", "limit", "30"}}},

		{name: "empty", data: "", wantErr: true},
		{name: "unknown flow", data: "zzz:page:1", wantErr: true},
		{name: "unknown verb", data: "setr:toggle:1", wantErr: true},
		{name: "non numeric", data: "setr:page:x", wantErr: true},
		{name: "missing arg", data: "setr:pick", wantErr: true},
		{name: "extra arg", data: "give:done:1", wantErr: true},
		{name: "missing text", data: "ddel:pick:", wantErr: true},
		{name: "bad limit", data: "lb:page:0:limit:x", wantErr: true},
		{name: "limit not allowed", data: "setr:page:0:limit:5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActionRoundTrip(t *testing.T) {
	for _, a := range []Action{
		PageAction(FlowGive, 3),
		PickAction(FlowAssignRole, "12345"),
		ToggleAction(FlowTake, 99),
		DeltaAction(FlowGive, "boost10"),
		VerbAction(FlowGive, VerbManual),
		BackAction(),
		NoopAction(),
		LeaderboardAction(2, 50),
	} {
		got, err := ParseAction(a.String())
		require.NoError(t, err, a.String())
		assert.Equal(t, a.String(), got.String())
	}
}

func TestActionAccessors(t *testing.T) {
	a := LeaderboardAction(4, 25)
	assert.EqualValues(t, 4, a.Int(0))
	n, ok := a.Limit()
	assert.True(t, ok)
	assert.Equal(t, 25, n)

	_, ok = LeaderboardAction(0, 0).Limit()
	assert.False(t, ok)
	assert.Equal(t, "", a.Text(9))
	assert.EqualValues(t, 0, a.Int(9))
}

func TestKeyboardDropsOversizePayloads(t *testing.T) {
	var kb Keyboard
	kb = kb.Row(Button{Text: "long", Data: DeltaAction(FlowGive, strings.Repeat("x", 70)).String()})
	assert.Empty(t, kb)

	kb = kb.Row(Button{Text: "ok", Data: "give:done"}, Button{Text: "long", Data: strings.Repeat("y", 65)})
	require.Len(t, kb, 1)
	assert.Len(t, kb[0], 1)
}
