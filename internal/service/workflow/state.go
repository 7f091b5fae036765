package workflow

import "github.com/open-builders/filmbank/internal/service/riddle"

// State is one admin's position in a workflow. Each variant carries only
// the data collected so far.
type State interface{ isState() }

type Idle struct{}

// AssignRole
type PickUnroledUser struct{ Page int }
type EnterRoleText struct{ UserID int64 }

// ChangeRole
type PickRoledUser struct{ Page int }
type EnterNewRoleText struct {
	UserID  int64
	OldRole string
}

// BulkAdjust; Mode is FlowGive or FlowTake.
type PickUsers struct {
	Mode     Flow
	Selected []int64
	Page     int
}
type PickAmount struct {
	Mode     Flow
	Selected []int64
	Manual   bool
}

// CreateDelta
type EnterDeltaValue struct{}
type EnterDeltaName struct{ Value int64 }

// DeleteDelta
type PickDelta struct{ Page int }

// RiddleSetup
type EnterQuestion struct{}
type EnterAnswer struct{ Question string }
type EnterReward struct{ Question, Answer string }
type EnterQuota struct {
	Question string
	Answer   string
	Reward   int64
}

func (Idle) isState()             {}
func (PickUnroledUser) isState()  {}
func (EnterRoleText) isState()    {}
func (PickRoledUser) isState()    {}
func (EnterNewRoleText) isState() {}
func (PickUsers) isState()        {}
func (PickAmount) isState()       {}
func (EnterDeltaValue) isState()  {}
func (EnterDeltaName) isState()   {}
func (PickDelta) isState()        {}
func (EnterQuestion) isState()    {}
func (EnterAnswer) isState()      {}
func (EnterReward) isState()      {}
func (EnterQuota) isState()       {}

// Event is an admin input.
type Event interface{ isEvent() }

// Start opens a workflow from the admin menu.
type Start struct{ Flow Flow }

// Text is a private text message. Link is the URL of a text link covering
// the whole message, if any.
type Text struct {
	Text string
	Link string
}

// Press is an inline button press.
type Press struct{ Action Action }

func (Start) isEvent() {}
func (Text) isEvent()  {}
func (Press) isEvent() {}

// Effect is what the engine must do after a transition.
type Effect interface{ isEffect() }

// Ignore: the event does not apply to the current state.
type Ignore struct{}

// Reply sends a prompt.
type Reply struct{ Text string }

// Reprompt reports invalid input; the state is unchanged.
type Reprompt struct{ Err error }

// Notice answers a button press with a short message; the state is unchanged.
type Notice struct{ Text string }

// Render draws the picker for the new state. Edit updates the pressed message.
type Render struct{ Edit bool }

// Reset returns to the menu.
type Reset struct{ Text string }

// Lookup resolves the picked user before asking for text input.
type Lookup struct{ UserID int64 }

// BeginRiddle checks that no contest is running before prompting.
type BeginRiddle struct{}

type CommitSetRole struct {
	UserID int64
	Role   string
	Link   string
}

type CommitChangeRole struct {
	UserID int64
	Role   string
	Link   string
}

// CommitAdjust applies Amount, or the named delta whose ledger.DeltaRef is
// DeltaRef when set.
type CommitAdjust struct {
	Mode     Flow
	UserIDs  []int64
	Amount   int64
	DeltaRef string
}

type CommitCreateDelta struct {
	Name  string
	Value int64
}

type CommitDeleteDelta struct{ Ref string }

type CommitRiddle struct{ Setup riddle.Setup }

func (Ignore) isEffect()            {}
func (Reply) isEffect()             {}
func (Reprompt) isEffect()          {}
func (Notice) isEffect()            {}
func (Render) isEffect()            {}
func (Reset) isEffect()             {}
func (Lookup) isEffect()            {}
func (BeginRiddle) isEffect()       {}
func (CommitSetRole) isEffect()     {}
func (CommitChangeRole) isEffect()  {}
func (CommitAdjust) isEffect()      {}
func (CommitCreateDelta) isEffect() {}
func (CommitDeleteDelta) isEffect() {}
func (CommitRiddle) isEffect()      {}
