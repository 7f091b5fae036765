package workflow

import (
	"fmt"
	"strconv"
	"strings"
)

// Flow names the workflow a callback payload belongs to.
type Flow string

const (
	FlowAssignRole  Flow = "setr"
	FlowChangeRole  Flow = "chr"
	FlowGive        Flow = "give"
	FlowTake        Flow = "take"
	FlowCreateDelta Flow = "dadd"
	FlowDeleteDelta Flow = "ddel"
	FlowRiddle      Flow = "rdl"
	FlowAdmin       Flow = "adm"
	FlowLeaderboard Flow = "lb"
	FlowNoop        Flow = "noop"
)

// Verb is the operation inside a flow.
type Verb string

const (
	VerbPage   Verb = "page"
	VerbPick   Verb = "pick"
	VerbToggle Verb = "toggle"
	VerbDone   Verb = "done"
	VerbCancel Verb = "cancel"
	VerbDelta  Verb = "delta"
	VerbManual Verb = "manual"
	VerbBack   Verb = "back"
)

// Action is a decoded callback payload "<flow>:<verb>[:<arg>...]".
type Action struct {
	Flow Flow
	Verb Verb
	Args []string
}

type argKind int

const (
	argInt argKind = iota
	argText
)

type verbSpec struct {
	args []argKind
	// optional trailing key/value pair, "limit:<n>" for leaderboard pages
	optLimit bool
}

var grammar = map[Flow]map[Verb]verbSpec{
	FlowAssignRole: {
		VerbPage: {args: []argKind{argInt}},
		VerbPick: {args: []argKind{argInt}},
	},
	FlowChangeRole: {
		VerbPage: {args: []argKind{argInt}},
		VerbPick: {args: []argKind{argInt}},
	},
	FlowGive: adjustVerbs,
	FlowTake: adjustVerbs,
	FlowDeleteDelta: {
		VerbPage: {args: []argKind{argInt}},
		VerbPick: {args: []argKind{argText}},
	},
	FlowAdmin: {
		VerbBack: {},
	},
	FlowLeaderboard: {
		VerbPage: {args: []argKind{argInt}, optLimit: true},
	},
}

var adjustVerbs = map[Verb]verbSpec{
	VerbPage:   {args: []argKind{argInt}},
	VerbToggle: {args: []argKind{argInt}},
	VerbDone:   {},
	VerbCancel: {},
	VerbDelta:  {args: []argKind{argText}},
	VerbManual: {},
}

// ParseAction decodes and validates a callback payload. Text arguments are
// last and may contain the separator.
func ParseAction(data string) (Action, error) {
	if data == string(FlowNoop) {
		return Action{Flow: FlowNoop}, nil
	}
	head := strings.SplitN(data, ":", 3)
	if len(head) < 2 {
		return Action{}, fmt.Errorf("malformed callback %q", data)
	}
	flow, verb := Flow(head[0]), Verb(head[1])
	verbs, ok := grammar[flow]
	if !ok {
		return Action{}, fmt.Errorf("unknown flow %q", flow)
	}
	spec, ok := verbs[verb]
	if !ok {
		return Action{}, fmt.Errorf("unknown verb %q for flow %q", verb, flow)
	}

	var rest string
	if len(head) == 3 {
		rest = head[2]
	}
	var args []string
	switch {
	case len(spec.args) == 0:
		if len(head) == 3 {
			return Action{}, fmt.Errorf("unexpected arguments in %q", data)
		}
	case spec.args[len(spec.args)-1] == argText:
		if rest == "" {
			return Action{}, fmt.Errorf("missing argument in %q", data)
		}
		args = []string{rest}
	default:
		args = strings.Split(rest, ":")
		want := len(spec.args)
		if spec.optLimit && len(args) == want+2 {
			if args[want] != "limit" {
				return Action{}, fmt.Errorf("unexpected option %q", args[want])
			}
			if _, err := strconv.Atoi(args[want+1]); err != nil {
				return Action{}, fmt.Errorf("bad limit in %q", data)
			}
		} else if len(args) != want {
			return Action{}, fmt.Errorf("wrong argument count in %q", data)
		}
		for i := 0; i < want; i++ {
			if _, err := strconv.ParseInt(args[i], 10, 64); err != nil {
				return Action{}, fmt.Errorf("bad integer argument in %q", data)
			}
		}
	}
	return Action{Flow: flow, Verb: verb, Args: args}, nil
}

// String encodes the action back into a callback payload.
func (a Action) String() string {
	if a.Flow == FlowNoop {
		return string(FlowNoop)
	}
	parts := append([]string{string(a.Flow), string(a.Verb)}, a.Args...)
	return strings.Join(parts, ":")
}

// Int returns argument i as an integer. ParseAction has already validated it.
func (a Action) Int(i int) int64 {
	if i >= len(a.Args) {
		return 0
	}
	n, _ := strconv.ParseInt(a.Args[i], 10, 64)
	return n
}

// Text returns argument i.
func (a Action) Text(i int) string {
	if i >= len(a.Args) {
		return ""
	}
	return a.Args[i]
}

// Limit returns the optional "limit:<n>" option.
func (a Action) Limit() (int, bool) {
	for i := 0; i+1 < len(a.Args); i++ {
		if a.Args[i] == "limit" {
			n, err := strconv.Atoi(a.Args[i+1])
			return n, err == nil
		}
	}
	return 0, false
}

// Callback payload constructors.

func PageAction(flow Flow, page int) Action {
	return Action{Flow: flow, Verb: VerbPage, Args: []string{strconv.Itoa(page)}}
}

func PickAction(flow Flow, arg string) Action {
	return Action{Flow: flow, Verb: VerbPick, Args: []string{arg}}
}

func ToggleAction(flow Flow, userID int64) Action {
	return Action{Flow: flow, Verb: VerbToggle, Args: []string{strconv.FormatInt(userID, 10)}}
}

func DeltaAction(flow Flow, ref string) Action {
	return Action{Flow: flow, Verb: VerbDelta, Args: []string{ref}}
}

func VerbAction(flow Flow, verb Verb) Action { return Action{Flow: flow, Verb: verb} }

func BackAction() Action { return Action{Flow: FlowAdmin, Verb: VerbBack} }

func NoopAction() Action { return Action{Flow: FlowNoop} }

func LeaderboardAction(page int, limit int) Action {
	a := PageAction(FlowLeaderboard, page)
	if limit > 0 {
		a.Args = append(a.Args, "limit", strconv.Itoa(limit))
	}
	return a
}
