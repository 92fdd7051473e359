package pipeline

// State is a stage of one recipe synthesis run.
type State int

const (
	StateIdle State = iota
	StatePromptBuilding
	StateDispatching
	StateValidating
	StateSuccess
	StateRejected
)

var stateNames = [...]string{"idle", "prompt_building", "dispatching", "validating", "success", "rejected"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateRejected
}

// Observer is told about every state a run enters, starting with StateIdle.
type Observer func(State)

type run struct {
	state    State
	observer Observer
}

func newRun(observer Observer) *run {
	r := &run{state: StateIdle, observer: observer}
	r.notify()
	return r
}

func (r *run) to(s State) {
	r.state = s
	r.notify()
}

func (r *run) notify() {
	if r.observer != nil {
		r.observer(r.state)
	}
}
