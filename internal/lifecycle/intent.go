package lifecycle

// #region intent-state
// IntentState is the controller's intent. The concrete types are Idle,
// Candidate, Active and Decay; no other type can satisfy the interface.
type IntentState interface {
	isIntent()
	// Name is the stable lowercase name used on the HUD.
	Name() string
	// Armed reports whether RS impulses may be considered.
	Armed() bool
	// Since returns the entry timestamp; Idle has none.
	Since() (float64, bool)
	// Code is the numeric form used in telemetry payloads.
	Code() float64
}

// Idle is the resting intent.
type Idle struct{}

// Candidate means presence was seen but has not yet held for the arm run length.
type Candidate struct{ At float64 }

// Active means the ball is corroborated and the shot may proceed.
type Active struct{ At float64 }

// Decay means presence was lost while armed; it returns to Active or times out.
type Decay struct{ At float64 }

func (Idle) isIntent()      {}
func (Candidate) isIntent() {}
func (Active) isIntent()    {}
func (Decay) isIntent()     {}

func (Idle) Name() string      { return "idle" }
func (Candidate) Name() string { return "candidate" }
func (Active) Name() string    { return "active" }
func (Decay) Name() string     { return "decay" }

func (Idle) Armed() bool      { return false }
func (Candidate) Armed() bool { return false }
func (Active) Armed() bool    { return true }
func (Decay) Armed() bool     { return true }

func (Idle) Since() (float64, bool)        { return 0, false }
func (s Candidate) Since() (float64, bool) { return s.At, true }
func (s Active) Since() (float64, bool)    { return s.At, true }
func (s Decay) Since() (float64, bool)     { return s.At, true }

func (Idle) Code() float64      { return 0 }
func (Candidate) Code() float64 { return 1 }
func (Active) Code() float64    { return 2 }
func (Decay) Code() float64     { return 3 }
// #endregion intent-state

// #region intent-transition
// IntentEvent is an input to the intent transition function.
type IntentEvent uint8

const (
	EventPresent IntentEvent = iota + 1
	EventAbsent
	EventArm // presence held for the arm run length
	EventImpact
	EventReset
)

// Transition is the total intent transition function. Unknown states or
// events fall back to Idle.
func Transition(s IntentState, ev IntentEvent, ts float64) IntentState {
	if ev == EventReset {
		return Idle{}
	}
	switch cur := s.(type) {
	case Idle:
		switch ev {
		case EventPresent:
			return Candidate{At: ts}
		case EventArm:
			return Active{At: ts}
		}
		return cur
	case Candidate:
		switch ev {
		case EventArm:
			return Active{At: ts}
		case EventAbsent:
			return Idle{}
		}
		return cur
	case Active:
		if ev == EventAbsent {
			return Decay{At: ts}
		}
		return cur
	case Decay:
		switch ev {
		case EventPresent, EventArm, EventImpact:
			return Active{At: ts}
		}
		return cur
	}
	return Idle{}
}
// #endregion intent-transition
