package errcode

// Code is a stable, log-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Scheduling
	Elapsed  Code = "elapsed"   // requested instant already passed (missed deadline)
	Full     Code = "full"      // task already armed / ISR queue full
	Halted   Code = "halted"    // executor stopped after a fatal fault
	Deadline Code = "deadline"  // repeated elapsed on a periodic task
	Sealed   Code = "sealed"    // registry no longer accepts tasks/resources
	Unsealed Code = "unsealed"  // executor used before Seal

	// Resources / registry
	UndeclaredResource Code = "undeclared_resource"
	UnknownTask        Code = "unknown_task"
	InvalidPriority    Code = "invalid_priority"
	PriorityInversion  Code = "priority_inversion"
	DuplicateName      Code = "duplicate_name"

	// Hardware
	TransientBus Code = "transient_bus"
	Hardware     Code = "hardware"
	UnknownPin   Code = "unknown_pin"
	PinInUse     Code = "pin_in_use"

	// Logic
	AmbiguousSelection Code = "ambiguous_selection"

	// Config
	InvalidConfig Code = "invalid_config"

	Error Code = "error" // generic fallback
)

// E keeps context and a cause next to a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, SomeCode) match a wrapped *E.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap attaches op and a cause to a code. A nil cause still yields an error.
func Wrap(c Code, op string, err error) error {
	return &E{C: c, Op: op, Err: err}
}

// New builds an *E with a message and no cause.
func New(c Code, op, msg string) error {
	return &E{C: c, Op: op, Msg: msg}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		if inner := u.Unwrap(); inner != nil {
			return Of(inner)
		}
	}
	return Error
}

// Transient reports whether a failure may clear by itself on the next cycle.
func Transient(err error) bool {
	switch Of(err) {
	case TransientBus, Full:
		return true
	}
	return false
}
