package sched

import (
	"fmt"

	"go.uber.org/multierr"

	"pendant-go/errcode"
)

// MaxPeriod is the longest period the wrapping counter can order safely.
const MaxPeriod = Duration(Wrap / 4)

// Seal freezes the registry, derives resource ceilings and checks the task
// set. All problems are returned together.
func (e *Executor) Seal() error {
	if e.sealed {
		return errcode.New(errcode.Sealed, "seal", "")
	}
	var errs error
	add := func(c errcode.Code, msg string, args ...any) {
		errs = multierr.Append(errs, errcode.New(c, "seal", fmt.Sprintf(msg, args...)))
	}

	seen := map[string]bool{}
	for _, t := range e.tasks {
		s := t.spec
		if seen[s.Name] {
			add(errcode.DuplicateName, "task %q registered twice", s.Name)
		}
		seen[s.Name] = true
		if s.Priority < 1 || s.Priority > MaxPriority {
			add(errcode.InvalidPriority, "task %q priority %d outside 1..%d", s.Name, s.Priority, MaxPriority)
		}
		if s.Period >= MaxPeriod {
			add(errcode.InvalidConfig, "task %q period %d cycles is not below wrap/4", s.Name, s.Period)
		}
	}

	byRes := map[string]*resCore{}
	for _, rc := range e.resources {
		if byRes[rc.name] != nil {
			add(errcode.DuplicateName, "resource %q declared twice", rc.name)
			continue
		}
		byRes[rc.name] = rc
		rc.users = make([]bool, len(e.tasks))
	}
	for _, t := range e.tasks {
		for _, name := range t.spec.Resources {
			rc := byRes[name]
			if rc == nil {
				add(errcode.UndeclaredResource, "task %q uses unknown resource %q", t.spec.Name, name)
				continue
			}
			rc.users[t.id] = true
			if t.spec.Priority > rc.ceiling {
				rc.ceiling = t.spec.Priority
			}
		}
	}
	for _, rc := range byRes {
		if rc.ceiling == 0 {
			add(errcode.UndeclaredResource, "resource %q is not declared by any task", rc.name)
		}
	}

	var safety []*task
	for _, t := range e.tasks {
		if t.spec.Safety {
			safety = append(safety, t)
		}
	}
	switch len(safety) {
	case 0:
	case 1:
		st := safety[0]
		sp := st.spec.Priority
		for _, t := range e.tasks {
			if t != st && t.spec.Priority >= sp {
				add(errcode.PriorityInversion, "task %q priority %d reaches safety task %q", t.spec.Name, t.spec.Priority, st.spec.Name)
			}
		}
		for name, rc := range byRes {
			if rc.ceiling < sp {
				continue
			}
			for id, uses := range rc.users {
				if uses && TaskID(id) != st.id {
					add(errcode.PriorityInversion, "resource %q shared with %q reaches safety priority %d", name, e.tasks[id].spec.Name, sp)
					break
				}
			}
		}
	default:
		add(errcode.PriorityInversion, "%d safety tasks registered, want at most one", len(safety))
	}

	if errs != nil {
		return errs
	}

	var perLevel [MaxPriority + 1]int
	for _, t := range e.tasks {
		perLevel[t.spec.Priority] += t.spec.Capacity
	}
	for p, n := range perLevel {
		if n > 0 {
			e.ready[p] = newRing(n)
		}
	}
	e.sealed = true
	return nil
}

// Ceiling reports the derived ceiling of a named resource after Seal.
func (e *Executor) Ceiling(name string) (Priority, bool) {
	for _, rc := range e.resources {
		if rc.name == name {
			return rc.ceiling, true
		}
	}
	return 0, false
}
