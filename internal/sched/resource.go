package sched

import "pendant-go/errcode"

type resCore struct {
	name    string
	ceiling Priority
	users   []bool // indexed by TaskID, filled at Seal
}

// Resource is shared state guarded by the immediate priority ceiling
// protocol. Its ceiling is the highest priority of any task that declares it.
type Resource[T any] struct {
	core *resCore
	v    T
}

// NewResource registers a named resource with an initial value. It must be
// called before Seal.
func NewResource[T any](e *Executor, name string, init T) *Resource[T] {
	rc := &resCore{name: name}
	e.resources = append(e.resources, rc)
	return &Resource[T]{core: rc, v: init}
}

func (r *Resource[T]) Name() string      { return r.core.name }
func (r *Resource[T]) Ceiling() Priority { return r.core.ceiling }

// Lock runs fn with exclusive access to the value. The caller's priority is
// raised to the ceiling for the duration and restored on every exit path,
// after which anything that became ready above the restored level runs.
// The pointer must not escape fn.
func Lock[T any](c *Context, r *Resource[T], fn func(v *T)) error {
	if c == nil || int(c.task.id) >= len(r.core.users) || !r.core.users[c.task.id] {
		name := "?"
		if c != nil {
			name = c.task.spec.Name
		}
		return errcode.New(errcode.UndeclaredResource, "lock", name+" -> "+r.core.name)
	}
	prev, ceil := c.prio, r.core.ceiling
	if ceil > prev {
		c.e.setPrio(prev, ceil)
		c.prio = ceil
		defer func() {
			c.e.setPrio(ceil, prev)
			c.prio = prev
			c.e.dispatch(0)
		}()
	}
	fn(&r.v)
	return nil
}
