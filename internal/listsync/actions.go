package listsync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/notedesk/internal/shared"
)

// Action names a mutation a screen can perform on its entities.
type Action string

const (
	ActionCreate    Action = "create"
	ActionEdit      Action = "edit"
	ActionDelete    Action = "delete"
	ActionPin       Action = "pin"
	ActionUnpin     Action = "unpin"
	ActionArchive   Action = "archive"
	ActionUnarchive Action = "unarchive"
	ActionMove      Action = "move"
	ActionRevoke    Action = "revoke"
)

// Payload carries the action-specific arguments of a mutation.
type Payload map[string]any

// String returns the payload value for key as a string, or "" when absent.
//
// Numbers decoded from JSON are written without an exponent.
func (p Payload) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Mutation is one server-side change.
type Mutation struct {
	Resource string
	Action   Action
	TargetID string
	Payload  Payload
}

// Mutator performs mutations against the server.
type Mutator interface {
	Mutate(ctx context.Context, m Mutation) error
}

// MutatorFunc adapts a function to [Mutator].
type MutatorFunc func(ctx context.Context, m Mutation) error

func (f MutatorFunc) Mutate(ctx context.Context, m Mutation) error {
	return f(ctx, m)
}

// Target is the list a dispatcher keeps up to date; [Controller] implements it.
type Target[T any] interface {
	Invalidate()
	Patch(id string, fn func(T) T) (restore func(), ok bool)
}

// ActionSpec declares one action of a screen.
type ActionSpec[T any] struct {
	Action      Action
	Capability  string
	NeedsTarget bool
	Validate    func(Payload) error
	Optimistic  func(item T, p Payload) T // applied to the visible item before the request
}

// Dispatcher performs gated, validated mutations and keeps its [Target] in sync.
type Dispatcher[T any] struct {
	resource string
	gate     Gate
	mutator  Mutator
	target   Target[T]
	specs    map[Action]ActionSpec[T]
	order    []Action
	logger   *log.Logger
}

// NewDispatcher creates a dispatcher. A nil gate denies every action.
func NewDispatcher[T any](resource string, gate Gate, mutator Mutator, target Target[T], specs []ActionSpec[T], logger *log.Logger) *Dispatcher[T] {
	if gate == nil {
		gate = DenyAll
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	d := &Dispatcher[T]{
		resource: resource,
		gate:     gate,
		mutator:  mutator,
		target:   target,
		specs:    make(map[Action]ActionSpec[T], len(specs)),
		logger:   logger,
	}
	for _, s := range specs {
		if _, dup := d.specs[s.Action]; !dup {
			d.order = append(d.order, s.Action)
		}
		d.specs[s.Action] = s
	}
	return d
}

// Allowed reports whether action exists and the gate grants its capability.
func (d *Dispatcher[T]) Allowed(action Action) bool {
	s, ok := d.specs[action]
	return ok && d.gate.Has(s.Capability)
}

// Actions returns every declared action in declaration order.
func (d *Dispatcher[T]) Actions() []Action {
	return slices.Clone(d.order)
}

// Handle is a bound action the session is allowed to perform.
type Handle[T any] struct {
	Action     Action
	Capability string
	d          *Dispatcher[T]
}

// Perform runs the bound action.
func (h Handle[T]) Perform(ctx context.Context, targetID string, p Payload) error {
	return h.d.Perform(ctx, h.Action, targetID, p)
}

// Handles returns handles for the allowed actions only.
func (d *Dispatcher[T]) Handles() []Handle[T] {
	var out []Handle[T]
	for _, a := range d.order {
		if d.Allowed(a) {
			out = append(out, Handle[T]{Action: a, Capability: d.specs[a].Capability, d: d})
		}
	}
	return out
}

// Perform runs one action against targetID.
//
// Unknown actions and invalid payloads fail with [shared.ErrValidation] and missing capabilities
// with [shared.ErrPermissionDenied], all before any request is made. On success the target is
// invalidated exactly once; on failure an optimistic patch is reverted and nothing is invalidated.
func (d *Dispatcher[T]) Perform(ctx context.Context, action Action, targetID string, p Payload) error {
	spec, ok := d.specs[action]
	if !ok {
		return fmt.Errorf("%w: %w %q for %s", shared.ErrValidation, shared.ErrUnknownAction, action, d.resource)
	}
	if !d.gate.Has(spec.Capability) {
		return fmt.Errorf("%w: %s %s requires %s", shared.ErrPermissionDenied, action, d.resource, spec.Capability)
	}
	if spec.NeedsTarget && targetID == "" {
		return fmt.Errorf("%w: %s %s requires a target id", shared.ErrValidation, action, d.resource)
	}
	if spec.Validate != nil {
		if err := spec.Validate(p); err != nil {
			if !errors.Is(err, shared.ErrValidation) {
				err = fmt.Errorf("%w: %w", shared.ErrValidation, err)
			}
			return err
		}
	}

	restore := func() {}
	if spec.Optimistic != nil && d.target != nil && targetID != "" {
		if r, ok := d.target.Patch(targetID, func(item T) T { return spec.Optimistic(item, p) }); ok {
			restore = r
		}
	}

	m := Mutation{Resource: d.resource, Action: action, TargetID: targetID, Payload: p}
	if err := d.mutator.Mutate(ctx, m); err != nil {
		restore()
		d.logger.Warn("action failed", "resource", d.resource, "action", action, "id", targetID, "error", err)
		return fmt.Errorf("%s %s %s: %w", action, d.resource, targetID, err)
	}

	d.logger.Info("action performed", "resource", d.resource, "action", action, "id", targetID)
	if d.target != nil {
		d.target.Invalidate()
	}
	return nil
}
