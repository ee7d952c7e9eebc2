// Package ticket enforces the single-use ticket protocol over one atomic
// transaction unit: a ticket is opened by one call, consumed by every
// declared intermediate call in order, and closed before the unit is sealed.
package ticket

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"vaultflow/internal/model"
	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
)

var (
	ErrKindMismatch  = errors.New("step not declared for ticket kind")
	ErrStepOrder     = errors.New("ticket step out of order")
	ErrStepCall      = errors.New("step call does not match protocol")
	ErrTicketClosed  = errors.New("ticket already closed")
	ErrForeignTicket = errors.New("ticket belongs to another unit")
	ErrStepsPending  = errors.New("mandatory ticket steps not consumed")
	ErrTicketLeaked  = errors.New("ticket still open at seal")
	ErrEntityState   = errors.New("entity state does not permit ticket kind")
	ErrUnitSealed    = errors.New("unit already sealed")
)

// Opener issues the opening call and returns the ticket argument.
type Opener func(tx *ptb.Builder) (ptb.Argument, error)

// StepCall issues one call consuming the ticket.
type StepCall func(tx *ptb.Builder, ticket ptb.Argument) (ptb.Result, error)

// Destroyer issues the call that destroys the ticket.
type Destroyer func(tx *ptb.Builder, ticket ptb.Argument) error

// Ticket is a handle to a ticket opened within a unit.
type Ticket struct {
	id     uuid.UUID
	unit   uuid.UUID
	kind   Kind
	entity sui.Address
	arg    ptb.Argument
	next   int
	last   int
	closed bool
}

func (t *Ticket) ID() uuid.UUID          { return t.id }
func (t *Ticket) Kind() Kind             { return t.kind }
func (t *Ticket) Entity() sui.Address    { return t.entity }
func (t *Ticket) Argument() ptb.Argument { return t.arg }
func (t *Ticket) Closed() bool           { return t.closed }

// Effect is a transition recorded by a closed ticket.
type Effect struct {
	Kind       Kind
	Entity     sui.Address
	Transition Transition
}

// Unit is one atomic transaction under construction.
type Unit struct {
	id      uuid.UUID
	tx      *ptb.Builder
	state   model.Session
	tickets []*Ticket
	effects []Effect
	sealed  bool
}

// NewUnit starts a unit against the session state at build time.
func NewUnit(session model.Session) *Unit {
	return &Unit{id: uuid.New(), tx: ptb.NewBuilder(), state: session}
}

func (u *Unit) ID() uuid.UUID { return u.id }

// Builder exposes the transaction for commands outside any ticket.
func (u *Unit) Builder() *ptb.Builder { return u.tx }

// Open issues a ticket of kind against the entity the kind targets.
func (u *Unit) Open(kind Kind, opener Opener) (*Ticket, error) {
	if u.sealed {
		return nil, ErrUnitSealed
	}
	proto, ok := protocols[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKindMismatch, kind)
	}
	entity, err := u.permits(kind)
	if err != nil {
		return nil, err
	}

	start := u.tx.Len()
	arg, err := opener(u.tx)
	if err != nil {
		return nil, fmt.Errorf("open %s ticket: %w", kind, err)
	}
	if err := u.checkOpener(start, proto.opener, arg); err != nil {
		return nil, err
	}

	t := &Ticket{id: uuid.New(), unit: u.id, kind: kind, entity: entity, arg: arg, last: -1}
	u.tickets = append(u.tickets, t)
	return t, nil
}

func (u *Unit) permits(kind Kind) (sui.Address, error) {
	s := u.state
	switch kind {
	case CreateVault:
		if !s.HasFarm() {
			return sui.Address{}, fmt.Errorf("%w: %s requires a farm", ErrEntityState, kind)
		}
		return s.Farm, nil
	case UpdateWeight, CloseVault:
		if !s.HasVault() || !s.VaultRegistered || s.VaultClosed {
			return sui.Address{}, fmt.Errorf("%w: %s requires a registered vault", ErrEntityState, kind)
		}
		return s.Vault, nil
	case TopUp:
		if !s.HasVault() || s.VaultClosed {
			return sui.Address{}, fmt.Errorf("%w: %s requires an open vault", ErrEntityState, kind)
		}
		return s.Vault, nil
	}
	return sui.Address{}, fmt.Errorf("%w: %s", ErrKindMismatch, kind)
}

// Use runs step against the ticket.
func (u *Unit) Use(t *Ticket, step Step, call StepCall) (ptb.Result, error) {
	if err := u.owns(t); err != nil {
		return ptb.Result{}, err
	}
	proto := protocols[t.kind]
	idx := proto.stepIndex(step)
	if idx < 0 {
		return ptb.Result{}, fmt.Errorf("%w: %s on %s", ErrKindMismatch, step, t.kind)
	}
	spec := proto.steps[idx]
	repeat := idx == t.last && spec.repeatable
	if idx != t.next && !repeat {
		return ptb.Result{}, fmt.Errorf("%w: %s on %s", ErrStepOrder, step, t.kind)
	}

	res, err := call(u.tx, t.arg)
	if err != nil {
		return ptb.Result{}, fmt.Errorf("%s step %s: %w", t.kind, step, err)
	}
	if err := u.checkConsumer(res.Index(), spec.call, t.arg); err != nil {
		return ptb.Result{}, err
	}

	if !repeat {
		t.next = idx + 1
	}
	t.last = idx
	if spec.terminal {
		u.finish(t, proto)
	}
	return res, nil
}

// Close destroys the ticket with an explicit destroy call.
func (u *Unit) Close(t *Ticket, destroyer Destroyer) error {
	if err := u.owns(t); err != nil {
		return err
	}
	proto := protocols[t.kind]
	if proto.destroy == "" {
		return fmt.Errorf("%w: %s closes by its terminal step", ErrKindMismatch, t.kind)
	}
	if t.next < len(proto.steps) {
		return fmt.Errorf("%w: %s next %s", ErrStepsPending, t.kind, proto.steps[t.next].step)
	}

	start := u.tx.Len()
	if err := destroyer(u.tx, t.arg); err != nil {
		return fmt.Errorf("close %s ticket: %w", t.kind, err)
	}
	if u.tx.Len() == start {
		return fmt.Errorf("%w: %s destroyer issued no call", ErrStepCall, t.kind)
	}
	if err := u.checkConsumer(u.tx.Len()-1, proto.destroy, t.arg); err != nil {
		return err
	}
	u.finish(t, proto)
	return nil
}

func (u *Unit) finish(t *Ticket, proto protocol) {
	t.closed = true
	if proto.transition == NoTransition {
		return
	}
	u.effects = append(u.effects, Effect{Kind: t.kind, Entity: t.entity, Transition: proto.transition})
	if proto.transition == Deregistered {
		u.state = u.state.WithVaultClosed()
	}
}

func (u *Unit) owns(t *Ticket) error {
	if u.sealed {
		return ErrUnitSealed
	}
	if t == nil || t.unit != u.id {
		return ErrForeignTicket
	}
	if t.closed {
		return fmt.Errorf("%w: %s", ErrTicketClosed, t.kind)
	}
	return nil
}

func (u *Unit) checkOpener(start int, name string, arg ptb.Argument) error {
	if arg.Kind != ptb.ArgResult && arg.Kind != ptb.ArgNestedResult {
		return fmt.Errorf("%w: ticket must be a call result, got %s", ErrStepCall, arg)
	}
	if int(arg.Index) < start {
		return fmt.Errorf("%w: ticket %s predates opener", ErrStepCall, arg)
	}
	cmd, ok := u.tx.Command(int(arg.Index))
	if !ok || cmd.MoveCall == nil || cmd.MoveCall.Target.Name() != name {
		return fmt.Errorf("%w: ticket %s not produced by %s", ErrStepCall, arg, name)
	}
	return nil
}

func (u *Unit) checkConsumer(index int, name string, ticket ptb.Argument) error {
	cmd, ok := u.tx.Command(index)
	if !ok || cmd.MoveCall == nil || cmd.MoveCall.Target.Name() != name {
		return fmt.Errorf("%w: expected %s", ErrStepCall, name)
	}
	for _, arg := range cmd.MoveCall.Arguments {
		if arg == ticket {
			return nil
		}
	}
	return fmt.Errorf("%w: %s does not take ticket %s", ErrStepCall, name, ticket)
}

// Seal closes the unit and returns its transaction. It fails if any ticket is open.
func (u *Unit) Seal() (*ptb.Transaction, error) {
	if u.sealed {
		return nil, ErrUnitSealed
	}
	for _, t := range u.tickets {
		if !t.closed {
			return nil, fmt.Errorf("%w: %s on %s", ErrTicketLeaked, t.kind, t.entity.Short())
		}
	}
	u.sealed = true
	return u.tx.Transaction(), nil
}

// Effects lists the transitions recorded by closed tickets, in close order.
// They describe the unit's outcome only once it has committed.
func (u *Unit) Effects() []Effect {
	return append([]Effect(nil), u.effects...)
}

// Apply folds committed effects into a session. The vault created by a
// create-vault ticket must already be recorded in s.
func Apply(s model.Session, effects []Effect) model.Session {
	for _, e := range effects {
		switch e.Transition {
		case Registered:
			s = s.WithRegistration(true)
		case Deregistered:
			s = s.WithVaultClosed()
		}
	}
	return s
}
