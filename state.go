package authflow

import (
	"context"
	"sync"
)

// StateKind enumerates the phases of a request channel.
type StateKind uint8

const (
	// StateIdle means no operation is in flight and no result is pending.
	StateIdle StateKind = iota
	// StateLoading means an operation is in flight; resubmission should be disabled.
	StateLoading
	// StateSuccess is terminal and carries a human-readable outcome.
	StateSuccess
	// StateError is terminal and carries a failure reason.
	StateError
)

func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// RequestState is one value of a request channel. Message is set only for
// terminal kinds; Cause is the sentinel error behind an Error state, if any.
type RequestState struct {
	Kind    StateKind
	Message string
	Cause   error
}

// Terminal reports whether s is Success or Error.
func (s RequestState) Terminal() bool {
	return s.Kind == StateSuccess || s.Kind == StateError
}

// Outcome is a drained terminal state returned by Machine.TakeResult.
type Outcome struct {
	Success bool
	Message string
	Cause   error
}

// Machine is the Idle → Loading → (Success | Error) lifecycle shared by every
// authentication operation. Every transition replaces the previous value and is
// delivered, in order, to every open Subscription.
//
// Machine is safe for concurrent use, but concurrent operations on one
// Machine are latest-wins: there is no queue and no cancellation.
type Machine struct {
	mu      sync.Mutex
	current RequestState
	subs    map[*Subscription]struct{}
}

// NewMachine returns a Machine in the Idle state.
func NewMachine() *Machine {
	return &Machine{subs: make(map[*Subscription]struct{})}
}

// Current returns the state at the time of the call.
func (m *Machine) Current() RequestState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Begin moves to Loading. Re-entrant calls overwrite.
func (m *Machine) Begin() {
	m.set(RequestState{Kind: StateLoading})
}

// Succeed moves to Success(message).
func (m *Machine) Succeed(message string) {
	m.set(RequestState{Kind: StateSuccess, Message: message})
}

// Fail moves to Error(message).
func (m *Machine) Fail(message string) {
	m.set(RequestState{Kind: StateError, Message: message})
}

// FailWith moves to Error(message) recording cause for errors.Is checks.
func (m *Machine) FailWith(cause error, message string) {
	m.set(RequestState{Kind: StateError, Message: message, Cause: cause})
}

// Reset forces the state back to Idle. Observers call it after consuming a
// terminal state, and screens call it on entry to clear stale results.
func (m *Machine) Reset() {
	m.set(RequestState{Kind: StateIdle})
}

// TakeResult drains a terminal state: if the machine holds Success or Error it
// returns that outcome and reverts to Idle in the same critical section, so a
// result is handed out at most once. Otherwise it returns false and leaves the
// state untouched.
func (m *Machine) TakeResult() (Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current.Terminal() {
		return Outcome{}, false
	}
	out := Outcome{
		Success: m.current.Kind == StateSuccess,
		Message: m.current.Message,
		Cause:   m.current.Cause,
	}
	m.current = RequestState{Kind: StateIdle}
	m.broadcastLocked(m.current)
	return out, true
}

// Subscribe opens an ordered stream of states. The first delivered value is
// the state at subscription time; after that every transition is delivered
// exactly once, in order. Close the subscription when done.
func (m *Machine) Subscribe() *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subs == nil {
		m.subs = make(map[*Subscription]struct{})
	}
	sub := newSubscription(m)
	m.subs[sub] = struct{}{}
	sub.push(m.current)
	return sub
}

func (m *Machine) set(s RequestState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = s
	m.broadcastLocked(s)
}

func (m *Machine) broadcastLocked(s RequestState) {
	for sub := range m.subs {
		sub.push(s)
	}
}

func (m *Machine) unsubscribe(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, sub)
}

// closeAll terminates every open subscription.
func (m *Machine) closeAll() {
	m.mu.Lock()
	subs := make([]*Subscription, 0, len(m.subs))
	for sub := range m.subs {
		subs = append(subs, sub)
	}
	m.subs = make(map[*Subscription]struct{})
	m.mu.Unlock()

	for _, sub := range subs {
		sub.shutdown()
	}
}

// Subscription is an unbounded FIFO of states fed by a Machine. Producers never
// block on slow consumers; a pump goroutine forwards the queue to Updates.
type Subscription struct {
	machine *Machine

	mu     sync.Mutex
	queue  []RequestState
	notify chan struct{}

	out       chan RequestState
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newSubscription(m *Machine) *Subscription {
	s := &Subscription{
		machine: m,
		notify:  make(chan struct{}, 1),
		out:     make(chan RequestState),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.pump()
	return s
}

func (s *Subscription) push(state RequestState) {
	s.mu.Lock()
	s.queue = append(s.queue, state)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer s.wg.Done()
	defer close(s.out)

	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			next := s.queue[0]
			s.queue[0] = RequestState{}
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.out <- next:
			case <-s.done:
				return
			}
		}
	}
}

// Updates returns the delivery channel. It is closed after Close.
func (s *Subscription) Updates() <-chan RequestState {
	return s.out
}

// Next blocks until the next state, ctx cancellation, or Close.
func (s *Subscription) Next(ctx context.Context) (RequestState, error) {
	select {
	case state, ok := <-s.out:
		if !ok {
			return RequestState{}, ErrSubscriptionClosed
		}
		return state, nil
	case <-ctx.Done():
		return RequestState{}, ctx.Err()
	}
}

// Close detaches the subscription from its Machine and stops delivery.
// Undelivered states are dropped. Close is idempotent.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	if s.machine != nil {
		s.machine.unsubscribe(s)
	}
	s.shutdown()
}

func (s *Subscription) shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}
