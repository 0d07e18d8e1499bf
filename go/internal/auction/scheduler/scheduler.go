package scheduler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Name identifies one of the round timers.
type Name string

const (
	Reminder  Name = "reminder"
	AutoClose Name = "autoclose"
)

// Fired is delivered when an armed timer expires.
type Fired struct {
	Name     Name
	RoundSeq uint64
	Gen      uint64
	At       time.Time
}

// DeliverFunc receives timer fires. It runs on the timer goroutine.
type DeliverFunc func(Fired)

type armed struct {
	fired Fired
	timer clockwork.Timer
	stop  chan struct{}
}

// Scheduler holds at most one live timer per name. It never touches round
// state; it only reports expiries back through the deliver func.
type Scheduler struct {
	clock   clockwork.Clock
	deliver DeliverFunc

	mu     sync.Mutex
	gen    uint64
	active map[Name]*armed
}

// New creates a scheduler. deliver must not be nil.
func New(clock clockwork.Clock, deliver DeliverFunc) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		clock:   clock,
		deliver: deliver,
		active:  make(map[Name]*armed),
	}
}

// Arm starts a one-shot timer for name, replacing any timer already armed under
// that name. The returned Fired is what will be delivered on expiry.
func (s *Scheduler) Arm(name Name, roundSeq uint64, delay time.Duration) Fired {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	f := Fired{Name: name, RoundSeq: roundSeq, Gen: s.gen}
	a := &armed{
		fired: f,
		timer: s.clock.NewTimer(delay),
		stop:  make(chan struct{}),
	}
	if prev, ok := s.active[name]; ok {
		s.release(prev)
		log.Debug().Str("timer", string(name)).Uint64("round_seq", roundSeq).Msg("replaced existing timer")
	}
	s.active[name] = a

	go s.wait(a)

	log.Debug().
		Str("timer", string(name)).
		Uint64("round_seq", roundSeq).
		Uint64("gen", f.Gen).
		Dur("delay", delay).
		Msg("armed one-shot timer")
	return f
}

func (s *Scheduler) wait(a *armed) {
	select {
	case at := <-a.timer.Chan():
		f := a.fired
		f.At = at
		s.deliver(f)
	case <-a.stop:
	}
}

// Cancel stops the timer armed under name, if any.
func (s *Scheduler) Cancel(name Name) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.active[name]; ok {
		s.release(a)
		delete(s.active, name)
		log.Debug().Str("timer", string(name)).Msg("cancelled timer")
	}
}

// CancelAll stops every armed timer. Safe to call repeatedly.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, a := range s.active {
		s.release(a)
		delete(s.active, name)
	}
}

// Claim reports whether f is the live arm for its name and consumes it, so a
// fire is honored at most once and never after a cancel or re-arm.
func (s *Scheduler) Claim(f Fired) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.active[f.Name]
	if !ok || a.fired.Gen != f.Gen || a.fired.RoundSeq != f.RoundSeq {
		return false
	}
	delete(s.active, f.Name)
	return true
}

// Armed reports whether a timer is live under name.
func (s *Scheduler) Armed(name Name) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[name]
	return ok
}

func (s *Scheduler) release(a *armed) {
	stopAndDrainTimer(a.timer)
	close(a.stop)
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
