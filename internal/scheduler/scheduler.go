// Package scheduler runs cancellable one-shot and periodic tasks on a
// timer wheel. Keepalive deadlines, digit timeouts and deferred device
// resets all go through it.
package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/intuitivelabs/wtimer"
	"github.com/sirupsen/logrus"
)

// DefaultTick is the wheel resolution. Deadlines fire within about one tick.
const DefaultTick = 50 * time.Millisecond

// ErrStopped is returned when scheduling on a scheduler that was shut down.
var ErrStopped = errors.New("scheduler: stopped")

// ID identifies a scheduled task. The zero ID is never issued.
type ID uint64

type task struct {
	id       ID
	lnk      wtimer.TimerLnk
	fn       func() bool
	period   time.Duration
	canceled atomic.Bool
}

// Scheduler owns one timer wheel.
type Scheduler struct {
	wt  wtimer.WTimer
	log *logrus.Entry

	mu      sync.Mutex
	tasks   map[ID]*task
	nextID  ID
	stopped bool
}

// New starts a wheel with the given tick.
func New(tick time.Duration, log *logrus.Entry) (*Scheduler, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	s := &Scheduler{log: log, tasks: make(map[ID]*task)}
	if err := s.wt.Init(tick); err != nil {
		return nil, fmt.Errorf("timer wheel init: %w", err)
	}
	s.wt.Start()
	return s, nil
}

// After runs fn once after d.
func (s *Scheduler) After(d time.Duration, fn func()) (ID, error) {
	return s.add(d, 0, func() bool { fn(); return false })
}

// Every runs fn every period until fn returns false or the task is
// canceled.
func (s *Scheduler) Every(period time.Duration, fn func() bool) (ID, error) {
	return s.add(period, period, fn)
}

func (s *Scheduler) add(after, period time.Duration, fn func() bool) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0, ErrStopped
	}
	s.nextID++
	t := &task{id: s.nextID, fn: fn, period: period}
	if err := s.wt.InitTimer(&t.lnk, 0); err != nil {
		return 0, fmt.Errorf("timer init: %w", err)
	}
	s.tasks[t.id] = t
	if err := s.wt.Add(&t.lnk, after, s.fire, t); err != nil {
		delete(s.tasks, t.id)
		return 0, fmt.Errorf("timer add: %w", err)
	}
	return t.id, nil
}

func (s *Scheduler) fire(_ *wtimer.WTimer, _ *wtimer.TimerLnk, arg interface{}) (bool, time.Duration) {
	t := arg.(*task)
	if t.canceled.Load() {
		s.forget(t.id)
		return false, 0
	}
	again := t.fn() && t.period > 0 && !t.canceled.Load()
	if !again {
		s.forget(t.id)
		return false, 0
	}
	return true, t.period
}

func (s *Scheduler) forget(id ID) {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
}

// Cancel stops a pending task. It reports whether the task was removed
// before running; a task already firing is marked and will not re-arm.
// Canceling an unknown or finished id is a no-op.
func (s *Scheduler) Cancel(id ID) bool {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.canceled.Store(true)
	removed, err := s.wt.DelTry(&t.lnk)
	if err != nil {
		s.log.Debugf("cancel task %d: %v", id, err)
	}
	if removed {
		s.forget(id)
	}
	return removed
}

// Pending returns the number of tasks not yet finished.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Shutdown stops the wheel. Pending tasks never run.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for _, t := range s.tasks {
		t.canceled.Store(true)
	}
	s.tasks = make(map[ID]*task)
	s.mu.Unlock()
	s.wt.Shutdown()
}
