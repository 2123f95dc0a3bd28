// Package scheduler runs every piece of node logic on a single goroutine.
//
// Tasks are registered with a due time and, once run, stay dormant until
// they plan themselves again. Work arriving from other goroutines (button
// edges, console lines, MQTT callbacks) is handed over with Post so that the
// streams, header and calibration state are only ever touched by the loop.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"
)

type TaskID int

type Task func()

type task struct {
	id      TaskID
	fn      Task
	due     time.Time
	planned bool
}

type Scheduler struct {
	clock   clockwork.Clock
	tasks   map[TaskID]*task
	lastID  TaskID
	current TaskID
	events  chan func()

	// events posted while the channel was full, run in order after it
	mu       sync.Mutex
	overflow []func()
}

func New(clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		clock:  clock,
		tasks:  make(map[TaskID]*task),
		events: make(chan func(), 64),
	}
}

func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Register adds fn and plans its first run at at. The returned id is never 0.
func (s *Scheduler) Register(fn Task, at time.Time) TaskID {
	s.lastID += 1
	s.tasks[s.lastID] = &task{id: s.lastID, fn: fn, due: at, planned: true}
	return s.lastID
}

// Unregister drops the task and anything it had pending.
func (s *Scheduler) Unregister(id TaskID) {
	delete(s.tasks, id)
}

func (s *Scheduler) Registered(id TaskID) bool {
	_, ok := s.tasks[id]
	return ok
}

func (s *Scheduler) Plan(id TaskID, at time.Time) {
	t, ok := s.tasks[id]
	if !ok {
		logger.Debugf("Plan for unknown task [%v]", id)
		return
	}
	t.due = at
	t.planned = true
}

func (s *Scheduler) PlanNow(id TaskID) {
	s.Plan(id, s.clock.Now())
}

func (s *Scheduler) PlanRelative(id TaskID, d time.Duration) {
	s.Plan(id, s.clock.Now().Add(d))
}

// Current is the task being run, 0 outside a task.
func (s *Scheduler) Current() TaskID {
	return s.current
}

// PlanCurrentRelative re-plans the running task d after now. The offset is
// taken from the current tick, not from when the task was originally due.
func (s *Scheduler) PlanCurrentRelative(d time.Duration) {
	if s.current == 0 {
		logger.Warn("PlanCurrentRelative called outside a task")
		return
	}
	s.PlanRelative(s.current, d)
}

// Due reports when id is next planned to run.
func (s *Scheduler) Due(id TaskID) (time.Time, bool) {
	t, ok := s.tasks[id]
	if !ok || !t.planned {
		return time.Time{}, false
	}
	return t.due, true
}

// Next returns the earliest planned due time.
func (s *Scheduler) Next() (time.Time, bool) {
	var next time.Time
	found := false
	for _, t := range s.tasks {
		if !t.planned {
			continue
		}
		if !found || t.due.Before(next) {
			next = t.due
			found = true
		}
	}
	return next, found
}

// Post queues fn to run on the scheduler goroutine. Safe from any goroutine,
// including the scheduler's own, and never blocks.
func (s *Scheduler) Post(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.overflow) == 0 {
		select {
		case s.events <- fn:
			return
		default:
		}
	}
	s.overflow = append(s.overflow, fn)
}

// RunDue runs queued events, then every task due at or before now in due
// order. A task that plans itself at or before now runs on the next pass.
func (s *Scheduler) RunDue() {
	s.drainEvents()

	now := s.clock.Now()
	due := []*task{}
	for _, t := range s.tasks {
		if t.planned && !t.due.After(now) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].id < due[j].id
		}
		return due[i].due.Before(due[j].due)
	})

	for _, t := range due {
		// an earlier task may have cancelled or moved this one
		if cur, ok := s.tasks[t.id]; !ok || !cur.planned || cur.due.After(now) {
			continue
		}
		t.planned = false
		s.current = t.id
		t.fn()
		s.current = 0
	}
}

func (s *Scheduler) drainEvents() {
	for {
		select {
		case fn := <-s.events:
			fn()
			continue
		default:
		}
		s.mu.Lock()
		if len(s.overflow) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.overflow[0]
		s.overflow = s.overflow[1:]
		s.mu.Unlock()
		fn()
	}
}

// Run drives the scheduler until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info("Scheduler started")
	for {
		s.RunDue()

		var wait <-chan time.Time
		var timer clockwork.Timer
		if next, ok := s.Next(); ok {
			timer = s.clock.NewTimer(next.Sub(s.clock.Now()))
			wait = timer.Chan()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("Scheduler stopped")
			return ctx.Err()
		case fn := <-s.events:
			fn()
		case <-wait:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}
