// Package scheduler runs configured chunking jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lupppig/dchunk/internal/logger"
)

type TaskStatus string

const (
	StatusPending TaskStatus = "pending"
	StatusRunning TaskStatus = "running"
	StatusSuccess TaskStatus = "success"
	StatusFailed  TaskStatus = "failed"
)

// Task is a recurring job.
type Task struct {
	ID         string
	Schedule   string // cron spec, @every/@daily style, or a bare duration such as "6h"
	Retries    int
	RetryDelay time.Duration
	Run        func(ctx context.Context) error

	Status    TaskStatus
	LastRun   *time.Time
	NextRun   *time.Time
	LastError string

	cronID cron.EntryID
}

type Scheduler struct {
	cron     *cron.Cron
	tasks    map[string]*Task
	mu       sync.RWMutex
	maxTasks int
	running  int
	log      *logger.Logger
	ctx      context.Context
}

// NewScheduler limits concurrent runs to maxTasks; 0 means no limit.
func NewScheduler(l *logger.Logger, maxTasks int) *Scheduler {
	if l == nil {
		l = logger.Discard()
	}
	return &Scheduler{
		cron:     cron.New(),
		tasks:    make(map[string]*Task),
		maxTasks: maxTasks,
		log:      l,
		ctx:      context.Background(),
	}
}

// Spec turns a bare duration into an @every spec and leaves anything else
// to the cron parser.
func Spec(schedule string) string {
	schedule = strings.TrimSpace(schedule)
	if !strings.HasPrefix(schedule, "@") && strings.Count(schedule, " ") < 4 {
		if _, err := time.ParseDuration(schedule); err == nil {
			return "@every " + schedule
		}
	}
	return schedule
}

func (s *Scheduler) AddTask(task *Task) error {
	if task.Run == nil {
		return fmt.Errorf("task %s has nothing to run", task.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; ok {
		return fmt.Errorf("duplicate task id: %s", task.ID)
	}
	id, err := s.cron.AddFunc(Spec(task.Schedule), func() {
		s.executeTask(task.ID)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", task.Schedule, err)
	}

	task.cronID = id
	task.Status = StatusPending
	s.tasks[task.ID] = task
	return nil
}

func (s *Scheduler) RemoveTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task not found: %s", id)
	}
	s.cron.Remove(task.cronID)
	delete(s.tasks, id)
	return nil
}

// ListTasks returns the tasks ordered by id with NextRun filled in.
func (s *Scheduler) ListTasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		next := s.cron.Entry(t.cronID).Next
		t.NextRun = &next
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Run starts the cron loop and blocks until ctx is done and every running
// task has returned.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

// RunNow executes a task immediately on the calling goroutine.
func (s *Scheduler) RunNow(id string) error {
	s.mu.RLock()
	_, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("task not found: %s", id)
	}
	s.executeTask(id)
	return nil
}

func (s *Scheduler) executeTask(id string) {
	s.mu.Lock()
	task, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if s.maxTasks > 0 && s.running >= s.maxTasks {
		s.mu.Unlock()
		s.log.Warn("Skipping task: max concurrent tasks reached", "id", id, "max", s.maxTasks)
		return
	}
	if task.Status == StatusRunning {
		s.mu.Unlock()
		s.log.Warn("Skipping task: already running", "id", id)
		return
	}
	task.Status = StatusRunning
	now := time.Now()
	task.LastRun = &now
	s.running++
	ctx := s.ctx
	s.mu.Unlock()

	delay := task.RetryDelay
	if delay == 0 {
		delay = 5 * time.Minute
	}

	var err error
	for i := 0; i <= task.Retries; i++ {
		if i > 0 {
			s.log.Info("Retrying task", "id", id, "attempt", i, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				err = ctx.Err()
			}
			if ctx.Err() != nil {
				break
			}
		}
		if err = task.Run(ctx); err == nil {
			break
		}
	}

	s.mu.Lock()
	s.running--
	if err != nil {
		task.Status = StatusFailed
		task.LastError = err.Error()
	} else {
		task.Status = StatusSuccess
		task.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("Scheduled task failed after retries", "id", id, "error", err)
	} else {
		s.log.Info("Scheduled task succeeded", "id", id)
	}
}
