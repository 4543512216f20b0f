package task_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"remindbot/internal/shared"
	"remindbot/internal/task"
)

// fakeRepo is an in-memory task.Repository with the same conditional
// update semantics as the SQL implementations.
type fakeRepo struct {
	mu    sync.Mutex
	tasks map[string]*task.Task
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tasks: make(map[string]*task.Task)}
}

func (r *fakeRepo) Create(ctx context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.TaskNo == 0 {
		if t.PreviousID != nil {
			if prev, ok := r.tasks[*t.PreviousID]; ok {
				t.TaskNo = prev.TaskNo
			}
		}
		if t.TaskNo == 0 {
			var max int64
			for _, other := range r.tasks {
				if other.UserID == t.UserID && other.TaskNo > max {
					max = other.TaskNo
				}
			}
			t.TaskNo = max + 1
		}
	}
	cp := *t
	r.tasks[t.ID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, shared.Wrap(shared.ErrNotFound, "task")
	}
	cp := *t
	return &cp, nil
}

func (r *fakeRepo) GetActive(ctx context.Context, id, userID string) (*task.Task, error) {
	t, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID || t.Status != task.StatusActive {
		return nil, shared.Wrap(shared.ErrNotFound, "task")
	}
	return t, nil
}

func (r *fakeRepo) GetByTaskNo(ctx context.Context, userID string, taskNo int64) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var candidates []*task.Task
	for _, t := range r.tasks {
		if t.UserID == userID && t.TaskNo == taskNo &&
			(t.Status == task.StatusActive || t.Status == task.StatusSnoozed) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil, shared.Wrap(shared.ErrNotFound, "task")
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	cp := *candidates[0]
	return &cp, nil
}

func (r *fakeRepo) ListByUser(ctx context.Context, userID string) ([]*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*task.Task
	for _, t := range r.tasks {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeRepo) ListActiveForSnooze(ctx context.Context, userID string, from time.Time) ([]*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*task.Task
	for _, t := range r.tasks {
		if t.UserID != userID || t.Status != task.StatusActive {
			continue
		}
		if t.EndDate != nil && t.EndDate.Before(from) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskNo < out[j].TaskNo })
	return out, nil
}

func (r *fakeRepo) ListUnscheduled(ctx context.Context) ([]*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*task.Task
	for _, t := range r.tasks {
		if t.SchedulerJobID != nil {
			continue
		}
		if t.Status == task.StatusActive ||
			(t.Status == task.StatusSnoozed && t.SnoozeEndAt != nil) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateGuarded(ctx context.Context, t *task.Task, expect task.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tasks[t.ID]
	if !ok || stored.Status != expect {
		return shared.Wrapf(shared.ErrConflict, "task %s changed concurrently", t.ID)
	}
	cp := *t
	r.tasks[t.ID] = &cp
	return nil
}

func (r *fakeRepo) SetSchedulerJobID(ctx context.Context, id string, jobID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tasks[id]
	if !ok {
		return shared.Wrap(shared.ErrNotFound, "task")
	}
	stored.SchedulerJobID = jobID
	return nil
}

// stored returns the persisted state of a task for assertions.
func (r *fakeRepo) stored(id string) *task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

type fakeUsers struct {
	byID map[string]*task.User
}

func newFakeUsers(users ...*task.User) *fakeUsers {
	m := make(map[string]*task.User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return &fakeUsers{byID: m}
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*task.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, shared.Wrap(shared.ErrNotFound, "user")
	}
	return u, nil
}

func (f *fakeUsers) GetByPhone(ctx context.Context, phone string) (*task.User, error) {
	for _, u := range f.byID {
		if u.Phone == phone {
			return u, nil
		}
	}
	return nil, shared.Wrap(shared.ErrNotFound, "user")
}

func (f *fakeUsers) GetByChatID(ctx context.Context, chatID int64) (*task.User, error) {
	for _, u := range f.byID {
		if u.ChatID == chatID {
			return u, nil
		}
	}
	return nil, shared.Wrap(shared.ErrNotFound, "user")
}

// schedCall records one scheduler invocation.
type schedCall struct {
	op      string // "schedule", "snooze", "activate", "delete"
	taskID  string
	jobID   string
	at      time.Time
	everyMs int64
	times   int
}

// fakeSched records scheduler calls and hands out sequential job ids.
type fakeSched struct {
	mu     sync.Mutex
	calls  []schedCall
	nextID int
	// enqueueErr, when set, fails every enqueue.
	enqueueErr error
}

func newFakeSched() *fakeSched { return &fakeSched{} }

func (s *fakeSched) newJobID() string {
	s.nextID++
	return fmt.Sprintf("job-%d", s.nextID)
}

func (s *fakeSched) EnqueueSchedule(ctx context.Context, taskID string, startAt time.Time, everyMs int64, times int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueueErr != nil {
		return "", s.enqueueErr
	}
	id := s.newJobID()
	s.calls = append(s.calls, schedCall{op: "schedule", taskID: taskID, jobID: id, at: startAt, everyMs: everyMs, times: times})
	return id, nil
}

func (s *fakeSched) EnqueueSnooze(ctx context.Context, taskID string, at time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueueErr != nil {
		return "", s.enqueueErr
	}
	id := s.newJobID()
	s.calls = append(s.calls, schedCall{op: "snooze", taskID: taskID, jobID: id, at: at})
	return id, nil
}

func (s *fakeSched) EnqueueActivate(ctx context.Context, taskID string, at time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueueErr != nil {
		return "", s.enqueueErr
	}
	id := s.newJobID()
	s.calls = append(s.calls, schedCall{op: "activate", taskID: taskID, jobID: id, at: at})
	return id, nil
}

func (s *fakeSched) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, schedCall{op: "delete", jobID: jobID})
	return nil
}

// callsOf filters recorded calls by operation.
func (s *fakeSched) callsOf(op string) []schedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schedCall
	for _, c := range s.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (s *fakeSched) lastCall() *schedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	c := s.calls[len(s.calls)-1]
	return &c
}

// fakeNotifier records sent messages.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *fakeNotifier) SendReminder(ctx context.Context, text string, to task.Recipient) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
	return nil
}

func (n *fakeNotifier) SendMessage(ctx context.Context, text string, to task.Recipient) error {
	return n.SendReminder(ctx, text, to)
}

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}
