// Package tasks keeps the signed-in user's task list in memory and routes every
// mutation through the REST API, applying only what the server returns.
package tasks

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/benvon/matrix-todo/internal/apperr"
	"github.com/benvon/matrix-todo/internal/logger"
	"github.com/benvon/matrix-todo/internal/models"
	"github.com/benvon/matrix-todo/internal/query"
	"github.com/benvon/matrix-todo/internal/validation"
	"go.uber.org/zap"
)

// TasksAPI is the part of the REST API the engine calls
type TasksAPI interface {
	ListTasks(ctx context.Context, spec models.FilterSpec) (*models.TaskPage, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Engine is the local task cache. Concurrent mutations are not serialized:
// whichever response arrives last wins.
type Engine struct {
	api    TasksAPI
	logger *zap.Logger
	epoch  func() uint64

	mu      sync.RWMutex
	tasks   []*models.Task
	total   int
	loading int
	resets  uint64
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger.OrNop(l) }
}

// WithEpoch sets the session epoch source. Responses to requests issued under an
// older epoch are returned to the caller but not applied to the cache.
func WithEpoch(epoch func() uint64) Option {
	return func(e *Engine) { e.epoch = epoch }
}

// NewEngine creates an empty engine
func NewEngine(api TasksAPI, opts ...Option) *Engine {
	e := &Engine{
		api:    api,
		logger: zap.NewNop(),
		epoch:  func() uint64 { return 0 },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// stamp identifies the cache generation a request was issued against
type stamp struct {
	epoch  uint64
	resets uint64
}

func (e *Engine) stamp() stamp {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return stamp{epoch: e.epoch(), resets: e.resets}
}

// freshLocked reports whether s still matches the cache. Callers hold e.mu.
func (e *Engine) freshLocked(s stamp) bool {
	return s.resets == e.resets && s.epoch == e.epoch()
}

// Fetch loads tasks from the API, filtered and sorted by the server when spec is
// non-nil, and replaces the whole cache with the result. On failure the cache is left as it was.
func (e *Engine) Fetch(ctx context.Context, spec *models.FilterSpec) ([]*models.Task, error) {
	var s models.FilterSpec
	if spec != nil {
		if err := validation.Struct(*spec); err != nil {
			return nil, err
		}
		s = *spec
	}

	st := e.stamp()
	e.beginLoading()
	defer e.endLoading()

	page, err := e.api.ListTasks(ctx, s)
	if err != nil {
		e.logger.Warn("task_fetch_failed", zap.String("error", logger.SanitizeError(err)))
		return nil, err
	}

	e.replaceAll(st, page.Tasks, page.TotalCount)
	e.logger.Debug("tasks_fetched", zap.Int("count", len(page.Tasks)), zap.Int("total_count", page.TotalCount))
	return cloneAll(page.Tasks), nil
}

// FetchAll pages through every task matching spec and replaces the cache once at the end
func (e *Engine) FetchAll(ctx context.Context, spec models.FilterSpec) ([]*models.Task, error) {
	if err := validation.Struct(spec); err != nil {
		return nil, err
	}

	st := e.stamp()
	e.beginLoading()
	defer e.endLoading()

	spec.Limit = models.MaxPageLimit
	spec.Offset = 0
	var all []*models.Task
	for {
		page, err := e.api.ListTasks(ctx, spec)
		if err != nil {
			e.logger.Warn("task_fetch_failed",
				zap.Int("offset", spec.Offset),
				zap.String("error", logger.SanitizeError(err)),
			)
			return nil, err
		}
		all = append(all, page.Tasks...)
		if len(page.Tasks) == 0 || len(all) >= page.TotalCount {
			break
		}
		spec.Offset += len(page.Tasks)
	}

	e.replaceAll(st, all, len(all))
	return cloneAll(all), nil
}

// Get loads one task and refreshes its cached copy if it is loaded
func (e *Engine) Get(ctx context.Context, id string) (*models.Task, error) {
	st := e.stamp()
	t, err := e.api.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	e.replace(st, t)
	return clone(t), nil
}

// Create validates req, creates the task and puts the server's record first in the cache.
// An empty priority becomes the default priority.
func (e *Engine) Create(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	req.Title = validation.SanitizeText(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Priority == "" {
		req.Priority = models.DefaultPriority
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	st := e.stamp()
	t, err := e.api.CreateTask(ctx, req)
	if err != nil {
		e.logger.Warn("task_create_failed", zap.String("error", logger.SanitizeError(err)))
		return nil, err
	}

	e.mu.Lock()
	if e.freshLocked(st) {
		e.tasks = append([]*models.Task{clone(t)}, e.tasks...)
		e.total++
	}
	e.mu.Unlock()

	e.logger.Debug("task_created", zap.String("task_id", t.ID))
	return clone(t), nil
}

// Update sends the fields set in req and replaces the cached copy with the server's record.
// The task does not need to be loaded.
func (e *Engine) Update(ctx context.Context, id string, req models.UpdateTaskRequest) (*models.Task, error) {
	if req.Empty() {
		return nil, apperr.Validation("nothing to update")
	}
	if req.Title != nil {
		title := validation.SanitizeText(*req.Title)
		if title == "" {
			return nil, apperr.Validation("title is required")
		}
		req.Title = &title
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	st := e.stamp()
	t, err := e.api.UpdateTask(ctx, id, req)
	if err != nil {
		e.logger.Warn("task_update_failed",
			zap.String("task_id", logger.SanitizeString(id, 64)),
			zap.String("error", logger.SanitizeError(err)),
		)
		return nil, err
	}
	e.replace(st, t)
	return clone(t), nil
}

// ToggleCompletion flips is_completed of a loaded task. Nothing is sent for a task that is not loaded.
func (e *Engine) ToggleCompletion(ctx context.Context, id string) (*models.Task, error) {
	e.mu.RLock()
	i := e.indexLocked(id)
	var done bool
	if i >= 0 {
		done = !e.tasks[i].IsCompleted
	}
	e.mu.RUnlock()

	if i < 0 {
		return nil, apperr.NotFoundLocal("task", id)
	}
	return e.Update(ctx, id, models.UpdateTaskRequest{IsCompleted: &done})
}

// Delete removes the task on the server and then from the cache
func (e *Engine) Delete(ctx context.Context, id string) error {
	st := e.stamp()
	if err := e.api.DeleteTask(ctx, id); err != nil {
		e.logger.Warn("task_delete_failed",
			zap.String("task_id", logger.SanitizeString(id, 64)),
			zap.String("error", logger.SanitizeError(err)),
		)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.freshLocked(st) {
		return nil
	}
	if i := e.indexLocked(id); i >= 0 {
		e.tasks = slices.Delete(e.tasks, i, i+1)
		if e.total > 0 {
			e.total--
		}
	}
	return nil
}

// ApplyFilter projects the cache through spec without changing it
func (e *Engine) ApplyFilter(spec models.FilterSpec) []*models.Task {
	return query.Apply(e.Tasks(), spec)
}

// Tasks returns a copy of the cache
func (e *Engine) Tasks() []*models.Task {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneAll(e.tasks)
}

// Total returns the server's total_count from the last fetch, adjusted by local creates and deletes
func (e *Engine) Total() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.total
}

// Loading reports whether a fetch is in flight
func (e *Engine) Loading() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loading > 0
}

// Reset empties the cache and discards results of requests already in flight
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = nil
	e.total = 0
	e.resets++
}

// Quadrant is one cell of the Eisenhower matrix
type Quadrant struct {
	Priority models.Priority
	Tasks    []*models.Task
}

// Quadrants groups the cache by priority in matrix order, keeping cache order inside each cell
func (e *Engine) Quadrants() []Quadrant {
	tasks := e.Tasks()
	out := make([]Quadrant, 0, len(models.Priorities))
	for _, p := range models.Priorities {
		prio := p
		out = append(out, Quadrant{
			Priority: p,
			Tasks:    query.Apply(tasks, models.FilterSpec{Priority: &prio}),
		})
	}
	return out
}

func (e *Engine) beginLoading() {
	e.mu.Lock()
	e.loading++
	e.mu.Unlock()
}

func (e *Engine) endLoading() {
	e.mu.Lock()
	e.loading--
	e.mu.Unlock()
}

func (e *Engine) replaceAll(st stamp, tasks []*models.Task, total int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.freshLocked(st) {
		e.logger.Debug("stale_task_list_discarded")
		return
	}
	e.tasks = cloneAll(tasks)
	e.total = total
}

func (e *Engine) replace(st stamp, t *models.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.freshLocked(st) {
		return
	}
	if i := e.indexLocked(t.ID); i >= 0 {
		e.tasks[i] = clone(t)
	}
}

// indexLocked returns the cache index of id or -1. Callers hold e.mu.
func (e *Engine) indexLocked(id string) int {
	return slices.IndexFunc(e.tasks, func(t *models.Task) bool { return t.ID == id })
}

func clone(t *models.Task) *models.Task {
	c := *t
	if t.DueDatetime != nil {
		due := *t.DueDatetime
		c.DueDatetime = &due
	}
	return &c
}

func cloneAll(tasks []*models.Task) []*models.Task {
	out := make([]*models.Task, 0, len(tasks))
	for _, t := range tasks {
		if t != nil {
			out = append(out, clone(t))
		}
	}
	return out
}
