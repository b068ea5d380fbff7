package resources

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/AndreEgeli/theAtlasBoard/cache"
	"github.com/AndreEgeli/theAtlasBoard/domain"
	"github.com/AndreEgeli/theAtlasBoard/optimistic"
)

var errNetwork = errors.New("network error")

// memBackend is an in-memory Backend. Writes fail with the error registered
// for the operation or for the entity id, and wait on hold when it is set.
type memBackend struct {
	mu     sync.Mutex
	seq    int
	boards []domain.Board
	tasks  map[string][]domain.Task
	tags   map[string][]domain.Tag
	users  []domain.User

	fail    map[string]error
	failID  map[string]error
	hold    chan struct{}
	entered chan string
}

func newMemBackend() *memBackend {
	return &memBackend{
		tasks:  map[string][]domain.Task{},
		tags:   map[string][]domain.Tag{},
		fail:   map[string]error{},
		failID: map[string]error{},
	}
}

func (b *memBackend) call(ctx context.Context, op, id string) error {
	if b.entered != nil {
		b.entered <- op
	}
	if b.hold != nil {
		select {
		case <-b.hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail[op]; err != nil {
		return err
	}
	return b.failID[id]
}

func (b *memBackend) nextID() string {
	b.seq++
	return fmt.Sprintf("server-%d", b.seq)
}

func cloneTask(t domain.Task) domain.Task {
	t.Todos = append([]domain.Todo{}, t.Todos...)
	t.Tags = append([]domain.Tag{}, t.Tags...)
	t.Assignees = append([]domain.Assignee{}, t.Assignees...)
	return t
}

// withTask runs fn on the stored task with the given id.
func (b *memBackend) withTask(id string, fn func(*domain.Task)) (domain.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for board, list := range b.tasks {
		for i := range list {
			if list[i].ID == id {
				fn(&list[i])
				b.tasks[board] = list
				return cloneTask(list[i]), nil
			}
		}
	}
	return domain.Task{}, fmt.Errorf("task %s missing", id)
}

func (b *memBackend) ListBoards(ctx context.Context) ([]domain.Board, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Board{}, b.boards...), nil
}

func (b *memBackend) GetBoard(ctx context.Context, id string) (domain.Board, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, brd := range b.boards {
		if brd.ID == id {
			return brd, nil
		}
	}
	return domain.Board{}, fmt.Errorf("board %s missing", id)
}

func (b *memBackend) ListTasks(ctx context.Context, boardID string) ([]domain.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Task, 0, len(b.tasks[boardID]))
	for _, t := range b.tasks[boardID] {
		out = append(out, cloneTask(t))
	}
	return out, nil
}

func (b *memBackend) ListTodos(ctx context.Context, taskID string) ([]domain.Todo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, list := range b.tasks {
		for _, t := range list {
			if t.ID == taskID {
				return append([]domain.Todo{}, t.Todos...), nil
			}
		}
	}
	return []domain.Todo{}, nil
}

func (b *memBackend) ListTags(ctx context.Context, orgID string) ([]domain.Tag, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Tag{}, b.tags[orgID]...), nil
}

func (b *memBackend) ListUsers(ctx context.Context) ([]domain.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.User{}, b.users...), nil
}

func (b *memBackend) CreateBoard(ctx context.Context, userID string, in domain.BoardInput) (domain.Board, error) {
	if err := b.call(ctx, "CreateBoard", ""); err != nil {
		return domain.Board{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	brd := domain.Board{ID: b.nextID(), Name: in.Name, TeamID: in.TeamID, CreatedBy: userID}
	b.boards = append(b.boards, brd)
	return brd, nil
}

func (b *memBackend) UpdateBoard(ctx context.Context, id string, upd domain.BoardUpdate) (domain.Board, error) {
	if err := b.call(ctx, "UpdateBoard", id); err != nil {
		return domain.Board{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.boards {
		if b.boards[i].ID == id {
			b.boards[i] = upd.Apply(b.boards[i])
			return b.boards[i], nil
		}
	}
	return domain.Board{}, fmt.Errorf("board %s missing", id)
}

func (b *memBackend) DeleteBoard(ctx context.Context, id string) error {
	if err := b.call(ctx, "DeleteBoard", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.boards = removeWhere(b.boards, func(brd domain.Board) bool { return brd.ID == id })
	return nil
}

func (b *memBackend) CreateTask(ctx context.Context, boardID, userID string, in domain.TaskInput) (domain.Task, error) {
	if err := b.call(ctx, "CreateTask", ""); err != nil {
		return domain.Task{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t := domain.Task{
		ID:        b.nextID(),
		BoardID:   boardID,
		Title:     in.Title,
		Position:  in.Position,
		Status:    domain.StatusPending,
		CreatedBy: userID,
		Todos:     []domain.Todo{},
		Tags:      []domain.Tag{},
		Assignees: []domain.Assignee{},
	}
	b.tasks[boardID] = append(b.tasks[boardID], t)
	return cloneTask(t), nil
}

func (b *memBackend) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) (domain.Task, error) {
	if err := b.call(ctx, "UpdateTask", id); err != nil {
		return domain.Task{}, err
	}
	return b.withTask(id, func(t *domain.Task) { *t = upd.Apply(*t) })
}

func (b *memBackend) MoveTask(ctx context.Context, id string, pos domain.Position) (domain.Task, error) {
	if err := b.call(ctx, "MoveTask", id); err != nil {
		return domain.Task{}, err
	}
	return b.withTask(id, func(t *domain.Task) { t.Position = pos })
}

func (b *memBackend) DeleteTask(ctx context.Context, id string) error {
	if err := b.call(ctx, "DeleteTask", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for board, list := range b.tasks {
		b.tasks[board] = removeWhere(list, func(t domain.Task) bool { return t.ID == id })
	}
	return nil
}

func (b *memBackend) AssignUser(ctx context.Context, taskID, userID, assignedBy string) error {
	if err := b.call(ctx, "AssignUser", taskID); err != nil {
		return err
	}
	_, err := b.withTask(taskID, func(t *domain.Task) {
		t.Assignees = appendCopy(t.Assignees, domain.Assignee{ID: userID})
	})
	return err
}

func (b *memBackend) UnassignUser(ctx context.Context, taskID, userID string) error {
	if err := b.call(ctx, "UnassignUser", taskID); err != nil {
		return err
	}
	_, err := b.withTask(taskID, func(t *domain.Task) {
		t.Assignees = removeWhere(t.Assignees, func(a domain.Assignee) bool { return a.ID == userID })
	})
	return err
}

func (b *memBackend) AddTag(ctx context.Context, taskID, tagID string) error {
	if err := b.call(ctx, "AddTag", taskID); err != nil {
		return err
	}
	_, err := b.withTask(taskID, func(t *domain.Task) {
		t.Tags = appendCopy(t.Tags, domain.Tag{ID: tagID})
	})
	return err
}

func (b *memBackend) RemoveTag(ctx context.Context, taskID, tagID string) error {
	if err := b.call(ctx, "RemoveTag", taskID); err != nil {
		return err
	}
	_, err := b.withTask(taskID, func(t *domain.Task) {
		t.Tags = removeWhere(t.Tags, func(tag domain.Tag) bool { return tag.ID == tagID })
	})
	return err
}

func (b *memBackend) CreateTodo(ctx context.Context, taskID, userID string, in domain.TodoInput) (domain.Todo, error) {
	if err := b.call(ctx, "CreateTodo", taskID); err != nil {
		return domain.Todo{}, err
	}
	b.mu.Lock()
	td := domain.Todo{ID: b.nextID(), TaskID: taskID, Title: in.Title, CreatedBy: userID}
	b.mu.Unlock()
	_, err := b.withTask(taskID, func(t *domain.Task) { t.Todos = appendCopy(t.Todos, td) })
	return td, err
}

func (b *memBackend) UpdateTodo(ctx context.Context, id string, upd domain.TodoUpdate) (domain.Todo, error) {
	if err := b.call(ctx, "UpdateTodo", id); err != nil {
		return domain.Todo{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, list := range b.tasks {
		for i := range list {
			for j := range list[i].Todos {
				if list[i].Todos[j].ID == id {
					todos := append([]domain.Todo{}, list[i].Todos...)
					todos[j] = upd.Apply(todos[j])
					list[i].Todos = todos
					return todos[j], nil
				}
			}
		}
	}
	return domain.Todo{}, fmt.Errorf("todo %s missing", id)
}

func (b *memBackend) DeleteTodo(ctx context.Context, id string) error {
	if err := b.call(ctx, "DeleteTodo", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, list := range b.tasks {
		for i := range list {
			list[i].Todos = removeWhere(list[i].Todos, func(td domain.Todo) bool { return td.ID == id })
		}
	}
	return nil
}

func (b *memBackend) CreateTag(ctx context.Context, in domain.TagInput) (domain.Tag, error) {
	if err := b.call(ctx, "CreateTag", ""); err != nil {
		return domain.Tag{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	tag := domain.Tag{ID: b.nextID(), OrganizationID: in.OrganizationID, Name: in.Name, Color: in.Color}
	b.tags[in.OrganizationID] = append(b.tags[in.OrganizationID], tag)
	return tag, nil
}

func (b *memBackend) UpdateTag(ctx context.Context, id string, upd domain.TagUpdate) (domain.Tag, error) {
	if err := b.call(ctx, "UpdateTag", id); err != nil {
		return domain.Tag{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for org, list := range b.tags {
		for i := range list {
			if list[i].ID == id {
				list[i] = upd.Apply(list[i])
				b.tags[org] = list
				return list[i], nil
			}
		}
	}
	return domain.Tag{}, fmt.Errorf("tag %s missing", id)
}

func (b *memBackend) DeleteTag(ctx context.Context, id string) error {
	if err := b.call(ctx, "DeleteTag", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for org, list := range b.tags {
		b.tags[org] = removeWhere(list, func(t domain.Tag) bool { return t.ID == id })
	}
	return nil
}

func (b *memBackend) CreateUser(ctx context.Context, in domain.UserInput) (domain.User, error) {
	if err := b.call(ctx, "CreateUser", ""); err != nil {
		return domain.User{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	u := domain.User{ID: b.nextID(), Email: in.Email, Name: in.Name}
	b.users = append(b.users, u)
	return u, nil
}

func (b *memBackend) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error) {
	if err := b.call(ctx, "UpdateUser", id); err != nil {
		return domain.User{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.users {
		if b.users[i].ID == id {
			b.users[i] = upd.Apply(b.users[i])
			return b.users[i], nil
		}
	}
	return domain.User{}, fmt.Errorf("user %s missing", id)
}

func (b *memBackend) DeleteUser(ctx context.Context, id string) error {
	if err := b.call(ctx, "DeleteUser", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = removeWhere(b.users, func(u domain.User) bool { return u.ID == id })
	return nil
}

type fixture struct {
	backend *memBackend
	qc      *cache.QueryCache
	engine  *optimistic.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	qc := cache.NewQueryCache(cache.Options{Logger: logger, RefreshTimeout: time.Second})
	t.Cleanup(qc.Close)
	backend := newMemBackend()
	RegisterQueries(qc, backend)
	return &fixture{backend: backend, qc: qc, engine: optimistic.NewEngine(qc, logger)}
}

// wait blocks until no refresh is running for key.
func (f *fixture) wait(t *testing.T, key cache.Key) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.qc.Wait(ctx, key); err != nil {
		t.Fatalf("wait %s: %v", key, err)
	}
}

func (f *fixture) tasks(t *testing.T, boardID string) []domain.Task {
	t.Helper()
	v, ok := f.qc.Get(TasksKey(boardID))
	if !ok {
		t.Fatalf("no tasks cached for %s", boardID)
	}
	return v.([]domain.Task)
}

// seedTasks stores tasks both remotely and in the cache.
func (f *fixture) seedTasks(boardID string, tasks ...domain.Task) {
	f.backend.mu.Lock()
	stored := make([]domain.Task, 0, len(tasks))
	cached := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Todos == nil {
			t.Todos = []domain.Todo{}
		}
		if t.Tags == nil {
			t.Tags = []domain.Tag{}
		}
		if t.Assignees == nil {
			t.Assignees = []domain.Assignee{}
		}
		stored = append(stored, cloneTask(t))
		cached = append(cached, cloneTask(t))
	}
	f.backend.tasks[boardID] = stored
	f.backend.mu.Unlock()
	f.qc.Set(TasksKey(boardID), cached)
}
