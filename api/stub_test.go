package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/AndreEgeli/theAtlasBoard/cache"
	"github.com/AndreEgeli/theAtlasBoard/domain"
	"github.com/AndreEgeli/theAtlasBoard/optimistic"
	"github.com/AndreEgeli/theAtlasBoard/resources"
	"github.com/AndreEgeli/theAtlasBoard/storage"
)

var errRemote = errors.New("remote unavailable")

// stubBackend serves the operations the handlers reach. Anything else falls
// through to the nil embedded Backend and panics.
type stubBackend struct {
	resources.Backend

	mu     sync.Mutex
	seq    int
	boards []domain.Board
	tasks  map[string][]domain.Task
	tags   map[string][]domain.Tag
	users  []domain.User
	links  []string

	err     error
	hold    chan struct{}
	entered chan struct{}
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		tasks: map[string][]domain.Task{},
		tags:  map[string][]domain.Tag{},
	}
}

func (b *stubBackend) write(ctx context.Context) error {
	if b.entered != nil {
		b.entered <- struct{}{}
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
	return b.err
}

func (b *stubBackend) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s-%d", prefix, b.seq)
}

func (b *stubBackend) ListBoards(context.Context) ([]domain.Board, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Board{}, b.boards...), nil
}

func (b *stubBackend) GetBoard(_ context.Context, id string) (domain.Board, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, bd := range b.boards {
		if bd.ID == id {
			return bd, nil
		}
	}
	return domain.Board{}, fmt.Errorf("board %s: %w", id, storage.ErrNotFound)
}

func (b *stubBackend) ListTasks(_ context.Context, boardID string) ([]domain.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Task{}, b.tasks[boardID]...), nil
}

func (b *stubBackend) ListTags(_ context.Context, orgID string) ([]domain.Tag, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Tag{}, b.tags[orgID]...), nil
}

func (b *stubBackend) ListUsers(context.Context) ([]domain.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.User{}, b.users...), nil
}

func (b *stubBackend) CreateBoard(ctx context.Context, userID string, in domain.BoardInput) (domain.Board, error) {
	if err := b.write(ctx); err != nil {
		return domain.Board{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	bd := domain.Board{ID: b.nextID("board"), Name: in.Name, TeamID: in.TeamID, CreatedBy: userID}
	b.boards = append(b.boards, bd)
	return bd, nil
}

func (b *stubBackend) UpdateBoard(ctx context.Context, id string, upd domain.BoardUpdate) (domain.Board, error) {
	if err := b.write(ctx); err != nil {
		return domain.Board{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, bd := range b.boards {
		if bd.ID == id {
			b.boards[i] = upd.Apply(bd)
			return b.boards[i], nil
		}
	}
	return domain.Board{}, storage.ErrNotFound
}

func (b *stubBackend) DeleteBoard(ctx context.Context, id string) error {
	if err := b.write(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.boards[:0]
	for _, bd := range b.boards {
		if bd.ID != id {
			out = append(out, bd)
		}
	}
	b.boards = out
	return nil
}

func (b *stubBackend) CreateTask(ctx context.Context, boardID, userID string, in domain.TaskInput) (domain.Task, error) {
	if err := b.write(ctx); err != nil {
		return domain.Task{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	status := in.Status
	if status == "" {
		status = domain.StatusPending
	}
	t := domain.Task{
		ID:        b.nextID("task"),
		BoardID:   boardID,
		Title:     in.Title,
		Position:  in.Position,
		Status:    status,
		CreatedBy: userID,
		Todos:     []domain.Todo{},
		Tags:      []domain.Tag{},
		Assignees: []domain.Assignee{},
	}
	b.tasks[boardID] = append(b.tasks[boardID], t)
	return t, nil
}

// editTask applies fn to the stored task with the given id.
func (b *stubBackend) editTask(ctx context.Context, id string, fn func(*domain.Task)) (domain.Task, error) {
	if err := b.write(ctx); err != nil {
		return domain.Task{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for board, list := range b.tasks {
		for i := range list {
			if list[i].ID == id {
				t := list[i]
				fn(&t)
				next := append([]domain.Task{}, list...)
				next[i] = t
				b.tasks[board] = next
				return t, nil
			}
		}
	}
	return domain.Task{}, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
}

func (b *stubBackend) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) (domain.Task, error) {
	return b.editTask(ctx, id, func(t *domain.Task) { *t = upd.Apply(*t) })
}

func (b *stubBackend) MoveTask(ctx context.Context, id string, pos domain.Position) (domain.Task, error) {
	return b.editTask(ctx, id, func(t *domain.Task) { t.Position = pos })
}

func (b *stubBackend) DeleteTask(ctx context.Context, id string) error {
	if err := b.write(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for board, list := range b.tasks {
		out := make([]domain.Task, 0, len(list))
		for _, t := range list {
			if t.ID != id {
				out = append(out, t)
			}
		}
		b.tasks[board] = out
	}
	return nil
}

func (b *stubBackend) AssignUser(ctx context.Context, taskID, userID, _ string) error {
	_, err := b.editTask(ctx, taskID, func(t *domain.Task) {
		t.Assignees = append(append([]domain.Assignee{}, t.Assignees...), domain.Assignee{ID: userID})
	})
	return err
}

func (b *stubBackend) AddTag(ctx context.Context, taskID, tagID string) error {
	if err := b.write(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.links = append(b.links, taskID+"/"+tagID)
	return nil
}

func (b *stubBackend) CreateTodo(ctx context.Context, taskID, userID string, in domain.TodoInput) (domain.Todo, error) {
	var td domain.Todo
	_, err := b.editTask(ctx, taskID, func(t *domain.Task) {
		td = domain.Todo{ID: b.nextID("todo"), TaskID: taskID, Title: in.Title, CreatedBy: userID}
		t.Todos = append(append([]domain.Todo{}, t.Todos...), td)
	})
	return td, err
}

func (b *stubBackend) CreateTag(ctx context.Context, in domain.TagInput) (domain.Tag, error) {
	if err := b.write(ctx); err != nil {
		return domain.Tag{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	tag := domain.Tag{ID: b.nextID("tag"), OrganizationID: in.OrganizationID, Name: in.Name, Color: in.Color}
	b.tags[in.OrganizationID] = append(b.tags[in.OrganizationID], tag)
	return tag, nil
}

func (b *stubBackend) ListTodos(_ context.Context, taskID string) ([]domain.Todo, error) {
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

// editTodo applies fn to the todo id, or drops it when fn is nil.
func (b *stubBackend) editTodo(ctx context.Context, id string, fn func(*domain.Todo)) (domain.Todo, error) {
	if err := b.write(ctx); err != nil {
		return domain.Todo{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, list := range b.tasks {
		for i := range list {
			todos := list[i].Todos
			for j := range todos {
				if todos[j].ID != id {
					continue
				}
				td := todos[j]
				out := make([]domain.Todo, 0, len(todos))
				out = append(out, todos[:j]...)
				if fn != nil {
					fn(&td)
					out = append(out, td)
				}
				list[i].Todos = append(out, todos[j+1:]...)
				return td, nil
			}
		}
	}
	return domain.Todo{}, storage.ErrNotFound
}

func (b *stubBackend) UpdateTodo(ctx context.Context, id string, upd domain.TodoUpdate) (domain.Todo, error) {
	return b.editTodo(ctx, id, func(td *domain.Todo) { *td = upd.Apply(*td) })
}

func (b *stubBackend) DeleteTodo(ctx context.Context, id string) error {
	_, err := b.editTodo(ctx, id, nil)
	return err
}

func (b *stubBackend) UpdateTag(ctx context.Context, id string, upd domain.TagUpdate) (domain.Tag, error) {
	if err := b.write(ctx); err != nil {
		return domain.Tag{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, list := range b.tags {
		for i, tag := range list {
			if tag.ID == id {
				list[i] = upd.Apply(tag)
				return list[i], nil
			}
		}
	}
	return domain.Tag{}, storage.ErrNotFound
}

func (b *stubBackend) CreateUser(ctx context.Context, in domain.UserInput) (domain.User, error) {
	if err := b.write(ctx); err != nil {
		return domain.User{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	u := domain.User{ID: b.nextID("user"), Email: in.Email, Name: in.Name}
	b.users = append(b.users, u)
	return u, nil
}

func (b *stubBackend) DeleteUser(ctx context.Context, id string) error {
	if err := b.write(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.User, 0, len(b.users))
	for _, u := range b.users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	b.users = out
	return nil
}

func (b *stubBackend) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error) {
	if err := b.write(ctx); err != nil {
		return domain.User{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, u := range b.users {
		if u.ID == id {
			b.users[i] = upd.Apply(u)
			return b.users[i], nil
		}
	}
	return domain.User{}, storage.ErrNotFound
}

func (b *stubBackend) seedTasks(boardID string, tasks ...domain.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range tasks {
		t.BoardID = boardID
		if t.Status == "" {
			t.Status = domain.StatusPending
		}
		b.tasks[boardID] = append(b.tasks[boardID], t)
	}
}

func newTestServer(t *testing.T, b *stubBackend) *echo.Echo {
	t.Helper()
	e, _ := newTestAPI(t, b)
	return e
}

func newTestAPI(t *testing.T, b *stubBackend) (*echo.Echo, *Server) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	qc := cache.NewQueryCache(cache.Options{RefreshTimeout: time.Second, Logger: logger})
	t.Cleanup(qc.Close)
	resources.RegisterQueries(qc, b)

	e := echo.New()
	e.JSONSerializer = JSONSerializer{}
	e.Use(GzipRequestMiddleware())
	s := NewServer(qc, optimistic.NewEngine(qc, logger), b, "user-1", logger)
	Register(e, s)
	return e, s
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}
