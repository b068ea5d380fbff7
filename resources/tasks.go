package resources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AndreEgeli/theAtlasBoard/cache"
	"github.com/AndreEgeli/theAtlasBoard/domain"
	"github.com/AndreEgeli/theAtlasBoard/optimistic"
)

type TaskUpdateInput struct {
	ID     string
	Update domain.TaskUpdate
}

type MoveInput struct {
	ID       string
	Position domain.Position
}

type AssigneeInput struct {
	TaskID string
	User   domain.Assignee
}

type TaskTagInput struct {
	TaskID string
	Tag    domain.Tag
}

type TaskTodoInput struct {
	TaskID string
	Todo   domain.TodoInput
}

type TaskTodoUpdate struct {
	TaskID string
	TodoID string
	Update domain.TodoUpdate
}

type TaskTodoRef struct {
	TaskID string
	TodoID string
}

// Tasks holds the mutations of one board's task list, including the todos,
// tags and assignees nested in each task.
type Tasks struct {
	Create *optimistic.Mutation[[]domain.Task, domain.TaskInput, domain.Task]
	Update *optimistic.Mutation[[]domain.Task, TaskUpdateInput, domain.Task]
	Move   *optimistic.Mutation[[]domain.Task, MoveInput, domain.Task]
	Delete *optimistic.Mutation[[]domain.Task, string, struct{}]

	Assign    *optimistic.Mutation[[]domain.Task, AssigneeInput, struct{}]
	Unassign  *optimistic.Mutation[[]domain.Task, AssigneeInput, struct{}]
	AddTag    *optimistic.Mutation[[]domain.Task, TaskTagInput, struct{}]
	RemoveTag *optimistic.Mutation[[]domain.Task, TaskTagInput, struct{}]

	CreateTodo *optimistic.Mutation[[]domain.Task, TaskTodoInput, domain.Todo]
	UpdateTodo *optimistic.Mutation[[]domain.Task, TaskTodoUpdate, domain.Todo]
	DeleteTodo *optimistic.Mutation[[]domain.Task, TaskTodoRef, struct{}]

	boardID string
	engine  *optimistic.Engine
}

// NewTasks builds the task mutations of boardID acting as userID.
func NewTasks(engine *optimistic.Engine, tasks TaskAPI, todos TodoAPI, boardID, userID string) *Tasks {
	key := TasksKey(boardID)
	byID := func(id string) func(domain.Task) bool {
		return func(t domain.Task) bool { return t.ID == id }
	}
	// touch replaces the matching task with fn applied and stamps it.
	touch := func(old []domain.Task, id string, fn func(domain.Task) domain.Task) []domain.Task {
		now := time.Now().UTC()
		return replaceWhere(old, byID(id), func(t domain.Task) domain.Task {
			t = fn(t)
			t.UpdatedAt = now
			return t
		})
	}

	return &Tasks{
		boardID: boardID,
		engine:  engine,

		Create: optimistic.New(engine, optimistic.Config[[]domain.Task, domain.TaskInput, domain.Task]{
			Name: "tasks.create",
			Key:  key,
			Mutate: func(ctx context.Context, in domain.TaskInput) (domain.Task, error) {
				return tasks.CreateTask(ctx, boardID, userID, in)
			},
			Update: func(old []domain.Task, in domain.TaskInput) []domain.Task {
				now := time.Now().UTC()
				status := in.Status
				if status == "" {
					status = domain.StatusPending
				}
				return appendCopy(old, domain.Task{
					ID:          uuid.NewString(),
					BoardID:     boardID,
					Title:       in.Title,
					Description: in.Description,
					Position:    in.Position,
					Status:      status,
					DeadlineAt:  in.DeadlineAt,
					CreatedBy:   userID,
					CreatedAt:   now,
					UpdatedAt:   now,
					Todos:       []domain.Todo{},
					Tags:        []domain.Tag{},
					Assignees:   []domain.Assignee{},
				})
			},
		}),
		Update: optimistic.New(engine, optimistic.Config[[]domain.Task, TaskUpdateInput, domain.Task]{
			Name: "tasks.update",
			Key:  key,
			Mutate: func(ctx context.Context, in TaskUpdateInput) (domain.Task, error) {
				return tasks.UpdateTask(ctx, in.ID, in.Update)
			},
			Update: func(old []domain.Task, in TaskUpdateInput) []domain.Task {
				return touch(old, in.ID, in.Update.Apply)
			},
		}),
		Move: optimistic.New(engine, optimistic.Config[[]domain.Task, MoveInput, domain.Task]{
			Name: "tasks.move",
			Key:  key,
			Mutate: func(ctx context.Context, in MoveInput) (domain.Task, error) {
				return tasks.MoveTask(ctx, in.ID, in.Position)
			},
			Update: func(old []domain.Task, in MoveInput) []domain.Task {
				return touch(old, in.ID, func(t domain.Task) domain.Task { return t.Move(in.Position) })
			},
		}),
		Delete: optimistic.New(engine, optimistic.Config[[]domain.Task, string, struct{}]{
			Name:   "tasks.delete",
			Key:    key,
			Mutate: noResult(tasks.DeleteTask),
			Update: func(old []domain.Task, id string) []domain.Task {
				return removeWhere(old, byID(id))
			},
		}),

		Assign: optimistic.New(engine, optimistic.Config[[]domain.Task, AssigneeInput, struct{}]{
			Name: "tasks.assign",
			Key:  key,
			Mutate: noResult(func(ctx context.Context, in AssigneeInput) error {
				return tasks.AssignUser(ctx, in.TaskID, in.User.ID, userID)
			}),
			Update: func(old []domain.Task, in AssigneeInput) []domain.Task {
				return replaceWhere(old, byID(in.TaskID), func(t domain.Task) domain.Task {
					if !t.HasAssignee(in.User.ID) {
						t.Assignees = appendCopy(t.Assignees, in.User)
					}
					return t
				})
			},
		}),
		Unassign: optimistic.New(engine, optimistic.Config[[]domain.Task, AssigneeInput, struct{}]{
			Name: "tasks.unassign",
			Key:  key,
			Mutate: noResult(func(ctx context.Context, in AssigneeInput) error {
				return tasks.UnassignUser(ctx, in.TaskID, in.User.ID)
			}),
			Update: func(old []domain.Task, in AssigneeInput) []domain.Task {
				return replaceWhere(old, byID(in.TaskID), func(t domain.Task) domain.Task {
					t.Assignees = removeWhere(t.Assignees, func(a domain.Assignee) bool { return a.ID == in.User.ID })
					return t
				})
			},
		}),
		AddTag: optimistic.New(engine, optimistic.Config[[]domain.Task, TaskTagInput, struct{}]{
			Name: "tasks.tag.add",
			Key:  key,
			Mutate: noResult(func(ctx context.Context, in TaskTagInput) error {
				return tasks.AddTag(ctx, in.TaskID, in.Tag.ID)
			}),
			Update: func(old []domain.Task, in TaskTagInput) []domain.Task {
				return replaceWhere(old, byID(in.TaskID), func(t domain.Task) domain.Task {
					if !t.HasTag(in.Tag.ID) {
						t.Tags = appendCopy(t.Tags, in.Tag)
					}
					return t
				})
			},
		}),
		RemoveTag: optimistic.New(engine, optimistic.Config[[]domain.Task, TaskTagInput, struct{}]{
			Name: "tasks.tag.remove",
			Key:  key,
			Mutate: noResult(func(ctx context.Context, in TaskTagInput) error {
				return tasks.RemoveTag(ctx, in.TaskID, in.Tag.ID)
			}),
			Update: func(old []domain.Task, in TaskTagInput) []domain.Task {
				return replaceWhere(old, byID(in.TaskID), func(t domain.Task) domain.Task {
					t.Tags = removeWhere(t.Tags, func(tag domain.Tag) bool { return tag.ID == in.Tag.ID })
					return t
				})
			},
		}),

		CreateTodo: optimistic.New(engine, optimistic.Config[[]domain.Task, TaskTodoInput, domain.Todo]{
			Name: "tasks.todo.create",
			Key:  key,
			Mutate: func(ctx context.Context, in TaskTodoInput) (domain.Todo, error) {
				return todos.CreateTodo(ctx, in.TaskID, userID, in.Todo)
			},
			Update: func(old []domain.Task, in TaskTodoInput) []domain.Task {
				now := time.Now().UTC()
				return replaceWhere(old, byID(in.TaskID), func(t domain.Task) domain.Task {
					t.Todos = appendCopy(t.Todos, domain.Todo{
						ID:        uuid.NewString(),
						TaskID:    in.TaskID,
						Title:     in.Todo.Title,
						CreatedBy: userID,
						CreatedAt: now,
						UpdatedAt: now,
					})
					return t
				})
			},
			AlsoInvalidate: []cache.Key{{todosPrefix}},
		}),
		UpdateTodo: optimistic.New(engine, optimistic.Config[[]domain.Task, TaskTodoUpdate, domain.Todo]{
			Name: "tasks.todo.update",
			Key:  key,
			Mutate: func(ctx context.Context, in TaskTodoUpdate) (domain.Todo, error) {
				return todos.UpdateTodo(ctx, in.TodoID, in.Update)
			},
			Update: func(old []domain.Task, in TaskTodoUpdate) []domain.Task {
				now := time.Now().UTC()
				return replaceWhere(old, byID(in.TaskID), func(t domain.Task) domain.Task {
					t.Todos = replaceWhere(t.Todos, func(td domain.Todo) bool { return td.ID == in.TodoID },
						func(td domain.Todo) domain.Todo {
							td = in.Update.Apply(td)
							td.UpdatedAt = now
							return td
						})
					return t
				})
			},
			AlsoInvalidate: []cache.Key{{todosPrefix}},
		}),
		DeleteTodo: optimistic.New(engine, optimistic.Config[[]domain.Task, TaskTodoRef, struct{}]{
			Name: "tasks.todo.delete",
			Key:  key,
			Mutate: noResult(func(ctx context.Context, in TaskTodoRef) error {
				return todos.DeleteTodo(ctx, in.TodoID)
			}),
			Update: func(old []domain.Task, in TaskTodoRef) []domain.Task {
				return replaceWhere(old, byID(in.TaskID), func(t domain.Task) domain.Task {
					t.Todos = removeWhere(t.Todos, func(td domain.Todo) bool { return td.ID == in.TodoID })
					return t
				})
			},
			AlsoInvalidate: []cache.Key{{todosPrefix}},
		}),
	}
}

// BoardID returns the board whose task list the mutations act on.
func (m *Tasks) BoardID() string { return m.boardID }

// Find returns the cached task with the given id.
func (m *Tasks) Find(id string) (domain.Task, error) {
	v, ok := m.engine.Store().Get(TasksKey(m.boardID))
	if !ok {
		return domain.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	list, ok := v.([]domain.Task)
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: %s holds %T", optimistic.ErrValueType, TasksKey(m.boardID), v)
	}
	t, ok := findWhere(list, func(t domain.Task) bool { return t.ID == id })
	if !ok {
		return domain.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, nil
}

// Advance moves the task to the status after its cached one.
func (m *Tasks) Advance(ctx context.Context, id string) (domain.Task, error) {
	t, err := m.Find(id)
	if err != nil {
		return domain.Task{}, err
	}
	next := t.Status.Next()
	if next == t.Status {
		return domain.Task{}, fmt.Errorf("task %s is %s: %w", id, t.Status, ErrNoTransition)
	}
	return m.Update.Invoke(ctx, TaskUpdateInput{ID: id, Update: domain.TaskUpdate{Status: &next}})
}

// Swap exchanges the positions of two tasks with two independent moves. The
// second move runs even when the first fails, and a failure of either leaves
// the other in place. Both errors are returned joined.
func (m *Tasks) Swap(ctx context.Context, aID, bID string) error {
	a, err := m.Find(aID)
	if err != nil {
		return err
	}
	b, err := m.Find(bID)
	if err != nil {
		return err
	}
	_, errA := m.Move.Invoke(ctx, MoveInput{ID: a.ID, Position: b.Position})
	_, errB := m.Move.Invoke(ctx, MoveInput{ID: b.ID, Position: a.Position})
	return errors.Join(errA, errB)
}
