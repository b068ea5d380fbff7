package resources

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AndreEgeli/theAtlasBoard/cache"
	"github.com/AndreEgeli/theAtlasBoard/domain"
	"github.com/AndreEgeli/theAtlasBoard/optimistic"
)

type TodoUpdateInput struct {
	ID     string
	Update domain.TodoUpdate
}

// Todos holds the mutations of a task's standalone todo list. Each one
// refreshes the task lists afterwards since tasks embed their todos.
type Todos struct {
	Create *optimistic.Mutation[[]domain.Todo, domain.TodoInput, domain.Todo]
	Update *optimistic.Mutation[[]domain.Todo, TodoUpdateInput, domain.Todo]
	Delete *optimistic.Mutation[[]domain.Todo, string, struct{}]
}

func NewTodos(engine *optimistic.Engine, remote TodoAPI, taskID, userID string) *Todos {
	key := TodosKey(taskID)
	also := []cache.Key{AllTasks()}
	byID := func(id string) func(domain.Todo) bool {
		return func(td domain.Todo) bool { return td.ID == id }
	}
	return &Todos{
		Create: optimistic.New(engine, optimistic.Config[[]domain.Todo, domain.TodoInput, domain.Todo]{
			Name: "todos.create",
			Key:  key,
			Mutate: func(ctx context.Context, in domain.TodoInput) (domain.Todo, error) {
				return remote.CreateTodo(ctx, taskID, userID, in)
			},
			Update: func(old []domain.Todo, in domain.TodoInput) []domain.Todo {
				now := time.Now().UTC()
				return appendCopy(old, domain.Todo{
					ID:        uuid.NewString(),
					TaskID:    taskID,
					Title:     in.Title,
					CreatedBy: userID,
					CreatedAt: now,
					UpdatedAt: now,
				})
			},
			AlsoInvalidate: also,
		}),
		Update: optimistic.New(engine, optimistic.Config[[]domain.Todo, TodoUpdateInput, domain.Todo]{
			Name: "todos.update",
			Key:  key,
			Mutate: func(ctx context.Context, in TodoUpdateInput) (domain.Todo, error) {
				return remote.UpdateTodo(ctx, in.ID, in.Update)
			},
			Update: func(old []domain.Todo, in TodoUpdateInput) []domain.Todo {
				now := time.Now().UTC()
				return replaceWhere(old, byID(in.ID), func(td domain.Todo) domain.Todo {
					td = in.Update.Apply(td)
					td.UpdatedAt = now
					return td
				})
			},
			AlsoInvalidate: also,
		}),
		Delete: optimistic.New(engine, optimistic.Config[[]domain.Todo, string, struct{}]{
			Name:   "todos.delete",
			Key:    key,
			Mutate: noResult(remote.DeleteTodo),
			Update: func(old []domain.Todo, id string) []domain.Todo {
				return removeWhere(old, byID(id))
			},
			AlsoInvalidate: also,
		}),
	}
}
