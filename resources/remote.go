// Package resources defines the optimistic mutations of every board
// resource: boards, tasks with their todos, tags and assignees, standalone
// todo lists, tags and users.
package resources

import (
	"context"
	"errors"

	"github.com/AndreEgeli/theAtlasBoard/domain"
)

var (
	// ErrNotFound is returned when a composite operation cannot find a record
	// in the cached view it works from.
	ErrNotFound = errors.New("not found in cache")
	// ErrNoTransition is returned when advancing a task that has no next status.
	ErrNoTransition = errors.New("task has no next status")
)

// BoardAPI performs authoritative board writes.
type BoardAPI interface {
	CreateBoard(ctx context.Context, userID string, in domain.BoardInput) (domain.Board, error)
	UpdateBoard(ctx context.Context, id string, upd domain.BoardUpdate) (domain.Board, error)
	DeleteBoard(ctx context.Context, id string) error
}

// TaskAPI performs authoritative task and task association writes.
type TaskAPI interface {
	CreateTask(ctx context.Context, boardID, userID string, in domain.TaskInput) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) (domain.Task, error)
	MoveTask(ctx context.Context, id string, pos domain.Position) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
	AssignUser(ctx context.Context, taskID, userID, assignedBy string) error
	UnassignUser(ctx context.Context, taskID, userID string) error
	AddTag(ctx context.Context, taskID, tagID string) error
	RemoveTag(ctx context.Context, taskID, tagID string) error
}

// TodoAPI performs authoritative todo writes.
type TodoAPI interface {
	CreateTodo(ctx context.Context, taskID, userID string, in domain.TodoInput) (domain.Todo, error)
	UpdateTodo(ctx context.Context, id string, upd domain.TodoUpdate) (domain.Todo, error)
	DeleteTodo(ctx context.Context, id string) error
}

// TagAPI performs authoritative tag writes.
type TagAPI interface {
	CreateTag(ctx context.Context, in domain.TagInput) (domain.Tag, error)
	UpdateTag(ctx context.Context, id string, upd domain.TagUpdate) (domain.Tag, error)
	DeleteTag(ctx context.Context, id string) error
}

// UserAPI performs authoritative user writes.
type UserAPI interface {
	CreateUser(ctx context.Context, in domain.UserInput) (domain.User, error)
	UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Reader loads the authoritative views cached under each key family.
type Reader interface {
	ListBoards(ctx context.Context) ([]domain.Board, error)
	GetBoard(ctx context.Context, id string) (domain.Board, error)
	ListTasks(ctx context.Context, boardID string) ([]domain.Task, error)
	ListTodos(ctx context.Context, taskID string) ([]domain.Todo, error)
	ListTags(ctx context.Context, orgID string) ([]domain.Tag, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// Backend is every remote capability the resources use.
type Backend interface {
	Reader
	BoardAPI
	TaskAPI
	TodoAPI
	TagAPI
	UserAPI
}

// noResult adapts a remote call without a result to a mutation.
func noResult[V any](fn func(ctx context.Context, vars V) error) func(context.Context, V) (struct{}, error) {
	return func(ctx context.Context, vars V) (struct{}, error) {
		return struct{}{}, fn(ctx, vars)
	}
}
