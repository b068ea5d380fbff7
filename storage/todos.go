package storage

import (
	"context"

	"github.com/AndreEgeli/theAtlasBoard/domain"
)

func (s *Storage) ListTodos(ctx context.Context, taskID string) ([]domain.Todo, error) {
	rows, err := query[todoEntity](ctx, s.todos, eq("PartitionKey", taskID))
	if err != nil {
		return nil, err
	}
	todos := make([]domain.Todo, 0, len(rows))
	for _, r := range rows {
		todos = append(todos, r.todo())
	}
	return todos, nil
}

func (s *Storage) CreateTodo(ctx context.Context, taskID, userID string, in domain.TodoInput) (domain.Todo, error) {
	if _, err := findRow[taskEntity](ctx, s.tasks, taskID); err != nil {
		return domain.Todo{}, err
	}
	now := s.now()
	td := domain.Todo{
		ID:        s.newID(),
		TaskID:    taskID,
		Title:     in.Title,
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := addEntity(ctx, s.todos, newTodoEntity(td)); err != nil {
		return domain.Todo{}, err
	}
	s.publish(ctx, domain.EntityTodo, td.ID, domain.ChangeCreated, taskID, userID)
	return td, nil
}

func (s *Storage) UpdateTodo(ctx context.Context, id string, upd domain.TodoUpdate) (domain.Todo, error) {
	row, err := findRow[todoEntity](ctx, s.todos, id)
	if err != nil {
		return domain.Todo{}, err
	}
	td := upd.Apply(row.todo())
	td.UpdatedAt = s.now()
	if err := replaceEntity(ctx, s.todos, newTodoEntity(td)); err != nil {
		return domain.Todo{}, err
	}
	s.publish(ctx, domain.EntityTodo, id, domain.ChangeUpdated, td.TaskID, "")
	return td, nil
}

func (s *Storage) DeleteTodo(ctx context.Context, id string) error {
	row, err := findRow[todoEntity](ctx, s.todos, id)
	if err != nil {
		if isMissing(err) {
			return nil
		}
		return err
	}
	if err := deleteEntity(ctx, s.todos, row.PartitionKey, id); err != nil {
		return err
	}
	s.publish(ctx, domain.EntityTodo, id, domain.ChangeDeleted, row.PartitionKey, "")
	return nil
}
