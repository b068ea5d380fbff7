package storage

import (
	"context"

	"github.com/AndreEgeli/theAtlasBoard/domain"
)

// ListTasks returns the tasks of a board with their todos, tags and
// assignees.
func (s *Storage) ListTasks(ctx context.Context, boardID string) ([]domain.Task, error) {
	rows, err := query[taskEntity](ctx, s.tasks, eq("PartitionKey", boardID))
	if err != nil {
		return nil, err
	}
	r := newResolver(s)
	tasks := make([]domain.Task, 0, len(rows))
	for _, row := range rows {
		t := row.task()
		if err := r.nest(ctx, &t); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (s *Storage) getTask(ctx context.Context, id string) (domain.Task, error) {
	row, err := findRow[taskEntity](ctx, s.tasks, id)
	if err != nil {
		return domain.Task{}, err
	}
	t := row.task()
	if err := newResolver(s).nest(ctx, &t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (s *Storage) CreateTask(ctx context.Context, boardID, userID string, in domain.TaskInput) (domain.Task, error) {
	if in.Status == "" {
		in.Status = domain.StatusPending
	}
	if !in.Status.Valid() {
		return domain.Task{}, domain.ErrInvalidStatus
	}
	now := s.now()
	t := domain.Task{
		ID:          s.newID(),
		BoardID:     boardID,
		Title:       in.Title,
		Description: in.Description,
		Position:    in.Position,
		Status:      in.Status,
		DeadlineAt:  in.DeadlineAt,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Todos:       []domain.Todo{},
		Tags:        []domain.Tag{},
		Assignees:   []domain.Assignee{},
	}
	if err := addEntity(ctx, s.tasks, newTaskEntity(t)); err != nil {
		return domain.Task{}, err
	}
	s.publish(ctx, domain.EntityTask, t.ID, domain.ChangeCreated, boardID, userID)
	return t, nil
}

func (s *Storage) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) (domain.Task, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return domain.Task{}, domain.ErrInvalidStatus
	}
	t, err := s.getTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	t = upd.Apply(t)
	t.UpdatedAt = s.now()
	if err := replaceEntity(ctx, s.tasks, newTaskEntity(t)); err != nil {
		return domain.Task{}, err
	}
	s.publish(ctx, domain.EntityTask, id, domain.ChangeUpdated, t.BoardID, "")
	return t, nil
}

func (s *Storage) MoveTask(ctx context.Context, id string, pos domain.Position) (domain.Task, error) {
	return s.UpdateTask(ctx, id, domain.TaskUpdate{XIndex: &pos.XIndex, YIndex: &pos.YIndex, Order: &pos.Order})
}

// DeleteTask removes the task with its todos and associations. Deleting a
// missing task succeeds.
func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	row, err := findRow[taskEntity](ctx, s.tasks, id)
	if err != nil {
		if isMissing(err) {
			return nil
		}
		return err
	}
	if err := s.deleteTask(ctx, row.PartitionKey, id); err != nil {
		return err
	}
	s.publish(ctx, domain.EntityTask, id, domain.ChangeDeleted, row.PartitionKey, "")
	return nil
}

func (s *Storage) deleteTask(ctx context.Context, boardID, id string) error {
	for _, t := range []table{s.todos, s.taskTags, s.taskAssignees} {
		rows, err := query[Entity](ctx, t, eq("PartitionKey", id))
		if err != nil {
			return err
		}
		for _, r := range rows {
			if err := deleteEntity(ctx, t, r.PartitionKey, r.RowKey); err != nil {
				return err
			}
		}
	}
	return deleteEntity(ctx, s.tasks, boardID, id)
}

func (s *Storage) AssignUser(ctx context.Context, taskID, userID, assignedBy string) error {
	if err := s.link(ctx, s.taskAssignees, taskID, userID, assignedBy); err != nil {
		return err
	}
	s.publish(ctx, domain.EntityTaskAssignee, userID, domain.ChangeCreated, taskID, assignedBy)
	return nil
}

func (s *Storage) UnassignUser(ctx context.Context, taskID, userID string) error {
	if err := deleteEntity(ctx, s.taskAssignees, taskID, userID); err != nil {
		return err
	}
	s.publish(ctx, domain.EntityTaskAssignee, userID, domain.ChangeDeleted, taskID, "")
	return nil
}

func (s *Storage) AddTag(ctx context.Context, taskID, tagID string) error {
	if err := s.link(ctx, s.taskTags, taskID, tagID, ""); err != nil {
		return err
	}
	s.publish(ctx, domain.EntityTaskTag, tagID, domain.ChangeCreated, taskID, "")
	return nil
}

func (s *Storage) RemoveTag(ctx context.Context, taskID, tagID string) error {
	if err := deleteEntity(ctx, s.taskTags, taskID, tagID); err != nil {
		return err
	}
	s.publish(ctx, domain.EntityTaskTag, tagID, domain.ChangeDeleted, taskID, "")
	return nil
}

func (s *Storage) link(ctx context.Context, t table, taskID, rowKey, by string) error {
	if _, err := findRow[taskEntity](ctx, s.tasks, taskID); err != nil {
		return err
	}
	return upsertEntity(ctx, t, linkEntity{
		Entity:        Entity{PartitionKey: taskID, RowKey: rowKey},
		CreatedBy:     by,
		CreatedAt:     millis(s.now()),
		CreatedAtType: EdmInt64,
	})
}

// resolver fills the nested collections of tasks, looking up each tag and
// user once.
type resolver struct {
	s     *Storage
	tags  map[string]domain.Tag
	users map[string]domain.User
}

func newResolver(s *Storage) *resolver {
	return &resolver{s: s, tags: map[string]domain.Tag{}, users: map[string]domain.User{}}
}

func (r *resolver) nest(ctx context.Context, t *domain.Task) error {
	todos, err := r.s.ListTodos(ctx, t.ID)
	if err != nil {
		return err
	}
	t.Todos = todos

	links, err := query[linkEntity](ctx, r.s.taskTags, eq("PartitionKey", t.ID))
	if err != nil {
		return err
	}
	for _, l := range links {
		tag, ok := r.tags[l.RowKey]
		if !ok {
			row, err := findRow[tagEntity](ctx, r.s.tags, l.RowKey)
			if isMissing(err) {
				continue
			}
			if err != nil {
				return err
			}
			tag = row.tag()
			r.tags[l.RowKey] = tag
		}
		t.Tags = append(t.Tags, tag)
	}

	links, err = query[linkEntity](ctx, r.s.taskAssignees, eq("PartitionKey", t.ID))
	if err != nil {
		return err
	}
	for _, l := range links {
		u, ok := r.users[l.RowKey]
		if !ok {
			u, err = r.s.getUser(ctx, l.RowKey)
			if isMissing(err) {
				u = domain.User{ID: l.RowKey}
			} else if err != nil {
				return err
			}
			r.users[l.RowKey] = u
		}
		t.Assignees = append(t.Assignees, domain.Assignee{ID: u.ID, Name: u.Name})
	}
	return nil
}
