package domain

import "time"

// Position places a task in the importance x timeframe grid. Order gives a
// stable sort within one cell.
type Position struct {
	XIndex int `json:"x_index"`
	YIndex int `json:"y_index"`
	Order  int `json:"order"`
}

// Assignee references a user assigned to a task.
type Assignee struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Task is a board item with its nested todos, tags and assignees.
type Task struct {
	ID          string     `json:"id"`
	BoardID     string     `json:"board_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Position
	Status     Status     `json:"status"`
	DeadlineAt *time.Time `json:"deadline_at,omitempty"`
	CreatedBy  string     `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Todos      []Todo     `json:"task_todos"`
	Tags       []Tag      `json:"task_tags"`
	Assignees  []Assignee `json:"task_assignees"`
}

// TaskInput carries the fields supplied when creating a task. Zero values
// are filled with defaults by whoever persists the task.
type TaskInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Position
	Status     Status     `json:"status,omitempty"`
	DeadlineAt *time.Time `json:"deadline_at,omitempty"`
}

// TaskUpdate carries partial updates for a task.
type TaskUpdate struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	XIndex        *int       `json:"x_index,omitempty"`
	YIndex        *int       `json:"y_index,omitempty"`
	Order         *int       `json:"order,omitempty"`
	Status        *Status    `json:"status,omitempty"`
	DeadlineAt    *time.Time `json:"deadline_at,omitempty"`
	ClearDeadline bool       `json:"clear_deadline,omitempty"`
}

// Apply returns a shallow copy of t with the non-nil fields of u merged in.
// Nested collections are shared with t, never modified.
func (u TaskUpdate) Apply(t Task) Task {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.XIndex != nil {
		t.XIndex = *u.XIndex
	}
	if u.YIndex != nil {
		t.YIndex = *u.YIndex
	}
	if u.Order != nil {
		t.Order = *u.Order
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.ClearDeadline {
		t.DeadlineAt = nil
	} else if u.DeadlineAt != nil {
		d := *u.DeadlineAt
		t.DeadlineAt = &d
	}
	return t
}

// Empty reports whether the update carries no fields.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.XIndex == nil && u.YIndex == nil &&
		u.Order == nil && u.Status == nil && u.DeadlineAt == nil && !u.ClearDeadline
}

// Move returns a copy of t placed at p. Only the positional fields change.
func (t Task) Move(p Position) Task {
	t.Position = p
	return t
}

// HasTag reports whether the tag is attached to t.
func (t Task) HasTag(tagID string) bool {
	for _, tag := range t.Tags {
		if tag.ID == tagID {
			return true
		}
	}
	return false
}

// HasAssignee reports whether the user is assigned to t.
func (t Task) HasAssignee(userID string) bool {
	for _, a := range t.Assignees {
		if a.ID == userID {
			return true
		}
	}
	return false
}
