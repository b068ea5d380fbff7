package domain

import "time"

// Todo is a checklist item owned by a task.
type Todo struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Title     string    `json:"title"`
	Completed bool      `json:"is_completed"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TodoInput carries the fields supplied when creating a todo.
type TodoInput struct {
	Title string `json:"title"`
}

// TodoUpdate carries partial updates for a todo.
type TodoUpdate struct {
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"is_completed,omitempty"`
}

func (u TodoUpdate) Apply(t Todo) Todo {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Completed != nil {
		t.Completed = *u.Completed
	}
	return t
}
