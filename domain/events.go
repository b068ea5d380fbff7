package domain

const (
	EntityBoard        = "board"
	EntityTask         = "task"
	EntityTodo         = "todo"
	EntityTag          = "tag"
	EntityTaskTag      = "task-tag"
	EntityTaskAssignee = "task-assignee"
	EntityUser         = "user"
)

const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// ChangeEvent announces a committed write so other clients can refresh the
// views that contain the entity.
type ChangeEvent struct {
	ID         string `json:"id"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Type       string `json:"type"`
	// Scope is the parent the entity is listed under: board id for tasks,
	// task id for todos and associations, organization id for tags.
	Scope  string `json:"scope,omitempty"`
	Time   int64  `json:"time"`
	UserID string `json:"userId,omitempty"`
}
