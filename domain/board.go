package domain

import "time"

// Board groups tasks for a team. Tasks reference the board by id.
type Board struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TeamID    string    `json:"team_id,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BoardInput carries the fields supplied when creating a board.
type BoardInput struct {
	Name   string `json:"name"`
	TeamID string `json:"team_id,omitempty"`
}

// BoardUpdate carries partial updates for a board.
type BoardUpdate struct {
	Name   *string `json:"name,omitempty"`
	TeamID *string `json:"team_id,omitempty"`
}

// Apply returns a copy of b with the non-nil fields of u merged in.
func (u BoardUpdate) Apply(b Board) Board {
	if u.Name != nil {
		b.Name = *u.Name
	}
	if u.TeamID != nil {
		b.TeamID = *u.TeamID
	}
	return b
}

// Empty reports whether the update carries no fields.
func (u BoardUpdate) Empty() bool {
	return u.Name == nil && u.TeamID == nil
}
