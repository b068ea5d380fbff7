package domain

import "time"

// Tag is an organization-wide label attached to tasks.
type Tag struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Color          string    `json:"color"`
	CreatedAt      time.Time `json:"created_at"`
}

type TagInput struct {
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Color          string `json:"color"`
}

type TagUpdate struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

func (u TagUpdate) Apply(t Tag) Tag {
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.Color != nil {
		t.Color = *u.Color
	}
	return t
}
