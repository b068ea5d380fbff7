package domain

import "time"

// User is a member who can be assigned to tasks.
type User struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	Name                 string    `json:"name,omitempty"`
	AvatarURL            string    `json:"avatar_url,omitempty"`
	ActiveOrganizationID string    `json:"active_organization_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type UserInput struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// UserUpdate carries partial profile updates.
type UserUpdate struct {
	Name                 *string `json:"name,omitempty"`
	AvatarURL            *string `json:"avatar_url,omitempty"`
	ActiveOrganizationID *string `json:"active_organization_id,omitempty"`
}

func (u UserUpdate) Apply(usr User) User {
	if u.Name != nil {
		usr.Name = *u.Name
	}
	if u.AvatarURL != nil {
		usr.AvatarURL = *u.AvatarURL
	}
	if u.ActiveOrganizationID != nil {
		usr.ActiveOrganizationID = *u.ActiveOrganizationID
	}
	return usr
}
