package storage

import (
	"time"

	"github.com/AndreEgeli/theAtlasBoard/domain"
)

// Entity represents base table entity keys.
type Entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

const (
	EdmInt64 = "Edm.Int64"

	boardPartition = "board"
	userPartition  = "user"
)

type boardEntity struct {
	Entity
	Name          string `json:"Name"`
	TeamID        string `json:"TeamID,omitempty"`
	CreatedBy     string `json:"CreatedBy,omitempty"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
	UpdatedAt     int64  `json:"UpdatedAt,string"`
	UpdatedAtType string `json:"UpdatedAt@odata.type"`
}

type taskEntity struct {
	Entity
	Title          string `json:"Title"`
	Description    string `json:"Description,omitempty"`
	XIndex         int    `json:"XIndex"`
	YIndex         int    `json:"YIndex"`
	Order          int    `json:"Order"`
	Status         string `json:"Status"`
	DeadlineAt     int64  `json:"DeadlineAt,string"`
	DeadlineAtType string `json:"DeadlineAt@odata.type"`
	CreatedBy      string `json:"CreatedBy,omitempty"`
	CreatedAt      int64  `json:"CreatedAt,string"`
	CreatedAtType  string `json:"CreatedAt@odata.type"`
	UpdatedAt      int64  `json:"UpdatedAt,string"`
	UpdatedAtType  string `json:"UpdatedAt@odata.type"`
}

type todoEntity struct {
	Entity
	Title         string `json:"Title"`
	Completed     bool   `json:"Completed"`
	CreatedBy     string `json:"CreatedBy,omitempty"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
	UpdatedAt     int64  `json:"UpdatedAt,string"`
	UpdatedAtType string `json:"UpdatedAt@odata.type"`
}

type tagEntity struct {
	Entity
	Name          string `json:"Name"`
	Color         string `json:"Color"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}

// linkEntity associates a task (partition) with a tag or user (row).
type linkEntity struct {
	Entity
	CreatedBy     string `json:"CreatedBy,omitempty"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}

type userEntity struct {
	Entity
	Email                string `json:"Email"`
	Name                 string `json:"Name,omitempty"`
	AvatarURL            string `json:"AvatarURL,omitempty"`
	ActiveOrganizationID string `json:"ActiveOrganizationID,omitempty"`
	CreatedAt            int64  `json:"CreatedAt,string"`
	CreatedAtType        string `json:"CreatedAt@odata.type"`
	UpdatedAt            int64  `json:"UpdatedAt,string"`
	UpdatedAtType        string `json:"UpdatedAt@odata.type"`
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func newBoardEntity(b domain.Board) boardEntity {
	return boardEntity{
		Entity:        Entity{PartitionKey: boardPartition, RowKey: b.ID},
		Name:          b.Name,
		TeamID:        b.TeamID,
		CreatedBy:     b.CreatedBy,
		CreatedAt:     millis(b.CreatedAt),
		CreatedAtType: EdmInt64,
		UpdatedAt:     millis(b.UpdatedAt),
		UpdatedAtType: EdmInt64,
	}
}

func (e boardEntity) board() domain.Board {
	return domain.Board{
		ID:        e.RowKey,
		Name:      e.Name,
		TeamID:    e.TeamID,
		CreatedBy: e.CreatedBy,
		CreatedAt: fromMillis(e.CreatedAt),
		UpdatedAt: fromMillis(e.UpdatedAt),
	}
}

func newTaskEntity(t domain.Task) taskEntity {
	ent := taskEntity{
		Entity:         Entity{PartitionKey: t.BoardID, RowKey: t.ID},
		Title:          t.Title,
		Description:    t.Description,
		XIndex:         t.XIndex,
		YIndex:         t.YIndex,
		Order:          t.Order,
		Status:         string(t.Status),
		DeadlineAtType: EdmInt64,
		CreatedBy:      t.CreatedBy,
		CreatedAt:      millis(t.CreatedAt),
		CreatedAtType:  EdmInt64,
		UpdatedAt:      millis(t.UpdatedAt),
		UpdatedAtType:  EdmInt64,
	}
	if t.DeadlineAt != nil {
		ent.DeadlineAt = millis(*t.DeadlineAt)
	}
	return ent
}

// task converts the row without its nested collections, which live in
// their own tables.
func (e taskEntity) task() domain.Task {
	t := domain.Task{
		ID:          e.RowKey,
		BoardID:     e.PartitionKey,
		Title:       e.Title,
		Description: e.Description,
		Position:    domain.Position{XIndex: e.XIndex, YIndex: e.YIndex, Order: e.Order},
		Status:      domain.Status(e.Status),
		CreatedBy:   e.CreatedBy,
		CreatedAt:   fromMillis(e.CreatedAt),
		UpdatedAt:   fromMillis(e.UpdatedAt),
		Todos:       []domain.Todo{},
		Tags:        []domain.Tag{},
		Assignees:   []domain.Assignee{},
	}
	if e.DeadlineAt != 0 {
		d := fromMillis(e.DeadlineAt)
		t.DeadlineAt = &d
	}
	return t
}

func newTodoEntity(td domain.Todo) todoEntity {
	return todoEntity{
		Entity:        Entity{PartitionKey: td.TaskID, RowKey: td.ID},
		Title:         td.Title,
		Completed:     td.Completed,
		CreatedBy:     td.CreatedBy,
		CreatedAt:     millis(td.CreatedAt),
		CreatedAtType: EdmInt64,
		UpdatedAt:     millis(td.UpdatedAt),
		UpdatedAtType: EdmInt64,
	}
}

func (e todoEntity) todo() domain.Todo {
	return domain.Todo{
		ID:        e.RowKey,
		TaskID:    e.PartitionKey,
		Title:     e.Title,
		Completed: e.Completed,
		CreatedBy: e.CreatedBy,
		CreatedAt: fromMillis(e.CreatedAt),
		UpdatedAt: fromMillis(e.UpdatedAt),
	}
}

func newTagEntity(t domain.Tag) tagEntity {
	return tagEntity{
		Entity:        Entity{PartitionKey: t.OrganizationID, RowKey: t.ID},
		Name:          t.Name,
		Color:         t.Color,
		CreatedAt:     millis(t.CreatedAt),
		CreatedAtType: EdmInt64,
	}
}

func (e tagEntity) tag() domain.Tag {
	return domain.Tag{
		ID:             e.RowKey,
		OrganizationID: e.PartitionKey,
		Name:           e.Name,
		Color:          e.Color,
		CreatedAt:      fromMillis(e.CreatedAt),
	}
}

func newUserEntity(u domain.User) userEntity {
	return userEntity{
		Entity:               Entity{PartitionKey: userPartition, RowKey: u.ID},
		Email:                u.Email,
		Name:                 u.Name,
		AvatarURL:            u.AvatarURL,
		ActiveOrganizationID: u.ActiveOrganizationID,
		CreatedAt:            millis(u.CreatedAt),
		CreatedAtType:        EdmInt64,
		UpdatedAt:            millis(u.UpdatedAt),
		UpdatedAtType:        EdmInt64,
	}
}

func (e userEntity) user() domain.User {
	return domain.User{
		ID:                   e.RowKey,
		Email:                e.Email,
		Name:                 e.Name,
		AvatarURL:            e.AvatarURL,
		ActiveOrganizationID: e.ActiveOrganizationID,
		CreatedAt:            fromMillis(e.CreatedAt),
		UpdatedAt:            fromMillis(e.UpdatedAt),
	}
}
