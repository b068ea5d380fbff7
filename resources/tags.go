package resources

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AndreEgeli/theAtlasBoard/cache"
	"github.com/AndreEgeli/theAtlasBoard/domain"
	"github.com/AndreEgeli/theAtlasBoard/optimistic"
)

type TagUpdateInput struct {
	ID     string
	Update domain.TagUpdate
}

// Tags holds the mutations of an organization's tag list. Tasks embed the
// tags attached to them, so settled tag edits also refresh task lists.
type Tags struct {
	Create *optimistic.Mutation[[]domain.Tag, domain.TagInput, domain.Tag]
	Update *optimistic.Mutation[[]domain.Tag, TagUpdateInput, domain.Tag]
	Delete *optimistic.Mutation[[]domain.Tag, string, struct{}]
}

func NewTags(engine *optimistic.Engine, remote TagAPI, orgID string) *Tags {
	key := TagsKey(orgID)
	byID := func(id string) func(domain.Tag) bool {
		return func(t domain.Tag) bool { return t.ID == id }
	}
	return &Tags{
		Create: optimistic.New(engine, optimistic.Config[[]domain.Tag, domain.TagInput, domain.Tag]{
			Name: "tags.create",
			Key:  key,
			Mutate: func(ctx context.Context, in domain.TagInput) (domain.Tag, error) {
				in.OrganizationID = orgID
				return remote.CreateTag(ctx, in)
			},
			Update: func(old []domain.Tag, in domain.TagInput) []domain.Tag {
				return appendCopy(old, domain.Tag{
					ID:             uuid.NewString(),
					OrganizationID: orgID,
					Name:           in.Name,
					Color:          in.Color,
					CreatedAt:      time.Now().UTC(),
				})
			},
		}),
		Update: optimistic.New(engine, optimistic.Config[[]domain.Tag, TagUpdateInput, domain.Tag]{
			Name: "tags.update",
			Key:  key,
			Mutate: func(ctx context.Context, in TagUpdateInput) (domain.Tag, error) {
				return remote.UpdateTag(ctx, in.ID, in.Update)
			},
			Update: func(old []domain.Tag, in TagUpdateInput) []domain.Tag {
				return replaceWhere(old, byID(in.ID), in.Update.Apply)
			},
			AlsoInvalidate: []cache.Key{AllTasks()},
		}),
		Delete: optimistic.New(engine, optimistic.Config[[]domain.Tag, string, struct{}]{
			Name:   "tags.delete",
			Key:    key,
			Mutate: noResult(remote.DeleteTag),
			Update: func(old []domain.Tag, id string) []domain.Tag {
				return removeWhere(old, byID(id))
			},
			AlsoInvalidate: []cache.Key{AllTasks()},
		}),
	}
}
