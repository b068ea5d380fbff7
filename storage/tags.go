package storage

import (
	"context"

	"github.com/AndreEgeli/theAtlasBoard/domain"
)

func (s *Storage) ListTags(ctx context.Context, orgID string) ([]domain.Tag, error) {
	rows, err := query[tagEntity](ctx, s.tags, eq("PartitionKey", orgID))
	if err != nil {
		return nil, err
	}
	tags := make([]domain.Tag, 0, len(rows))
	for _, r := range rows {
		tags = append(tags, r.tag())
	}
	return tags, nil
}

func (s *Storage) CreateTag(ctx context.Context, in domain.TagInput) (domain.Tag, error) {
	tag := domain.Tag{
		ID:             s.newID(),
		OrganizationID: in.OrganizationID,
		Name:           in.Name,
		Color:          in.Color,
		CreatedAt:      s.now(),
	}
	if err := addEntity(ctx, s.tags, newTagEntity(tag)); err != nil {
		return domain.Tag{}, err
	}
	s.publish(ctx, domain.EntityTag, tag.ID, domain.ChangeCreated, tag.OrganizationID, "")
	return tag, nil
}

func (s *Storage) UpdateTag(ctx context.Context, id string, upd domain.TagUpdate) (domain.Tag, error) {
	row, err := findRow[tagEntity](ctx, s.tags, id)
	if err != nil {
		return domain.Tag{}, err
	}
	tag := upd.Apply(row.tag())
	if err := replaceEntity(ctx, s.tags, newTagEntity(tag)); err != nil {
		return domain.Tag{}, err
	}
	s.publish(ctx, domain.EntityTag, id, domain.ChangeUpdated, tag.OrganizationID, "")
	return tag, nil
}

// DeleteTag removes the tag. Task associations pointing at it are skipped
// when tasks are read.
func (s *Storage) DeleteTag(ctx context.Context, id string) error {
	row, err := findRow[tagEntity](ctx, s.tags, id)
	if err != nil {
		if isMissing(err) {
			return nil
		}
		return err
	}
	if err := deleteEntity(ctx, s.tags, row.PartitionKey, id); err != nil {
		return err
	}
	s.publish(ctx, domain.EntityTag, id, domain.ChangeDeleted, row.PartitionKey, "")
	return nil
}
