package storage

import (
	"context"

	"github.com/AndreEgeli/theAtlasBoard/domain"
)

func (s *Storage) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := query[userEntity](ctx, s.users, eq("PartitionKey", userPartition))
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (s *Storage) getUser(ctx context.Context, id string) (domain.User, error) {
	var ent userEntity
	if err := getEntity(ctx, s.users, userPartition, id, &ent); err != nil {
		return domain.User{}, err
	}
	return ent.user(), nil
}

func (s *Storage) CreateUser(ctx context.Context, in domain.UserInput) (domain.User, error) {
	now := s.now()
	u := domain.User{
		ID:        s.newID(),
		Email:     in.Email,
		Name:      in.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := addEntity(ctx, s.users, newUserEntity(u)); err != nil {
		return domain.User{}, err
	}
	s.publish(ctx, domain.EntityUser, u.ID, domain.ChangeCreated, "", u.ID)
	return u, nil
}

func (s *Storage) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error) {
	u, err := s.getUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	u = upd.Apply(u)
	u.UpdatedAt = s.now()
	if err := replaceEntity(ctx, s.users, newUserEntity(u)); err != nil {
		return domain.User{}, err
	}
	s.publish(ctx, domain.EntityUser, id, domain.ChangeUpdated, "", id)
	return u, nil
}

func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	if err := deleteEntity(ctx, s.users, userPartition, id); err != nil {
		return err
	}
	s.publish(ctx, domain.EntityUser, id, domain.ChangeDeleted, "", "")
	return nil
}
