package resources

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AndreEgeli/theAtlasBoard/domain"
	"github.com/AndreEgeli/theAtlasBoard/optimistic"
)

type UserUpdateInput struct {
	ID     string
	Update domain.UserUpdate
}

// Users holds the mutations of the user list.
type Users struct {
	Create        *optimistic.Mutation[[]domain.User, domain.UserInput, domain.User]
	UpdateProfile *optimistic.Mutation[[]domain.User, UserUpdateInput, domain.User]
	Delete        *optimistic.Mutation[[]domain.User, string, struct{}]
}

func NewUsers(engine *optimistic.Engine, remote UserAPI) *Users {
	key := UsersKey()
	byID := func(id string) func(domain.User) bool {
		return func(u domain.User) bool { return u.ID == id }
	}
	return &Users{
		Create: optimistic.New(engine, optimistic.Config[[]domain.User, domain.UserInput, domain.User]{
			Name:   "users.create",
			Key:    key,
			Mutate: remote.CreateUser,
			Update: func(old []domain.User, in domain.UserInput) []domain.User {
				now := time.Now().UTC()
				return appendCopy(old, domain.User{
					ID:        uuid.NewString(),
					Email:     in.Email,
					Name:      in.Name,
					CreatedAt: now,
					UpdatedAt: now,
				})
			},
		}),
		UpdateProfile: optimistic.New(engine, optimistic.Config[[]domain.User, UserUpdateInput, domain.User]{
			Name: "users.update",
			Key:  key,
			Mutate: func(ctx context.Context, in UserUpdateInput) (domain.User, error) {
				return remote.UpdateUser(ctx, in.ID, in.Update)
			},
			Update: func(old []domain.User, in UserUpdateInput) []domain.User {
				now := time.Now().UTC()
				return replaceWhere(old, byID(in.ID), func(u domain.User) domain.User {
					u = in.Update.Apply(u)
					u.UpdatedAt = now
					return u
				})
			},
		}),
		Delete: optimistic.New(engine, optimistic.Config[[]domain.User, string, struct{}]{
			Name:   "users.delete",
			Key:    key,
			Mutate: noResult(remote.DeleteUser),
			Update: func(old []domain.User, id string) []domain.User {
				return removeWhere(old, byID(id))
			},
		}),
	}
}
