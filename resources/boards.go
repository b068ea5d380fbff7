package resources

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AndreEgeli/theAtlasBoard/cache"
	"github.com/AndreEgeli/theAtlasBoard/domain"
	"github.com/AndreEgeli/theAtlasBoard/optimistic"
)

// Boards holds the mutations of the board list.
type Boards struct {
	Create *optimistic.Mutation[[]domain.Board, domain.BoardInput, domain.Board]
	Delete *optimistic.Mutation[[]domain.Board, string, struct{}]
}

// NewBoards builds the board list mutations acting as userID.
func NewBoards(engine *optimistic.Engine, remote BoardAPI, userID string) *Boards {
	return &Boards{
		Create: optimistic.New(engine, optimistic.Config[[]domain.Board, domain.BoardInput, domain.Board]{
			Name: "boards.create",
			Key:  BoardsKey(),
			Mutate: func(ctx context.Context, in domain.BoardInput) (domain.Board, error) {
				return remote.CreateBoard(ctx, userID, in)
			},
			Update: func(old []domain.Board, in domain.BoardInput) []domain.Board {
				now := time.Now().UTC()
				return appendCopy(old, domain.Board{
					ID:        uuid.NewString(),
					Name:      in.Name,
					TeamID:    in.TeamID,
					CreatedBy: userID,
					CreatedAt: now,
					UpdatedAt: now,
				})
			},
		}),
		Delete: optimistic.New(engine, optimistic.Config[[]domain.Board, string, struct{}]{
			Name:   "boards.delete",
			Key:    BoardsKey(),
			Mutate: noResult(remote.DeleteBoard),
			Update: func(old []domain.Board, id string) []domain.Board {
				return removeWhere(old, func(b domain.Board) bool { return b.ID == id })
			},
		}),
	}
}

// BoardUpdateInput names the board a partial update applies to.
type BoardUpdateInput struct {
	ID     string
	Update domain.BoardUpdate
}

// BoardDetails holds the mutations of a single board. The key carries the
// board id, so one value serves one board.
type BoardDetails struct {
	Update *optimistic.Mutation[domain.Board, BoardUpdateInput, domain.Board]
}

func NewBoardDetails(engine *optimistic.Engine, remote BoardAPI, boardID string) *BoardDetails {
	return &BoardDetails{
		Update: optimistic.New(engine, optimistic.Config[domain.Board, BoardUpdateInput, domain.Board]{
			Name: "board.update",
			Key:  BoardKey(boardID),
			Mutate: func(ctx context.Context, in BoardUpdateInput) (domain.Board, error) {
				return remote.UpdateBoard(ctx, in.ID, in.Update)
			},
			Update: func(old domain.Board, in BoardUpdateInput) domain.Board {
				if old.ID != in.ID {
					return old
				}
				b := in.Update.Apply(old)
				b.UpdatedAt = time.Now().UTC()
				return b
			},
			AlsoInvalidate: []cache.Key{BoardsKey()},
		}),
	}
}
