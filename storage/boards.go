package storage

import (
	"context"

	"github.com/AndreEgeli/theAtlasBoard/domain"
)

// ListBoards returns every board.
func (s *Storage) ListBoards(ctx context.Context) ([]domain.Board, error) {
	rows, err := query[boardEntity](ctx, s.boards, eq("PartitionKey", boardPartition))
	if err != nil {
		return nil, err
	}
	boards := make([]domain.Board, 0, len(rows))
	for _, r := range rows {
		boards = append(boards, r.board())
	}
	return boards, nil
}

func (s *Storage) GetBoard(ctx context.Context, id string) (domain.Board, error) {
	var ent boardEntity
	if err := getEntity(ctx, s.boards, boardPartition, id, &ent); err != nil {
		return domain.Board{}, err
	}
	return ent.board(), nil
}

func (s *Storage) CreateBoard(ctx context.Context, userID string, in domain.BoardInput) (domain.Board, error) {
	now := s.now()
	b := domain.Board{
		ID:        s.newID(),
		Name:      in.Name,
		TeamID:    in.TeamID,
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := addEntity(ctx, s.boards, newBoardEntity(b)); err != nil {
		return domain.Board{}, err
	}
	s.publish(ctx, domain.EntityBoard, b.ID, domain.ChangeCreated, "", userID)
	return b, nil
}

func (s *Storage) UpdateBoard(ctx context.Context, id string, upd domain.BoardUpdate) (domain.Board, error) {
	b, err := s.GetBoard(ctx, id)
	if err != nil {
		return domain.Board{}, err
	}
	b = upd.Apply(b)
	b.UpdatedAt = s.now()
	if err := replaceEntity(ctx, s.boards, newBoardEntity(b)); err != nil {
		return domain.Board{}, err
	}
	s.publish(ctx, domain.EntityBoard, id, domain.ChangeUpdated, "", "")
	return b, nil
}

// DeleteBoard removes the board and its tasks.
func (s *Storage) DeleteBoard(ctx context.Context, id string) error {
	rows, err := query[taskEntity](ctx, s.tasks, eq("PartitionKey", id))
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := s.deleteTask(ctx, r.PartitionKey, r.RowKey); err != nil {
			return err
		}
	}
	if err := deleteEntity(ctx, s.boards, boardPartition, id); err != nil {
		return err
	}
	s.publish(ctx, domain.EntityBoard, id, domain.ChangeDeleted, "", "")
	return nil
}
