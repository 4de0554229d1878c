package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/gitucha/BrainFuel/internal/domain"
)

type roomRow struct {
	bun.BaseModel `bun:"table:rooms"`

	ID            string `bun:"id,pk"`
	Code          string `bun:"code"`
	HostID        int64  `bun:"host_id"`
	HostUsername  string `bun:"host_username"`
	IsPublic      bool   `bun:"is_public"`
	Difficulty    string `bun:"difficulty"`
	QuestionCount int    `bun:"question_count"`
	MaxPlayers    int    `bun:"max_players"`
	Status        string `bun:"status"`
}

// RoomRepository persists room-provisioning metadata via bun.
type RoomRepository struct {
	db *bun.DB
}

func NewRoomRepository(db *bun.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	row := toRow(room)
	if _, err := r.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.Field('C') == "23505" {
			return domain.ErrRoomCodeTaken
		}
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

func (r *RoomRepository) ByCode(ctx context.Context, code string) (domain.Room, error) {
	var row roomRow
	err := r.db.NewSelect().Model(&row).Where("code = ?", code).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("select room: %w", err)
	}
	return fromRow(row), nil
}

func (r *RoomRepository) PublicLobby(ctx context.Context) ([]domain.Room, error) {
	var rows []roomRow
	err := r.db.NewSelect().Model(&rows).
		Where("is_public = TRUE").
		Where("status != ?", domain.RoomFinished).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select lobby: %w", err)
	}
	rooms := make([]domain.Room, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, fromRow(row))
	}
	return rooms, nil
}

func toRow(room *domain.Room) roomRow {
	return roomRow{
		ID:            room.ID,
		Code:          room.Code,
		HostID:        room.HostID,
		HostUsername:  room.HostUsername,
		IsPublic:      room.IsPublic,
		Difficulty:    room.Difficulty,
		QuestionCount: room.QuestionCount,
		MaxPlayers:    room.MaxPlayers,
		Status:        room.Status,
	}
}

func fromRow(row roomRow) domain.Room {
	return domain.Room{
		ID:            row.ID,
		Code:          row.Code,
		HostID:        row.HostID,
		HostUsername:  row.HostUsername,
		IsPublic:      row.IsPublic,
		Difficulty:    row.Difficulty,
		QuestionCount: row.QuestionCount,
		MaxPlayers:    row.MaxPlayers,
		Status:        row.Status,
	}
}
