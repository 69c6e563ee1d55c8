package pgdelivery

import (
	"context"

	"livetrack/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// CheckpointDecider is consulted inside the location-update transaction,
// after the delivery row is locked, so the decision always sees the stored
// position that the update is about to overwrite.
type CheckpointDecider interface {
	ShouldCheckpoint(prev *models.Coordinate, lat, lon float64) bool
}

type Storage struct {
	db      *pgxpool.Pool
	decider CheckpointDecider
}

func New(connString string, decider CheckpointDecider) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}

	db, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}

	s := &Storage{db: db, decider: decider}
	if err := s.initSchema(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() {
	if s.db != nil {
		s.db.Close()
	}
}
