package db

import (
	"context"
	"fmt"

	"draft-analyzer/internal/model"
)

// Writer is the write side of the store that ingestion runs inside one
// transaction: the match row plus every aggregate it touches.
type Writer interface {
	InsertMatch(ctx context.Context, m *model.Match) error
	AddEntityAggregate(ctx context.Context, d *model.EntityAggregate) (*model.EntityAggregate, error)
	PutEntityAggregate(ctx context.Context, a *model.EntityAggregate) error
	AddMatchupAggregate(ctx context.Context, d *model.MatchupAggregate) (*model.MatchupAggregate, error)
	PutMatchupAggregate(ctx context.Context, a *model.MatchupAggregate) error
	AddSynergyAggregate(ctx context.Context, d *model.SynergyAggregate) (*model.SynergyAggregate, error)
	PutSynergyAggregate(ctx context.Context, a *model.SynergyAggregate) error
}

// Tx is a Writer bound to an open transaction.
type Tx struct {
	c conn
}

// InTx runs fn in a transaction, committing if fn returns nil and rolling
// back otherwise. SQLite transactions take the write lock up front, so
// concurrent writers from other processes queue on busy_timeout instead
// of failing on upgrade.
func (s *Store) InTx(ctx context.Context, fn func(Writer) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{c: conn{q: tx, driver: s.driver}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (t *Tx) InsertMatch(ctx context.Context, m *model.Match) error {
	return insertMatch(ctx, t.c, m)
}

func (t *Tx) AddEntityAggregate(ctx context.Context, d *model.EntityAggregate) (*model.EntityAggregate, error) {
	return addEntity(ctx, t.c, d)
}

func (t *Tx) PutEntityAggregate(ctx context.Context, a *model.EntityAggregate) error {
	return putEntity(ctx, t.c, a)
}

func (t *Tx) AddMatchupAggregate(ctx context.Context, d *model.MatchupAggregate) (*model.MatchupAggregate, error) {
	return addMatchup(ctx, t.c, d)
}

func (t *Tx) PutMatchupAggregate(ctx context.Context, a *model.MatchupAggregate) error {
	return putMatchup(ctx, t.c, a)
}

func (t *Tx) AddSynergyAggregate(ctx context.Context, d *model.SynergyAggregate) (*model.SynergyAggregate, error) {
	return addSynergy(ctx, t.c, d)
}

func (t *Tx) PutSynergyAggregate(ctx context.Context, a *model.SynergyAggregate) error {
	return putSynergy(ctx, t.c, a)
}
