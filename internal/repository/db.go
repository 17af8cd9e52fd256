package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the querying surface shared by *pgxpool.Pool and pgx.Tx, so every
// repository works both standalone and inside a transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store bundles repositories with transaction control. Mutating service
// operations run their read-validate-write cycle through WithinTx so that
// concurrent transitions on the same ticket serialize on its row lock.
type Store interface {
	Tickets() TicketRepository
	Closures() ClosureRepository
	Groups() GroupRepository
	Categories() CategoryRepository
	Comments() CommentRepository
	History() HistoryRepository
	Users() UserRepository
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type sqlStore struct {
	db DB
}

// NewStore builds a Store over a pool or transaction handle.
func NewStore(db DB) Store {
	return &sqlStore{db: db}
}

func (s *sqlStore) Tickets() TicketRepository      { return &ticketRepository{db: s.db} }
func (s *sqlStore) Closures() ClosureRepository    { return &closureRepository{db: s.db} }
func (s *sqlStore) Groups() GroupRepository        { return &groupRepository{db: s.db} }
func (s *sqlStore) Categories() CategoryRepository { return &categoryRepository{db: s.db} }
func (s *sqlStore) Comments() CommentRepository    { return &commentRepository{db: s.db} }
func (s *sqlStore) History() HistoryRepository     { return &historyRepository{db: s.db} }
func (s *sqlStore) Users() UserRepository          { return &userRepository{db: s.db} }

func (s *sqlStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, &sqlStore{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
