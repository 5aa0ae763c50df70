package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		type TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL DEFAULT '',
		ticket_channel_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		details TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		budget TEXT NOT NULL DEFAULT '',
		deadline TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS orders_ticket_channel_idx ON orders (ticket_channel_id)`,
}

const orderColumns = `id, type, user_id, user_name, ticket_channel_id, title, details, status, budget, deadline, notes, created_at, updated_at`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, order *Order) error {
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	// The ID is reserved first so the default title lands in the same insert.
	var id int64
	if err := s.pool.QueryRow(ctx, `SELECT nextval(pg_get_serial_sequence('orders', 'id'))`).Scan(&id); err != nil {
		return err
	}
	created := *order
	created.ID = id
	created.fillTitle()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO orders (id, type, user_id, user_name, ticket_channel_id, title, details, status, budget, deadline, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		created.ID, created.Type, created.UserID, created.UserName, created.TicketChannelID, created.Title, created.Details,
		string(created.Status), created.Budget, created.Deadline, created.Notes, created.CreatedAt, created.UpdatedAt,
	)
	if err != nil {
		return err
	}
	*order = created
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]Order, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, order Order) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET type = $2, user_id = $3, user_name = $4, ticket_channel_id = $5, title = $6,
			details = $7, status = $8, budget = $9, deadline = $10, notes = $11, updated_at = $12
		WHERE id = $1`,
		order.ID, order.Type, order.UserID, order.UserName, order.TicketChannelID, order.Title,
		order.Details, string(order.Status), order.Budget, order.Deadline, order.Notes, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByChannel(ctx context.Context, channelID string) (Order, error) {
	if channelID == "" {
		return Order{}, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE ticket_channel_id = $1 ORDER BY id DESC LIMIT 1`, channelID)
	return scanOrder(row)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		order  Order
		status string
	)
	err := row.Scan(&order.ID, &order.Type, &order.UserID, &order.UserName, &order.TicketChannelID,
		&order.Title, &order.Details, &status, &order.Budget, &order.Deadline, &order.Notes,
		&order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	order.Status = Status(status)
	return order, nil
}
