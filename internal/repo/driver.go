package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fellsidecars/backend/internal/domain"
)

// DriverRepo defines the persistence operations for the driver roster.
// The roster itself is administered outside this core; the scheduler only
// reads it, but Create and SetActive exist for seeding and admin tooling.
type DriverRepo interface {
	// Create inserts a new driver and returns the persisted record with the
	// DB-generated id.
	Create(ctx context.Context, driver domain.Driver) (domain.Driver, error)

	// GetByID retrieves a driver by id.
	// Returns domain.ErrNotFound if no driver with that ID exists.
	GetByID(ctx context.Context, id int64) (domain.Driver, error)

	// List returns all drivers ordered by id.
	List(ctx context.Context) ([]domain.Driver, error)

	// SetActive flips a driver's availability flag.
	// Returns domain.ErrNotFound if the driver does not exist.
	SetActive(ctx context.Context, id int64, active bool) error
}

// pgDriverRepo is the Postgres implementation of DriverRepo.
type pgDriverRepo struct {
	db db
}

// NewDriverRepo constructs a DriverRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewDriverRepo(db db) DriverRepo {
	return &pgDriverRepo{db: db}
}

func (r *pgDriverRepo) Create(ctx context.Context, driver domain.Driver) (domain.Driver, error) {
	const q = `
		INSERT INTO drivers (name, phone, is_active)
		VALUES (@name, @phone, @is_active)
		RETURNING id, name, phone, is_active, created_at`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"name":      driver.Name,
		"phone":     driver.Phone,
		"is_active": driver.IsActive,
	})
	result, err := scanDriver(row)
	if err != nil {
		return domain.Driver{}, fmt.Errorf("repo.DriverRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgDriverRepo) GetByID(ctx context.Context, id int64) (domain.Driver, error) {
	const q = `
		SELECT id, name, phone, is_active, created_at
		FROM drivers
		WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanDriver(row)
	if err != nil {
		return domain.Driver{}, fmt.Errorf("repo.DriverRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgDriverRepo) List(ctx context.Context) ([]domain.Driver, error) {
	const q = `
		SELECT id, name, phone, is_active, created_at
		FROM drivers
		ORDER BY id`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.DriverRepo.List: %w", err)
	}
	defer rows.Close()

	var drivers []domain.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.DriverRepo.List: scan: %w", err)
		}
		drivers = append(drivers, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.DriverRepo.List: rows: %w", err)
	}

	return drivers, nil
}

func (r *pgDriverRepo) SetActive(ctx context.Context, id int64, active bool) error {
	const q = `UPDATE drivers SET is_active = @active WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "active": active})
	if err != nil {
		return fmt.Errorf("repo.DriverRepo.SetActive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.DriverRepo.SetActive: %w", domain.ErrNotFound)
	}
	return nil
}

// scanDriver maps a single database row into a domain.Driver.
func scanDriver(s scanner) (domain.Driver, error) {
	var d domain.Driver
	err := s.Scan(&d.ID, &d.Name, &d.Phone, &d.IsActive, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Driver{}, domain.ErrNotFound
		}
		return domain.Driver{}, err
	}
	return d, nil
}
