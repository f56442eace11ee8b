package dish

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository keeps each profile record as a JSONB row in
// dish_profiles (see internal/db for the schema).
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// --------------------------------------------------
// Load one profile
// --------------------------------------------------
func (r *PostgresRepository) Get(ctx context.Context, dishID string) (*Profile, error) {
	var data []byte

	err := r.db.QueryRow(ctx, `
		SELECT record
		FROM dish_profiles
		WHERE dish_id = $1
	`, dishID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return decodeProfile(data)
}

// --------------------------------------------------
// Upsert (full overwrite)
// --------------------------------------------------
func (r *PostgresRepository) Save(ctx context.Context, p *Profile) error {
	data, err := encodeProfile(p)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO dish_profiles (dish_id, schema_version, record, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (dish_id) DO UPDATE
		SET schema_version = EXCLUDED.schema_version,
		    record = EXCLUDED.record,
		    updated_at = EXCLUDED.updated_at
	`, p.DishID, SchemaVersion, data, p.UpdatedAt)

	return err
}

func (r *PostgresRepository) Delete(ctx context.Context, dishID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM dish_profiles WHERE dish_id = $1`, dishID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --------------------------------------------------
// List all profiles, skipping unreadable rows
// --------------------------------------------------
func (r *PostgresRepository) List(ctx context.Context) ([]*Profile, error) {
	rows, err := r.db.Query(ctx, `
		SELECT dish_id, record
		FROM dish_profiles
		ORDER BY dish_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*Profile

	for rows.Next() {
		var (
			dishID string
			data   []byte
		)
		if err := rows.Scan(&dishID, &data); err != nil {
			return nil, err
		}

		p, err := decodeProfile(data)
		if err != nil {
			slog.Warn("skipping unreadable dish profile", "dish_id", dishID, "error", err)
			continue
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}
