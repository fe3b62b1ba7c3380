package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"github.com/example/cario/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// Migrate applies a schema file, e.g. migrations/001_create_bookings.sql.
func (p *PostgresStore) Migrate(ctx context.Context, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("apply migration %s: %w", path, err)
	}
	return nil
}

func (p *PostgresStore) SaveBooking(ctx context.Context, b *models.Booking) error {
	driver, err := driverJSON(b.Driver)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO bookings(id, session_id, pickup, dropoff, service, vehicle, provider, vehicle_name, fare, eta_minutes, driver, status, created_at, updated_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		b.ID, b.SessionID, b.Request.Pickup, b.Request.Dropoff, b.Request.Service, b.Request.Vehicle, b.Provider, b.VehicleName, b.Fare, b.ETAMinutes, driver, b.Status, b.CreatedAt, b.UpdatedAt)
	return err
}

func (p *PostgresStore) UpdateBooking(ctx context.Context, b *models.Booking) error {
	driver, err := driverJSON(b.Driver)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE bookings SET driver=$1, status=$2, updated_at=$3 WHERE id=$4`, driver, b.Status, b.UpdatedAt, b.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (p *PostgresStore) ListBySession(ctx context.Context, sessionID string) ([]models.Booking, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, session_id, pickup, dropoff, service, vehicle, provider, vehicle_name, fare, eta_minutes, driver, status, created_at, updated_at FROM bookings WHERE session_id=$1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.Booking, 0)
	for rows.Next() {
		var b models.Booking
		var driver sql.NullString
		if err := rows.Scan(&b.ID, &b.SessionID, &b.Request.Pickup, &b.Request.Dropoff, &b.Request.Service, &b.Request.Vehicle,
			&b.Provider, &b.VehicleName, &b.Fare, &b.ETAMinutes, &driver, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		if driver.Valid && driver.String != "" {
			var d models.AssignedDriver
			if err := json.Unmarshal([]byte(driver.String), &d); err != nil {
				return nil, fmt.Errorf("decode driver for booking %s: %w", b.ID, err)
			}
			b.Driver = &d
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func driverJSON(d *models.AssignedDriver) (sql.NullString, error) {
	if d == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode driver: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
