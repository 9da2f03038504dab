package database

import (
	"fmt"
	"time"

	"github.com/wealthwatch/portfolio-service/internal/models"
)

// UpsertDailyClose records the close price for a symbol on a day, replacing
// any earlier observation for the same day.
func (db *DB) UpsertDailyClose(c *models.DailyClose) error {
	query := `
		INSERT INTO daily_closes (symbol, date, close, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol, date) DO UPDATE SET
			close = EXCLUDED.close
		RETURNING id
	`
	day := c.Date.Truncate(24 * time.Hour)
	err := db.conn.QueryRow(query, c.Symbol, day, c.Close, time.Now()).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert daily close: %w", err)
	}
	c.Date = day
	return nil
}

// GetDailyCloseRange retrieves close prices for a symbol within a date range,
// oldest first.
func (db *DB) GetDailyCloseRange(symbol string, start, end time.Time) ([]*models.DailyClose, error) {
	query := `
		SELECT id, symbol, date, close, created_at
		FROM daily_closes
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	rows, err := db.conn.Query(query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily close range: %w", err)
	}
	defer rows.Close()

	var closes []*models.DailyClose
	for rows.Next() {
		var c models.DailyClose
		if err := rows.Scan(&c.ID, &c.Symbol, &c.Date, &c.Close, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan daily close: %w", err)
		}
		closes = append(closes, &c)
	}
	return closes, rows.Err()
}

// GetLatestCloseOnOrBefore retrieves the most recent close for a symbol at or
// before the given date. Returns nil with no error when none exists yet.
func (db *DB) GetLatestCloseOnOrBefore(symbol string, date time.Time) (*models.DailyClose, error) {
	query := `
		SELECT id, symbol, date, close, created_at
		FROM daily_closes
		WHERE symbol = $1 AND date <= $2
		ORDER BY date DESC
		LIMIT 1
	`
	rows, err := db.conn.Query(query, symbol, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest close: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var c models.DailyClose
	if err := rows.Scan(&c.ID, &c.Symbol, &c.Date, &c.Close, &c.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan daily close: %w", err)
	}
	return &c, nil
}
