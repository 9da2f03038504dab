package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wealthwatch/portfolio-service/internal/models"
)

const positionColumns = `id, holder_id, ticker, quantity, buy_price, buy_date, sell_price, sell_date, created_at, updated_at`

// CreatePosition inserts a new open position.
func (db *DB) CreatePosition(p *models.Position) error {
	query := `
		INSERT INTO positions (holder_id, ticker, quantity, buy_price, buy_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created_at, updated_at
	`
	now := time.Now()
	buyDate := p.BuyDate
	if buyDate.IsZero() {
		buyDate = now
	}

	err := db.conn.QueryRow(query,
		p.HolderID, strings.ToUpper(p.Ticker), p.Quantity, p.BuyPrice, buyDate, now,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create position: %w", err)
	}
	p.Ticker = strings.ToUpper(p.Ticker)
	p.BuyDate = buyDate
	return nil
}

// GetPositionByID retrieves a position by id.
func (db *DB) GetPositionByID(id int64) (*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = $1`
	p, err := scanPositionFrom(db.conn.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("position not found: %d", id)
	}
	return p, err
}

// ListPositionsByHolder retrieves a holder's positions filtered by status,
// most recently bought first.
func (db *DB) ListPositionsByHolder(holderID int64, status models.PositionStatus) ([]*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE holder_id = $1`
	switch status {
	case models.StatusOpen:
		query += ` AND sell_date IS NULL`
	case models.StatusClosed:
		query += ` AND sell_date IS NOT NULL`
	}
	query += ` ORDER BY buy_date DESC`

	rows, err := db.conn.Query(query, holderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		p, err := scanPositionFrom(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// UpdatePosition updates a position's terms. Quantity and buy price are always
// written; the sell price is only written for an already-closed position, and
// the sell date is never touched here so the open/closed state is preserved.
func (db *DB) UpdatePosition(p *models.Position) error {
	query := `
		UPDATE positions
		SET quantity = $1,
		    buy_price = $2,
		    sell_price = CASE WHEN sell_date IS NOT NULL THEN $3 ELSE sell_price END,
		    updated_at = $4
		WHERE id = $5
		RETURNING ` + positionColumns + `
	`
	var sellPrice interface{}
	if p.SellPrice != nil {
		sellPrice = p.SellPrice.String()
	}

	updated, err := scanPositionFrom(db.conn.QueryRow(query, p.Quantity, p.BuyPrice, sellPrice, time.Now(), p.ID))
	if err == sql.ErrNoRows {
		return fmt.Errorf("position not found: %d", p.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update position %d: %w", p.ID, err)
	}
	*p = *updated
	return nil
}

// ClosePosition sets the sell price and sell date together on an open
// position. Returns an error if the position is missing or already closed.
func (db *DB) ClosePosition(id int64, sellPrice decimal.Decimal, sellDate time.Time) (*models.Position, error) {
	query := `
		UPDATE positions
		SET sell_price = $1, sell_date = $2, updated_at = $3
		WHERE id = $4 AND sell_date IS NULL
		RETURNING ` + positionColumns + `
	`
	p, err := scanPositionFrom(db.conn.QueryRow(query, sellPrice, sellDate, time.Now(), id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("position %d not found or already closed", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to close position %d: %w", id, err)
	}
	return p, nil
}

// DeletePosition removes a position by id.
func (db *DB) DeletePosition(id int64) error {
	result, err := db.conn.Exec(`DELETE FROM positions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete position %d: %w", id, err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("position not found: %d", id)
	}
	return nil
}

// SnapshotOpenTickers returns, per holder, the distinct upper-cased tickers of
// that holder's currently open positions. Holders with no open positions are
// absent from the result.
func (db *DB) SnapshotOpenTickers() (map[int64][]string, error) {
	query := `
		SELECT DISTINCT holder_id, UPPER(ticker)
		FROM positions
		WHERE sell_date IS NULL
		ORDER BY holder_id, UPPER(ticker)
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot open tickers: %w", err)
	}
	defer rows.Close()

	snapshot := make(map[int64][]string)
	for rows.Next() {
		var holderID int64
		var ticker string
		if err := rows.Scan(&holderID, &ticker); err != nil {
			return nil, fmt.Errorf("failed to scan open ticker: %w", err)
		}
		snapshot[holderID] = append(snapshot[holderID], ticker)
	}
	return snapshot, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPositionFrom(s rowScanner) (*models.Position, error) {
	var p models.Position
	var sellPrice sql.NullString
	var sellDate sql.NullTime

	err := s.Scan(
		&p.ID, &p.HolderID, &p.Ticker, &p.Quantity, &p.BuyPrice, &p.BuyDate,
		&sellPrice, &sellDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan position: %w", err)
	}

	if sellPrice.Valid {
		sp, err := decimal.NewFromString(sellPrice.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sell price %q: %w", sellPrice.String, err)
		}
		p.SellPrice = &sp
	}
	if sellDate.Valid {
		p.SellDate = &sellDate.Time
	}
	return &p, nil
}
