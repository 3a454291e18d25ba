package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"climate-api/pkg/logging"
	"climate-api/pkg/metrics"
)

// Session is a read-only transaction scoped to a single API request
type Session struct {
	tx *sqlx.Tx
	db *DB
}

// GetContext executes a query that returns a single row.
// Queries use '?' placeholders and are rebound for the active driver.
func (s *Session) GetContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	defer s.observe(ctx, queryType, s.startTimer(queryType))

	err := s.tx.GetContext(ctx, dest, s.tx.Rebind(query), args...)
	if err != nil && err != sql.ErrNoRows {
		s.db.metrics.RecordDBError("get_error")
		s.db.logger.Error(ctx, "[DB_GET_ERROR] Get query failed", logging.Fields{
			"query_type": queryType,
		}, err)
	}

	return err
}

// SelectContext executes a query that returns multiple rows
func (s *Session) SelectContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	defer s.observe(ctx, queryType, s.startTimer(queryType))

	if err := s.tx.SelectContext(ctx, dest, s.tx.Rebind(query), args...); err != nil {
		s.db.metrics.RecordDBError("select_error")
		s.db.logger.Error(ctx, "[DB_SELECT_ERROR] Select query failed", logging.Fields{
			"query_type": queryType,
		}, err)
		return err
	}

	return nil
}

// Close releases the session. Nothing is ever written, so the
// transaction is always rolled back.
func (s *Session) Close() error {
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.db.metrics.RecordDBError("transaction_rollback_error")
		return err
	}
	return nil
}

func (s *Session) startTimer(queryType string) *metrics.Timer {
	return s.db.metrics.NewTimer(s.db.metrics.DBQueryDuration.WithLabelValues(queryType))
}

func (s *Session) observe(ctx context.Context, queryType string, timer *metrics.Timer) {
	duration := timer.ObserveDuration()

	s.db.logger.Debug(ctx, "[DB_QUERY] Query executed", logging.Fields{
		"query_type":  queryType,
		"duration_ms": duration.Milliseconds(),
	})
}
