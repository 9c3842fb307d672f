package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const maxRetries = 3

// isBusy reports whether err indicates an SQLite BUSY condition.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// exec runs a statement, retrying on SQLITE_BUSY with 100/200 ms backoff.
func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	for i := 0; i < maxRetries; i++ {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if !isBusy(err) || i == maxRetries-1 {
			return nil, err
		}
		if err := sleepCtx(ctx, time.Duration(100*(i+1))*time.Millisecond); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("exec: max retries exceeded")
}

// runTx executes fn inside a transaction with the same retry policy.
func (s *Store) runTx(ctx context.Context, fn func(*sql.Tx) error) error {
	for i := 0; i < maxRetries; i++ {
		err := s.txOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isBusy(err) || i == maxRetries-1 {
			return err
		}
		if err := sleepCtx(ctx, time.Duration(100*(i+1))*time.Millisecond); err != nil {
			return err
		}
	}
	return fmt.Errorf("tx: max retries exceeded")
}

func (s *Store) txOnce(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
