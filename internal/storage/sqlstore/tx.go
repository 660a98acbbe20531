package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"reviewsync/internal/domain"
)

// unit is one transaction on one connection.
type unit struct {
	conn   *sqlx.Conn
	tx     *sqlx.Tx
	flavor sqlbuilder.Flavor
	log    zerolog.Logger

	done   bool
	closed bool
}

func (u *unit) UpsertBusiness(ctx context.Context, b domain.Business) (bool, error) {
	if b.PlaceID == "" {
		return false, domain.ErrMissingKey
	}
	cols, err := businessColumns(b)
	if err != nil {
		return false, fmt.Errorf("encode business: %w", err)
	}
	return u.upsert(ctx, businessesTable, businessKey, b.PlaceID, cols)
}

func (u *unit) UpsertReview(ctx context.Context, r domain.Review) (bool, error) {
	if r.ReviewID == "" {
		return false, domain.ErrMissingKey
	}
	cols, err := reviewColumns(r)
	if err != nil {
		return false, fmt.Errorf("encode review: %w", err)
	}
	return u.upsert(ctx, reviewsTable, reviewKey, r.ReviewID, cols)
}

// upsert runs lookup + UPDATE/INSERT inside a savepoint so a failing record
// leaves the surrounding transaction usable for the rest of the batch.
func (u *unit) upsert(ctx context.Context, table, keyCol, key string, cols columns) (bool, error) {
	if u.done {
		return false, fmt.Errorf("%w: already finished", domain.ErrTxAborted)
	}
	if _, err := u.tx.ExecContext(ctx, "SAVEPOINT "+recordSavepoint); err != nil {
		return false, fmt.Errorf("%w: savepoint: %v", domain.ErrTxAborted, err)
	}

	inserted, err := u.write(ctx, table, keyCol, key, cols)
	if err != nil {
		if ctx.Err() != nil {
			return false, fmt.Errorf("%w: %v", domain.ErrTxAborted, ctx.Err())
		}
		if _, rbErr := u.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+recordSavepoint); rbErr != nil {
			return false, fmt.Errorf("%w: rollback to savepoint: %v (after %v)", domain.ErrTxAborted, rbErr, err)
		}
		return false, err
	}

	if _, err := u.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+recordSavepoint); err != nil {
		return false, fmt.Errorf("%w: release savepoint: %v", domain.ErrTxAborted, err)
	}
	return inserted, nil
}

func (u *unit) write(ctx context.Context, table, keyCol, key string, cols columns) (bool, error) {
	exists, err := u.exists(ctx, table, keyCol, key)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", table, err)
	}

	if exists {
		ub := u.flavor.NewUpdateBuilder()
		ub.Update(table)
		assigns := make([]string, len(cols.names))
		for i, name := range cols.names {
			assigns[i] = ub.Assign(u.flavor.Quote(name), cols.vals[i])
		}
		ub.Set(assigns...).Where(ub.Equal(u.flavor.Quote(keyCol), key))
		q, args := ub.Build()
		if _, err := u.tx.ExecContext(ctx, q, args...); err != nil {
			return false, fmt.Errorf("update %s: %w", table, err)
		}
		return false, nil
	}

	ib := u.flavor.NewInsertBuilder()
	quoted := make([]string, len(cols.names))
	for i, name := range cols.names {
		quoted[i] = u.flavor.Quote(name)
	}
	ib.InsertInto(table).Cols(quoted...).Values(cols.vals...)
	q, args := ib.Build()
	if _, err := u.tx.ExecContext(ctx, q, args...); err != nil {
		return false, fmt.Errorf("insert %s: %w", table, err)
	}
	return true, nil
}

func (u *unit) exists(ctx context.Context, table, keyCol, key string) (bool, error) {
	sb := u.flavor.NewSelectBuilder()
	sb.Select("1").From(table).Where(sb.Equal(u.flavor.Quote(keyCol), key)).Limit(1)
	q, args := sb.Build()

	var one int
	err := u.tx.QueryRowxContext(ctx, q, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (u *unit) Commit() error {
	if u.done {
		return fmt.Errorf("%w: already finished", domain.ErrTxAborted)
	}
	u.done = true
	return u.tx.Commit()
}

func (u *unit) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	return u.tx.Rollback()
}

// Close rolls back an unfinished transaction and releases the connection.
func (u *unit) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	if err := u.Rollback(); err != nil {
		u.log.Warn().Err(err).Msg("rollback on close failed")
	}
	return u.conn.Close()
}
