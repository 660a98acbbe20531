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

type Store struct {
	db     *sqlx.DB
	flavor sqlbuilder.Flavor
	log    zerolog.Logger
}

// Open connects with the given database/sql driver ("pgx", "mysql" or
// "sqlite") and verifies the server is reachable. Idle connections are not
// kept, so every batch gets a fresh connection that is closed afterwards.
func Open(ctx context.Context, driver, dsn string, logger zerolog.Logger) (*Store, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxIdleConns(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return New(db, logger), nil
}

func New(db *sqlx.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		flavor: flavorFor(db.DriverName()),
		log:    logger.With().Str("component", "sqlstore").Logger(),
	}
}

func flavorFor(driver string) sqlbuilder.Flavor {
	switch driver {
	case "mysql":
		return sqlbuilder.MySQL
	case "sqlite", "sqlite3":
		return sqlbuilder.SQLite
	default:
		return sqlbuilder.PostgreSQL
	}
}

func (s *Store) Close() error { return s.db.Close() }

// Begin acquires a dedicated connection and opens one transaction on it.
func (s *Store) Begin(ctx context.Context) (domain.Tx, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &unit{conn: conn, tx: tx, flavor: s.flavor, log: s.log}, nil
}

/********** read paths **********/

func (s *Store) GetBusiness(ctx context.Context, placeID string) (domain.BusinessView, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select(s.quoted(businessViewCols)...).
		From(businessesTable).
		Where(sb.Equal(businessKey, placeID)).
		Limit(1)
	q, args := sb.Build()

	var bv domain.BusinessView
	if err := s.db.GetContext(ctx, &bv, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BusinessView{}, domain.ErrNotFound
		}
		return domain.BusinessView{}, err
	}
	return bv, nil
}

// ListReviews returns the newest reviews of one business first; undated
// reviews go last on every engine.
func (s *Store) ListReviews(ctx context.Context, placeID string, limit int) (domain.ReviewsPage, error) {
	sb := s.flavor.NewSelectBuilder()
	sb.Select(s.quoted(reviewViewCols)...).
		From(reviewsTable).
		Where(sb.Equal("business_place_id", placeID)).
		OrderBy("review_datetime_utc IS NULL", "review_datetime_utc DESC", "review_id DESC").
		Limit(limit)
	q, args := sb.Build()

	items := []domain.ReviewView{}
	if err := s.db.SelectContext(ctx, &items, q, args...); err != nil {
		return domain.ReviewsPage{}, err
	}
	return domain.ReviewsPage{Items: items}, nil
}

func (s *Store) ActiveSubscriptionPlaceIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, activeSubscriptionsSQL); err != nil {
		return nil, fmt.Errorf("active subscriptions: %w", err)
	}
	return ids, nil
}

func (s *Store) quoted(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = s.flavor.Quote(c)
	}
	return out
}
