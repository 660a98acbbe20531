//go:build integration

package sqlstore_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/rs/zerolog"

	"reviewsync/internal/domain"
	"reviewsync/internal/storage/sqlstore"
)

// migrationsDir defaults to the repo's MySQL migrations; MIGRATIONS_DIR overrides it.
func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "..", "migrations", "mysql")
}

func applyMigrations(t *testing.T, db *sqlx.DB) {
	t.Helper()
	dir := migrationsDir()

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sqlx.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=reviews",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/reviews?parseTime=true&multiStatements=true&charset=utf8mb4&loc=UTC",
		resource.GetPort("3306/tcp"))

	var db *sqlx.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sqlx.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

func TestStore_MySQL_UpsertAndRead(t *testing.T) {
	db := startMySQL(t)
	s := sqlstore.New(db, zerolog.Nop())
	ctx := context.Background()

	when := time.Date(2024, 3, 14, 9, 26, 53, 0, time.UTC)
	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	inserted, err := tx.UpsertBusiness(ctx, domain.Business{
		PlaceID:      "p1",
		Name:         pstr("Blue Cafe"),
		Phone:        pstr("+1 555"),
		Range:        pstr("$$"),
		Rating:       pfloat(4.5),
		About:        domain.Nested(`{"Service options":{"Takeout":true}}`),
		WorkingHours: domain.Hours{"Monday": {"9AM-5PM"}},
	})
	if err != nil || !inserted {
		t.Fatalf("UpsertBusiness: inserted=%v err=%v", inserted, err)
	}
	if _, err := tx.UpsertReview(ctx, domain.Review{
		ReviewID: "r1", BusinessPlaceID: "p1", AuthorTitle: pstr("Ana"), ReviewDatetimeUTC: &when,
	}); err != nil {
		t.Fatalf("UpsertReview: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	_ = tx.Close()

	// second pass omits phone; it must survive
	tx, err = s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	inserted, err = tx.UpsertBusiness(ctx, domain.Business{PlaceID: "p1", Name: pstr("Blue Cafe & Bar")})
	if err != nil || inserted {
		t.Fatalf("second UpsertBusiness: inserted=%v err=%v", inserted, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	_ = tx.Close()

	bv, err := s.GetBusiness(ctx, "p1")
	if err != nil {
		t.Fatalf("GetBusiness: %v", err)
	}
	if bv.Name == nil || *bv.Name != "Blue Cafe & Bar" || bv.Phone == nil || *bv.Phone != "+1 555" {
		t.Fatalf("unexpected business view: %+v", bv)
	}

	page, err := s.ListReviews(ctx, "p1", 10)
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ReviewDatetimeUTC == nil || !page.Items[0].ReviewDatetimeUTC.Equal(when) {
		t.Fatalf("unexpected reviews: %+v", page.Items)
	}
}
