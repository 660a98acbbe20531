//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/rs/zerolog"

	server "reviewsync/internal/adapters/http_server"
	"reviewsync/internal/adapters/outscraper"
	"reviewsync/internal/app"
	"reviewsync/internal/domain"
	"reviewsync/internal/storage/sqlstore"
)

func applyMigrations(t *testing.T, db *sqlx.DB) {
	t.Helper()
	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = filepath.Join("..", "..", "migrations", "mysql")
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
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

// fakeOutscraper answers Pending on the first status check and Success after.
func fakeOutscraper(t *testing.T) *httptest.Server {
	t.Helper()
	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/maps/reviews-v3", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "req-" + r.URL.Query().Get("query"), "status": "Pending"})
	})
	mux.HandleFunc("/requests/req-p1", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < 2 {
			_, _ = w.Write([]byte(`{"id":"req-p1","status":"Pending"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"req-p1","status":"Success","data":[[{
			"place_id": "p1", "name": "Blue Cafe", "rating": 4.5, "phone": null,
			"working_hours": {"Monday": "9AM-5PM"},
			"reviews_data": [
				{"review_id": "r1", "author_title": "Ana", "review_rating": 5, "review_datetime_utc": "03/14/2024 09:26:53"},
				{"review_id": "r1", "author_title": "Ana", "review_rating": 4, "review_datetime_utc": "03/14/2024 09:26:53"},
				{"review_id": "r2", "author_title": "Bob", "review_datetime_utc": "garbage"}
			]
		}]]}`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

type noCache struct{}

func (noCache) Get(ctx context.Context, key string, dst any) (bool, error) { return false, nil }
func (noCache) Set(ctx context.Context, key string, v any, ttlSec int) error { return nil }
func (noCache) Del(ctx context.Context, keys ...string) error { return nil }

func TestPipeline_EndToEnd_MySQL(t *testing.T) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env:        []string{"MYSQL_ROOT_PASSWORD=root", "MYSQL_DATABASE=reviews"},
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

	store := sqlstore.New(db, zerolog.Nop())
	provider, err := outscraper.New(fakeOutscraper(t).URL, "test-key", 100)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	cfg := app.DefaultPollerConfig()
	cfg.PollInterval = 0
	poller := app.NewPoller(provider, app.NewBatchService(store, noCache{}, zerolog.Nop()), cfg, zerolog.Nop())

	ctx := context.Background()
	rep, err := poller.FetchAll(ctx, []string{"p1"}, 20)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if rep.Resolved != 1 || len(rep.Results) != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	res := rep.Results[0]
	if res.Status != domain.BatchSuccess || res.BusinessesInserted != 1 || res.ReviewsInserted != 2 {
		t.Fatalf("unexpected batch result: %+v", res)
	}

	srv := server.New(zerolog.Nop(), 0)
	srv.MountHandlers(&server.Handlers{Q: app.NewQueryService(store, noCache{}, 0), Log: zerolog.Nop()})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/businesses/p1/reviews?limit=10")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var page domain.ReviewsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].ReviewID != "r1" || page.Items[1].ReviewDatetimeUTC != nil {
		t.Fatalf("unexpected page: %+v", page.Items)
	}
	if page.Items[0].ReviewRating == nil || *page.Items[0].ReviewRating != 4 {
		t.Fatalf("duplicate review should have updated rating: %+v", page.Items[0])
	}
}
