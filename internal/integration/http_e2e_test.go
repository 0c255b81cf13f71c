//go:build integration

package integration

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"

	server "property_reviews/internal/adapters/http_server"
	redisad "property_reviews/internal/adapters/redis"
	"property_reviews/internal/app"
	mysqlrepo "property_reviews/internal/storage/mysql"
)

// demo property seeded by migrations/002_seed_demo_property.sql
const demoPropertyID = "11111111-1111-4111-8111-111111111111"

// ---------- helpers ----------

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = filepath.Join("..", "..", "migrations")
	}
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
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

type reviewJSON struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type submitJSON struct {
	Message string     `json:"message"`
	Status  string     `json:"status"`
	Review  reviewJSON `json:"review"`
}

type top5JSON struct {
	PropertyID  string       `json:"property_id"`
	Name        string       `json:"name"`
	Top5Reviews []reviewJSON `json:"top_5_reviews"`
}

func submit(t *testing.T, base, user, body string, rating int) (int, submitJSON) {
	t.Helper()
	payload, _ := json.Marshal(map[string]any{
		"property_id":    demoPropertyID,
		"user_name":      user,
		"overall_rating": rating,
		"structured":     map[string]int{},
		"body":           body,
	})
	res, err := http.Post(base+"/api/reviews", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer res.Body.Close()
	var out submitJSON
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out
}

func getTop5(t *testing.T, base string) top5JSON {
	t.Helper()
	res, err := http.Get(base + "/api/properties/" + demoPropertyID + "/top5")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("top5 status %d", res.StatusCode)
	}
	var out top5JSON
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

// ---------- the test ----------

func TestHTTP_EndToEnd_ReviewLifecycle(t *testing.T) {
	// Start isolated MySQL container
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=reviews",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4&loc=UTC",
		"root", hostPort, "reviews")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)

	// Real wiring, with miniredis standing in for Redis
	mr := miniredis.RunT(t)
	cache := redisad.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "e2e:")
	repo := mysqlrepo.New(db)
	mod := app.NewModerationService(repo, app.NewFraudGate(app.DefaultFraudPolicy()), cache, time.Minute)
	q := app.NewQueryService(repo, cache, time.Minute)

	srv := server.New(10 * time.Second)
	srv.MountHandlers(&server.Handlers{M: mod, Q: q})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	// invalid rating -> 400
	if code, _ := submit(t, ts.URL, "Shruti", "This is a valid length body.", 10); code != http.StatusBadRequest {
		t.Fatalf("invalid rating: status %d", code)
	}

	// short body -> held
	code, held := submit(t, ts.URL, "Shruti", "Too short", 4)
	if code != http.StatusOK || held.Status != "pending" || held.Message != "held for moderation" {
		t.Fatalf("short body: %d %+v", code, held)
	}

	// warm the read cache with the empty top5
	if got := getTop5(t, ts.URL); len(got.Top5Reviews) != 0 || got.Name != "Demo Property" {
		t.Fatalf("expected empty demo top5, got %+v", got)
	}

	// publishing the held review must be visible through the cached read path
	res, err := http.Post(ts.URL+"/api/reviews/"+held.Review.ID+"/publish", "application/json", nil)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("publish status %d", res.StatusCode)
	}
	if got := getTop5(t, ts.URL); len(got.Top5Reviews) != 1 || got.Top5Reviews[0].ID != held.Review.ID {
		t.Fatalf("stale top5 after publish: %+v", got)
	}

	// six distinct authors, each auto-published
	var ids []string
	for i := 0; i < 6; i++ {
		code, out := submit(t, ts.URL, fmt.Sprintf("User%d", i), fmt.Sprintf("Excellent stay and friendly staff %d", i), 5)
		if code != http.StatusCreated || out.Status != "published" {
			t.Fatalf("submit %d: %d %+v", i, code, out)
		}
		ids = append(ids, out.Review.ID)
	}
	got := getTop5(t, ts.URL)
	if len(got.Top5Reviews) != 5 {
		t.Fatalf("expected 5, got %d", len(got.Top5Reviews))
	}
	for i, r := range got.Top5Reviews {
		if r.ID != ids[5-i] {
			t.Fatalf("top5[%d]=%s want %s", i, r.ID, ids[5-i])
		}
	}

	// unknown review -> 404
	res, err = http.Post(ts.URL+"/api/reviews/99999999-9999-4999-8999-999999999999/publish", "application/json", nil)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown review: status %d", res.StatusCode)
	}
}
