//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"fitidea/internal/domain"
	mysqlrepo "fitidea/internal/storage/mysql"
)

// ---------- small helpers ----------
func pstr(s string) *string     { return &s }
func pint(i int) *int           { return &i }
func pfloat(f float64) *float64 { return &f }

func migrationsDir(t *testing.T) string {
	t.Helper()
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir(t)

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

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	// Start isolated MySQL; let Docker pick a free host port.
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not reachable: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=fitidea",
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
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "fitidea")

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
	return db
}

// ---------- the test ----------
func TestRepo_MySQL_GymsAndProducts(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()
	synced := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	open := true

	// Arrange
	g := domain.Listing{
		Kind:         domain.KindGym,
		Source:       "fitnesspark",
		URL:          "https://www.fitnesspark.fr/club/bercy",
		Name:         pstr("Fitness Park Bercy"),
		Brand:        pstr("fitnesspark"),
		City:         pstr("Paris"),
		Country:      pstr("France"),
		Lat:          pfloat(48.83),
		Lon:          pfloat(2.38),
		OpeningHours: map[string]string{"Lundi": "06:00-23:00"},
		Equipment:    []string{"Cardio", "Sauna"},
		Photos:       []string{"https://www.fitnesspark.fr/img/a.jpg"},
		Opened247:    &open,
		LastSynced:   &synced,
	}
	ge, err := repo.Insert(ctx, g)
	if err != nil {
		t.Fatalf("Insert gym: %v", err)
	}
	if ge.ID == 0 || ge.CreatedAt.IsZero() {
		t.Fatalf("unexpected entity: %+v", ge)
	}

	// duplicate URL is reported as ErrDuplicate
	if _, err := repo.Insert(ctx, g); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Update
	ge.Phone = pstr("01 00 00 00 00")
	if err := repo.Update(ctx, ge); err != nil {
		t.Fatalf("Update gym: %v", err)
	}

	// Assert
	got, err := repo.FindByURL(ctx, domain.KindGym, g.URL)
	if err != nil {
		t.Fatalf("FindByURL: %v", err)
	}
	if got.ID != ge.ID || got.Name == nil || *got.Name != "Fitness Park Bercy" || got.Phone == nil {
		t.Fatalf("unexpected gym: %+v", got)
	}
	if got.OpeningHours["Lundi"] != "06:00-23:00" || len(got.Equipment) != 2 || got.Opened247 == nil || !*got.Opened247 {
		t.Fatalf("json/bool columns not round-tripped: %+v", got.Listing)
	}
	if got.LastSynced == nil || !got.LastSynced.Equal(synced) {
		t.Fatalf("last synced = %v", got.LastSynced)
	}

	// URL matching is exact: a case variant is another item
	upper := domain.Listing{Kind: domain.KindGym, Source: "fitnesspark", URL: "https://www.fitnesspark.fr/club/BERCY", Name: pstr("Fitness Park Bercy")}
	ue, err := repo.Insert(ctx, upper)
	if err != nil {
		t.Fatalf("Insert case-variant URL: %v", err)
	}
	if ue.ID == ge.ID {
		t.Fatalf("case-variant URL merged into %d", ge.ID)
	}
	if got, err := repo.FindByURL(ctx, domain.KindGym, "https://www.fitnesspark.fr/club/BERCY"); err != nil || got.ID != ue.ID {
		t.Fatalf("FindByURL upper = %+v, %v", got.Listing, err)
	}

	// natural key without URL
	nk := domain.Listing{Kind: domain.KindGym, Source: "keepcool", Name: pstr("KeepCool Vieux-Port"), Brand: pstr("keepcool"), City: pstr("Marseille")}
	if _, err := repo.Insert(ctx, nk); err != nil {
		t.Fatalf("Insert natural key gym: %v", err)
	}
	if _, err := repo.FindByNaturalKey(ctx, domain.KindGym, "KeepCool Vieux-Port", "keepcool", "Marseille"); err != nil {
		t.Fatalf("FindByNaturalKey: %v", err)
	}
	if _, err := repo.FindByNaturalKey(ctx, domain.KindGym, "KeepCool Vieux-Port", "keepcool", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other city, got %v", err)
	}
	if _, err := repo.FindByNaturalKey(ctx, domain.KindGym, "keepcool vieux-port", "keepcool", "marseille"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("natural key must be case-sensitive, got %v", err)
	}

	// products
	p := domain.Listing{
		Kind:        domain.KindProduct,
		Source:      "myprotein",
		URL:         "https://fr.myprotein.com/p/whey",
		Name:        pstr("Impact Whey"),
		Brand:       pstr("MyProtein"),
		Price:       pfloat(29.99),
		ReviewCount: pint(1234),
		Images:      []string{"https://cdn.example/main.jpg"},
	}
	pe, err := repo.Insert(ctx, p)
	if err != nil {
		t.Fatalf("Insert product: %v", err)
	}
	pg, err := repo.GetByID(ctx, domain.KindProduct, pe.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if pg.Price == nil || *pg.Price != 29.99 || pg.ReviewCount == nil || *pg.ReviewCount != 1234 || len(pg.Images) != 1 {
		t.Fatalf("unexpected product: %+v", pg.Listing)
	}

	// URLs longer than any index prefix still insert and match
	long := "https://www.amazon.fr/dp/B0LONG?" + strings.Repeat("ref=sr_1_1&", 150)
	le, err := repo.Insert(ctx, domain.Listing{Kind: domain.KindProduct, Source: "amazon", URL: long, Name: pstr("Shaker")})
	if err != nil {
		t.Fatalf("Insert long URL: %v", err)
	}
	if got, err := repo.FindByURL(ctx, domain.KindProduct, long); err != nil || got.ID != le.ID {
		t.Fatalf("FindByURL long = %v, %v", got.ID, err)
	}

	if n, _ := repo.Count(ctx, domain.KindGym); n != 3 {
		t.Fatalf("gym count = %d", n)
	}
	if n, _ := repo.Count(ctx, domain.KindProduct); n != 2 {
		t.Fatalf("product count = %d", n)
	}
	if _, err := repo.GetByID(ctx, domain.KindProduct, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
