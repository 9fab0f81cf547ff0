package records

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/turnclock/internal/database"
)

// backends returns every Repository implementation that can run without
// external services.
func backends(t *testing.T) map[string]Repository {
	t.Helper()

	db, err := database.NewSQLite(database.MemorySQLite)
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return map[string]Repository{
		"sqlite": NewSQLRepository(db, DialectSQLite),
		"redis":  NewRedisRepository(rdb, "turnclock:test:"),
	}
}

func TestRepository_CRUD(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			recName := Name("main", KindConfiguration)

			got, err := repo.Get(ctx, recName)
			if err != nil || got != nil {
				t.Fatalf("Get(missing) = %v, %v; want nil, nil", got, err)
			}

			stamp := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
			err = repo.Upsert(ctx, Record{Name: recName, Entry: "Actions Per Day: 200\n", Description: "first", UpdatedAt: stamp})
			if err != nil {
				t.Fatalf("Upsert: %v", err)
			}
			got, err = repo.Get(ctx, recName)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Entry != "Actions Per Day: 200\n" || got.Description != "first" || !got.UpdatedAt.Equal(stamp) {
				t.Errorf("record = %+v", got)
			}

			if err := repo.Upsert(ctx, Record{Name: recName, Entry: "changed", Description: "second"}); err != nil {
				t.Fatalf("Upsert(replace): %v", err)
			}
			got, err = repo.Get(ctx, recName)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Entry != "changed" || got.Description != "second" {
				t.Errorf("record = %+v", got)
			}
			if !got.UpdatedAt.After(stamp) {
				t.Errorf("updated_at = %v, want it stamped with the current time", got.UpdatedAt)
			}

			if err := repo.Delete(ctx, recName); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if got, _ := repo.Get(ctx, recName); got != nil {
				t.Errorf("record still present after Delete")
			}
			if err := repo.Delete(ctx, recName); err != nil {
				t.Errorf("Delete(missing) = %v, want nil", err)
			}
		})
	}
}

func TestRepository_ListOrdersByName(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			names := []string{
				Name("zeta", KindCurrentTime),
				Name("alpha", KindEvents),
				Name("alpha", KindConfiguration),
			}
			for _, n := range names {
				if err := repo.Upsert(ctx, Record{Name: n, Entry: n}); err != nil {
					t.Fatalf("Upsert(%s): %v", n, err)
				}
			}

			list, err := repo.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			want := []string{"alpha/Calendar Configuration", "alpha/Calendar Events", "zeta/Current Time"}
			if len(list) != len(want) {
				t.Fatalf("List returned %d records, want %d", len(list), len(want))
			}
			for i, rec := range list {
				if rec.Name != want[i] || rec.Entry != want[i] {
					t.Errorf("List[%d] = %+v, want %s", i, rec, want[i])
				}
			}
		})
	}
}

func TestRedisRepository_Prefix(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	a := NewRedisRepository(rdb, "a:")
	b := NewRedisRepository(rdb, "b:")
	ctx := context.Background()

	if err := a.Upsert(ctx, Record{Name: "main/Current Time", Entry: "Day: 1"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got, _ := b.Get(ctx, "main/Current Time"); got != nil {
		t.Errorf("record leaked across prefixes")
	}
	if !mr.Exists("a:record:main/Current Time") || !mr.Exists("a:records") {
		t.Errorf("unexpected keys: %v", mr.Keys())
	}
}

func TestName(t *testing.T) {
	if got := Name("campaign-1", KindEvents); got != "campaign-1/Calendar Events" {
		t.Errorf("Name = %q", got)
	}
}
