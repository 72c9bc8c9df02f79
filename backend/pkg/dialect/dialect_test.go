package dialect

import (
	"io/fs"
	"strings"
	"testing"
)

func TestPlaceholder(t *testing.T) {
	t.Parallel()

	if got := SQLite.Placeholder(3); got != "?" {
		t.Errorf("SQLite.Placeholder(3) = %q, want ?", got)
	}

	if got := PostgreSQL.Placeholder(3); got != "$3" {
		t.Errorf("PostgreSQL.Placeholder(3) = %q, want $3", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	for _, d := range []Dialect{SQLite, PostgreSQL} {
		if err := d.Validate(); err != nil {
			t.Errorf("%s.Validate() error = %v", d, err)
		}
	}

	if err := Dialect("mysql").Validate(); err == nil {
		t.Error("Validate() for mysql error = nil")
	}
}

func TestMigrationsMatchAcrossDialects(t *testing.T) {
	t.Parallel()

	names := map[Dialect][]string{}

	for _, d := range []Dialect{SQLite, PostgreSQL} {
		entries, err := fs.ReadDir(d.MigrationFS(), "migrations")
		if err != nil {
			t.Fatalf("%s: ReadDir() error = %v", d, err)
		}

		if len(entries) == 0 {
			t.Fatalf("%s: no migrations embedded", d)
		}

		for _, e := range entries {
			body, err := fs.ReadFile(d.MigrationFS(), "migrations/"+e.Name())
			if err != nil {
				t.Fatalf("%s: ReadFile(%s) error = %v", d, e.Name(), err)
			}

			if !strings.Contains(string(body), "-- migrate:up") || !strings.Contains(string(body), "-- migrate:down") {
				t.Errorf("%s: %s lacks migrate:up/down sections", d, e.Name())
			}

			names[d] = append(names[d], e.Name())
		}
	}

	if strings.Join(names[SQLite], ",") != strings.Join(names[PostgreSQL], ",") {
		t.Errorf("migration files differ: sqlite %v, postgres %v", names[SQLite], names[PostgreSQL])
	}
}
