package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var testHeader = []string{"name", "year", "month", "day", "type"}

func TestAppendCreatesFileWithHeader(t *testing.T) {
	store := NewFileStore(t.TempDir(), testHeader)

	if err := store.Append("kim", []string{"kim", "2023", "5", "1", "출근"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	rows, err := store.ReadAll("kim")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0][4] != "출근" {
		t.Errorf("type column = %q, want 출근", rows[0][4])
	}
}

func TestAppendDoesNotRepeatHeader(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, testHeader)

	for i := 0; i < 3; i++ {
		if err := store.Append("kim", []string{"kim", "2023", "5", "1", "출근"}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(dir, "kim.csv"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := 0
	for _, b := range raw {
		if b == '\n' {
			lines++
		}
	}
	if lines != 4 { // header + 3 rows
		t.Errorf("line count = %d, want 4", lines)
	}

	rows, err := store.ReadAll("kim")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("data rows = %d, want 3", len(rows))
	}
}

func TestReadAllMissingActor(t *testing.T) {
	store := NewFileStore(t.TempDir(), testHeader)

	_, err := store.ReadAll("nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReadAll() error = %v, want ErrNotFound", err)
	}
}

func TestRewriteSortedReplacesContents(t *testing.T) {
	store := NewFileStore(t.TempDir(), testHeader)

	_ = store.Append("lee", []string{"lee", "2023", "1", "10", "연차"})
	_ = store.Append("lee", []string{"lee", "2023", "1", "5", "반차(오전)"})

	sorted := [][]string{
		{"lee", "2023", "1", "5", "반차(오전)"},
		{"lee", "2023", "1", "10", "연차"},
	}
	if err := store.RewriteSorted("lee", sorted); err != nil {
		t.Fatalf("RewriteSorted() error = %v", err)
	}

	rows, err := store.ReadAll("lee")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][3] != "5" || rows[1][3] != "10" {
		t.Errorf("rows out of order: %v", rows)
	}
}

func TestAppendAfterRewriteKeepsSingleHeader(t *testing.T) {
	store := NewFileStore(t.TempDir(), testHeader)

	_ = store.Append("lee", []string{"lee", "2023", "1", "10", "연차"})
	if err := store.RewriteSorted("lee", [][]string{{"lee", "2023", "1", "10", "연차"}}); err != nil {
		t.Fatalf("RewriteSorted() error = %v", err)
	}
	if err := store.Append("lee", []string{"lee", "2023", "2", "1", "연차"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	rows, err := store.ReadAll("lee")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("rows = %d, want 2 (no duplicated header)", len(rows))
	}
}

func TestInvalidActorName(t *testing.T) {
	store := NewFileStore(t.TempDir(), testHeader)

	for _, actor := range []string{"", "../escape", "a/b"} {
		if err := store.Append(actor, []string{"x"}); err == nil {
			t.Errorf("Append(%q) expected error", actor)
		}
	}
}

func TestActors(t *testing.T) {
	store := NewFileStore(t.TempDir(), testHeader)

	_ = store.Append("kim", []string{"kim", "2023", "5", "1", "출근"})
	_ = store.Append("lee", []string{"lee", "2023", "5", "1", "출근"})

	actors, err := store.Actors()
	if err != nil {
		t.Fatalf("Actors() error = %v", err)
	}
	if len(actors) != 2 {
		t.Errorf("actors = %v, want 2 entries", actors)
	}
}
