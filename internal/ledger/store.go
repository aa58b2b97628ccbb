package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound means no ledger file exists for the actor. Callers treat it
// as "no history", not as a fatal condition.
var ErrNotFound = errors.New("ledger not found")

// Store is an append-only, per-actor record file abstraction.
type Store interface {
	// Append adds one row to the actor's ledger, creating the file with a
	// header row if it does not exist yet. A normal append never truncates.
	Append(actor string, row []string) error

	// ReadAll returns every data row of the actor's ledger in file order,
	// header excluded. Returns ErrNotFound if the actor has no file.
	ReadAll(actor string) ([][]string, error)

	// RewriteSorted atomically replaces the actor's ledger with a header
	// plus the given rows. Used only by the leave resort pass.
	RewriteSorted(actor string, rows [][]string) error
}

// FileStore keeps one CSV file per actor under a single directory. Each
// actor owns exactly one file, so a per-actor mutex is enough: appends
// queue behind a concurrent rewrite instead of racing it.
type FileStore struct {
	dir    string
	header []string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewFileStore(dir string, header []string) *FileStore {
	return &FileStore{
		dir:    dir,
		header: header,
		locks:  map[string]*sync.Mutex{},
	}
}

func (s *FileStore) Append(actor string, row []string) error {
	lock := s.actorLock(actor)
	lock.Lock()
	defer lock.Unlock()

	path, err := s.path(actor)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(s.header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	return w.Error()
}

func (s *FileStore) ReadAll(actor string) ([][]string, error) {
	lock := s.actorLock(actor)
	lock.Lock()
	defer lock.Unlock()

	path, err := s.path(actor)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(all) > 0 && isHeader(all[0], s.header) {
		all = all[1:]
	}
	return all, nil
}

func (s *FileStore) RewriteSorted(actor string, rows [][]string) error {
	lock := s.actorLock(actor)
	lock.Lock()
	defer lock.Unlock()

	path, err := s.path(actor)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, actor+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()

	w := csv.NewWriter(tmp)
	writeErr := w.Write(s.header)
	for _, row := range rows {
		if writeErr != nil {
			break
		}
		writeErr = w.Write(row)
	}
	if writeErr == nil {
		w.Flush()
		writeErr = w.Error()
	}
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write sorted ledger: %w", writeErr)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// Actors lists every actor that currently has a ledger file.
func (s *FileStore) Actors() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger dir: %w", err)
	}
	var actors []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		actors = append(actors, strings.TrimSuffix(name, ".csv"))
	}
	return actors, nil
}

func (s *FileStore) actorLock(actor string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[actor]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[actor] = lock
	}
	return lock
}

func (s *FileStore) path(actor string) (string, error) {
	if actor == "" || actor != filepath.Base(actor) || strings.ContainsAny(actor, `/\`) {
		return "", fmt.Errorf("invalid actor name %q", actor)
	}
	return filepath.Join(s.dir, actor+".csv"), nil
}

func isHeader(row, header []string) bool {
	if len(row) != len(header) {
		return false
	}
	for i := range row {
		if row[i] != header[i] {
			return false
		}
	}
	return true
}
