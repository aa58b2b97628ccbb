package leave

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/yourorg/attendbot/internal/command"
	"github.com/yourorg/attendbot/internal/ledger"
)

// Store is the ledger access the maintainer needs: the plain per-actor
// operations plus directory listing for the administrative resort.
type Store interface {
	ledger.Store
	Actors() ([]string, error)
}

// Service maintains the per-actor leave ledgers: it applies new leave
// entries, answers balance queries, and keeps the files in date order via
// the resort pass.
type Service struct {
	store       Store
	logger      *slog.Logger
	resortDelay time.Duration
}

// NewService wires the maintainer. resortDelay spaces the resort pass away
// from the triggering write so rapid bursts settle before the rewrite.
func NewService(store Store, resortDelay time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, resortDelay: resortDelay}
}

// Apply validates and records one leave application. A date that already
// has an entry yields DuplicateEntryError and leaves the ledger untouched.
// On success a resort pass is scheduled after the configured delay.
func (s *Service) Apply(spec command.LeaveSpec) (Entry, error) {
	rows, err := s.store.ReadAll(spec.Actor)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return Entry{}, err
	}

	last := 0.0
	for _, row := range rows {
		e, ok := parseRow(row)
		if !ok {
			continue
		}
		if e.Year == spec.Year && e.Month == spec.Month && e.Day == spec.Day {
			return Entry{}, DuplicateEntryError{Year: e.Year, Month: e.Month, Day: e.Day, ExistingType: e.Type}
		}
		last = e.Used
	}

	leaveType := TypeFor(spec.Kind)
	entry := Entry{
		Name:  spec.Actor,
		Year:  spec.Year,
		Month: spec.Month,
		Day:   spec.Day,
		Type:  leaveType,
		Used:  last + Delta(leaveType),
	}
	if err := s.store.Append(spec.Actor, entry.Row()); err != nil {
		return Entry{}, err
	}
	s.logger.Info("leave recorded", "actor", spec.Actor, "type", leaveType, "balance", entry.Used)
	s.scheduleResort(spec.Actor)
	return entry, nil
}

func (s *Service) scheduleResort(actor string) {
	time.AfterFunc(s.resortDelay, func() {
		if err := s.Resort(actor); err != nil {
			s.logger.Error("resort pass failed", "actor", actor, "error", err)
		}
	})
}

// Resort reads the actor's whole ledger, sorts the entries by date, and
// re-derives every running balance from scratch before rewriting the file.
// Balances written in append order are corrected here; running the pass
// twice in a row is a no-op.
func (s *Service) Resort(actor string) error {
	rows, err := s.store.ReadAll(actor)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil
		}
		return err
	}

	var entries []Entry
	for _, row := range rows {
		if e, ok := parseRow(row); ok {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.Day < b.Day
	})

	balance := 0.0
	sorted := make([][]string, 0, len(entries))
	for _, e := range entries {
		balance += Delta(e.Type)
		e.Used = balance
		sorted = append(sorted, e.Row())
	}
	if err := s.store.RewriteSorted(actor, sorted); err != nil {
		return err
	}
	s.logger.Info("leave ledger resorted", "actor", actor, "entries", len(sorted))
	return nil
}

// ResortAll runs the resort pass over every actor that has a leave ledger.
// Triggered by the administrative sort command.
func (s *Service) ResortAll() error {
	actors, err := s.store.Actors()
	if err != nil {
		return err
	}
	for _, actor := range actors {
		if err := s.Resort(actor); err != nil {
			return fmt.Errorf("resort %s: %w", actor, err)
		}
	}
	return nil
}

// BalanceSummary is the answer to a leave-balance query.
type BalanceSummary struct {
	Total   float64
	Entries []Entry
}

// Balance reports the actor's final running balance together with every
// recorded entry. ledger.ErrNotFound passes through for callers to render
// as "no history".
func (s *Service) Balance(actor string) (BalanceSummary, error) {
	rows, err := s.store.ReadAll(actor)
	if err != nil {
		return BalanceSummary{}, err
	}
	var out BalanceSummary
	var latest Entry
	for _, row := range rows {
		e, ok := parseRow(row)
		if !ok {
			continue
		}
		out.Entries = append(out.Entries, e)
		if laterDate(e, latest) {
			latest = e
		}
	}
	out.Total = latest.Used
	return out, nil
}

func laterDate(a, b Entry) bool {
	if a.Year != b.Year {
		return a.Year > b.Year
	}
	if a.Month != b.Month {
		return a.Month > b.Month
	}
	return a.Day >= b.Day
}
