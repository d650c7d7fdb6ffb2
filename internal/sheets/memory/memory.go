package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

var _ ports.LedgerWriter = (*Store)(nil)

// Store keeps mirrored tabs in memory.
type Store struct {
	mu     sync.Mutex
	tabs   map[string][][]string
	writes int
	err    error
}

func New() *Store {
	return &Store{tabs: map[string][][]string{}}
}

// WriteLedger replaces the user's tab.
func (s *Store) WriteLedger(ctx context.Context, userID string, txs []core.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tabs[ports.TabName(userID)] = ports.Rows(txs)
	s.writes++
	return nil
}

// Fail makes every following write return err; nil restores writes.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Tab returns a copy of the user's rows, header included.
func (s *Store) Tab(userID string) ([][]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tabs[ports.TabName(userID)]
	if !ok {
		return nil, false
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, true
}

// Tabs lists the mirrored tab names.
func (s *Store) Tabs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tabs))
	for name := range s.tabs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Writes counts successful writes.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// String renders a tab as pipe separated lines, for debugging.
func (s *Store) String(userID string) string {
	rows, _ := s.Tab(userID)
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = strings.Join(r, "|")
	}
	return strings.Join(lines, "\n")
}
