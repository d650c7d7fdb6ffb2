package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

type user struct {
	id    string
	email string
	hash  []byte
}

type walletRow struct {
	core.Wallet
	seq int64
}

type txRow struct {
	core.Transaction
	seq int64
}

// Store is an in-process backend. Deleting a wallet removes its
// transactions, mirroring the foreign keys of the SQL backends.
type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	seq     int64
	users   map[string]*user // by lower-cased email
	cats    []core.Category
	wallets map[string]*walletRow
	txs     map[string]*txRow
	chat    []core.ChatMessage
	resets  []string
}

var _ store.Store = (*Store)(nil)

func New(cats []core.Category) *Store {
	return &Store{
		now:     time.Now,
		users:   map[string]*user{},
		cats:    dedupe(cats),
		wallets: map[string]*walletRow{},
		txs:     map[string]*txRow{},
	}
}

// NewFromFiles seeds categories from base/seed_categories.txt, one
// "type:name[:color[:icon]]" entry per line. Missing or empty files fall back
// to the shared defaults.
func NewFromFiles(base string) *Store {
	var cats []core.Category
	for _, line := range readLines(filepath.Join(base, "seed_categories.txt")) {
		parts := strings.Split(line, ":")
		if len(parts) < 2 {
			continue
		}
		c := core.Category{
			Type:  core.TransactionType(strings.TrimSpace(parts[0])),
			Name:  strings.TrimSpace(parts[1]),
			Color: "#64748b",
		}
		if !c.Type.Valid() || c.Name == "" {
			continue
		}
		if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
			c.Color = strings.TrimSpace(parts[2])
		}
		if len(parts) > 3 {
			c.Icon = strings.TrimSpace(parts[3])
		}
		c.ID = "cat-" + strings.ToLower(strings.ReplaceAll(c.Name, " ", "-"))
		cats = append(cats, c)
	}
	if len(cats) == 0 {
		cats = store.DefaultCategories()
	}
	return New(cats)
}

// WithClock replaces the creation timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

func (s *Store) ListWallets(_ context.Context, id core.Identity) ([]core.Wallet, error) {
	if id.IsZero() {
		return nil, store.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]*walletRow, 0, len(s.wallets))
	for _, w := range s.wallets {
		if w.UserID == id.UserID {
			rows = append(rows, w)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].seq < rows[j].seq
	})
	out := make([]core.Wallet, len(rows))
	for i, r := range rows {
		out[i] = r.Wallet
	}
	return out, nil
}

func (s *Store) CreateWallet(_ context.Context, id core.Identity, w core.Wallet) (core.Wallet, error) {
	if id.IsZero() {
		return core.Wallet{}, store.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w.ID = uuid.NewString()
	w.UserID = id.UserID
	w.CreatedAt = s.now()
	s.wallets[w.ID] = &walletRow{Wallet: w, seq: s.next()}
	return w, nil
}

func (s *Store) UpdateWallet(_ context.Context, id core.Identity, w core.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.wallets[w.ID]
	if !ok || row.UserID != id.UserID {
		return fmt.Errorf("wallet %s: %w", w.ID, store.ErrNotFound)
	}
	row.Name = w.Name
	row.Balance = w.Balance
	row.Type = w.Type
	row.Color = w.Color
	row.Currency = w.Currency
	return nil
}

func (s *Store) DeleteWallet(_ context.Context, id core.Identity, walletID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.wallets[walletID]
	if !ok || row.UserID != id.UserID {
		return fmt.Errorf("wallet %s: %w", walletID, store.ErrNotFound)
	}
	delete(s.wallets, walletID)
	for txID, tx := range s.txs {
		if tx.WalletID == walletID {
			delete(s.txs, txID)
		}
	}
	return nil
}

func (s *Store) ListTransactions(_ context.Context, id core.Identity, q store.TransactionQuery) ([]core.Transaction, error) {
	if id.IsZero() {
		return nil, store.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]*txRow, 0, len(s.txs))
	for _, tx := range s.txs {
		if tx.UserID == id.UserID {
			rows = append(rows, tx)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date.Time) {
			if q.Ascending {
				return a.Date.Before(b.Date.Time)
			}
			return a.Date.After(b.Date.Time)
		}
		if q.Ascending {
			return a.seq < b.seq
		}
		return a.seq > b.seq
	})
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	out := make([]core.Transaction, len(rows))
	for i, r := range rows {
		out[i] = s.joined(r.Transaction)
	}
	return out, nil
}

func (s *Store) joined(tx core.Transaction) core.Transaction {
	if w, ok := s.wallets[tx.WalletID]; ok {
		tx.Wallet = &core.WalletRef{Name: w.Name, Color: w.Color, Currency: w.Currency}
	}
	if tx.CategoryID != "" {
		if c, ok := s.category(tx.CategoryID); ok {
			tx.Category = &c
		}
	}
	return tx
}

func (s *Store) category(id string) (core.Category, bool) {
	for _, c := range s.cats {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

// checkRefs enforces the referential rules a relational store would.
func (s *Store) checkRefs(id core.Identity, tx core.Transaction) error {
	w, ok := s.wallets[tx.WalletID]
	if !ok || w.UserID != id.UserID {
		return fmt.Errorf("wallet %s: %w", tx.WalletID, store.ErrNotFound)
	}
	if tx.CategoryID != "" {
		c, ok := s.category(tx.CategoryID)
		if !ok || (c.UserID != "" && c.UserID != id.UserID) {
			return fmt.Errorf("category %s: %w", tx.CategoryID, store.ErrNotFound)
		}
	}
	return nil
}

func (s *Store) CreateTransaction(_ context.Context, id core.Identity, tx core.Transaction) (core.Transaction, error) {
	if id.IsZero() {
		return core.Transaction{}, store.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRefs(id, tx); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = uuid.NewString()
	tx.UserID = id.UserID
	tx.CreatedAt = s.now()
	tx.Wallet, tx.Category = nil, nil
	s.txs[tx.ID] = &txRow{Transaction: tx, seq: s.next()}
	return s.joined(tx), nil
}

func (s *Store) UpdateTransaction(_ context.Context, id core.Identity, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.txs[tx.ID]
	if !ok || row.UserID != id.UserID {
		return fmt.Errorf("transaction %s: %w", tx.ID, store.ErrNotFound)
	}
	if err := s.checkRefs(id, tx); err != nil {
		return err
	}
	row.Type = tx.Type
	row.Amount = tx.Amount
	row.Description = tx.Description
	row.Date = tx.Date
	row.WalletID = tx.WalletID
	row.CategoryID = tx.CategoryID
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id core.Identity, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.txs[txID]
	if !ok || row.UserID != id.UserID {
		return fmt.Errorf("transaction %s: %w", txID, store.ErrNotFound)
	}
	delete(s.txs, txID)
	return nil
}

// ListCategories returns shared and user categories, expense first then by name.
func (s *Store) ListCategories(_ context.Context, id core.Identity) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.cats))
	for _, c := range s.cats {
		if c.UserID == "" || c.UserID == id.UserID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type == core.Expense
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) AppendChat(_ context.Context, id core.Identity, m core.ChatMessage) error {
	if id.IsZero() {
		return store.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.NewString()
	m.UserID = id.UserID
	m.CreatedAt = s.now()
	s.chat = append(s.chat, m)
	return nil
}

// ListChat returns the newest limit messages in chronological order.
func (s *Store) ListChat(_ context.Context, id core.Identity, limit int) ([]core.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.ChatMessage
	for _, m := range s.chat {
		if m.UserID == id.UserID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Store) SignUp(_ context.Context, email, password string) (core.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return core.Identity{}, fmt.Errorf("hash password: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return core.Identity{}, store.ErrEmailTaken
	}
	u := &user{id: uuid.NewString(), email: email, hash: hash}
	s.users[email] = u
	return core.Identity{UserID: u.id, Email: u.email}, nil
}

func (s *Store) SignIn(_ context.Context, email, password string) (core.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	u, ok := s.users[email]
	s.mu.Unlock()
	if !ok {
		return core.Identity{}, store.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(password)); err != nil {
		return core.Identity{}, store.ErrInvalidCredentials
	}
	return core.Identity{UserID: u.id, Email: u.email}, nil
}

func (s *Store) RequestPasswordReset(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets = append(s.resets, strings.ToLower(strings.TrimSpace(email)))
	return nil
}

func (s *Store) UpdatePassword(_ context.Context, id core.Identity, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.id == id.UserID {
			u.hash = hash
			return nil
		}
	}
	return fmt.Errorf("user %s: %w", id.UserID, store.ErrNotFound)
}

func (s *Store) SignOut(context.Context, core.Identity) error { return nil }

// ResetRequests returns the emails that asked for a password reset.
func (s *Store) ResetRequests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.resets...)
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func dedupe(in []core.Category) []core.Category {
	seen := map[string]struct{}{}
	out := make([]core.Category, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// ListAllTransactions returns a user's transactions oldest first without a session.
func (s *Store) ListAllTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	return s.ListTransactions(ctx, core.Identity{UserID: userID}, store.TransactionQuery{Ascending: true})
}

func (s *Store) ListUserIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.id)
	}
	sort.Strings(out)
	return out, nil
}
