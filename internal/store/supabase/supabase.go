// Package supabase is the hosted backend: PostgREST for data and GoTrue for
// authentication. Data calls run with the caller's access token so the
// database's row level security applies.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

const (
	restPath = "/rest/v1"

	transactionColumns = "*,wallet:wallets(name,color,currency),category:categories(id,user_id,name,type,color,icon)"
)

type Config struct {
	URL     string
	AnonKey string
	// ServiceKey bypasses row level security; only the mirror worker sets it.
	ServiceKey string
	Timeout    time.Duration
}

type Store struct {
	url        string
	anonKey    string
	serviceKey string
	auth       gotrue.Client
}

var (
	_ store.Store        = (*Store)(nil)
	_ store.LedgerSource = (*Store)(nil)
)

func New(cfg Config) (*Store, error) {
	client, err := supabase.NewClient(cfg.URL, cfg.AnonKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{
		url:        strings.TrimRight(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		auth:       client.Auth.WithClient(http.Client{Timeout: timeout}),
	}, nil
}

// rest returns a PostgREST client authorized as the caller.
func (s *Store) rest(id core.Identity) (*postgrest.Client, error) {
	if id.AccessToken == "" {
		return nil, store.ErrUnauthenticated
	}
	return s.restWithToken(id.AccessToken), nil
}

func (s *Store) restWithToken(token string) *postgrest.Client {
	return postgrest.NewClient(s.url+restPath, "public", map[string]string{
		"apikey":        s.anonKey,
		"Authorization": "Bearer " + token,
	})
}

func (s *Store) service() (*postgrest.Client, error) {
	if s.serviceKey == "" {
		return nil, errors.New("supabase service key not configured")
	}
	return postgrest.NewClient(s.url+restPath, "public", map[string]string{
		"apikey":        s.serviceKey,
		"Authorization": "Bearer " + s.serviceKey,
	}), nil
}

// call runs a blocking client call and gives up when ctx ends. The client
// libraries take no context, so the abandoned call finishes in the background.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

func execute(ctx context.Context, fb *postgrest.FilterBuilder) ([]byte, error) {
	return call(ctx, func() ([]byte, error) {
		data, _, err := fb.Execute()
		return data, err
	})
}

func decode[T any](data []byte) ([]T, error) {
	var rows []T
	if len(data) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return rows, nil
}

// mutated turns an empty representation into ErrNotFound: row level security
// hides rows the caller does not own.
func mutated(data []byte, kind, id string) error {
	rows, err := decode[json.RawMessage](data)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return nil
}

type walletRow struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	Type      string          `json:"type"`
	Color     string          `json:"color"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
}

type walletWrite struct {
	UserID   string          `json:"user_id,omitempty"`
	Name     string          `json:"name"`
	Balance  decimal.Decimal `json:"balance"`
	Type     string          `json:"type"`
	Color    string          `json:"color"`
	Currency string          `json:"currency"`
}

func (r walletRow) toCore() core.Wallet {
	return core.Wallet{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		Balance:   r.Balance,
		Type:      core.WalletType(r.Type),
		Color:     r.Color,
		Currency:  r.Currency,
		CreatedAt: r.CreatedAt,
	}
}

func toWalletWrite(w core.Wallet) walletWrite {
	return walletWrite{
		Name:     w.Name,
		Balance:  w.Balance.Round(2),
		Type:     string(w.Type),
		Color:    w.Color,
		Currency: w.Currency,
	}
}

type categoryRow struct {
	ID     string  `json:"id"`
	UserID *string `json:"user_id"`
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Color  string  `json:"color"`
	Icon   *string `json:"icon"`
}

func (r categoryRow) toCore() core.Category {
	c := core.Category{ID: r.ID, Name: r.Name, Type: core.TransactionType(r.Type), Color: r.Color}
	if r.UserID != nil {
		c.UserID = *r.UserID
	}
	if r.Icon != nil {
		c.Icon = *r.Icon
	}
	return c
}

type transactionRow struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description *string         `json:"description"`
	Date        string          `json:"date"`
	WalletID    string          `json:"wallet_id"`
	CategoryID  *string         `json:"category_id"`
	CreatedAt   time.Time       `json:"created_at"`
	Wallet      *struct {
		Name     string `json:"name"`
		Color    string `json:"color"`
		Currency string `json:"currency"`
	} `json:"wallet"`
	Category *categoryRow `json:"category"`
}

type transactionWrite struct {
	UserID      string          `json:"user_id,omitempty"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	WalletID    string          `json:"wallet_id"`
	CategoryID  *string         `json:"category_id"`
}

func (r transactionRow) toCore() (core.Transaction, error) {
	date, err := core.ParseDate(r.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s date %q: %w", r.ID, r.Date, err)
	}
	tx := core.Transaction{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      core.TransactionType(r.Type),
		Amount:    r.Amount,
		Date:      date,
		WalletID:  r.WalletID,
		CreatedAt: r.CreatedAt,
	}
	if r.Description != nil {
		tx.Description = *r.Description
	}
	if r.CategoryID != nil {
		tx.CategoryID = *r.CategoryID
	}
	if r.Wallet != nil {
		tx.Wallet = &core.WalletRef{Name: r.Wallet.Name, Color: r.Wallet.Color, Currency: r.Wallet.Currency}
	}
	if r.Category != nil {
		c := r.Category.toCore()
		if c.ID == "" {
			c.ID = tx.CategoryID
		}
		tx.Category = &c
	}
	return tx, nil
}

func toTransactionWrite(tx core.Transaction) transactionWrite {
	w := transactionWrite{
		Type:        string(tx.Type),
		Amount:      tx.Amount.Round(2),
		Description: tx.Description,
		Date:        tx.Date.String(),
		WalletID:    tx.WalletID,
	}
	if tx.CategoryID != "" {
		cat := tx.CategoryID
		w.CategoryID = &cat
	}
	return w
}

func (s *Store) ListWallets(ctx context.Context, id core.Identity) ([]core.Wallet, error) {
	rc, err := s.rest(id)
	if err != nil {
		return nil, err
	}
	data, err := execute(ctx, rc.From("wallets").
		Select("*", "", false).
		Eq("user_id", id.UserID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}))
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	rows, err := decode[walletRow](data)
	if err != nil {
		return nil, err
	}
	out := make([]core.Wallet, len(rows))
	for i, r := range rows {
		out[i] = r.toCore()
	}
	return out, nil
}

func (s *Store) CreateWallet(ctx context.Context, id core.Identity, w core.Wallet) (core.Wallet, error) {
	rc, err := s.rest(id)
	if err != nil {
		return core.Wallet{}, err
	}
	body := toWalletWrite(w)
	body.UserID = id.UserID
	data, err := execute(ctx, rc.From("wallets").Insert(body, false, "", "representation", ""))
	if err != nil {
		return core.Wallet{}, fmt.Errorf("insert wallet: %w", err)
	}
	rows, err := decode[walletRow](data)
	if err != nil {
		return core.Wallet{}, err
	}
	if len(rows) == 0 {
		return core.Wallet{}, errors.New("insert wallet: empty response")
	}
	return rows[0].toCore(), nil
}

func (s *Store) UpdateWallet(ctx context.Context, id core.Identity, w core.Wallet) error {
	rc, err := s.rest(id)
	if err != nil {
		return err
	}
	data, err := execute(ctx, rc.From("wallets").
		Update(toWalletWrite(w), "representation", "").
		Eq("id", w.ID).
		Eq("user_id", id.UserID))
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	return mutated(data, "wallet", w.ID)
}

func (s *Store) DeleteWallet(ctx context.Context, id core.Identity, walletID string) error {
	rc, err := s.rest(id)
	if err != nil {
		return err
	}
	data, err := execute(ctx, rc.From("wallets").
		Delete("representation", "").
		Eq("id", walletID).
		Eq("user_id", id.UserID))
	if err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	return mutated(data, "wallet", walletID)
}

func (s *Store) ListTransactions(ctx context.Context, id core.Identity, q store.TransactionQuery) ([]core.Transaction, error) {
	rc, err := s.rest(id)
	if err != nil {
		return nil, err
	}
	return s.listTransactions(ctx, rc, id.UserID, q)
}

func (s *Store) listTransactions(ctx context.Context, rc *postgrest.Client, userID string, q store.TransactionQuery) ([]core.Transaction, error) {
	fb := rc.From("transactions").
		Select(transactionColumns, "", false).
		Eq("user_id", userID).
		Order("date", &postgrest.OrderOpts{Ascending: q.Ascending}).
		Order("created_at", &postgrest.OrderOpts{Ascending: q.Ascending})
	if q.Limit > 0 {
		fb = fb.Limit(q.Limit, "")
	}
	data, err := execute(ctx, fb)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	rows, err := decode[transactionRow](data)
	if err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, r := range rows {
		tx, err := r.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *Store) CreateTransaction(ctx context.Context, id core.Identity, tx core.Transaction) (core.Transaction, error) {
	rc, err := s.rest(id)
	if err != nil {
		return core.Transaction{}, err
	}
	body := toTransactionWrite(tx)
	body.UserID = id.UserID
	data, err := execute(ctx, rc.From("transactions").Insert(body, false, "", "representation", ""))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	rows, err := decode[transactionRow](data)
	if err != nil {
		return core.Transaction{}, err
	}
	if len(rows) == 0 {
		return core.Transaction{}, errors.New("insert transaction: empty response")
	}
	return rows[0].toCore()
}

func (s *Store) UpdateTransaction(ctx context.Context, id core.Identity, tx core.Transaction) error {
	rc, err := s.rest(id)
	if err != nil {
		return err
	}
	data, err := execute(ctx, rc.From("transactions").
		Update(toTransactionWrite(tx), "representation", "").
		Eq("id", tx.ID).
		Eq("user_id", id.UserID))
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return mutated(data, "transaction", tx.ID)
}

func (s *Store) DeleteTransaction(ctx context.Context, id core.Identity, txID string) error {
	rc, err := s.rest(id)
	if err != nil {
		return err
	}
	data, err := execute(ctx, rc.From("transactions").
		Delete("representation", "").
		Eq("id", txID).
		Eq("user_id", id.UserID))
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return mutated(data, "transaction", txID)
}

// ListCategories relies on row level security to return shared rows plus the
// caller's own.
func (s *Store) ListCategories(ctx context.Context, id core.Identity) ([]core.Category, error) {
	rc, err := s.rest(id)
	if err != nil {
		return nil, err
	}
	data, err := execute(ctx, rc.From("categories").
		Select("*", "", false).
		Order("type", &postgrest.OrderOpts{Ascending: true}).
		Order("name", &postgrest.OrderOpts{Ascending: true}))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	rows, err := decode[categoryRow](data)
	if err != nil {
		return nil, err
	}
	out := make([]core.Category, len(rows))
	for i, r := range rows {
		out[i] = r.toCore()
	}
	return out, nil
}

type chatRow struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

type chatWrite struct {
	UserID   string `json:"user_id"`
	Message  string `json:"message"`
	Response string `json:"response"`
}

func (s *Store) AppendChat(ctx context.Context, id core.Identity, m core.ChatMessage) error {
	rc, err := s.rest(id)
	if err != nil {
		return err
	}
	_, err = execute(ctx, rc.From("chat_messages").
		Insert(chatWrite{UserID: id.UserID, Message: m.Message, Response: m.Response}, false, "", "minimal", ""))
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

func (s *Store) ListChat(ctx context.Context, id core.Identity, limit int) ([]core.ChatMessage, error) {
	rc, err := s.rest(id)
	if err != nil {
		return nil, err
	}
	fb := rc.From("chat_messages").
		Select("*", "", false).
		Eq("user_id", id.UserID).
		Order("created_at", nil)
	if limit > 0 {
		fb = fb.Limit(limit, "")
	}
	data, err := execute(ctx, fb)
	if err != nil {
		return nil, fmt.Errorf("list chat: %w", err)
	}
	rows, err := decode[chatRow](data)
	if err != nil {
		return nil, err
	}
	out := make([]core.ChatMessage, len(rows))
	for i, r := range rows {
		// newest first on the wire; callers expect chronological order
		out[len(rows)-1-i] = core.ChatMessage{
			ID: r.ID, UserID: r.UserID, Message: r.Message, Response: r.Response, CreatedAt: r.CreatedAt,
		}
	}
	return out, nil
}

// authError maps GoTrue failures onto store sentinels. The client reports
// them as "response status code N: body".
func authError(err error, fallback error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "already registered"), strings.Contains(msg, "user_already_exists"):
		return store.ErrEmailTaken
	case strings.Contains(msg, "invalid_grant"), strings.Contains(msg, "invalid_credentials"),
		strings.Contains(msg, "status code 400"):
		return fallback
	}
	return err
}

func (s *Store) SignIn(ctx context.Context, email, password string) (core.Identity, error) {
	res, err := call(ctx, func() (*types.TokenResponse, error) {
		return s.auth.SignInWithEmailPassword(strings.TrimSpace(email), password)
	})
	if err != nil {
		return core.Identity{}, authError(err, store.ErrInvalidCredentials)
	}
	return core.Identity{
		UserID:      res.User.ID.String(),
		Email:       res.User.Email,
		AccessToken: res.AccessToken,
	}, nil
}

func (s *Store) SignUp(ctx context.Context, email, password string) (core.Identity, error) {
	res, err := call(ctx, func() (*types.SignupResponse, error) {
		return s.auth.Signup(types.SignupRequest{Email: strings.TrimSpace(email), Password: password})
	})
	if err != nil {
		return core.Identity{}, authError(err, err)
	}
	if res.AccessToken == "" {
		return core.Identity{}, store.ErrConfirmationPending
	}
	return core.Identity{
		UserID:      res.User.ID.String(),
		Email:       res.User.Email,
		AccessToken: res.AccessToken,
	}, nil
}

func (s *Store) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := call(ctx, func() (struct{}, error) {
		return struct{}{}, s.auth.Recover(types.RecoverRequest{Email: strings.TrimSpace(email)})
	})
	if err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, id core.Identity, password string) error {
	if id.AccessToken == "" {
		return store.ErrUnauthenticated
	}
	_, err := call(ctx, func() (*types.UpdateUserResponse, error) {
		return s.auth.WithToken(id.AccessToken).UpdateUser(types.UpdateUserRequest{Password: &password})
	})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *Store) SignOut(ctx context.Context, id core.Identity) error {
	if id.AccessToken == "" {
		return nil
	}
	_, err := call(ctx, func() (struct{}, error) {
		return struct{}{}, s.auth.WithToken(id.AccessToken).Logout()
	})
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// Ping checks the auth service health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	_, err := call(ctx, func() (*types.HealthCheckResponse, error) {
		return s.auth.HealthCheck()
	})
	return err
}

func (s *Store) ListAllTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rc, err := s.service()
	if err != nil {
		return nil, err
	}
	return s.listTransactions(ctx, rc, userID, store.TransactionQuery{Ascending: true})
}

// ListUserIDs returns every user owning at least one wallet.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rc, err := s.service()
	if err != nil {
		return nil, err
	}
	data, err := execute(ctx, rc.From("wallets").Select("user_id", "", false))
	if err != nil {
		return nil, fmt.Errorf("list wallet owners: %w", err)
	}
	rows, err := decode[struct {
		UserID string `json:"user_id"`
	}](data)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []string
	for _, r := range rows {
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		out = append(out, r.UserID)
	}
	sort.Strings(out)
	return out, nil
}
