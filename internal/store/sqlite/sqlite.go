// Package sqlite is the local relational backend. Referential rules
// (wallet deletion cascading to its transactions) are enforced by the schema.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/core"
	"fintrack/internal/store"

	_ "modernc.org/sqlite"
)

// timeLayout sorts lexicographically, so ORDER BY created_at is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Repository)(nil)

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{db: db, now: time.Now}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports database reachability for readiness probes.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) stamp() string {
	return r.now().UTC().Format(timeLayout)
}

func parseStamp(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
}

func affected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

func (r *Repository) ListWallets(ctx context.Context, id core.Identity) ([]core.Wallet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, balance, type, color, currency, created_at
		FROM wallets WHERE user_id = ?
		ORDER BY created_at ASC, rowid ASC`, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var out []core.Wallet
	for rows.Next() {
		var (
			w       core.Wallet
			created string
		)
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name, &w.Balance, &w.Type, &w.Color, &w.Currency, &created); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		w.CreatedAt = parseStamp(created)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *Repository) CreateWallet(ctx context.Context, id core.Identity, w core.Wallet) (core.Wallet, error) {
	if id.IsZero() {
		return core.Wallet{}, store.ErrUnauthenticated
	}
	w.ID = uuid.NewString()
	w.UserID = id.UserID
	created := r.stamp()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, name, balance, type, color, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.UserID, w.Name, w.Balance.StringFixed(2), string(w.Type), w.Color, w.Currency, created)
	if err != nil {
		return core.Wallet{}, fmt.Errorf("insert wallet: %w", err)
	}
	w.CreatedAt = parseStamp(created)
	slog.DebugContext(ctx, "Wallet saved to SQLite", "id", w.ID, "name", w.Name)
	return w, nil
}

func (r *Repository) UpdateWallet(ctx context.Context, id core.Identity, w core.Wallet) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE wallets SET name = ?, balance = ?, type = ?, color = ?, currency = ?
		WHERE id = ? AND user_id = ?`,
		w.Name, w.Balance.StringFixed(2), string(w.Type), w.Color, w.Currency, w.ID, id.UserID)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	return affected(res, "wallet", w.ID)
}

func (r *Repository) DeleteWallet(ctx context.Context, id core.Identity, walletID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM wallets WHERE id = ? AND user_id = ?`, walletID, id.UserID)
	if err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	return affected(res, "wallet", walletID)
}

func (r *Repository) ListTransactions(ctx context.Context, id core.Identity, q store.TransactionQuery) ([]core.Transaction, error) {
	dir := "DESC"
	if q.Ascending {
		dir = "ASC"
	}
	limit := -1
	if q.Limit > 0 {
		limit = q.Limit
	}
	query := fmt.Sprintf(`
		SELECT t.id, t.user_id, t.type, t.amount, t.description, t.date, t.wallet_id,
		       COALESCE(t.category_id, ''), t.created_at,
		       w.name, w.color, w.currency,
		       c.id, c.user_id, c.name, c.type, c.color, c.icon
		FROM transactions t
		JOIN wallets w ON w.id = t.wallet_id
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ?
		ORDER BY t.date %[1]s, t.created_at %[1]s, t.rowid %[1]s
		LIMIT ?`, dir)

	rows, err := r.db.QueryContext(ctx, query, id.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx                                       core.Transaction
			date, created                            string
			wallet                                   core.WalletRef
			catID, catUser, catName, catType, catCol sql.NullString
			catIcon                                  sql.NullString
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Description, &date, &tx.WalletID,
			&tx.CategoryID, &created, &wallet.Name, &wallet.Color, &wallet.Currency,
			&catID, &catUser, &catName, &catType, &catCol, &catIcon); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if tx.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %s date %q: %w", tx.ID, date, err)
		}
		tx.CreatedAt = parseStamp(created)
		tx.Wallet = &wallet
		if catID.Valid {
			tx.Category = &core.Category{
				ID:     catID.String,
				UserID: catUser.String,
				Name:   catName.String,
				Type:   core.TransactionType(catType.String),
				Color:  catCol.String,
				Icon:   catIcon.String,
			}
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// checkRefs rejects wallets and categories the caller does not own.
func (r *Repository) checkRefs(ctx context.Context, id core.Identity, tx core.Transaction) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM wallets WHERE id = ? AND user_id = ?`, tx.WalletID, id.UserID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("wallet", tx.WalletID)
	}
	if err != nil {
		return fmt.Errorf("check wallet: %w", err)
	}
	if tx.CategoryID == "" {
		return nil
	}
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id = ? AND (user_id IS NULL OR user_id = ?)`,
		tx.CategoryID, id.UserID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("category", tx.CategoryID)
	}
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *Repository) CreateTransaction(ctx context.Context, id core.Identity, tx core.Transaction) (core.Transaction, error) {
	if id.IsZero() {
		return core.Transaction{}, store.ErrUnauthenticated
	}
	if err := r.checkRefs(ctx, id, tx); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = uuid.NewString()
	tx.UserID = id.UserID
	created := r.stamp()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, amount, description, date, wallet_id, category_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, string(tx.Type), tx.Amount.StringFixed(2), tx.Description, tx.Date.String(),
		tx.WalletID, nullable(tx.CategoryID), created)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	tx.CreatedAt = parseStamp(created)
	tx.Wallet, tx.Category = nil, nil
	slog.DebugContext(ctx, "Transaction saved to SQLite", "id", tx.ID, "type", tx.Type, "amount", tx.Amount.StringFixed(2))
	return tx, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, id core.Identity, tx core.Transaction) error {
	if err := r.checkRefs(ctx, id, tx); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET type = ?, amount = ?, description = ?, date = ?, wallet_id = ?, category_id = ?
		WHERE id = ? AND user_id = ?`,
		string(tx.Type), tx.Amount.StringFixed(2), tx.Description, tx.Date.String(), tx.WalletID,
		nullable(tx.CategoryID), tx.ID, id.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return affected(res, "transaction", tx.ID)
}

func (r *Repository) DeleteTransaction(ctx context.Context, id core.Identity, txID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, txID, id.UserID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return affected(res, "transaction", txID)
}

func (r *Repository) ListCategories(ctx context.Context, id core.Identity) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(user_id, ''), name, type, color, icon
		FROM categories WHERE user_id IS NULL OR user_id = ?
		ORDER BY CASE type WHEN 'expense' THEN 0 ELSE 1 END, name`, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.Color, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) AppendChat(ctx context.Context, id core.Identity, m core.ChatMessage) error {
	if id.IsZero() {
		return store.ErrUnauthenticated
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, user_id, message, response, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), id.UserID, m.Message, m.Response, r.stamp())
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// ListChat returns the newest limit messages in chronological order.
func (r *Repository) ListChat(ctx context.Context, id core.Identity, limit int) ([]core.ChatMessage, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, message, response, created_at FROM (
			SELECT id, user_id, message, response, created_at, rowid AS seq
			FROM chat_messages WHERE user_id = ?
			ORDER BY created_at DESC, rowid DESC LIMIT ?
		) ORDER BY created_at ASC, seq ASC`, id.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat: %w", err)
	}
	defer rows.Close()

	var out []core.ChatMessage
	for rows.Next() {
		var (
			m       core.ChatMessage
			created string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Message, &m.Response, &created); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.CreatedAt = parseStamp(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) SignUp(ctx context.Context, email, password string) (core.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return core.Identity{}, fmt.Errorf("hash password: %w", err)
	}
	id := core.Identity{UserID: uuid.NewString(), Email: email}
	_, err = r.db.ExecContext(ctx, `INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		id.UserID, email, string(hash), r.stamp())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return core.Identity{}, store.ErrEmailTaken
		}
		return core.Identity{}, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

func (r *Repository) SignIn(ctx context.Context, email, password string) (core.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var (
		id   core.Identity
		hash string
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, email, password_hash FROM users WHERE email = ?`, email).
		Scan(&id.UserID, &id.Email, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Identity{}, store.ErrInvalidCredentials
	}
	if err != nil {
		return core.Identity{}, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return core.Identity{}, store.ErrInvalidCredentials
	}
	return id, nil
}

func (r *Repository) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO password_resets (email, requested_at) VALUES (?, ?)`,
		strings.ToLower(strings.TrimSpace(email)), r.stamp())
	if err != nil {
		return fmt.Errorf("record password reset: %w", err)
	}
	return nil
}

func (r *Repository) UpdatePassword(ctx context.Context, id core.Identity, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, string(hash), id.UserID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return affected(res, "user", id.UserID)
}

func (r *Repository) SignOut(context.Context, core.Identity) error { return nil }

// ListAllTransactions returns a user's transactions without a session; the
// mirror worker uses it.
func (r *Repository) ListAllTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	return r.ListTransactions(ctx, core.Identity{UserID: userID}, store.TransactionQuery{Ascending: true})
}

// ListUserIDs returns every registered user, for periodic mirror resyncs.
func (r *Repository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
