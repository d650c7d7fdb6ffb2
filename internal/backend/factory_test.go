package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

func TestCreateMemoryBackendWithDemo(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(log.Discard()).CreateBackend(ctx, Config{
		Type:          MemoryBackend,
		DataDirectory: t.TempDir(),
		SeedDemo:      true,
		SeedEmail:     "demo@example.com",
		SeedPassword:  "demo1234",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer res.Close()

	id, err := res.Store.SignIn(ctx, "demo@example.com", "demo1234")
	if err != nil {
		t.Fatalf("demo sign-in: %v", err)
	}
	wallets, _ := res.Store.ListWallets(ctx, id)
	if len(wallets) == 0 {
		t.Fatal("demo account has no wallets")
	}
	if res.Ledger == nil || res.Ping(ctx) != nil {
		t.Fatal("memory backend should expose a ledger source and a healthy ping")
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "fintrack.db")
	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer res.Close()

	if err := res.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, err := res.Store.SignUp(ctx, "a@example.com", "secret1"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	ids, err := res.Ledger.ListUserIDs(ctx)
	if err != nil || len(ids) != 1 {
		t.Fatalf("ledger users: %v %v", ids, err)
	}
}

func TestCreateSupabaseBackendLedgerNeedsServiceKey(t *testing.T) {
	f := NewFactory(log.Discard())
	cfg := Config{Type: SupabaseBackend, SupabaseURL: "http://127.0.0.1:54321", SupabaseAnonKey: "anon", Timeout: time.Second}

	res, err := f.CreateBackend(context.Background(), cfg)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Ledger != nil {
		t.Fatal("ledger access requires the service key")
	}

	cfg.SupabaseServiceKey = "service"
	res, err = f.CreateBackend(context.Background(), cfg)
	if err != nil || res.Ledger == nil {
		t.Fatalf("expected ledger access with a service key: %v", err)
	}
	var _ store.LedgerSource = res.Ledger
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"unknown type", Config{Type: "sheets"}, true},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"supabase without key", Config{Type: SupabaseBackend, SupabaseURL: "http://x"}, true},
		{"demo without password", Config{Type: MemoryBackend, SeedDemo: true, SeedEmail: "a@b.c"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "sheets"}); err == nil {
		t.Fatal("factory should reject an unknown backend")
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	app := &config.Config{
		DataBackend:      config.BackendSupabase,
		SupabaseURL:      "https://x.supabase.co",
		SupabaseAnonKey:  "anon",
		StoreTimeout:     7 * time.Second,
		SeedDemoEmail:    "demo@fintrack.local",
		SeedDemoPassword: "demo1234",
	}
	got, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got.Type != SupabaseBackend || got.Timeout != 7*time.Second || got.SupabaseAnonKey != "anon" || got.DataDirectory != "data" {
		t.Fatalf("unexpected backend config: %+v", got)
	}
	app.DataBackend = "sheets"
	if _, err := FromAppConfig(app); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
