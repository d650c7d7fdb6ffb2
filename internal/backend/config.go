package backend

import (
	"fmt"

	"fintrack/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		SupabaseURL:        appConfig.SupabaseURL,
		SupabaseAnonKey:    appConfig.SupabaseAnonKey,
		SupabaseServiceKey: appConfig.SupabaseServiceKey,
		Timeout:            appConfig.StoreTimeout,

		// Memory backend reads seed files from the default data directory
		DataDirectory: "data",
		SeedDemo:      appConfig.SeedDemo,
		SeedEmail:     appConfig.SeedDemoEmail,
		SeedPassword:  appConfig.SeedDemoPassword,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case SupabaseBackend:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return fmt.Errorf("Supabase URL and anon key are required for supabase backend")
		}
	case MemoryBackend:
		if c.SeedDemo && (c.SeedEmail == "" || c.SeedPassword == "") {
			return fmt.Errorf("demo seeding needs an email and a password")
		}
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, SupabaseBackend}
}
