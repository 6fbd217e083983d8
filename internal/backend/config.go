package backend

import (
	"fmt"

	"ledger/internal/config"
	"ledger/internal/storage"
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
		Type:               backendType,
		SQLiteDBPath:       appConfig.SQLiteDBPath,
		DatabaseURL:        appConfig.DatabaseURL,
		StorageTimeout:     appConfig.StorageTimeout,
		BreakerMaxFailures: appConfig.BreakerMaxFailures,
		BreakerOpenTimeout: appConfig.BreakerOpenTimeout,
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
	case PostgresBackend:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	case MemoryBackend:
		// Nothing to configure; data lives for the process lifetime.
	}

	return nil
}

// GuardConfig returns the storage guard settings, falling back to defaults
// for unset fields.
func (c Config) GuardConfig() storage.GuardConfig {
	gc := storage.DefaultGuardConfig()
	if c.StorageTimeout > 0 {
		gc.Timeout = c.StorageTimeout
	}
	if c.BreakerMaxFailures > 0 {
		gc.MaxFailures = uint32(c.BreakerMaxFailures)
	}
	if c.BreakerOpenTimeout > 0 {
		gc.OpenTimeout = c.BreakerOpenTimeout
	}
	return gc
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, PostgresBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
