package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Firebase FirebaseConfig
	Account  AccountConfig
	Sync     SyncConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type DatabaseConfig struct {
	// Driver is "sqlite3" for the device store or "pgx" for the hosted one.
	Driver string
	DSN    string
}

type FirebaseConfig struct {
	CredentialsFile string
}

type AccountConfig struct {
	// UID/Email identify the device's signed-in account in CLI mode. The
	// API server ignores these and uses per-request token claims.
	UID   string
	Email string
}

type SyncConfig struct {
	// Interval between background full syncs; zero disables the worker.
	Interval time.Duration
	// PushHistory enables the desktop-only history push phase.
	PushHistory bool
}

func Load() *Config {
	godotenv.Load()

	interval := time.Duration(getEnvInt("SYNC_INTERVAL_MINUTES", 15)) * time.Minute

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite3"),
			DSN:    getEnv("DB_DSN", "codegoals.db"),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", "./serviceAccountKey.json"),
		},
		Account: AccountConfig{
			UID:   getEnv("ACCOUNT_UID", ""),
			Email: getEnv("ACCOUNT_EMAIL", ""),
		},
		Sync: SyncConfig{
			Interval:    interval,
			PushHistory: getEnvBool("SYNC_PUSH_HISTORY", true),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
