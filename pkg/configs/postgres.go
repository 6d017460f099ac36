package configs

import "time"

// PostgresConfig carries everything the connector needs to open and maintain
// the database pool. Url is a full postgres DSN; Key, when set, replaces the
// password embedded in the DSN so secrets can live outside the URL.
type PostgresConfig struct {
	Url string
	Key string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewPostgresConfig applies pool defaults suitable for a single API process.
func NewPostgresConfig(url, key string) PostgresConfig {
	return PostgresConfig{
		Url:             url,
		Key:             key,
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}
