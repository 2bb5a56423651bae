package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gitsby/yarg/pkg/config"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// NewDB connects to the profile's database and runs its boot scripts.
// Relative boot paths are resolved against baseDir.
func NewDB(ctx context.Context, profile *config.Profile, baseDir string) (*sqlx.DB, error) {
	if profile == nil {
		return nil, fmt.Errorf("datasource profile is nil")
	}
	logger := zerolog.Ctx(ctx).With().Str("datasource", profile.Name).Logger()

	dsn, err := DSN(profile)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(profile.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open datasource %s: %w", profile.Name, err)
	}
	if profile.MaxOpenConns > 0 {
		db.SetMaxOpenConns(profile.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to datasource %s: %w", profile.Name, err)
	}

	for _, file := range profile.Boot {
		if !filepath.IsAbs(file) {
			file = filepath.Join(baseDir, file)
		}
		if err := boot(ctx, db, file); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to boot datasource %s: %w", profile.Name, err)
		}
		logger.Debug().Str("file", file).Msg("boot script executed")
	}
	return db, nil
}

func boot(ctx context.Context, db *sqlx.DB, file string) error {
	script, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	for _, stmt := range Statements(string(script)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(file), err)
		}
	}
	return nil
}

// Statements splits a SQL script on semicolons that end a line.
// Lines starting with "--" are dropped.
func Statements(script string) []string {
	var (
		out     []string
		current strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			out = append(out, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}
