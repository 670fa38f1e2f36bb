// Package bootstrap seeds an empty store with the records a fresh install
// needs: an admin account, the default currencies and the settings row.
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tally-books/tally/internal/app/currency"
	"github.com/tally-books/tally/internal/domain"
)

// Config holds the seed values.
type Config struct {
	AdminEmail    string  `toml:"admin_email"`
	AdminPassword string  `toml:"admin_password"`
	Language      string  `toml:"language"`
	DateFormat    string  `toml:"date_format"`
	BaseSymbol    string  `toml:"base_symbol"`
	BaseName      string  `toml:"base_name"`
	NewRate       float64 `toml:"new_rate"` // legacy pair "new" side, per base unit
	NewName       string  `toml:"new_name"`
}

// DefaultConfig returns the factory seed.
func DefaultConfig() Config {
	return Config{
		AdminEmail:    "admin@example.com",
		AdminPassword: "admin123",
		Language:      "ar",
		DateFormat:    "YYYY-MM-DD",
		BaseSymbol:    "USD",
		BaseName:      "US Dollar",
		NewRate:       4500,
		NewName:       "New Syrian Pound",
	}
}

// Result says what Seed wrote.
type Result struct {
	User       bool `json:"user"`
	Currencies int  `json:"currencies"`
	Settings   bool `json:"settings"`
	Relinked   bool `json:"relinked"`
}

// Seed fills each empty collection with its defaults. Collections that
// already hold records are left alone, except that a legacy pair whose old
// rate has drifted from new × ratio is brought back in line.
func Seed(ctx context.Context, store domain.Store, rates *currency.Service, cfg Config, log *zap.Logger) (Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var res Result

	users, err := store.ListUsers(ctx)
	if err != nil {
		return res, domain.Storage("list users", err)
	}
	if len(users) == 0 && cfg.AdminEmail != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return res, fmt.Errorf("hash admin password: %w", err)
		}
		u := domain.User{Email: cfg.AdminEmail, PasswordHash: string(hash), CreatedAt: time.Now().UTC()}
		if _, err := store.AddUser(ctx, u); err != nil {
			return res, domain.Storage("add user", err)
		}
		res.User = true
	}

	settings, err := store.ListSettings(ctx)
	if err != nil {
		return res, domain.Storage("list settings", err)
	}
	if len(settings) == 0 {
		st := domain.Settings{BaseCurrency: strings.ToUpper(cfg.BaseSymbol), Language: cfg.Language, DateFormat: cfg.DateFormat}
		if _, err := store.AddSettings(ctx, st); err != nil {
			return res, domain.Storage("add settings", err)
		}
		res.Settings = true
	}

	existing, err := rates.List(ctx)
	if err != nil {
		return res, err
	}
	if len(existing) == 0 {
		n, err := seedRates(ctx, store, rates, cfg)
		if err != nil {
			return res, err
		}
		res.Currencies = n
	} else {
		res.Relinked, err = relink(ctx, rates, existing)
		if err != nil {
			return res, err
		}
	}

	log.Info("store bootstrapped",
		zap.Bool("user", res.User),
		zap.Int("currencies", res.Currencies),
		zap.Bool("settings", res.Settings),
		zap.Bool("relinked", res.Relinked),
	)
	return res, nil
}

func seedRates(ctx context.Context, store domain.Store, rates *currency.Service, cfg Config) (int, error) {
	if _, err := rates.Upsert(ctx, domain.Currency{Name: cfg.BaseName, Symbol: cfg.BaseSymbol, Rate: 1, IsBase: true}); err != nil {
		return 0, fmt.Errorf("seed base currency: %w", err)
	}
	pair := rates.Legacy()
	if pair.Enabled() && cfg.NewRate > 0 {
		// The linker adds the old side.
		_, err := rates.Upsert(ctx, domain.Currency{
			Name:             cfg.NewName,
			Symbol:           pair.New,
			Rate:             cfg.NewRate,
			ConversionFactor: 1 / pair.Ratio,
		})
		if err != nil {
			return 0, fmt.Errorf("seed %s: %w", pair.New, err)
		}
	}
	all, err := store.ListCurrencies(ctx)
	if err != nil {
		return 0, domain.Storage("list currencies", err)
	}
	return len(all), nil
}

func relink(ctx context.Context, rates *currency.Service, existing []domain.Currency) (bool, error) {
	pair := rates.Legacy()
	if !pair.Enabled() {
		return false, nil
	}
	var cur, old *domain.Currency
	for i := range existing {
		switch {
		case pair.IsNew(existing[i].Symbol):
			cur = &existing[i]
		case pair.IsOld(existing[i].Symbol):
			old = &existing[i]
		}
	}
	if cur == nil || old == nil || old.Rate == cur.Rate*pair.Ratio {
		return false, nil
	}
	if _, err := rates.Upsert(ctx, *cur); err != nil {
		return false, fmt.Errorf("relink %s: %w", pair.Old, err)
	}
	return true, nil
}
