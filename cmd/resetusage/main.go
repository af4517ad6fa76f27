// Command resetusage is the scheduled maintenance job for usage counters.
// Run daily: it zeroes every user's daily pro counter, and on the first of
// the month also restores the monthly pro and elite allowances.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/infra"
)

func main() {
	_ = godotenv.Load(".env", ".env.local")

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "resetusage").Logger()
	users := repo.NewUserRepository(pool)

	daily, err := users.ResetAllDaily(ctx)
	if err != nil {
		exitWithError(fmt.Errorf("failed to reset daily counters: %w", err))
	}
	logger.Info().Int64("users", daily).Msg("daily counters reset")

	if time.Now().UTC().Day() == 1 {
		monthly, err := users.ResetAllMonthly(ctx)
		if err != nil {
			exitWithError(fmt.Errorf("failed to reset monthly counters: %w", err))
		}
		logger.Info().Int64("users", monthly).Msg("monthly allowances restored")
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
