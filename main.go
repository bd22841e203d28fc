// main.go
//
// Entry point for the duel server.
//
//   - Loads .env (development), then flags and environment via config.
//   - Sets the zerolog level.
//   - Loads word lists, opens the room store and round history.
//   - Serves HTTP until SIGINT/SIGTERM.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/wordle/apps/duel-server/internal/config"
	"github.com/robalobadob/wordle/apps/duel-server/internal/history"
	"github.com/robalobadob/wordle/apps/duel-server/internal/httpserver"
	"github.com/robalobadob/wordle/apps/duel-server/internal/lobby"
	"github.com/robalobadob/wordle/apps/duel-server/internal/room"
	"github.com/robalobadob/wordle/apps/duel-server/internal/round"
	"github.com/robalobadob/wordle/apps/duel-server/internal/words"
)

const releaseVersion = "0.4.0"

func main() {
	_ = godotenv.Load()
	cfg := &config.Config{}
	if err := newCmd(cfg).Execute(); err != nil {
		log.Fatal().Err(err).Msg("duel-server exited")
	}
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "duel-server",
		Short:         "Two-player real-time Wordle duels.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Load(cmd.Flags()); err != nil {
				return err
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	config.Bind(cmd.Flags(), cfg)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("duel-server v{{.Version}}\n")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := words.InitFiles(cfg.WordsAnswersFile, cfg.WordsAllowedFile); err != nil {
		return fmt.Errorf("load word lists: %w", err)
	}
	a, g := words.Stats()
	log.Info().Int("answers", a).Int("allowed", g).Msg("word lists loaded")

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	hist, err := history.Open(ctx, cfg.HistoryDSN)
	switch {
	case errors.Is(err, history.ErrDisabled):
		log.Info().Msg("round history disabled")
		hist = nil
	case err != nil:
		return fmt.Errorf("open history: %w", err)
	default:
		defer hist.Close()
	}

	salt := cfg.WordSalt
	srv := httpserver.New(httpserver.Deps{
		Store:   store,
		Lobby:   lobby.New(store),
		History: hist,
		Tickets: httpserver.NewTickets(cfg.JWTSecret, cfg.JWTExpiresDays),
		Rules: round.Rules{
			Target:  func(roundID string) string { return words.ForRound(roundID, salt) },
			Allowed: words.IsAllowed,
		},
		Timing:     cfg.Timing(),
		Origin:     cfg.ClientOrigin,
		InviteBase: cfg.InviteBase(),
	})

	addr := ":" + strconv.Itoa(cfg.Port)
	log.Info().Str("addr", addr).Str("store", cfg.Store).Msg("starting duel-server")
	return srv.Start(ctx, addr)
}

// openStore returns the configured room store and its cleanup.
func openStore(ctx context.Context, cfg *config.Config) (room.Store, func(), error) {
	if cfg.Store != config.StoreRedis {
		return room.NewMemoryStore(), func() {}, nil
	}
	rdb, err := room.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	log.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("redis room store")
	return room.NewRedisStore(rdb, room.DefaultKeyPrefix), func() { _ = rdb.Close() }, nil
}
