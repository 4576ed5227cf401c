package main

import (
	"context"
	"database/sql"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Plobli/CobotChatwootSync/internal/adapters/chatwoot"
	"github.com/Plobli/CobotChatwootSync/internal/adapters/cobot"
	"github.com/Plobli/CobotChatwootSync/internal/adapters/observability"
	redisad "github.com/Plobli/CobotChatwootSync/internal/adapters/redis"
	"github.com/Plobli/CobotChatwootSync/internal/app"
	"github.com/Plobli/CobotChatwootSync/internal/domain"
	"github.com/Plobli/CobotChatwootSync/internal/shared"
	mysqlrepo "github.com/Plobli/CobotChatwootSync/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}
	if cfg.ProfileURLBase == "" {
		cfg.ProfileURLBase = cfg.CobotBaseURL
	}

	log.Info().
		Str("cobot", cfg.CobotBaseURL).
		Int("workers", cfg.Workers).
		Dur("interval", cfg.SyncInterval).
		Msg("bulk sync starting")

	cobotClient, err := cobot.New(cfg.CobotBaseURL, cfg.CobotToken, cfg.CobotRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("cobot client init failed")
	}
	chatwootClient, err := chatwoot.New(cfg.ChatwootURL, cfg.ChatwootAccountID, cfg.ChatwootToken, cfg.ChatwootRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("chatwoot client init failed")
	}

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		cache = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	}

	var journal domain.SyncJournal
	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		repo := mysqlrepo.New(db)
		if err := repo.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("journal migration failed")
		}
		journal = repo
	}

	mapper := app.NewMapper(cfg.ProfileURLBase, cfg.Location())
	svc := app.NewSyncService(cobotClient, chatwootClient, cache, journal, mapper, cfg.CacheTTL)

	limiter := rate.NewLimiter(rate.Every(cfg.SyncInterval), 1)
	bulk := app.NewBulkSyncer(cobotClient, svc, limiter, cfg.Workers, cfg.MemberPageSize, cfg.InvoicePageSize)

	sum, err := bulk.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("bulk sync aborted")
	}

	for _, me := range sum.Errors {
		log.Warn().Str("member", me.Member).Str("error", me.Err).Msg("member failed")
	}
	log.Info().
		Int("total", sum.Total).
		Int("success", sum.Success).
		Int("created", sum.Created).
		Int("updated", sum.Updated).
		Int("failed", sum.Failed).
		Msg("bulk sync summary")

	if sum.Failed > 0 {
		os.Exit(1)
	}
}
