package main

import (
	"context"
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"github.com/Plobli/CobotChatwootSync/internal/adapters/chatwoot"
	"github.com/Plobli/CobotChatwootSync/internal/adapters/cobot"
	server "github.com/Plobli/CobotChatwootSync/internal/adapters/http_server"
	"github.com/Plobli/CobotChatwootSync/internal/adapters/observability"
	redisad "github.com/Plobli/CobotChatwootSync/internal/adapters/redis"
	"github.com/Plobli/CobotChatwootSync/internal/app"
	"github.com/Plobli/CobotChatwootSync/internal/domain"
	"github.com/Plobli/CobotChatwootSync/internal/shared"
	mysqlrepo "github.com/Plobli/CobotChatwootSync/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}
	if cfg.ProfileURLBase == "" {
		cfg.ProfileURLBase = cfg.CobotBaseURL
	}

	observability.Serve()

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
		log.Info().Str("addr", cfg.RedisAddr).Msg("contact cache enabled")
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
		if err := repo.Migrate(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("journal migration failed")
		}
		journal = repo
		log.Info().Msg("sync journal enabled")
	}

	mapper := app.NewMapper(cfg.ProfileURLBase, cfg.Location())
	svc := app.NewSyncService(cobotClient, chatwootClient, cache, journal, mapper, cfg.CacheTTL)

	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Sync: svc, Journal: journal})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("webhook server listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
