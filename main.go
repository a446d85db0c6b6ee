package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"ghbridge/internal"
	"ghbridge/pkg/api"
	"ghbridge/pkg/delivery"
	ghapi "ghbridge/pkg/github"
	"ghbridge/pkg/identity"
	"ghbridge/pkg/notify"
	"ghbridge/pkg/storage"
	mutestore "ghbridge/pkg/storage/mutes"
	userstore "ghbridge/pkg/storage/users"
	"ghbridge/webhook"

	"github.com/hashicorp/go-cleanhttp"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	logger := internal.NewLogger("server")
	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if err := internal.ConfigureLogging(config.Log); err != nil {
		logger.Fatal().Err(err).Msg("configure logging")
	}
	logger = internal.NewLogger("server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	identityOpts := []identity.Option{
		identity.WithTTL(time.Duration(config.Identity.CacheTTLMS) * time.Millisecond),
		identity.WithLogger(internal.NewLogger("identity")),
	}
	userBackend, closeUsers, err := newUserBackend(config.Identity.Users)
	if err != nil {
		logger.Fatal().Err(err).Msg("user map backend")
	}
	defer closeUsers()
	users := identity.NewUserMap(userBackend, identityOpts...)
	if err := users.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial user map load failed")
	}

	muteBackend, closeMutes, err := newMuteBackend(config.Identity.Mutes)
	if err != nil {
		logger.Fatal().Err(err).Msg("mute list backend")
	}
	defer closeMutes()
	mutes := identity.NewMuteList(muteBackend, identityOpts...)
	if err := mutes.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial mute list load failed")
	}

	mentionOpts := []notify.MentionerOption{notify.WithLogger(internal.NewLogger("mention"))}
	apiClient, err := ghapi.New(ctx, ghapi.Config{
		Token:   config.GitHub.Token,
		BaseURL: config.GitHub.BaseURL,
		App: ghapi.AppConfig{
			AppID:          config.GitHub.AppID,
			PrivateKeyPath: config.GitHub.PrivateKeyPath,
			InstallationID: config.GitHub.InstallationID,
		},
	})
	switch {
	case errors.Is(err, ghapi.ErrNoCredentials):
		logger.Info().Msg("github api credentials not configured, team mentions disabled")
	case err != nil:
		logger.Fatal().Err(err).Msg("github api client")
	default:
		mentionOpts = append(mentionOpts, notify.WithTeamLookup(apiClient), notify.WithLoginLookup(apiClient))
	}
	mentioner := notify.NewMentioner(users, mentionOpts...)

	cache, closeCache, err := newDedupCache(ctx, config.Dedup)
	if err != nil {
		logger.Fatal().Err(err).Msg("dedup cache")
	}
	defer closeCache()
	dispatcher := notify.NewDispatcher(cache, notify.WithDispatchLogger(internal.NewLogger("dispatcher")))

	discord, err := delivery.New(delivery.Config{
		WebhookURL: config.Discord.WebhookURL,
		Username:   config.Discord.Username,
		AvatarURL:  config.Discord.AvatarURL,
		Timeout:    time.Duration(config.Discord.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("discord webhook")
	}

	ruleLogger := internal.NewLogger("rules")
	ruleEngine, err := internal.NewRuleEngine(internal.RulesConfig{
		Rules:  config.Rules,
		Strict: config.RulesStrict,
		Logger: &ruleLogger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("compile rules")
	}
	ignore, err := internal.NewFilter(config.Ignore, &ruleLogger)
	if err != nil {
		logger.Fatal().Err(err).Msg("compile ignore rules")
	}

	var publisher internal.Publisher
	if config.Audit.Enabled || len(config.Rules) > 0 {
		publisher, err = internal.NewPublisher(config.Watermill)
		if err != nil {
			logger.Fatal().Err(err).Msg("publisher")
		}
		defer publisher.Close()
	}

	hookLogger := internal.NewLogger("github")
	ghHandler, err := webhook.NewGitHubHandler(webhook.Options{
		Secret:     config.GitHub.Secret,
		Users:      users,
		Mutes:      mutes,
		Mentioner:  mentioner,
		Dispatcher: dispatcher,
		Deliverer:  discord,
		Override: func(webhookURL string) (notify.Deliverer, error) {
			client, err := discord.ForURL(webhookURL)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		Rules:          ruleEngine,
		Ignore:         ignore,
		Publisher:      publisher,
		Audit:          config.Audit,
		Repositories:   config.GitHub.Repositories,
		DisabledEvents: config.GitHub.DisabledEvents,
		MaxBodyBytes:   config.Server.MaxBodyBytes,
		Logger:         &hookLogger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("github handler")
	}

	mux := http.NewServeMux()
	mux.Handle(config.GitHub.Path, ghHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if config.Server.MetricsEnabled {
		mux.Handle(config.Server.MetricsPath, internal.MetricsHandler())
	}
	if config.Admin.Enabled {
		adminLogger := internal.NewLogger("admin")
		api.Mount(mux, config.Admin.Path, config.Admin.Token,
			&api.UsersHandler{Store: users, Logger: adminLogger},
			&api.MutesHandler{Store: mutes, Logger: adminLogger},
		)
		logger.Info().Str("path", config.Admin.Path).Msg("admin api enabled")
	}
	logger.Info().Str("path", config.GitHub.Path).Int("events", len(notify.Events())).Msg("github webhook enabled")

	addr := ":" + strconv.Itoa(config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           internal.NewRateLimitHandler(mux, config.Server.RateLimitRPS, config.Server.RateLimitBurst, 10*time.Minute),
		ReadTimeout:       time.Duration(config.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(config.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(config.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(config.Server.ReadHeaderMS) * time.Millisecond,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("addr", addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	<-shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}

// newUserBackend picks the SQL table, the URL or the local file, in that
// order of precedence.
func newUserBackend(cfg internal.SourceConfig) (identity.UserBackend, func(), error) {
	if cfg.SQL.Driver != "" {
		store, err := userstore.Open(storageConfig(cfg.SQL))
		if err != nil {
			return nil, nil, err
		}
		return identity.SQLUserBackend{Store: store}, func() { _ = store.Close() }, nil
	}
	return identity.DocumentBackend{Source: documentSource(cfg, "{}")}, func() {}, nil
}

func newMuteBackend(cfg internal.SourceConfig) (identity.MuteBackend, func(), error) {
	if cfg.SQL.Driver != "" {
		store, err := mutestore.Open(storageConfig(cfg.SQL))
		if err != nil {
			return nil, nil, err
		}
		return identity.SQLMuteBackend{Store: store}, func() { _ = store.Close() }, nil
	}
	return identity.DocumentBackend{Source: documentSource(cfg, "[]")}, func() {}, nil
}

func documentSource(cfg internal.SourceConfig, empty string) identity.Source {
	if cfg.URL != "" {
		return identity.NewURLSource(cfg.URL, cleanhttp.DefaultPooledClient())
	}
	return identity.FileSource{Path: cfg.Path, Empty: []byte(empty)}
}

func storageConfig(cfg internal.SQLSourceConfig) storage.Config {
	return storage.Config{
		Driver:      cfg.Driver,
		DSN:         cfg.DSN,
		Table:       cfg.Table,
		AutoMigrate: cfg.AutoMigrate,
	}
}

func newDedupCache(ctx context.Context, cfg internal.DedupConfig) (notify.Cache, func(), error) {
	ttl := time.Duration(cfg.TTLMS) * time.Millisecond
	switch cfg.Backend {
	case "memory":
		return notify.NewMemoryCache(ttl), func() {}, nil
	case "redis":
		cache, err := notify.OpenRedisCache(ctx, cfg.Redis.URL, cfg.Redis.Prefix, ttl)
		if err != nil {
			return nil, nil, err
		}
		return cache, func() { _ = cache.Close() }, nil
	default:
		return nil, nil, errors.New("unsupported dedup backend: " + cfg.Backend)
	}
}
