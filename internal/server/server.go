package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/converse/config"
	"github.com/mohammad-safakhou/converse/internal/assistant"
	"github.com/mohammad-safakhou/converse/internal/audit"
	"github.com/mohammad-safakhou/converse/internal/search"
	"github.com/mohammad-safakhou/converse/internal/session"
	sessmem "github.com/mohammad-safakhou/converse/internal/session/inmemory"
	sessredis "github.com/mohammad-safakhou/converse/internal/session/redis"
	"github.com/mohammad-safakhou/converse/internal/telemetry"
	"github.com/mohammad-safakhou/converse/internal/utility"
	"github.com/mohammad-safakhou/converse/provider"
	"github.com/mohammad-safakhou/converse/tools"
	"github.com/mohammad-safakhou/converse/tools/local"
	"github.com/mohammad-safakhou/converse/tools/remote"
	"github.com/mohammad-safakhou/converse/tools/web_fetch"
	"github.com/mohammad-safakhou/converse/tools/web_search"
)

// Run builds every dependency from config and serves the HTTP API.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	a, tele, err := BuildAssistant(cfg)
	if err != nil {
		return err
	}
	defer tele.Shutdown()

	h := &handlers{assistant: a, tele: tele, timeout: cfg.General.DefaultTimeout}
	h.register(e)

	return e.Start(cfg.Server.Address)
}

// BuildAssistant wires the assistant's dependency graph from config.
func BuildAssistant(cfg *config.Config) (*assistant.Assistant, *telemetry.Telemetry, error) {
	chat, err := provider.New(cfg.LLM)
	if err != nil {
		return nil, nil, fmt.Errorf("llm provider: %w", err)
	}

	invoker, err := buildInvoker(cfg)
	if err != nil {
		return nil, nil, err
	}

	sessions, err := buildSessionStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	sink, err := buildAuditSink(cfg)
	if err != nil {
		return nil, nil, err
	}

	tele := telemetry.New(nil)
	chat = telemetry.WrapChat(chat, tele)
	invoker = telemetry.WrapInvoker(invoker, tele)
	orch := search.NewOrchestrator(chat, invoker, sessions, sink, search.Options{
		QuoteFreshness:   cfg.Search.QuoteFreshness,
		SessionFreshness: cfg.Search.SessionFreshness,
		ClusterThreshold: cfg.Search.ClusterThreshold,
		MaxFetchSources:  cfg.Search.MaxFetchSources,
		MaxResults:       cfg.Search.MaxResults,
		MinFetchWords:    cfg.Search.MinFetchWords,
		MaxFetchChars:    cfg.Search.MaxFetchChars,
		RetryDelay:       cfg.LLM.RetryDelay,
	}, nil)
	handler := utility.NewHandler(invoker, nil)

	return assistant.New(handler, orch, sessions, tele, nil), tele, nil
}

func buildInvoker(cfg *config.Config) (tools.Invoker, error) {
	if cfg.Tools.Mode == "remote" {
		return remote.NewInvoker(cfg.Tools.RemoteEndpoint, cfg.Tools.Timeout), nil
	}

	apiKey := cfg.Tools.BraveAPIKey
	if cfg.Tools.SearchProvider == "serper" {
		apiKey = cfg.Tools.SerperAPIKey
	}
	searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Tools.SearchProvider), apiKey)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Tools.FetchType), cfg.Tools.Timeout, cfg.Search.MaxFetchChars)
	if err != nil {
		return nil, fmt.Errorf("web fetch: %w", err)
	}
	return local.NewInvoker(searcher, fetcher, nil), nil
}

func buildSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Storage.SessionBackend {
	case "redis":
		store := sessredis.NewStore(cfg.Storage.Redis.Addr(), cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, cfg.Storage.SessionTTL)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Storage.Redis.Timeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis sessions: %w", err)
		}
		return store, nil
	default:
		return sessmem.NewStore(), nil
	}
}

func buildAuditSink(cfg *config.Config) (audit.Sink, error) {
	switch cfg.Audit.Sink {
	case "none":
		return audit.NopSink{}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Storage.Redis.Addr(),
			Password:    cfg.Storage.Redis.Password,
			DB:          cfg.Storage.Redis.DB,
			DialTimeout: cfg.Storage.Redis.Timeout,
		})
		return audit.NewRedisSink(client, cfg.Audit.Stream, cfg.Audit.MaxLen, nil), nil
	default:
		return audit.NewLogSink(nil), nil
	}
}
