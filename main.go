package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/acme/autocert"

	"postyard/handler"
	"postyard/store"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitHTTPServerError = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("postyard %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	logger := SetupLogger(cfg)
	logger.Info("starting postyard",
		"version", Version,
		"env", cfg.Env,
		"driver", cfg.Database.Driver,
	)

	s, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return ExitDatabaseError
	}
	defer s.Close()

	tokens, err := handler.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Error("failed to set up sessions", "error", err)
		return ExitConfigError
	}

	h := &handler.Handler{
		Store:        s,
		Tokens:       tokens,
		EnableSignup: cfg.Auth.EnableSignup,
		PageSize:     cfg.Pagination.PageSize,
		Site:         cfg.Site.Site(),
		Logger:       logger,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))
	if err := h.Register(e); err != nil {
		logger.Error("failed to register routes", "error", err)
		return ExitConfigError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, e, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		return ExitHTTPServerError
	}
	return ExitSuccess
}

// serve runs e until ctx is cancelled and then shuts it down gracefully.
func serve(ctx context.Context, e *echo.Echo, cfg *Config, logger *slog.Logger) error {
	errCh := make(chan error, 1)

	if cfg.Server.Address != "" {
		e.Server.ReadTimeout = cfg.Server.ReadTimeout
		e.Server.WriteTimeout = cfg.Server.WriteTimeout
		go func() {
			logger.Info("starting HTTP server", "address", cfg.Server.Address)
			errCh <- e.Start(cfg.Server.Address)
		}()
	} else {
		e.AutoTLSManager.Cache = autocert.DirCache(cfg.TLS.CacheDir)
		if cfg.TLS.WhitelistHost != "" {
			e.AutoTLSManager.HostPolicy = autocert.HostWhitelist(cfg.TLS.WhitelistHost)
		}
		e.TLSServer.ReadTimeout = cfg.Server.ReadTimeout
		e.TLSServer.WriteTimeout = cfg.Server.WriteTimeout
		e.Pre(middleware.HTTPSRedirect())
		go func() {
			logger.Info("starting HTTPS server", "address", ":443", "host", cfg.TLS.WhitelistHost)
			errCh <- e.StartAutoTLS(":443")
		}()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
				slog.String("user_agent", v.UserAgent),
			}
			if v.Error != nil {
				level = slog.LevelWarn
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}
