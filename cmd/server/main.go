package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	fakeclientrepo "github.com/jrsteele09/go-token-engine/clients/fakerepo"
	grantrepofake "github.com/jrsteele09/go-token-engine/grants/repofake"
	"github.com/jrsteele09/go-token-engine/internal/config"
	"github.com/jrsteele09/go-token-engine/server"
	servicerepofake "github.com/jrsteele09/go-token-engine/services/repofake"
	"github.com/jrsteele09/go-token-engine/token/denylist"
	refreshrepofake "github.com/jrsteele09/go-token-engine/token/refresh/repofake"
	tokenfakerepo "github.com/jrsteele09/go-token-engine/token/repofake"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())
	logger := newLogger(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := newDenylist(ctx, c, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// In-memory stores run a single node. Persistent implementations slot in
	// behind the same interfaces.
	deps := server.Deps{
		Clients:  fakeclientrepo.NewFakeClientRepo(),
		Grants:   grantrepofake.NewFakeGrantRepo(),
		Refresh:  refreshrepofake.NewFakeRefreshTokenRepo(),
		Records:  tokenfakerepo.NewFakeRecordRepo(),
		Services: servicerepofake.NewFakeServiceRepo(),
		Denylist: store,
	}

	srv, err := server.New(c, deps, server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	go sweepExpired(ctx, c, logger, deps)

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func newLogger(c config.Config) zerolog.Logger {
	if c.GetEnv() == "DEV" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Str("service", "token-engine").Logger()
}

// newDenylist picks Redis when configured, otherwise the in-process store.
// The returned closer releases the Redis connection on shutdown.
func newDenylist(ctx context.Context, c config.Config, logger zerolog.Logger) (denylist.Store, func(), error) {
	addr := c.GetRedisAddr()
	if addr == "" {
		return denylist.NewInMemory(), func() {}, nil
	}
	redisStore, err := denylist.NewRedis(ctx, addr)
	if err != nil {
		return nil, nil, fmt.Errorf("denylist.NewRedis: %w", err)
	}
	logger.Info().Str("addr", addr).Msg("revocation denylist backed by redis")
	return redisStore, func() { _ = redisStore.Close() }, nil
}

// sweepExpired periodically drops denylist entries, authorization grants,
// refresh tokens and access token records that have expired on their own.
func sweepExpired(ctx context.Context, c config.Config, logger zerolog.Logger, deps server.Deps) {
	ticker := time.NewTicker(c.GetDenylistSweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := deps.Denylist.Sweep(ctx, now); err != nil {
				logger.Warn().Err(err).Msg("denylist sweep failed")
			}
			if n, err := deps.Grants.DeleteExpired(now); err != nil {
				logger.Warn().Err(err).Msg("authorization grant sweep failed")
			} else if n > 0 {
				logger.Debug().Int("deleted", n).Msg("swept expired authorization grants")
			}
			if n, err := deps.Refresh.DeleteExpired(now); err != nil {
				logger.Warn().Err(err).Msg("refresh token sweep failed")
			} else if n > 0 {
				logger.Debug().Int("deleted", n).Msg("swept expired refresh tokens")
			}
			if n, err := deps.Records.DeleteExpired(now); err != nil {
				logger.Warn().Err(err).Msg("access token record sweep failed")
			} else if n > 0 {
				logger.Debug().Int("deleted", n).Msg("swept expired access token records")
			}
		}
	}
}

func listenAndServe(server *http.Server) {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server.ListenAndServe: %s\n", err)
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
