package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/bastion-hub/guard"
	"github.com/jrsteele09/bastion-hub/internal/backend"
	"github.com/jrsteele09/bastion-hub/internal/config"
	"github.com/jrsteele09/bastion-hub/server"
	"github.com/jrsteele09/bastion-hub/session"
	"github.com/jrsteele09/bastion-hub/storage/sqlitestore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const sweepInterval = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := backend.Open(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close()
	if db, ok := store.TTL.(*sqlitestore.Store); ok {
		go sweepExpired(ctx, db)
	}

	sessions := session.NewManager(store.Sessions, log.Logger)
	srv := &http.Server{Addr: c.GetPort(), Handler: server.New(c, sessions, pendingRedirects(c, store))}

	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(srv) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	returnError = shutdown(srv)
	return returnError
}

// pendingRedirects keeps the return path server side when the backend can
// expire keys, and in a cookie otherwise.
func pendingRedirects(c config.Config, store *backend.Backend) guard.PendingRedirects {
	if store.TTL == nil {
		return guard.NewCookieRedirects()
	}
	return guard.NewStoreRedirects(store.TTL, c.GetPendingRedirectTTL(), server.SessionID)
}

func sweepExpired(ctx context.Context, db *sqlitestore.Store) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.DeleteExpired(ctx)
			if err != nil {
				log.Err(err).Msg("failed to sweep expired keys")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("swept expired keys")
			}
		}
	}
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
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
