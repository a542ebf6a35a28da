// Command controllerd starts the network-emulation controller: the
// compute-fleet registry, project store, appliance store, notification
// bus, and the thin HTTP demonstration surface in front of them.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netsim/controller/pkg/server"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().Msg("controller starting")

	ctx := context.Background()
	srv, err := server.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize controller")
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.Port),
		Handler:      srv.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Bind the listener synchronously before the controller starts, so the
	// local compute's own self-registration (part of srv.Start below) never
	// races its own HTTP server's availability: the port is already open by
	// the time Start dials it, and a lost reconnect attempt is picked back
	// up by the compute client's background supervisor regardless.
	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		log.Fatal().Err(err).Msg("controller http server failed to bind")
	}

	served := make(chan struct{})
	go func() {
		defer close(served)
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("controller http server failed")
		}
	}()

	srv.Start(ctx)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		httpServer.Shutdown(shutdownCtx)
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("error during controller shutdown")
		}
	}()

	log.Info().Int("port", srv.Port).Msg("controller ready")

	<-served
}
