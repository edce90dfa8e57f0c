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
	"github.com/rs/zerolog/log"

	"github.com/oauth2kit/go-oauth2-provider/internal/config"
	"github.com/oauth2kit/go-oauth2-provider/provider"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	engine, err := provider.New(
		c.GetCryptKey(),
		c.GetSignKey(),
		newDemoCollaborator(),
		provider.WithAuthorizeURI(c.GetAuthorizeURI()),
		provider.WithAccessTokenURI(c.GetAccessTokenURI()),
		provider.WithRevokeURI(c.GetRevokeURI()),
	)
	if err != nil {
		return fmt.Errorf("provider.New: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/whoami", whoamiHandler)

	server := &http.Server{
		Addr:    c.GetPort(),
		Handler: engine.Handler(engine.Bearer(mux)),
	}
	go listenAndServe(server)
	waitForStopSignal()
	returnError = shutdown(server)
	return returnError
}

// whoamiHandler is a sample protected resource: the bearer filter has
// already attached claims for authenticated requests.
func whoamiHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := provider.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "access token required", http.StatusUnauthorized)
		return
	}
	fmt.Fprintf(w, "subject: %s client: %s issued: %s\n", claims.SubjectID, claims.ClientID, claims.IssuedAt.Format(time.RFC3339))
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Err(err).Msg("server.ListenAndServe")
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
