package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/issue-tracker-client/internal/config"
	"github.com/jrsteele09/issue-tracker-client/internal/errors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", describe(err))
		os.Exit(1)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	c := config.New()
	setupLogging(c)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(c, os.Stdout)
	defer a.close()
	return newRootCommand(a).ExecuteContext(ctx)
}

func setupLogging(c config.EnvConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !c.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// describe renders field errors one per line instead of the wrapped chain
func describe(err error) string {
	var ve *errors.ValidationError
	if errors.As(err, &ve) {
		return "invalid input: " + errors.FormatFields(ve.Fields)
	}
	switch {
	case errors.Is(err, errors.ErrInvalidCredentials):
		return "invalid username or password"
	case errors.Is(err, errors.ErrNotAuthenticated), errors.Is(err, errors.ErrAuthExpired):
		return "not logged in (run: issuectl login)"
	case errors.Is(err, errors.ErrUnauthorized):
		return "the issue tracker rejected the request: " + err.Error()
	case errors.Is(err, errors.ErrNetworkFailure):
		return "could not reach the issue tracker: " + err.Error()
	}
	return err.Error()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
