package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jrsteele09/issue-tracker-client/apiclient"
	"github.com/jrsteele09/issue-tracker-client/internal/config"
	"github.com/jrsteele09/issue-tracker-client/internal/errors"
	"github.com/jrsteele09/issue-tracker-client/issues"
	"github.com/jrsteele09/issue-tracker-client/session"
	"github.com/jrsteele09/issue-tracker-client/teams"
	"github.com/jrsteele09/issue-tracker-client/tokens"
	"github.com/jrsteele09/issue-tracker-client/tokens/filerepo"
	"github.com/jrsteele09/issue-tracker-client/tokens/redisrepo"
	"github.com/jrsteele09/issue-tracker-client/tokens/repofake"
	"github.com/jrsteele09/issue-tracker-client/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// app is the state shared by every command for one invocation
type app struct {
	cfg    config.Config
	out    io.Writer
	format string
	// showMetrics logs the client counters on exit
	showMetrics bool

	registry    *prometheus.Registry
	session     *session.Manager
	closers     []func() error
	unsubscribe func()
}

func newApp(cfg config.Config, out io.Writer) *app {
	return &app{
		cfg:      cfg,
		out:      out,
		format:   formatTable,
		registry: prometheus.NewRegistry(),
	}
}

// open builds the token store and session, then restores any persisted session
func (a *app) open(ctx context.Context) error {
	repo, err := a.openRepo()
	if err != nil {
		return err
	}
	store := tokens.NewStore(repo, a.cfg, tokens.WithSecure(a.cfg.IsProduction()))

	mgr, err := session.New(a.cfg.GetAPIBaseURL(), store, session.WithClientOptions(
		apiclient.WithTimeout(a.cfg.GetHTTPTimeout()),
		apiclient.WithTracing(a.cfg.GetTracingEnabled()),
		apiclient.WithRegisterer(a.registry),
	))
	if err != nil {
		return err
	}
	a.session = mgr
	a.unsubscribe = mgr.Subscribe(logNavigation)

	if err := mgr.VerifySession(ctx); err != nil {
		log.Warn().Err(err).Msg("stored session could not be restored")
	}
	return nil
}

func (a *app) openRepo() (tokens.Repo, error) {
	switch a.cfg.GetTokenStore() {
	case config.StoreMemory:
		return repofake.NewFakeTokenRepo(), nil
	case config.StoreRedis:
		r, err := redisrepo.NewFromURL(a.cfg.GetRedisURL())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, r.Close)
		return r, nil
	default:
		var opts []filerepo.Option
		if p := a.cfg.GetTokenPassphrase(); p != "" {
			opts = append(opts, filerepo.WithPassphrase(p))
		}
		return filerepo.New(a.cfg.GetTokenFile(), opts...), nil
	}
}

func (a *app) close() {
	if a.showMetrics {
		a.logMetrics()
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.session != nil {
		a.session.Close()
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Err(err).Msg("close failed")
		}
	}
}

// user returns the logged in user or an error telling the user to log in
func (a *app) user() (*users.User, error) {
	u, err := a.session.CurrentUser()
	if err != nil {
		return nil, fmt.Errorf("[issuectl] %w", errors.ErrNotAuthenticated)
	}
	return u, nil
}

func (a *app) issues() *issues.Service {
	return issues.NewService(a.session.Client())
}

func (a *app) teams() *teams.Service {
	return teams.NewService(a.session.Client())
}

func (a *app) logMetrics() {
	families, err := a.registry.Gather()
	if err != nil {
		log.Err(err).Msg("failed to gather metrics")
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			e := log.Info().Str("metric", mf.GetName())
			for _, l := range m.GetLabel() {
				e = e.Str(l.GetName(), l.GetValue())
			}
			e.Float64("value", m.GetCounter().GetValue()).Send()
		}
	}
}

// logNavigation reports where a UI would route after each session event
func logNavigation(e session.Event) {
	ev := log.Debug().Str("event", string(e.Kind)).Str("view", e.View)
	if e.User != nil {
		ev = ev.Str("username", e.User.Username)
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}
	ev.Msg("navigate")
}
