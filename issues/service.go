package issues

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/jrsteele09/issue-tracker-client/apiclient"
	"github.com/jrsteele09/issue-tracker-client/internal/errors"
	"github.com/jrsteele09/issue-tracker-client/internal/validator"
	"github.com/jrsteele09/issue-tracker-client/users"
	"github.com/rs/zerolog/log"
)

// API is the subset of apiclient.Client the service needs
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
}

var _ API = (*apiclient.Client)(nil)

type Service struct {
	api API
}

func NewService(api API) *Service {
	return &Service{api: api}
}

// List returns the issues visible to user. Staff read the full collection, everyone
// else their own, assigned and team issues. filter is a Status or FilterAll.
func (s *Service) List(ctx context.Context, user *users.User, filter string) ([]Issue, error) {
	if user == nil {
		return nil, errors.ErrNotAuthenticated
	}
	path := apiclient.RouteMyIssues
	if user.IsStaff {
		path = apiclient.RouteIssues
	}
	query := url.Values{}
	if filter != "" && filter != FilterAll {
		query.Set("status", filter)
	}

	var raw json.RawMessage
	if err := s.api.Get(ctx, path, query, &raw); err != nil {
		return nil, errors.Wrapf(err, "[Issues List]")
	}
	list, ok := apiclient.DecodeList[Issue](raw)
	if !ok {
		log.Warn().Str("path", path).Msg("unexpected issue list shape")
		return []Issue{}, nil
	}
	return list, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*Issue, error) {
	if in.Status == "" {
		in.Status = StatusOpen
	}
	if err := validator.Validate(in); err != nil {
		return nil, err
	}
	var created Issue
	if err := s.api.Post(ctx, apiclient.RouteIssues, in, &created); err != nil {
		return nil, errors.Wrapf(err, "[Issues Create]")
	}
	return &created, nil
}

func (s *Service) Update(ctx context.Context, id int, patch Patch) (*Issue, error) {
	if err := validator.Validate(patch); err != nil {
		return nil, err
	}
	var updated Issue
	if err := s.api.Patch(ctx, apiclient.IssuePath(id), patch, &updated); err != nil {
		return nil, errors.Wrapf(err, "[Issues Update] %d", id)
	}
	return &updated, nil
}

// SetStatus sends only the status field
func (s *Service) SetStatus(ctx context.Context, id int, status Status) (*Issue, error) {
	return s.Update(ctx, id, Patch{Status: &status})
}

func (s *Service) Delete(ctx context.Context, id int) error {
	if err := s.api.Delete(ctx, apiclient.IssuePath(id)); err != nil {
		return errors.Wrapf(err, "[Issues Delete] %d", id)
	}
	return nil
}

// Assign sets the assignee to a user or a team, or clears it
func (s *Service) Assign(ctx context.Context, id int, a Assignment) (*Issue, error) {
	if err := validator.Validate(a); err != nil {
		return nil, err
	}
	var updated Issue
	if err := s.api.Post(ctx, apiclient.IssueAssignPath(id), a, &updated); err != nil {
		return nil, errors.Wrapf(err, "[Issues Assign] %d", id)
	}
	return &updated, nil
}

// AllUsers lists the other accounts an issue can be assigned to
func (s *Service) AllUsers(ctx context.Context) ([]users.SimpleUser, error) {
	var raw json.RawMessage
	if err := s.api.Get(ctx, apiclient.RouteAllUsers, nil, &raw); err != nil {
		return nil, errors.Wrapf(err, "[Issues AllUsers]")
	}
	list, _ := apiclient.DecodeList[users.SimpleUser](raw)
	return list, nil
}
