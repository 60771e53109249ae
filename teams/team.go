package teams

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/jrsteele09/issue-tracker-client/apiclient"
	"github.com/jrsteele09/issue-tracker-client/internal/errors"
	"github.com/jrsteele09/issue-tracker-client/internal/validator"
	"github.com/jrsteele09/issue-tracker-client/users"
)

type Team struct {
	ID          int                `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	CreatedBy   *users.SimpleUser  `json:"created_by,omitempty"`
	Members     []users.SimpleUser `json:"members"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Input is the body for creating a team. The creator is added as a member by the
// backend.
type Input struct {
	Name        string `json:"name" validate:"required,min=3,max=100"`
	Description string `json:"description,omitempty" validate:"max=500"`
	MemberIDs   []int  `json:"member_ids"`
}

type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

type Service struct {
	api API
}

func NewService(api API) *Service {
	return &Service{api: api}
}

// List returns the teams the current user belongs to
func (s *Service) List(ctx context.Context) ([]Team, error) {
	var raw json.RawMessage
	if err := s.api.Get(ctx, apiclient.RouteTeams, nil, &raw); err != nil {
		return nil, errors.Wrapf(err, "[Teams List]")
	}
	list, _ := apiclient.DecodeList[Team](raw)
	if list == nil {
		list = []Team{}
	}
	return list, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*Team, error) {
	if in.MemberIDs == nil {
		in.MemberIDs = []int{}
	}
	if err := validator.Validate(in); err != nil {
		return nil, err
	}
	var created Team
	if err := s.api.Post(ctx, apiclient.RouteTeams, in, &created); err != nil {
		return nil, errors.Wrapf(err, "[Teams Create]")
	}
	return &created, nil
}

// Invite creates an account for a new team member. The backend's field errors are
// returned unchanged as an *apiclient.APIError.
func (s *Service) Invite(ctx context.Context, req users.RegisterRequest) (*users.User, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	var created users.User
	if err := s.api.Post(ctx, apiclient.RouteUsers, req, &created); err != nil {
		return nil, errors.Wrapf(err, "[Teams Invite]")
	}
	return &created, nil
}
