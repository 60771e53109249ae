package board

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/issue-tracker-client/debounce"
	"github.com/jrsteele09/issue-tracker-client/internal/errors"
	"github.com/jrsteele09/issue-tracker-client/issues"
	"github.com/jrsteele09/issue-tracker-client/users"
	"github.com/rs/zerolog/log"
)

// DefaultSearchDelay is the quiet period before a search query applies
const DefaultSearchDelay = 500 * time.Millisecond

// IssueService is the part of issues.Service the board uses
type IssueService interface {
	List(ctx context.Context, user *users.User, filter string) ([]issues.Issue, error)
	SetStatus(ctx context.Context, id int, status issues.Status) (*issues.Issue, error)
}

var _ IssueService = (*issues.Service)(nil)

// Board is the Kanban view of the current user's issues. Status moves are applied
// locally before the backend confirms them and reverted by a refetch on failure.
type Board struct {
	service IssueService
	user    *users.User

	mu     sync.RWMutex
	issues []issues.Issue
	filter string

	query *debounce.Value[string]
}

type Option func(*options)

type options struct {
	filter      string
	searchDelay time.Duration
	debounce    []debounce.Option
}

// WithFilter sets the initial status filter (default issues.FilterAll)
func WithFilter(filter string) Option {
	return func(o *options) {
		o.filter = filter
	}
}

func WithSearchDelay(d time.Duration) Option {
	return func(o *options) {
		o.searchDelay = d
	}
}

// WithDebounceOptions configures the search debouncer
func WithDebounceOptions(opts ...debounce.Option) Option {
	return func(o *options) {
		o.debounce = append(o.debounce, opts...)
	}
}

func New(service IssueService, user *users.User, opts ...Option) *Board {
	o := options{filter: issues.FilterAll, searchDelay: DefaultSearchDelay}
	for _, opt := range opts {
		opt(&o)
	}
	return &Board{
		service: service,
		user:    user,
		filter:  o.filter,
		query:   debounce.New("", o.searchDelay, o.debounce...),
	}
}

// Refresh replaces the local issues with the backend's list for the current filter
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.RLock()
	filter := b.filter
	b.mu.RUnlock()

	list, err := b.service.List(ctx, b.user, filter)
	if err != nil {
		return errors.Wrapf(err, "[Board Refresh]")
	}

	b.mu.Lock()
	b.issues = list
	b.mu.Unlock()
	return nil
}

// SetFilter changes the status filter and refetches
func (b *Board) SetFilter(ctx context.Context, filter string) error {
	if filter != issues.FilterAll && !issues.Status(filter).Valid() {
		return errors.NewValidationError(map[string][]string{
			"status": {fmt.Sprintf("must be one of %s, %s, %s or %s", issues.StatusOpen, issues.StatusInProgress, issues.StatusClosed, issues.FilterAll)},
		})
	}
	b.mu.Lock()
	b.filter = filter
	b.mu.Unlock()
	return b.Refresh(ctx)
}

// Issues returns a copy of the local issue list
func (b *Board) Issues() []issues.Issue {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]issues.Issue, len(b.issues))
	copy(out, b.issues)
	return out
}

// Columns derives the lanes from the local issues, the filter and the settled query
func (b *Board) Columns() []Column {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Columns(b.issues, b.filter, b.query.Settled())
}

// Search records a query keystroke and returns the query currently applied
func (b *Board) Search(query string) string {
	return b.query.Observe(query)
}

// SearchChanges delivers each query once it has settled
func (b *Board) SearchChanges() <-chan string {
	return b.query.Changes()
}

// FlushSearch applies a pending query without waiting
func (b *Board) FlushSearch() string {
	return b.query.Flush()
}

// Move sets the status of issue id. Unknown issues and unchanged statuses are
// ignored. Users who neither own the issue nor are staff get errors.ErrForbidden
// without a request being sent.
func (b *Board) Move(ctx context.Context, id int, status issues.Status) error {
	if !status.Valid() {
		return errors.NewValidationError(map[string][]string{"status": {"must be one of OPEN, IN_PROGRESS or CLOSED"}})
	}

	b.mu.Lock()
	idx := b.indexLocked(id)
	if idx < 0 || b.issues[idx].Status == status {
		b.mu.Unlock()
		return nil
	}
	if !issues.CanModify(b.user, &b.issues[idx]) {
		b.mu.Unlock()
		return fmt.Errorf("[Board Move] issue %d: %w", id, errors.ErrForbidden)
	}
	previous := b.issues[idx].Status
	b.issues[idx].Status = status
	b.mu.Unlock()

	updated, err := b.service.SetStatus(ctx, id, status)
	if err != nil {
		log.Warn().Err(err).Int("issue", id).Str("from", string(previous)).Str("to", string(status)).Msg("status change rejected, reverting")
		if refreshErr := b.Refresh(ctx); refreshErr != nil {
			log.Err(refreshErr).Msg("failed to refetch issues after rejected move")
		}
		return errors.Wrapf(err, "[Board Move] issue %d", id)
	}

	b.mu.Lock()
	if i := b.indexLocked(id); i >= 0 && updated != nil && updated.ID == id {
		b.issues[i] = *updated
	}
	b.mu.Unlock()
	return nil
}

// Close stops the search debouncer
func (b *Board) Close() {
	b.query.Stop()
}

func (b *Board) indexLocked(id int) int {
	for i := range b.issues {
		if b.issues[i].ID == id {
			return i
		}
	}
	return -1
}
