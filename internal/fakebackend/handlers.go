package fakebackend

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/issue-tracker-client/issues"
	"github.com/jrsteele09/issue-tracker-client/teams"
	"github.com/jrsteele09/issue-tracker-client/users"
)

func (b *Backend) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/jwt/create/", b.handleCreateToken)
		r.Post("/auth/jwt/refresh/", b.handleRefreshToken)
		r.Post("/auth/jwt/verify/", b.handleVerifyToken)
		r.Post("/auth/users/", b.handleRegister)

		r.Group(func(r chi.Router) {
			r.Use(b.requireAuth)
			r.Get("/auth/users/me/", b.handleMe)
			r.Get("/issues/", b.handleListIssues)
			r.Post("/issues/", b.handleCreateIssue)
			r.Get("/issues/my_issues/", b.handleMyIssues)
			r.Get("/issues/all_users/", b.handleAllUsers)
			r.Patch("/issues/{id}/", b.handlePatchIssue)
			r.Delete("/issues/{id}/", b.handleDeleteIssue)
			r.Post("/issues/{id}/assign/", b.handleAssignIssue)
			r.Get("/teams/", b.handleListTeams)
			r.Post("/teams/", b.handleCreateTeam)
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeTokenInvalid(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"detail": "Given token not valid for any token type",
		"code":   "token_not_valid",
	})
}

func (b *Backend) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[req.Username]
	if !ok || a.password != req.Password {
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}
	access, err := b.issueAccess(a.user)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	refresh, err := b.issueRefresh(a.user)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access, "refresh": refresh})
}

func (b *Backend) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"refresh": {"This field is required."}})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.parse(req.Refresh, tokenTypeRefresh)
	if err != nil {
		writeTokenInvalid(w)
		return
	}
	u, ok := b.userByID(c.UserID)
	if !ok {
		writeTokenInvalid(w)
		return
	}
	access, err := b.issueAccess(u)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]string{"access": access}
	if b.rotate {
		b.revoked[c.ID] = true
		refresh, err := b.issueRefresh(u)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["refresh"] = refresh
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.parse(req.Token, tokenTypeAccess); err != nil {
		writeTokenInvalid(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req users.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	fields := map[string][]string{}
	if _, exists := b.accounts[req.Username]; exists {
		fields["username"] = []string{"A user with that username already exists."}
	}
	if req.RePassword != "" && req.RePassword != req.Password {
		fields["non_field_errors"] = []string{"The two password fields didn't match."}
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, fields)
		return
	}
	u := b.addUserLocked(req.Username, req.Email, req.Password, false)
	writeJSON(w, http.StatusCreated, u)
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	meAs := b.meAs
	b.mu.Unlock()
	if meAs != nil {
		writeJSON(w, http.StatusOK, meAs)
		return
	}
	writeJSON(w, http.StatusOK, currentUser(r))
}

// sortedIssues returns copies of the issues matching keep, by ID. b.mu must be held.
func (b *Backend) sortedIssues(keep func(*issues.Issue) bool) []issues.Issue {
	list := []issues.Issue{}
	for _, is := range b.issues {
		if keep(is) {
			list = append(list, *is)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func statusFilter(r *http.Request) func(*issues.Issue) bool {
	status := r.URL.Query().Get("status")
	return func(is *issues.Issue) bool {
		return status == "" || string(is.Status) == status
	}
}

// handleListIssues answers with the paginated envelope
func (b *Backend) handleListIssues(w http.ResponseWriter, r *http.Request) {
	match := statusFilter(r)
	b.mu.Lock()
	list := b.sortedIssues(match)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"count": len(list), "next": nil, "previous": nil, "results": list})
}

// handleMyIssues answers with a bare array
func (b *Backend) handleMyIssues(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	match := statusFilter(r)
	b.mu.Lock()
	list := b.sortedIssues(func(is *issues.Issue) bool {
		return match(is) && (u.Is(is.Owner) || u.Is(is.AssignedTo))
	})
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, list)
}

func (b *Backend) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	var in issues.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}
	if in.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"title": {"This field may not be blank."}})
		return
	}
	me := currentUser(r)
	owner := me.Simple()

	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	is := &issues.Issue{
		ID:           b.nextID,
		Title:        in.Title,
		Description:  in.Description,
		Status:       in.Status,
		Owner:        &owner,
		AssignedTeam: in.AssignedTeam,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.AssignedToID != nil {
		if u, ok := b.userByID(*in.AssignedToID); ok {
			s := u.Simple()
			is.AssignedTo = &s
		}
	}
	b.nextID++
	b.issues[is.ID] = is
	writeJSON(w, http.StatusCreated, is)
}

// writableIssue looks up the issue in the URL and checks owner-or-staff. It writes
// the error response and returns nil on failure. b.mu must be held.
func (b *Backend) writableIssue(w http.ResponseWriter, r *http.Request) *issues.Issue {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	is, ok := b.issues[id]
	if err != nil || !ok {
		writeDetail(w, http.StatusNotFound, "No Issue matches the given query.")
		return nil
	}
	u := currentUser(r)
	if !issues.CanModify(&u, is) {
		writeDetail(w, http.StatusForbidden, "You do not have permission to perform this action.")
		return nil
	}
	return is
}

func (b *Backend) handlePatchIssue(w http.ResponseWriter, r *http.Request) {
	var patch issues.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}
	if patch.Status != nil && !patch.Status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"status": {"\"" + string(*patch.Status) + "\" is not a valid choice."}})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	is := b.writableIssue(w, r)
	if is == nil {
		return
	}
	if patch.Title != nil {
		is.Title = *patch.Title
	}
	if patch.Description != nil {
		is.Description = *patch.Description
	}
	if patch.Status != nil {
		is.Status = *patch.Status
	}
	is.UpdatedAt = b.now()
	writeJSON(w, http.StatusOK, is)
}

func (b *Backend) handleDeleteIssue(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	is := b.writableIssue(w, r)
	if is == nil {
		return
	}
	delete(b.issues, is.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleAssignIssue(w http.ResponseWriter, r *http.Request) {
	var a issues.Assignment
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	is := b.writableIssue(w, r)
	if is == nil {
		return
	}
	is.AssignedTo = nil
	is.AssignedTeam = a.AssignedTeamID
	if a.AssignedToID != nil {
		u, ok := b.userByID(*a.AssignedToID)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"assigned_to_id": {"Invalid user."}})
			return
		}
		s := u.Simple()
		is.AssignedTo = &s
	}
	is.UpdatedAt = b.now()
	writeJSON(w, http.StatusOK, is)
}

func (b *Backend) handleAllUsers(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	b.mu.Lock()
	list := []users.SimpleUser{}
	for _, a := range b.accounts {
		if a.user.ID != me.ID {
			list = append(list, a.user.Simple())
		}
	}
	b.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	writeJSON(w, http.StatusOK, list)
}

func (b *Backend) handleListTeams(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	b.mu.Lock()
	list := []teams.Team{}
	for _, t := range b.teams {
		for _, m := range t.Members {
			if me.Is(&m) {
				list = append(list, *t)
				break
			}
		}
	}
	b.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"count": len(list), "results": list})
}

func (b *Backend) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var in teams.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}
	me := currentUser(r)
	creator := me.Simple()

	b.mu.Lock()
	defer b.mu.Unlock()
	members := []users.SimpleUser{creator}
	for _, id := range in.MemberIDs {
		if u, ok := b.userByID(id); ok && u.ID != me.ID {
			members = append(members, u.Simple())
		}
	}
	t := &teams.Team{
		ID:          b.nextID,
		Name:        in.Name,
		Description: in.Description,
		CreatedBy:   &creator,
		Members:     members,
		CreatedAt:   b.now(),
	}
	b.nextID++
	b.teams[t.ID] = t
	writeJSON(w, http.StatusCreated, t)
}
