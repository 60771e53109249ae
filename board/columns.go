package board

import (
	"strings"

	"github.com/jrsteele09/issue-tracker-client/issues"
)

// Column is one status lane of the board
type Column struct {
	Status issues.Status  `json:"status" yaml:"status"`
	Label  string         `json:"label" yaml:"label"`
	Issues []issues.Issue `json:"issues" yaml:"issues"`
}

// Columns groups list into the OPEN, IN_PROGRESS and CLOSED lanes, in that order.
// Issues are kept only when they pass the status filter (a Status or
// issues.FilterAll) and contain query in their title or description, ignoring case.
func Columns(list []issues.Issue, filter, query string) []Column {
	cols := make([]Column, len(issues.Statuses))
	index := make(map[issues.Status]int, len(issues.Statuses))
	for i, s := range issues.Statuses {
		cols[i] = Column{Status: s, Label: s.Label(), Issues: []issues.Issue{}}
		index[s] = i
	}

	query = strings.ToLower(strings.TrimSpace(query))
	for _, is := range list {
		if filter != "" && filter != issues.FilterAll && string(is.Status) != filter {
			continue
		}
		if !Matches(is, query) {
			continue
		}
		if i, ok := index[is.Status]; ok {
			cols[i].Issues = append(cols[i].Issues, is)
		}
	}
	return cols
}

// Matches reports whether is contains the lower-cased query
func Matches(is issues.Issue, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(is.Title), query) ||
		strings.Contains(strings.ToLower(is.Description), query)
}
