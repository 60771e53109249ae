package errors

import (
	"sort"
	"strings"
)

// FormatFields renders a field error map as "field: msg, msg; field: msg" with
// fields in a stable order.
func FormatFields(fields map[string][]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(fields[k], ", "))
	}
	return strings.Join(parts, "; ")
}
