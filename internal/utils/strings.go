// Package utils holds small helpers shared across packages.
package utils

import "strings"

// ParseCSV turns a comma-separated setting such as CORS_ALLOWED_ORIGINS
// ("https://app.propfolio.io, http://localhost:5173") into its entries.
// Blank entries are skipped; nil means the setting lists nothing.
func ParseCSV(s string) []string {
	var entries []string
	for _, field := range strings.Split(s, ",") {
		if entry := strings.TrimSpace(field); entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}
