package tags

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SplitList splits a raw tag field on ASCII and full-width commas.
func SplitList(raw string) []string {
	raw = strings.ReplaceAll(raw, "，", ",")
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Normalize trims, repairs mis-decoded names, NFC-normalizes and de-duplicates
// a tag list, preserving first-seen order. Normalize is idempotent.
func Normalize(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		name = norm.NFC.String(Repair(name))
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
