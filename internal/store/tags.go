package store

import "strings"

// NormalizeTag upper-cases the code and lower-cases, trims and de-duplicates synonyms,
// keeping their first-seen order.
func NormalizeTag(t Tag) Tag {
	out := Tag{ID: t.ID, Code: strings.ToUpper(strings.TrimSpace(t.Code))}
	seen := make(map[string]struct{}, len(t.Synonyms))
	for _, s := range t.Synonyms {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out.Synonyms = append(out.Synonyms, s)
	}
	if out.Synonyms == nil {
		out.Synonyms = []string{}
	}
	return out
}
