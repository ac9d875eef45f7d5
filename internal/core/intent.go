package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gwi.com/tenant-chatbot/internal/store"
)

// TagSource returns every known tag.
type TagSource interface {
	ListTags(ctx context.Context) ([]store.Tag, error)
}

// TagCatalog is an immutable set of tags with their match terms precomputed.
type TagCatalog struct {
	tags  []store.Tag
	terms map[string][]string
}

func NewTagCatalog(tags []store.Tag) TagCatalog {
	c := TagCatalog{
		tags:  make([]store.Tag, 0, len(tags)),
		terms: make(map[string][]string, len(tags)),
	}
	for _, t := range tags {
		t = store.NormalizeTag(t)
		if t.Code == "" {
			continue
		}
		if _, dup := c.terms[t.Code]; dup {
			continue
		}
		c.tags = append(c.tags, t)
		// The code itself always matches, after the declared synonyms.
		c.terms[t.Code] = append(append([]string{}, t.Synonyms...), strings.ToLower(t.Code))
	}
	return c
}

// Tags returns a copy of the catalog's tags.
func (c TagCatalog) Tags() []store.Tag {
	out := make([]store.Tag, len(c.tags))
	for i, t := range c.tags {
		out[i] = store.Tag{ID: t.ID, Code: t.Code, Synonyms: append([]string{}, t.Synonyms...)}
	}
	return out
}

func (c TagCatalog) Len() int { return len(c.tags) }

// ListTags lets a catalog stand in for the tag table.
func (c TagCatalog) ListTags(context.Context) ([]store.Tag, error) {
	return c.Tags(), nil
}

// Match returns the codes of every tag whose terms occur in message as a substring.
func (c TagCatalog) Match(message string) TagSet {
	normalized := strings.ToLower(strings.TrimSpace(message))
	set := TagSet{}
	if normalized == "" {
		return set
	}
	for code, terms := range c.terms {
		for _, term := range terms {
			if strings.Contains(normalized, term) {
				set[code] = struct{}{}
				break
			}
		}
	}
	return set
}

// DefaultTagCatalog holds the built-in tags ensured by seeding.
func DefaultTagCatalog() TagCatalog {
	return NewTagCatalog([]store.Tag{
		{Code: "ADDRESS", Synonyms: []string{"address", "location", "where are you", "directions"}},
		{Code: "PHONE", Synonyms: []string{"phone", "call", "telephone", "number"}},
		{Code: "EMAIL", Synonyms: []string{"email", "e-mail", "mail"}},
		{Code: "HOURS", Synonyms: []string{"hours", "open", "close", "opening"}},
		{Code: "SCHEDULE", Synonyms: []string{"schedule", "timetable", "when"}},
		{Code: "CONTACT", Synonyms: []string{"contact", "reach"}},
	})
}

// TagSet is an unordered set of tag codes.
type TagSet map[string]struct{}

func NewTagSet(codes ...string) TagSet {
	s := make(TagSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Codes returns the codes sorted, so queries and logs are stable.
func (s TagSet) Codes() []string {
	codes := make([]string, 0, len(s))
	for c := range s {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

type IntentClassifier struct {
	tags TagSource
}

func NewIntentClassifier(tags TagSource) *IntentClassifier {
	return &IntentClassifier{tags: tags}
}

// Classify maps message to the tag codes it mentions. An empty set is a valid result.
func (c *IntentClassifier) Classify(ctx context.Context, message string) (TagSet, error) {
	tags, err := c.tags.ListTags(ctx)
	if err != nil {
		return nil, newError(CodeInternal, "Failed to load tags", fmt.Errorf("list tags: %w", err))
	}
	return NewTagCatalog(tags).Match(message), nil
}
