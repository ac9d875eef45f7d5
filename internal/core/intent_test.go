package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/tenant-chatbot/internal/store"
)

func TestClassify(t *testing.T) {
	catalog := NewTagCatalog([]store.Tag{
		{Code: "ADDRESS", Synonyms: []string{"address", "location"}},
		{Code: "HOURS", Synonyms: []string{"Opening Hours", "open"}},
		{Code: "PHONE"},
	})
	classifier := NewIntentClassifier(catalog)

	tests := []struct {
		name    string
		message string
		want    []string
	}{
		{name: "synonym match", message: "What is your location?", want: []string{"ADDRESS"}},
		{name: "case insensitive", message: "  WHERE IS THE ADDRESS ", want: []string{"ADDRESS"}},
		{name: "code is an implicit synonym", message: "your phone please", want: []string{"PHONE"}},
		{name: "multiple tags", message: "location and opening hours", want: []string{"ADDRESS", "HOURS"}},
		{name: "deduplicated", message: "address address location", want: []string{"ADDRESS"}},
		{name: "no match", message: "tell me a joke", want: []string{}},
		{name: "blank message", message: "   ", want: []string{}},
		// Plain substring matching: "open" inside "reopened" counts.
		{name: "substring inside a word", message: "has it reopened?", want: []string{"HOURS"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := classifier.Classify(context.Background(), tt.message)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Codes())
		})
	}
}

func TestClassifyTagSourceError(t *testing.T) {
	fs := newFakeStore()
	fs.err["ListTags"] = errors.New("db down")

	_, err := NewIntentClassifier(fs).Classify(context.Background(), "address")
	require.Error(t, err)
	assert.Equal(t, CodeInternal, CodeOf(err))
}

func TestTagCatalogIsImmutable(t *testing.T) {
	source := []store.Tag{{Code: "ADDRESS", Synonyms: []string{"address"}}}
	catalog := NewTagCatalog(source)

	source[0].Synonyms[0] = "changed"
	tags := catalog.Tags()
	tags[0].Synonyms[0] = "mutated"

	assert.Equal(t, []string{"ADDRESS"}, catalog.Match("my address").Codes())
	assert.Equal(t, "address", catalog.Tags()[0].Synonyms[0])
}

func TestTagCatalogSkipsDuplicatesAndBlankCodes(t *testing.T) {
	catalog := NewTagCatalog([]store.Tag{
		{Code: "address", Synonyms: []string{"address"}},
		{Code: "ADDRESS", Synonyms: []string{"street"}},
		{Code: " "},
	})
	assert.Equal(t, 1, catalog.Len())
	assert.Empty(t, catalog.Match("which street").Codes())
}

func TestDefaultTagCatalog(t *testing.T) {
	catalog := DefaultTagCatalog()
	assert.Equal(t, 6, catalog.Len())
	assert.Equal(t, []string{"ADDRESS"}, catalog.Match("What is your location?").Codes())
}
