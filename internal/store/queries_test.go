package store

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityTagLinksQueryScopesByTenant(t *testing.T) {
	q := newQueries(squirrel.Dollar)

	sql, args, err := q.entityTagLinks(7, []string{"ADDRESS", "HOURS"})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT et.entity_id, t.code FROM entity_tags et "+
			"JOIN entities e ON e.id = et.entity_id "+
			"JOIN tags t ON t.id = et.tag_id "+
			"WHERE e.chatbot_id = $1 AND t.code IN ($2,$3) "+
			"ORDER BY et.entity_id ASC, t.code ASC",
		sql)
	assert.Equal(t, []interface{}{int64(7), "ADDRESS", "HOURS"}, args)
}

func TestEntitiesQueryScopesByTenant(t *testing.T) {
	q := newQueries(squirrel.Question)

	sql, args, err := q.entitiesByIDs(3, []int64{1, 2})
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE chatbot_id = ? AND id IN (?,?)")
	assert.Equal(t, []interface{}{int64(3), int64(1), int64(2)}, args)
}

func TestBulkQueriesUseOneStatement(t *testing.T) {
	q := newQueries(squirrel.Dollar)

	sql, args, err := q.contactsByEntityIDs([]int64{4, 5, 6})
	require.NoError(t, err)
	assert.Contains(t, sql, "entity_id IN ($1,$2,$3)")
	assert.Len(t, args, 3)

	sql, _, err = q.scheduleRowsByEntityIDs([]int64{4})
	require.NoError(t, err)
	assert.Contains(t, sql, "ORDER BY entity_id ASC, day_of_week ASC, open_time ASC, id ASC")

	sql, _, err = q.blockTypeNames([]int64{9, 10})
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM block_types WHERE id IN ($1,$2)")
}

func TestNormalizeTag(t *testing.T) {
	got := NormalizeTag(Tag{Code: " address ", Synonyms: []string{"Location", " location", "", "ADDR"}})
	assert.Equal(t, "ADDRESS", got.Code)
	assert.Equal(t, []string{"location", "addr"}, got.Synonyms)
}
