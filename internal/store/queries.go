package store

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
)

// queries builds the read statements shared by the SQLite and Postgres backends.
// Only the placeholder format differs between them.
type queries struct {
	sb squirrel.StatementBuilderType
}

func newQueries(format squirrel.PlaceholderFormat) queries {
	return queries{sb: squirrel.StatementBuilder.PlaceholderFormat(format)}
}

var chatbotColumns = []string{"id", "display_name", "domain", "created_at"}

func (q queries) chatbotByID(id int64) (string, []interface{}, error) {
	return q.sb.Select(chatbotColumns...).From("chatbots").Where(squirrel.Eq{"id": id}).ToSql()
}

func (q queries) chatbotByDomain(domain string) (string, []interface{}, error) {
	return q.sb.Select(chatbotColumns...).From("chatbots").Where(squirrel.Eq{"domain": domain}).ToSql()
}

func (q queries) listChatbots() (string, []interface{}, error) {
	return q.sb.Select(chatbotColumns...).From("chatbots").OrderBy("id ASC").ToSql()
}

func (q queries) listTags() (string, []interface{}, error) {
	return q.sb.Select("id", "code", "synonyms").From("tags").OrderBy("code ASC").ToSql()
}

// entityTagLinks joins links to their entity and tag so that only entities owned
// by chatbotID and tagged with one of codes are returned.
func (q queries) entityTagLinks(chatbotID int64, codes []string) (string, []interface{}, error) {
	return q.sb.Select("et.entity_id", "t.code").
		From("entity_tags et").
		Join("entities e ON e.id = et.entity_id").
		Join("tags t ON t.id = et.tag_id").
		Where(squirrel.Eq{"e.chatbot_id": chatbotID}).
		Where(squirrel.Eq{"t.code": codes}).
		OrderBy("et.entity_id ASC", "t.code ASC").
		ToSql()
}

func (q queries) entitiesByIDs(chatbotID int64, ids []int64) (string, []interface{}, error) {
	return q.sb.Select("id", "chatbot_id", "kind", "block_type_id", "data", "created_at").
		From("entities").
		Where(squirrel.Eq{"chatbot_id": chatbotID}).
		Where(squirrel.Eq{"id": ids}).
		ToSql()
}

func (q queries) contactsByEntityIDs(ids []int64) (string, []interface{}, error) {
	return q.sb.Select("entity_id", "org_name", "phone", "email", "address", "city", "country", "hours").
		From("contacts").
		Where(squirrel.Eq{"entity_id": ids}).
		ToSql()
}

func (q queries) scheduleRowsByEntityIDs(ids []int64) (string, []interface{}, error) {
	return q.sb.Select("id", "entity_id", "day_of_week", "open_time", "close_time", "notes").
		From("schedules").
		Where(squirrel.Eq{"entity_id": ids}).
		OrderBy("entity_id ASC", "day_of_week ASC", "open_time ASC", "id ASC").
		ToSql()
}

func (q queries) blockTypeNames(ids []int64) (string, []interface{}, error) {
	return q.sb.Select("id", "name").From("block_types").Where(squirrel.Eq{"id": ids}).ToSql()
}

func decodeSynonyms(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var synonyms []string
	if err := json.Unmarshal(raw, &synonyms); err != nil {
		return nil, fmt.Errorf("failed to decode synonyms: %w", err)
	}
	return synonyms, nil
}

func decodeData(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode entity data: %w", err)
	}
	return data, nil
}
