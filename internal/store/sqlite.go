package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"gwi.com/tenant-chatbot/internal/logging"
)

// SQLiteStore is the self-contained backend: it serves the chat pipeline and also
// accepts the admin writes and seed imports.
type SQLiteStore struct {
	db     *sql.DB
	q      queries
	logger *zap.Logger
	now    func() time.Time
}

func NewSQLiteStore(dataSourceName string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to :memory: opens a fresh database.
	if strings.Contains(dataSourceName, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		q:      newQueries(squirrel.Question),
		logger: logging.OrNop(logger),
		now:    func() time.Time { return time.Now().UTC() },
	}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS chatbots (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        display_name TEXT NOT NULL,
        domain TEXT UNIQUE NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS tags (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        code TEXT UNIQUE NOT NULL,
        synonyms TEXT NOT NULL DEFAULT '[]' -- JSON array of lowercase strings
    );

    CREATE TABLE IF NOT EXISTS block_types (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT UNIQUE NOT NULL,
        schema TEXT
    );

    CREATE TABLE IF NOT EXISTS entities (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        chatbot_id INTEGER NOT NULL,
        kind TEXT NOT NULL CHECK (kind IN ('contact', 'schedule', 'dynamic')),
        block_type_id INTEGER,
        data TEXT, -- JSON object, dynamic entities only
        created_at DATETIME NOT NULL,
        FOREIGN KEY (chatbot_id) REFERENCES chatbots (id),
        FOREIGN KEY (block_type_id) REFERENCES block_types (id)
    );
    CREATE INDEX IF NOT EXISTS idx_entities_chatbot ON entities (chatbot_id);

    CREATE TABLE IF NOT EXISTS contacts (
        entity_id INTEGER PRIMARY KEY,
        org_name TEXT NOT NULL DEFAULT '',
        phone TEXT NOT NULL DEFAULT '',
        email TEXT NOT NULL DEFAULT '',
        address TEXT NOT NULL DEFAULT '',
        city TEXT NOT NULL DEFAULT '',
        country TEXT NOT NULL DEFAULT '',
        hours TEXT NOT NULL DEFAULT '',
        FOREIGN KEY (entity_id) REFERENCES entities (id)
    );

    CREATE TABLE IF NOT EXISTS schedules (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        entity_id INTEGER NOT NULL,
        day_of_week INTEGER NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
        open_time TEXT NOT NULL,
        close_time TEXT NOT NULL,
        notes TEXT NOT NULL DEFAULT '',
        FOREIGN KEY (entity_id) REFERENCES entities (id)
    );
    CREATE INDEX IF NOT EXISTS idx_schedules_entity ON schedules (entity_id);

    CREATE TABLE IF NOT EXISTS entity_tags (
        entity_id INTEGER NOT NULL,
        tag_id INTEGER NOT NULL,
        PRIMARY KEY (entity_id, tag_id),
        FOREIGN KEY (entity_id) REFERENCES entities (id),
        FOREIGN KEY (tag_id) REFERENCES tags (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Chatbot methods

func (s *SQLiteStore) GetChatbotByID(ctx context.Context, id int64) (*Chatbot, error) {
	query, args, err := s.q.chatbotByID(id)
	if err != nil {
		return nil, err
	}
	return s.getChatbot(ctx, query, args)
}

func (s *SQLiteStore) GetChatbotByDomain(ctx context.Context, domain string) (*Chatbot, error) {
	query, args, err := s.q.chatbotByDomain(domain)
	if err != nil {
		return nil, err
	}
	return s.getChatbot(ctx, query, args)
}

func (s *SQLiteStore) getChatbot(ctx context.Context, query string, args []interface{}) (*Chatbot, error) {
	var c Chatbot
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&c.ID, &c.DisplayName, &c.Domain, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to query chatbot: %w", err)
	}
	return &c, nil
}

func (s *SQLiteStore) ListChatbots(ctx context.Context) ([]Chatbot, error) {
	query, args, err := s.q.listChatbots()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chatbots: %w", err)
	}
	defer rows.Close()

	chatbots := []Chatbot{}
	for rows.Next() {
		var c Chatbot
		if err := rows.Scan(&c.ID, &c.DisplayName, &c.Domain, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chatbot row: %w", err)
		}
		chatbots = append(chatbots, c)
	}
	return chatbots, rows.Err()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) CreateChatbot(ctx context.Context, displayName, domain string) (*Chatbot, error) {
	return s.insertChatbot(ctx, s.db, displayName, domain)
}

func (s *SQLiteStore) insertChatbot(ctx context.Context, db execer, displayName, domain string) (*Chatbot, error) {
	now := s.now()
	domain = strings.ToLower(strings.TrimSpace(domain))
	query, args, err := squirrel.Insert("chatbots").
		Columns("display_name", "domain", "created_at").
		Values(displayName, domain, now).
		ToSql()
	if err != nil {
		return nil, err
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, wrapWriteError("chatbot", err)
	}
	id, _ := res.LastInsertId()
	return &Chatbot{ID: id, DisplayName: displayName, Domain: domain, CreatedAt: now}, nil
}

// Tag methods

func (s *SQLiteStore) ListTags(ctx context.Context) ([]Tag, error) {
	query, args, err := s.q.listTags()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		var tag Tag
		var synonymsJSON sql.NullString
		if err := rows.Scan(&tag.ID, &tag.Code, &synonymsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		if tag.Synonyms, err = decodeSynonyms([]byte(synonymsJSON.String)); err != nil {
			s.logger.Warn("Skipping synonyms of tag", zap.String("code", tag.Code), zap.Error(err))
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (s *SQLiteStore) CreateTag(ctx context.Context, code string, synonyms []string) (*Tag, error) {
	tag := NormalizeTag(Tag{Code: code, Synonyms: synonyms})
	synonymsJSON, err := json.Marshal(tag.Synonyms)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synonyms: %w", err)
	}

	query, args, err := squirrel.Insert("tags").
		Columns("code", "synonyms").
		Values(tag.Code, string(synonymsJSON)).
		ToSql()
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, wrapWriteError("tag", err)
	}
	tag.ID, _ = res.LastInsertId()
	return &tag, nil
}

// EnsureTags inserts every tag whose code is not present yet and reports how many were added.
func (s *SQLiteStore) EnsureTags(ctx context.Context, tags []Tag) (int, error) {
	added := 0
	for _, t := range tags {
		tag := NormalizeTag(t)
		synonymsJSON, err := json.Marshal(tag.Synonyms)
		if err != nil {
			return added, fmt.Errorf("failed to marshal synonyms: %w", err)
		}
		res, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO tags (code, synonyms) VALUES (?, ?)", tag.Code, string(synonymsJSON))
		if err != nil {
			return added, fmt.Errorf("failed to ensure tag %s: %w", tag.Code, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	return added, nil
}

// Block type methods

func (s *SQLiteStore) CreateBlockType(ctx context.Context, name string, schema map[string]any) (*BlockType, error) {
	var schemaJSON *string
	if schema != nil {
		raw, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal block type schema: %w", err)
		}
		str := string(raw)
		schemaJSON = &str
	}

	query, args, err := squirrel.Insert("block_types").Columns("name", "schema").Values(name, schemaJSON).ToSql()
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, wrapWriteError("block type", err)
	}
	id, _ := res.LastInsertId()
	return &BlockType{ID: id, Name: name, Schema: schema}, nil
}

// Entity methods

// NewEntity describes an entity to create. Exactly one of Contact, Schedule or
// BlockTypeID must be set; it determines the entity kind.
type NewEntity struct {
	ChatbotID   int64
	Contact     *Contact
	Schedule    []ScheduleRow
	BlockTypeID *int64
	Data        map[string]any
	TagCodes    []string
	CreatedAt   time.Time
}

func (n NewEntity) kind() (EntityKind, error) {
	set := 0
	var kind EntityKind
	if n.Contact != nil {
		set++
		kind = EntityKindContact
	}
	if len(n.Schedule) > 0 {
		set++
		kind = EntityKindSchedule
	}
	if n.BlockTypeID != nil {
		set++
		kind = EntityKindDynamic
	}
	if set != 1 {
		return "", errors.New("entity must have exactly one of contact, schedule or block type")
	}
	return kind, nil
}

// CreateEntity stores the entity, its kind row(s) and its tag links in one transaction.
func (s *SQLiteStore) CreateEntity(ctx context.Context, n NewEntity) (*Entity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin entity transaction: %w", err)
	}
	defer tx.Rollback()

	entity, err := s.createEntity(ctx, tx, n)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit entity: %w", err)
	}
	return entity, nil
}

func (s *SQLiteStore) createEntity(ctx context.Context, tx *sql.Tx, n NewEntity) (*Entity, error) {
	kind, err := n.kind()
	if err != nil {
		return nil, err
	}
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	if err := requireRow(ctx, tx, "chatbots", n.ChatbotID); err != nil {
		return nil, fmt.Errorf("chatbot %d: %w", n.ChatbotID, err)
	}
	if n.BlockTypeID != nil {
		if err := requireRow(ctx, tx, "block_types", *n.BlockTypeID); err != nil {
			return nil, fmt.Errorf("block type %d: %w", *n.BlockTypeID, err)
		}
	}

	var dataJSON *string
	if kind == EntityKindDynamic {
		data := n.Data
		if data == nil {
			data = map[string]any{}
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal entity data: %w", err)
		}
		str := string(raw)
		dataJSON = &str
	}

	query, args, err := squirrel.Insert("entities").
		Columns("chatbot_id", "kind", "block_type_id", "data", "created_at").
		Values(n.ChatbotID, string(kind), n.BlockTypeID, dataJSON, createdAt).
		ToSql()
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert entity: %w", err)
	}
	entityID, _ := res.LastInsertId()

	switch kind {
	case EntityKindContact:
		c := n.Contact
		_, err = tx.ExecContext(ctx,
			"INSERT INTO contacts (entity_id, org_name, phone, email, address, city, country, hours) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			entityID, c.OrgName, c.Phone, c.Email, c.Address, c.City, c.Country, c.Hours)
		if err != nil {
			return nil, fmt.Errorf("failed to insert contact: %w", err)
		}
	case EntityKindSchedule:
		insert := squirrel.Insert("schedules").Columns("entity_id", "day_of_week", "open_time", "close_time", "notes")
		for _, row := range n.Schedule {
			insert = insert.Values(entityID, row.DayOfWeek, row.OpenTime, row.CloseTime, row.Notes)
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("failed to insert schedule rows: %w", err)
		}
	}

	if err := linkTags(ctx, tx, entityID, n.TagCodes); err != nil {
		return nil, err
	}

	return &Entity{
		ID:          entityID,
		ChatbotID:   n.ChatbotID,
		Kind:        kind,
		BlockTypeID: n.BlockTypeID,
		Data:        n.Data,
		CreatedAt:   createdAt,
	}, nil
}

// LinkEntityTags links an existing entity of chatbotID to the tags named by codes.
func (s *SQLiteStore) LinkEntityTags(ctx context.Context, chatbotID, entityID int64, codes []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin link transaction: %w", err)
	}
	defer tx.Rollback()

	var owner int64
	err = tx.QueryRowContext(ctx, "SELECT chatbot_id FROM entities WHERE id = ?", entityID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != chatbotID) {
		return fmt.Errorf("entity %d: %w", entityID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to query entity: %w", err)
	}

	if err := linkTags(ctx, tx, entityID, codes); err != nil {
		return err
	}
	return tx.Commit()
}

func linkTags(ctx context.Context, tx *sql.Tx, entityID int64, codes []string) error {
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		var tagID int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE code = ?", code).Scan(&tagID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("tag %s: %w", code, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to query tag %s: %w", code, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO entity_tags (entity_id, tag_id) VALUES (?, ?)", entityID, tagID); err != nil {
			return fmt.Errorf("failed to link tag %s: %w", code, err)
		}
	}
	return nil
}

func requireRow(ctx context.Context, tx *sql.Tx, table string, id int64) error {
	var found int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM "+table+" WHERE id = ?", id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Knowledge lookups used by the chat pipeline. All are read-only.

func (s *SQLiteStore) ListEntityTagLinks(ctx context.Context, chatbotID int64, tagCodes []string) ([]EntityTagLink, error) {
	query, args, err := s.q.entityTagLinks(chatbotID, tagCodes)
	if err != nil {
		return nil, err
	}
	return s.queryLinks(ctx, query, args)
}

func (s *SQLiteStore) queryLinks(ctx context.Context, query string, args []interface{}) ([]EntityTagLink, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entity tags: %w", err)
	}
	defer rows.Close()

	var links []EntityTagLink
	for rows.Next() {
		var link EntityTagLink
		if err := rows.Scan(&link.EntityID, &link.TagCode); err != nil {
			return nil, fmt.Errorf("failed to scan entity tag row: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (s *SQLiteStore) GetEntitiesByIDs(ctx context.Context, chatbotID int64, ids []int64) ([]Entity, error) {
	query, args, err := s.q.entitiesByIDs(chatbotID, ids)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var e Entity
		var kind string
		var blockTypeID sql.NullInt64
		var dataJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.ChatbotID, &kind, &blockTypeID, &dataJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entity row: %w", err)
		}
		e.Kind = EntityKind(kind)
		if blockTypeID.Valid {
			e.BlockTypeID = &blockTypeID.Int64
		}
		if e.Data, err = decodeData([]byte(dataJSON.String)); err != nil {
			s.logger.Warn("Entity data is not valid JSON", zap.Int64("entity_id", e.ID), zap.Error(err))
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (s *SQLiteStore) GetContactsByEntityIDs(ctx context.Context, entityIDs []int64) ([]Contact, error) {
	query, args, err := s.q.contactsByEntityIDs(entityIDs)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.EntityID, &c.OrgName, &c.Phone, &c.Email, &c.Address, &c.City, &c.Country, &c.Hours); err != nil {
			return nil, fmt.Errorf("failed to scan contact row: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (s *SQLiteStore) GetScheduleRowsByEntityIDs(ctx context.Context, entityIDs []int64) ([]ScheduleRow, error) {
	query, args, err := s.q.scheduleRowsByEntityIDs(entityIDs)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedule []ScheduleRow
	for rows.Next() {
		var r ScheduleRow
		if err := rows.Scan(&r.ID, &r.EntityID, &r.DayOfWeek, &r.OpenTime, &r.CloseTime, &r.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		schedule = append(schedule, r)
	}
	return schedule, rows.Err()
}

func (s *SQLiteStore) GetBlockTypeNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	query, args, err := s.q.blockTypeNames(ids)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query block types: %w", err)
	}
	defer rows.Close()

	names := make(map[int64]string, len(ids))
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan block type row: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

func wrapWriteError(what string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%s: %w", what, ErrDuplicate)
	}
	return fmt.Errorf("failed to insert %s: %w", what, err)
}
