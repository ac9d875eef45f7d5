package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"gwi.com/tenant-chatbot/internal/logging"
)

// PostgresStore reads the chat pipeline's data from the admin backend's
// Postgres database. It never writes; tenants, tags and entities are managed there.
type PostgresStore struct {
	pool   *pgxpool.Pool
	q      queries
	logger *zap.Logger
}

func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	logger = logging.OrNop(logger)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
	)
	return &PostgresStore{pool: pool, q: newQueries(squirrel.Dollar), logger: logger}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetChatbotByID(ctx context.Context, id int64) (*Chatbot, error) {
	query, args, err := s.q.chatbotByID(id)
	if err != nil {
		return nil, err
	}
	return s.getChatbot(ctx, query, args)
}

func (s *PostgresStore) GetChatbotByDomain(ctx context.Context, domain string) (*Chatbot, error) {
	query, args, err := s.q.chatbotByDomain(domain)
	if err != nil {
		return nil, err
	}
	return s.getChatbot(ctx, query, args)
}

func (s *PostgresStore) getChatbot(ctx context.Context, query string, args []interface{}) (*Chatbot, error) {
	var c Chatbot
	err := s.pool.QueryRow(ctx, query, args...).Scan(&c.ID, &c.DisplayName, &c.Domain, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query chatbot: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) ListTags(ctx context.Context) ([]Tag, error) {
	query, args, err := s.q.listTags()
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		var tag Tag
		var synonymsJSON []byte
		if err := rows.Scan(&tag.ID, &tag.Code, &synonymsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		if tag.Synonyms, err = decodeSynonyms(synonymsJSON); err != nil {
			s.logger.Warn("Skipping synonyms of tag", zap.String("code", tag.Code), zap.Error(err))
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (s *PostgresStore) ListEntityTagLinks(ctx context.Context, chatbotID int64, tagCodes []string) ([]EntityTagLink, error) {
	query, args, err := s.q.entityTagLinks(chatbotID, tagCodes)
	if err != nil {
		return nil, err
	}
	return s.queryLinks(ctx, query, args)
}

func (s *PostgresStore) queryLinks(ctx context.Context, query string, args []interface{}) ([]EntityTagLink, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *PostgresStore) GetEntitiesByIDs(ctx context.Context, chatbotID int64, ids []int64) ([]Entity, error) {
	query, args, err := s.q.entitiesByIDs(chatbotID, ids)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var e Entity
		var kind string
		var dataJSON []byte
		if err := rows.Scan(&e.ID, &e.ChatbotID, &kind, &e.BlockTypeID, &dataJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entity row: %w", err)
		}
		e.Kind = EntityKind(kind)
		if e.Data, err = decodeData(dataJSON); err != nil {
			s.logger.Warn("Entity data is not valid JSON", zap.Int64("entity_id", e.ID), zap.Error(err))
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (s *PostgresStore) GetContactsByEntityIDs(ctx context.Context, entityIDs []int64) ([]Contact, error) {
	query, args, err := s.q.contactsByEntityIDs(entityIDs)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *PostgresStore) GetScheduleRowsByEntityIDs(ctx context.Context, entityIDs []int64) ([]ScheduleRow, error) {
	query, args, err := s.q.scheduleRowsByEntityIDs(entityIDs)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *PostgresStore) GetBlockTypeNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	query, args, err := s.q.blockTypeNames(ids)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
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
