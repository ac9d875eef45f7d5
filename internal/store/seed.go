package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document accepted by SeedFromFile.
type SeedFile struct {
	Tags       []SeedTag       `yaml:"tags"`
	BlockTypes []SeedBlockType `yaml:"block_types"`
	Chatbots   []SeedChatbot   `yaml:"chatbots"`
}

type SeedTag struct {
	Code     string   `yaml:"code"`
	Synonyms []string `yaml:"synonyms"`
}

type SeedBlockType struct {
	Name   string         `yaml:"name"`
	Schema map[string]any `yaml:"schema"`
}

type SeedChatbot struct {
	DisplayName string         `yaml:"display_name"`
	Domain      string         `yaml:"domain"`
	Contacts    []SeedContact  `yaml:"contacts"`
	Schedules   []SeedSchedule `yaml:"schedules"`
	Blocks      []SeedBlock    `yaml:"blocks"`
}

type SeedContact struct {
	Tags    []string `yaml:"tags"`
	Contact `yaml:",inline"`
}

type SeedSchedule struct {
	Tags []string      `yaml:"tags"`
	Rows []ScheduleRow `yaml:"rows"`
}

type SeedBlock struct {
	Type string         `yaml:"type"`
	Tags []string       `yaml:"tags"`
	Data map[string]any `yaml:"data"`
}

// ParseSeed decodes a seed document, rejecting unknown fields.
func ParseSeed(raw []byte) (*SeedFile, error) {
	var seed SeedFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// SeedFromFile imports the seed document at filePath on top of defaultTags and
// returns the number of entities created. Chatbots whose domain already exists are skipped.
// Each chatbot is written together with its entities, so a failed import leaves
// nothing behind for that chatbot and can simply be rerun.
func (s *SQLiteStore) SeedFromFile(ctx context.Context, filePath string, defaultTags []Tag) (int, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file %s: %w", filePath, err)
	}
	seed, err := ParseSeed(raw)
	if err != nil {
		return 0, err
	}
	return s.Seed(ctx, seed, defaultTags)
}

func (s *SQLiteStore) Seed(ctx context.Context, seed *SeedFile, defaultTags []Tag) (int, error) {
	tags := append([]Tag{}, defaultTags...)
	for _, t := range seed.Tags {
		tags = append(tags, Tag{Code: t.Code, Synonyms: t.Synonyms})
	}
	added, err := s.EnsureTags(ctx, tags)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Tags ensured", zap.Int("added", added), zap.Int("declared", len(tags)))

	blockTypeIDs := make(map[string]int64, len(seed.BlockTypes))
	for _, bt := range seed.BlockTypes {
		id, err := s.ensureBlockType(ctx, bt)
		if err != nil {
			return 0, err
		}
		blockTypeIDs[bt.Name] = id
	}

	count := 0
	for _, sc := range seed.Chatbots {
		n, err := s.seedChatbot(ctx, sc, blockTypeIDs)
		if errors.Is(err, ErrDuplicate) {
			s.logger.Warn("Chatbot already exists, skipping", zap.String("domain", sc.Domain))
			continue
		}
		if err != nil {
			return count, err
		}
		count += n
	}
	return count, nil
}

func (s *SQLiteStore) seedChatbot(ctx context.Context, sc SeedChatbot, blockTypeIDs map[string]int64) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	chatbot, err := s.insertChatbot(ctx, tx, sc.DisplayName, sc.Domain)
	if err != nil {
		return 0, err
	}

	var entities []NewEntity
	for _, c := range sc.Contacts {
		contact := c.Contact
		entities = append(entities, NewEntity{ChatbotID: chatbot.ID, Contact: &contact, TagCodes: c.Tags})
	}
	for _, sch := range sc.Schedules {
		entities = append(entities, NewEntity{ChatbotID: chatbot.ID, Schedule: sch.Rows, TagCodes: sch.Tags})
	}
	for _, b := range sc.Blocks {
		id, ok := blockTypeIDs[b.Type]
		if !ok {
			return 0, fmt.Errorf("block of chatbot %s references undeclared block type %q", sc.Domain, b.Type)
		}
		entities = append(entities, NewEntity{ChatbotID: chatbot.ID, BlockTypeID: &id, Data: b.Data, TagCodes: b.Tags})
	}

	for _, n := range entities {
		if _, err := s.createEntity(ctx, tx, n); err != nil {
			return 0, fmt.Errorf("failed to seed entity of chatbot %s: %w", sc.Domain, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit chatbot %s: %w", sc.Domain, err)
	}
	s.logger.Info("Seeded chatbot", zap.String("domain", chatbot.Domain), zap.Int("entities", len(entities)))
	return len(entities), nil
}

func (s *SQLiteStore) ensureBlockType(ctx context.Context, bt SeedBlockType) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM block_types WHERE name = ?", bt.Name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to query block type %s: %w", bt.Name, err)
	}
	created, err := s.CreateBlockType(ctx, bt.Name, bt.Schema)
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}
