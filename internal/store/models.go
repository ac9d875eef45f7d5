package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type Chatbot struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	Domain      string    `json:"domain"`
	CreatedAt   time.Time `json:"created_at"`
}

type Tag struct {
	ID       int64    `json:"id"`
	Code     string   `json:"code"`
	Synonyms []string `json:"synonyms"`
}

type EntityKind string

const (
	EntityKindContact  EntityKind = "contact"
	EntityKindSchedule EntityKind = "schedule"
	EntityKindDynamic  EntityKind = "dynamic"
)

func (k EntityKind) Valid() bool {
	switch k {
	case EntityKindContact, EntityKindSchedule, EntityKindDynamic:
		return true
	}
	return false
}

// Entity is the tenant-owned record every knowledge item is built from.
// BlockTypeID and Data are only set for dynamic entities.
type Entity struct {
	ID          int64          `json:"id"`
	ChatbotID   int64          `json:"chatbot_id"`
	Kind        EntityKind     `json:"kind"`
	BlockTypeID *int64         `json:"block_type_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

type Contact struct {
	EntityID int64  `json:"entity_id" yaml:"-"`
	OrgName  string `json:"org_name" yaml:"org_name"`
	Phone    string `json:"phone" yaml:"phone"`
	Email    string `json:"email" yaml:"email"`
	Address  string `json:"address" yaml:"address"`
	City     string `json:"city" yaml:"city"`
	Country  string `json:"country" yaml:"country"`
	Hours    string `json:"hours" yaml:"hours"`
}

// ScheduleRow is one opening window. DayOfWeek follows time.Weekday (Sunday = 0).
type ScheduleRow struct {
	ID        int64  `json:"id" yaml:"-"`
	EntityID  int64  `json:"entity_id" yaml:"-"`
	DayOfWeek int    `json:"day_of_week" yaml:"day_of_week"`
	OpenTime  string `json:"open_time" yaml:"open_time"`
	CloseTime string `json:"close_time" yaml:"close_time"`
	Notes     string `json:"notes,omitempty" yaml:"notes"`
}

type BlockType struct {
	ID     int64          `json:"id"`
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema,omitempty"`
}

// EntityTagLink is one row of the entity/tag association, resolved to the tag code.
type EntityTagLink struct {
	EntityID int64
	TagCode  string
}
