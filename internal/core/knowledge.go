package core

import (
	"time"

	"gwi.com/tenant-chatbot/internal/store"
)

// Kind discriminates the KnowledgeItem variants. The numeric order is the ranking priority.
type Kind int

const (
	KindContact Kind = iota
	KindSchedule
	KindDynamic
)

func (k Kind) String() string {
	switch k {
	case KindContact:
		return "CONTACT"
	case KindSchedule:
		return "SCHEDULE"
	case KindDynamic:
		return "DYNAMIC"
	}
	return "UNKNOWN"
}

// EntityType is the lowercase name used for the kind in API responses.
func (k Kind) EntityType() string {
	switch k {
	case KindContact:
		return string(store.EntityKindContact)
	case KindSchedule:
		return string(store.EntityKindSchedule)
	case KindDynamic:
		return string(store.EntityKindDynamic)
	}
	return "unknown"
}

// KnowledgeItem is one tenant entity prepared as prompt context. The set of
// implementations is closed: ContactItem, ScheduleItem and DynamicItem.
type KnowledgeItem interface {
	Header() ItemHeader
	knowledgeItem()
}

// ItemHeader holds the fields shared by every variant. Tags lists the matched
// tag codes that linked the entity to the request.
type ItemHeader struct {
	Kind      Kind
	EntityID  int64
	CreatedAt time.Time
	Tags      []string
}

type ContactItem struct {
	ItemHeader
	OrgName string
	Phone   string
	Email   string
	Address string
	City    string
	Country string
	Hours   string
}

type ScheduleItem struct {
	ItemHeader
	Rows []ScheduleSlot
}

type ScheduleSlot struct {
	DayOfWeek time.Weekday
	OpenTime  string
	CloseTime string
	Notes     string
}

type DynamicItem struct {
	ItemHeader
	TypeID   int64
	TypeName string
	Data     map[string]any
}

func (c *ContactItem) Header() ItemHeader  { return c.ItemHeader }
func (s *ScheduleItem) Header() ItemHeader { return s.ItemHeader }
func (d *DynamicItem) Header() ItemHeader  { return d.ItemHeader }

func (*ContactItem) knowledgeItem()  {}
func (*ScheduleItem) knowledgeItem() {}
func (*DynamicItem) knowledgeItem()  {}
