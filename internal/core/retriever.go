package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gwi.com/tenant-chatbot/internal/logging"
	"gwi.com/tenant-chatbot/internal/store"
)

// KnowledgeStore is the read surface the retriever needs. Every lookup takes
// an id set and is answered by a single query.
type KnowledgeStore interface {
	ListEntityTagLinks(ctx context.Context, chatbotID int64, tagCodes []string) ([]store.EntityTagLink, error)
	GetEntitiesByIDs(ctx context.Context, chatbotID int64, ids []int64) ([]store.Entity, error)
	GetContactsByEntityIDs(ctx context.Context, entityIDs []int64) ([]store.Contact, error)
	GetScheduleRowsByEntityIDs(ctx context.Context, entityIDs []int64) ([]store.ScheduleRow, error)
	GetBlockTypeNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

type KnowledgeRetriever struct {
	store  KnowledgeStore
	logger *zap.Logger
}

func NewKnowledgeRetriever(s KnowledgeStore, logger *zap.Logger) *KnowledgeRetriever {
	return &KnowledgeRetriever{store: s, logger: logging.OrNop(logger)}
}

// Fetch loads every entity of tenantID linked to one of tags. The result keeps
// the link order and is not ranked.
func (r *KnowledgeRetriever) Fetch(ctx context.Context, tenantID int64, tags TagSet) ([]KnowledgeItem, error) {
	if len(tags) == 0 {
		return []KnowledgeItem{}, nil
	}

	links, err := r.store.ListEntityTagLinks(ctx, tenantID, tags.Codes())
	if err != nil {
		return nil, retrievalError("entity tag links", err)
	}

	var order []int64
	tagsByEntity := make(map[int64][]string)
	for _, link := range links {
		if _, seen := tagsByEntity[link.EntityID]; !seen {
			order = append(order, link.EntityID)
		}
		tagsByEntity[link.EntityID] = append(tagsByEntity[link.EntityID], link.TagCode)
	}
	if len(order) == 0 {
		return []KnowledgeItem{}, nil
	}

	entities, err := r.store.GetEntitiesByIDs(ctx, tenantID, order)
	if err != nil {
		return nil, retrievalError("entities", err)
	}

	entityByID := make(map[int64]store.Entity, len(entities))
	var contactIDs, scheduleIDs, typeIDs []int64
	seenType := make(map[int64]struct{})
	for _, e := range entities {
		if e.ChatbotID != tenantID {
			r.logger.Error("Dropping entity owned by another tenant",
				zap.Int64("entity_id", e.ID), zap.Int64("tenant_id", tenantID))
			continue
		}
		entityByID[e.ID] = e
		switch e.Kind {
		case store.EntityKindContact:
			contactIDs = append(contactIDs, e.ID)
		case store.EntityKindSchedule:
			scheduleIDs = append(scheduleIDs, e.ID)
		case store.EntityKindDynamic:
			if e.BlockTypeID == nil {
				continue
			}
			if _, seen := seenType[*e.BlockTypeID]; !seen {
				seenType[*e.BlockTypeID] = struct{}{}
				typeIDs = append(typeIDs, *e.BlockTypeID)
			}
		}
	}

	// The three lookups touch disjoint id sets and run concurrently.
	var (
		contacts  map[int64]store.Contact
		schedules map[int64][]store.ScheduleRow
		typeNames map[int64]string
	)
	g, gctx := errgroup.WithContext(ctx)
	if len(contactIDs) > 0 {
		g.Go(func() error {
			rows, err := r.store.GetContactsByEntityIDs(gctx, contactIDs)
			if err != nil {
				return retrievalError("contacts", err)
			}
			contacts = make(map[int64]store.Contact, len(rows))
			for _, c := range rows {
				if _, dup := contacts[c.EntityID]; !dup {
					contacts[c.EntityID] = c
				}
			}
			return nil
		})
	}
	if len(scheduleIDs) > 0 {
		g.Go(func() error {
			rows, err := r.store.GetScheduleRowsByEntityIDs(gctx, scheduleIDs)
			if err != nil {
				return retrievalError("schedules", err)
			}
			schedules = make(map[int64][]store.ScheduleRow, len(scheduleIDs))
			for _, row := range rows {
				schedules[row.EntityID] = append(schedules[row.EntityID], row)
			}
			return nil
		})
	}
	if len(typeIDs) > 0 {
		g.Go(func() error {
			names, err := r.store.GetBlockTypeNames(gctx, typeIDs)
			if err != nil {
				return retrievalError("block type names", err)
			}
			typeNames = names
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]KnowledgeItem, 0, len(order))
	for _, id := range order {
		e, ok := entityByID[id]
		if !ok {
			continue
		}
		header := ItemHeader{EntityID: id, CreatedAt: e.CreatedAt, Tags: tagsByEntity[id]}

		switch e.Kind {
		case store.EntityKindContact:
			c, ok := contacts[id]
			if !ok {
				r.logger.Debug("Contact entity has no contact row", zap.Int64("entity_id", id))
				continue
			}
			header.Kind = KindContact
			items = append(items, &ContactItem{
				ItemHeader: header,
				OrgName:    c.OrgName,
				Phone:      c.Phone,
				Email:      c.Email,
				Address:    c.Address,
				City:       c.City,
				Country:    c.Country,
				Hours:      c.Hours,
			})
		case store.EntityKindSchedule:
			rows := schedules[id]
			if len(rows) == 0 {
				r.logger.Debug("Schedule entity has no rows", zap.Int64("entity_id", id))
				continue
			}
			header.Kind = KindSchedule
			slots := make([]ScheduleSlot, 0, len(rows))
			for _, row := range rows {
				slots = append(slots, ScheduleSlot{
					DayOfWeek: time.Weekday(row.DayOfWeek),
					OpenTime:  row.OpenTime,
					CloseTime: row.CloseTime,
					Notes:     row.Notes,
				})
			}
			items = append(items, &ScheduleItem{ItemHeader: header, Rows: slots})
		case store.EntityKindDynamic:
			if e.BlockTypeID == nil {
				continue
			}
			name, ok := typeNames[*e.BlockTypeID]
			if !ok {
				r.logger.Debug("Dynamic entity references unknown block type",
					zap.Int64("entity_id", id), zap.Int64("block_type_id", *e.BlockTypeID))
				continue
			}
			header.Kind = KindDynamic
			items = append(items, &DynamicItem{
				ItemHeader: header,
				TypeID:     *e.BlockTypeID,
				TypeName:   name,
				Data:       e.Data,
			})
		}
	}
	return items, nil
}

func retrievalError(what string, err error) error {
	return newError(CodeInternal, "Failed to load chatbot knowledge", fmt.Errorf("load %s: %w", what, err))
}
