package core

import "sort"

const DefaultMaxContextItems = 5

// ContextRanker orders knowledge items by kind priority and recency and keeps
// the first maxItems of them.
type ContextRanker struct {
	maxItems int
}

func NewContextRanker(maxItems int) *ContextRanker {
	if maxItems < 1 {
		maxItems = DefaultMaxContextItems
	}
	return &ContextRanker{maxItems: maxItems}
}

func (r *ContextRanker) MaxItems() int { return r.maxItems }

// Select returns a new slice: contacts, then schedules, then dynamic items,
// each newest first with ties broken by ascending entity id, truncated to the
// window. Lower-priority kinds are only reached once higher ones are exhausted.
func (r *ContextRanker) Select(items []KnowledgeItem) []KnowledgeItem {
	ranked := make([]KnowledgeItem, len(items))
	copy(ranked, items)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Header(), ranked[j].Header()
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.EntityID < b.EntityID
	})

	if len(ranked) > r.maxItems {
		ranked = ranked[:r.maxItems]
	}
	return ranked
}
