package core

import (
	"context"
	"sync"
	"time"

	"gwi.com/tenant-chatbot/internal/store"
)

// fakeStore is an in-memory TenantStore, TagSource and KnowledgeStore that counts queries.
type fakeStore struct {
	mu sync.Mutex

	chatbots  []store.Chatbot
	tags      []store.Tag
	entities  []store.Entity
	contacts  []store.Contact
	schedules []store.ScheduleRow
	types     map[int64]string
	links     []fakeLink

	// leakedLinks are returned by ListEntityTagLinks without any tenant filter.
	leakedLinks []store.EntityTagLink

	calls map[string]int
	err   map[string]error
}

type fakeLink struct {
	entityID int64
	code     string
}

func newFakeStore() *fakeStore {
	return &fakeStore{types: map[int64]string{}, calls: map[string]int{}, err: map[string]error{}}
}

func (f *fakeStore) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.err[name]
}

func (f *fakeStore) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeStore) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeStore) GetChatbotByID(_ context.Context, id int64) (*store.Chatbot, error) {
	if err := f.record("GetChatbotByID"); err != nil {
		return nil, err
	}
	for _, c := range f.chatbots {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetChatbotByDomain(_ context.Context, domain string) (*store.Chatbot, error) {
	if err := f.record("GetChatbotByDomain"); err != nil {
		return nil, err
	}
	for _, c := range f.chatbots {
		if c.Domain == domain {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListTags(context.Context) ([]store.Tag, error) {
	if err := f.record("ListTags"); err != nil {
		return nil, err
	}
	return f.tags, nil
}

func (f *fakeStore) ListEntityTagLinks(_ context.Context, chatbotID int64, codes []string) ([]store.EntityTagLink, error) {
	if err := f.record("ListEntityTagLinks"); err != nil {
		return nil, err
	}
	want := map[string]bool{}
	for _, c := range codes {
		want[c] = true
	}
	owner := map[int64]int64{}
	for _, e := range f.entities {
		owner[e.ID] = e.ChatbotID
	}
	var out []store.EntityTagLink
	for _, l := range f.links {
		if want[l.code] && owner[l.entityID] == chatbotID {
			out = append(out, store.EntityTagLink{EntityID: l.entityID, TagCode: l.code})
		}
	}
	return append(out, f.leakedLinks...), nil
}

// GetEntitiesByIDs ignores chatbotID so tests can check the retriever's own ownership filter.
func (f *fakeStore) GetEntitiesByIDs(_ context.Context, _ int64, ids []int64) ([]store.Entity, error) {
	if err := f.record("GetEntitiesByIDs"); err != nil {
		return nil, err
	}
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []store.Entity
	for _, e := range f.entities {
		if want[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) GetContactsByEntityIDs(_ context.Context, ids []int64) ([]store.Contact, error) {
	if err := f.record("GetContactsByEntityIDs"); err != nil {
		return nil, err
	}
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []store.Contact
	for _, c := range f.contacts {
		if want[c.EntityID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetScheduleRowsByEntityIDs(_ context.Context, ids []int64) ([]store.ScheduleRow, error) {
	if err := f.record("GetScheduleRowsByEntityIDs"); err != nil {
		return nil, err
	}
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []store.ScheduleRow
	for _, r := range f.schedules {
		if want[r.EntityID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetBlockTypeNames(_ context.Context, ids []int64) (map[int64]string, error) {
	if err := f.record("GetBlockTypeNames"); err != nil {
		return nil, err
	}
	out := map[int64]string{}
	for _, id := range ids {
		if name, ok := f.types[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func (f *fakeStore) addContact(chatbotID, id int64, createdAt time.Time, c store.Contact, codes ...string) {
	f.entities = append(f.entities, store.Entity{ID: id, ChatbotID: chatbotID, Kind: store.EntityKindContact, CreatedAt: createdAt})
	c.EntityID = id
	f.contacts = append(f.contacts, c)
	f.link(id, codes...)
}

func (f *fakeStore) addSchedule(chatbotID, id int64, createdAt time.Time, rows []store.ScheduleRow, codes ...string) {
	f.entities = append(f.entities, store.Entity{ID: id, ChatbotID: chatbotID, Kind: store.EntityKindSchedule, CreatedAt: createdAt})
	for _, r := range rows {
		r.EntityID = id
		f.schedules = append(f.schedules, r)
	}
	f.link(id, codes...)
}

func (f *fakeStore) addDynamic(chatbotID, id, typeID int64, createdAt time.Time, data map[string]any, codes ...string) {
	tid := typeID
	f.entities = append(f.entities, store.Entity{ID: id, ChatbotID: chatbotID, Kind: store.EntityKindDynamic, BlockTypeID: &tid, Data: data, CreatedAt: createdAt})
	f.link(id, codes...)
}

func (f *fakeStore) link(id int64, codes ...string) {
	for _, c := range codes {
		f.links = append(f.links, fakeLink{entityID: id, code: c})
	}
}

// fakeProvider records the prompt and returns a canned answer or error.
type fakeProvider struct {
	mu      sync.Mutex
	answer  string
	err     error
	calls   int
	system  string
	turns   []ProviderTurn
	lastCtx context.Context
}

func (p *fakeProvider) Generate(ctx context.Context, system string, turns []ProviderTurn) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.system = system
	p.turns = turns
	p.lastCtx = ctx
	return p.answer, p.err
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(hours int) time.Time { return t0.Add(time.Duration(hours) * time.Hour) }

func contactItem(id int64, createdAt time.Time) *ContactItem {
	return &ContactItem{ItemHeader: ItemHeader{Kind: KindContact, EntityID: id, CreatedAt: createdAt}}
}

func scheduleItem(id int64, createdAt time.Time) *ScheduleItem {
	return &ScheduleItem{ItemHeader: ItemHeader{Kind: KindSchedule, EntityID: id, CreatedAt: createdAt}}
}

func dynamicItem(id int64, createdAt time.Time) *DynamicItem {
	return &DynamicItem{ItemHeader: ItemHeader{Kind: KindDynamic, EntityID: id, CreatedAt: createdAt}, TypeName: "FAQ"}
}

func entityIDs(items []KnowledgeItem) []int64 {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.Header().EntityID
	}
	return ids
}
