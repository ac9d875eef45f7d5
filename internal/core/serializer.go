package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const ContextHeader = "Chatbot knowledge context:"

// ContextSerializer renders selected items as the context block of the prompt.
// Output depends only on the input: map keys are sorted and field order is fixed.
type ContextSerializer struct{}

func NewContextSerializer() *ContextSerializer { return &ContextSerializer{} }

func (s *ContextSerializer) Render(items []KnowledgeItem) string {
	var b strings.Builder
	b.WriteString(ContextHeader)

	for _, item := range items {
		b.WriteByte('\n')
		switch it := item.(type) {
		case *ContactItem:
			writeContact(&b, it)
		case *ScheduleItem:
			writeSchedule(&b, it)
		case *DynamicItem:
			writeDynamic(&b, it)
		}
	}
	return b.String()
}

func writeContact(b *strings.Builder, c *ContactItem) {
	fmt.Fprintf(b, "CONTACT (entityId=%d)", c.EntityID)
	fields := [][2]string{
		{"orgName", c.OrgName},
		{"phone", c.Phone},
		{"email", c.Email},
		{"address", c.Address},
		{"city", c.City},
		{"country", c.Country},
		{"hours", c.Hours},
	}
	pairs := make([]string, 0, len(fields))
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		pairs = append(pairs, f[0]+":"+f[1])
	}
	writePairs(b, pairs)
}

func writeSchedule(b *strings.Builder, s *ScheduleItem) {
	fmt.Fprintf(b, "SCHEDULE (entityId=%d):", s.EntityID)
	for _, row := range s.Rows {
		fmt.Fprintf(b, "\n  day: %s, open: %s, close: %s", row.DayOfWeek, row.OpenTime, row.CloseTime)
		if row.Notes != "" {
			fmt.Fprintf(b, ", notes: %s", row.Notes)
		}
	}
}

func writeDynamic(b *strings.Builder, d *DynamicItem) {
	fmt.Fprintf(b, "DYNAMIC (entityId=%d, type=%s)", d.EntityID, d.TypeName)
	keys := make([]string, 0, len(d.Data))
	for k := range d.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+":"+formatValue(d.Data[k]))
	}
	writePairs(b, pairs)
}

// writePairs leaves no separator behind when an item has nothing to show.
func writePairs(b *strings.Builder, pairs []string) {
	if len(pairs) == 0 {
		return
	}
	b.WriteString(": ")
	b.WriteString(strings.Join(pairs, ", "))
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int, int64, int32:
		return fmt.Sprint(val)
	default:
		// encoding/json sorts map keys, so nested values stay stable too.
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}
