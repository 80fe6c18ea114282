package tips

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FilterAudience keeps the tips sharing at least one audience with the
// requested set. A nil audience disables filtering; tips without an
// audience never match an active filter.
func FilterAudience(tips []Tip, audience []string) []Tip {
	if audience == nil {
		return tips
	}

	wanted := make(map[string]struct{}, len(audience))
	for _, a := range audience {
		wanted[a] = struct{}{}
	}

	out := make([]Tip, 0, len(tips))
	for _, tip := range tips {
		for _, a := range tip.Audience {
			if _, ok := wanted[a]; ok {
				out = append(out, tip)
				break
			}
		}
	}
	return out
}

// Enrich overlays the fields of the first enrichment targeting the tip. The
// tip is returned unchanged when no enrichment applies.
func Enrich(tip Tip, enrichments []Enrichment) (Tip, error) {
	for _, e := range enrichments {
		if !e.Applies(tip.ID) {
			continue
		}
		return overlay(tip, e.Fields)
	}
	return tip, nil
}

// overlay replaces tip fields by JSON name.
func overlay(tip Tip, fields map[string]json.RawMessage) (Tip, error) {
	if len(fields) == 0 {
		return tip, nil
	}

	base, err := json.Marshal(tip)
	if err != nil {
		return Tip{}, fmt.Errorf("failed to encode tip %q: %w", tip.ID, err)
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return Tip{}, fmt.Errorf("failed to decode tip %q: %w", tip.ID, err)
	}
	for name, value := range fields {
		merged[name] = value
	}

	body, err := json.Marshal(merged)
	if err != nil {
		return Tip{}, fmt.Errorf("failed to encode enriched tip %q: %w", tip.ID, err)
	}

	var out Tip
	if err := json.Unmarshal(body, &out); err != nil {
		return Tip{}, fmt.Errorf("failed to apply enrichment to tip %q: %w", tip.ID, err)
	}
	return out, nil
}

// Normalize projects a tip onto the public output shape.
func Normalize(tip Tip) Output {
	reason := tip.Reason
	if reason == nil {
		reason = []string{}
	}
	audience := tip.Audience
	if audience == nil {
		audience = []string{}
	}

	return Output{
		ID:              tip.ID,
		DatePublished:   tip.DatePublished,
		DateActiveStart: tip.DateActiveStart,
		DateActiveEnd:   tip.DateActiveEnd,
		Title:           tip.Title,
		Description:     tip.Description,
		Link:            tip.Link,
		ImgURL:          tip.ImgURL,
		Priority:        tip.Priority,
		IsPersonalized:  tip.IsPersonalized,
		Reason:          reason,
		Audience:        audience,
	}
}

// Rank sorts outputs by descending priority in place. Ties keep their input
// order and tips without a priority go last.
func Rank(outputs []Output) {
	sort.SliceStable(outputs, func(i, j int) bool {
		a, b := outputs[i].Priority, outputs[j].Priority
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return *a > *b
	})
}
