package tips

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidSourceTip is matched when a caller supplied tip cannot be decoded.
var ErrInvalidSourceTip = errors.New("invalid source tip")

// sourceTip lists the only fields read from caller supplied tips. Anything
// else, including rules and conditional expressions, is never decoded.
type sourceTip struct {
	ID            ID              `json:"id"`
	Priority      *int            `json:"priority"`
	DatePublished *string         `json:"datePublished"`
	Title         *string         `json:"title"`
	Description   *string         `json:"description"`
	Link          *Link           `json:"link"`
	ImgURL        *string         `json:"imgUrl"`
	Reason        json.RawMessage `json:"reason"`
}

// IngestSourceTips converts caller supplied tips into the internal shape.
// Ingested tips are active and personalized, carry no rules, no audience
// and no activation window.
func IngestSourceTips(raw []json.RawMessage) ([]Tip, error) {
	out := make([]Tip, 0, len(raw))
	for i, r := range raw {
		tip, err := ingest(r)
		if err != nil {
			return nil, fmt.Errorf("%w at index %d: %v", ErrInvalidSourceTip, i, err)
		}
		out = append(out, tip)
	}
	return out, nil
}

func ingest(raw json.RawMessage) (Tip, error) {
	var src sourceTip
	if err := json.Unmarshal(raw, &src); err != nil {
		return Tip{}, err
	}

	tip := Tip{
		ID:             src.ID,
		Title:          src.Title,
		Description:    src.Description,
		Priority:       src.Priority,
		Active:         true,
		IsPersonalized: true,
		DatePublished:  src.DatePublished,
		ImgURL:         src.ImgURL,
		Reason:         decodeReason(src.Reason),
	}
	if src.Link != nil {
		tip.Link = *src.Link
	}
	return tip, nil
}

// decodeReason accepts a single string or a list of strings. Any other
// shape yields no reason.
func decodeReason(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []string{}
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return []string{}
		}
		return []string{single}
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && many != nil {
		return many
	}
	return []string{}
}

// FixID rewrites ids of data sources that do not follow the tip id
// conventions. Tax office tips get a "belasting-" prefix.
func FixID(id ID, source string) ID {
	if strings.EqualFold(source, "BELASTINGEN") || strings.EqualFold(source, "belasting") {
		return "belasting-" + id
	}
	return id
}

// CollectEmbeddedTips extracts the tips that data sources embed in the user
// data under "<SOURCE>.tips". Sources are visited in name order and each tip
// id is passed through FixID with its source name.
func CollectEmbeddedTips(userData any) ([]Tip, error) {
	sources, ok := userData.(map[string]any)
	if !ok {
		return nil, nil
	}

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Tip
	for _, name := range names {
		section, ok := sources[name].(map[string]any)
		if !ok {
			continue
		}
		list, ok := section["tips"].([]any)
		if !ok {
			continue
		}

		for i, item := range list {
			raw, err := json.Marshal(item)
			if err != nil {
				return nil, fmt.Errorf("%w: %s tip %d: %v", ErrInvalidSourceTip, name, i, err)
			}
			tip, err := ingest(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s tip %d: %v", ErrInvalidSourceTip, name, i, err)
			}
			tip.ID = FixID(tip.ID, name)
			out = append(out, tip)
		}
	}
	return out, nil
}
