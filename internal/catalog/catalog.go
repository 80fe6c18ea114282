// Package catalog loads, validates and publishes the tip configuration: the
// tip pool, the compound rule table and the enrichment table.
//
// A loaded catalog is immutable. Store swaps catalogs atomically so that
// requests in flight keep evaluating against the catalog they started with.
package catalog

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spaolacci/murmur3"

	"github.com/rafaeljc/tipsengine/internal/ruleengine"
	"github.com/rafaeljc/tipsengine/internal/tips"
)

// Documents holds the raw JSON of the three configuration tables.
type Documents struct {
	// Tips is a JSON array of tip definitions.
	Tips json.RawMessage `json:"tips"`

	// Rules is a JSON object of compound rules keyed by id.
	Rules json.RawMessage `json:"compound_rules"`

	// Enrichments is a JSON array of enrichment entries.
	Enrichments json.RawMessage `json:"enrichments"`
}

// Fingerprint returns a stable hash of the documents.
func (d Documents) Fingerprint() string {
	h := murmur3.New128()
	for _, part := range [][]byte{d.Tips, d.Rules, d.Enrichments} {
		h.Write(bytes.TrimSpace(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Snapshot is a revisioned copy of the documents as published by the
// syncer. Revisions increase monotonically with every catalog write.
type Snapshot struct {
	Revision  int64     `json:"revision"`
	Documents Documents `json:"documents"`
}

var validate = validator.New()

// Build decodes and validates documents into an immutable catalog.
//
// It fails when any reference in the compound rule table or in a tip's
// rules is dangling or cyclic, when a rules field is malformed, or when an
// enrichment cannot be applied to a tip. Tips without an explicit reason get
// the reason derived from their references.
func Build(docs Documents) (*tips.Catalog, error) {
	var pool []tips.Tip
	if err := decodeOptional(docs.Tips, &pool); err != nil {
		return nil, fmt.Errorf("failed to decode tips: %w", err)
	}

	table := ruleengine.Table{}
	if err := decodeOptional(docs.Rules, &table); err != nil {
		return nil, fmt.Errorf("failed to decode compound rules: %w", err)
	}

	var enrichments []tips.Enrichment
	if err := decodeOptional(docs.Enrichments, &enrichments); err != nil {
		return nil, fmt.Errorf("failed to decode enrichments: %w", err)
	}

	if err := ruleengine.CompileTable(table); err != nil {
		return nil, err
	}

	for i := range pool {
		tip := &pool[i]
		if err := validate.Struct(tip); err != nil {
			return nil, fmt.Errorf("invalid tip at index %d: %w", i, err)
		}
		if err := ruleengine.ValidateRules(tip.Rules, table); err != nil {
			return nil, fmt.Errorf("invalid rules for tip %q: %w", tip.ID, err)
		}
		if len(tip.Reason) == 0 {
			reasons, err := ruleengine.Reasons(tip.Rules, table)
			if err != nil {
				return nil, fmt.Errorf("failed to derive reason for tip %q: %w", tip.ID, err)
			}
			tip.Reason = reasons
		}
	}

	for i, e := range enrichments {
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("invalid enrichment at index %d: %w", i, err)
		}
		if _, err := tips.Enrich(tips.Tip{ID: e.ForIDs[0]}, []tips.Enrichment{e}); err != nil {
			return nil, fmt.Errorf("invalid enrichment at index %d: %w", i, err)
		}
	}

	return &tips.Catalog{
		Tips:        pool,
		Rules:       table,
		Enrichments: enrichments,
		Version:     docs.Fingerprint(),
	}, nil
}

// decodeOptional leaves v untouched for empty or null documents.
func decodeOptional(data json.RawMessage, v any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	return json.Unmarshal(data, v)
}
