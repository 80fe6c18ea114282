// Package tips selects and ranks the tips shown to a citizen.
//
// The pipeline runs in a fixed order: source tips are ingested and appended
// to the pool, the audience stage narrows the candidates, the filter
// predicate gates each tip, matching enrichments are overlaid, and the
// survivors are normalized to the public output shape and ranked by
// priority.
package tips

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rafaeljc/tipsengine/internal/query"
	"github.com/rafaeljc/tipsengine/internal/ruleengine"
)

// ID is a tip identifier. Numeric JSON ids are accepted and kept in their
// decimal form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("tip id must be a string or a number: %w", err)
		}
		*id = ID(n.String())
	}
	return nil
}

// Date is a calendar date without a time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate accepts "2006-01-02" and any ISO-8601 datetime; the time of day
// is discarded.
func ParseDate(s string) (Date, error) {
	t, err := query.ParseTime(s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Link is the call to action of a tip.
type Link struct {
	Title *string `json:"title"`
	To    *string `json:"to"`
}

// Tip is the internal representation of a tip definition.
type Tip struct {
	ID              ID                  `json:"id" validate:"required"`
	Title           *string             `json:"title"`
	Description     *string             `json:"description"`
	Priority        *int                `json:"priority"`
	Active          bool                `json:"active"`
	IsPersonalized  bool                `json:"isPersonalized"`
	AlwaysVisible   bool                `json:"alwaysVisible"`
	Audience        []string            `json:"audience"`
	DateActiveStart *Date               `json:"dateActiveStart"`
	DateActiveEnd   *Date               `json:"dateActiveEnd"`
	DatePublished   *string             `json:"datePublished"`
	Link            Link                `json:"link"`
	ImgURL          *string             `json:"imgUrl"`
	Rules           ruleengine.RuleList `json:"rules,omitempty"`
	Reason          []string            `json:"reason"`
}

// Enrichment overlays Fields onto the tips listed in ForIDs.
type Enrichment struct {
	ForIDs []ID                       `json:"forIds" validate:"required,min=1"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// Applies reports whether the enrichment targets the tip id.
func (e Enrichment) Applies(id ID) bool {
	for _, candidate := range e.ForIDs {
		if candidate == id {
			return true
		}
	}
	return false
}

// Output is the public representation of a selected tip. It carries only
// allow-listed fields; rule definitions never leave the service.
type Output struct {
	ID              ID       `json:"id"`
	DatePublished   *string  `json:"datePublished"`
	DateActiveStart *Date    `json:"dateActiveStart"`
	DateActiveEnd   *Date    `json:"dateActiveEnd"`
	Title           *string  `json:"title"`
	Description     *string  `json:"description"`
	Link            Link     `json:"link"`
	ImgURL          *string  `json:"imgUrl"`
	Priority        *int     `json:"priority"`
	IsPersonalized  bool     `json:"isPersonalized"`
	Reason          []string `json:"reason"`
	Audience        []string `json:"audience"`
}

// Catalog is the immutable configuration the pipeline runs against.
type Catalog struct {
	Tips        []Tip
	Rules       ruleengine.Table
	Enrichments []Enrichment

	// Version fingerprints the catalog content.
	Version string
}

// Request is one tip selection request.
type Request struct {
	OptIn      bool
	UserData   any
	SourceTips []json.RawMessage

	// Audience restricts the result to tips tagged with at least one of the
	// listed audiences. Nil disables the audience stage.
	Audience []string
}
