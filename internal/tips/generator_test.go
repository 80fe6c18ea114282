package tips

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/tipsengine/internal/query"
	"github.com/rafaeljc/tipsengine/internal/ruleengine"
)

var tipCounter atomic.Int64

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func newTip(priority int) Tip {
	n := tipCounter.Add(1)
	return Tip{
		ID:            ID(fmt.Sprintf("test-%d", n)),
		Active:        true,
		Priority:      intPtr(priority),
		DatePublished: strPtr("2019-07-24"),
		Audience:      []string{},
		Description:   strPtr(fmt.Sprintf("Tip description %d", n)),
		Link:          Link{Title: strPtr(fmt.Sprintf("Tip link title %d", n)), To: strPtr("https://amsterdam.nl/")},
		Title:         strPtr(fmt.Sprintf("Tip title %d", n)),
		ImgURL:        strPtr("/api/tips/static/tip_images/erfpacht.jpg"),
		Reason:        []string{"The reason for this Tip to appear", "and more"},
	}
}

func rule(expr string) ruleengine.RuleList {
	return ruleengine.RuleList{ruleengine.Expression(expr)}
}

var today = time.Date(2021, 3, 15, 10, 0, 0, 0, time.UTC)

func newGenerator(opts ...Option) *Generator {
	clock := func() time.Time { return today }
	engine := ruleengine.New(nil, ruleengine.WithEvaluator(
		ruleengine.NodeTypeExpression,
		ruleengine.NewExpressionEvaluator(nil, clock),
	))
	return NewGenerator(engine, nil, append([]Option{WithClock(clock)}, opts...)...)
}

func ids(outputs []Output) []ID {
	out := make([]ID, len(outputs))
	for i, o := range outputs {
		out[i] = o.ID
	}
	return out
}

func TestGenerate_RanksByDescendingPriority(t *testing.T) {
	t.Parallel()

	tip0, tip1, tip2, tip3, tip4 := newTip(10), newTip(20), newTip(30), newTip(40), newTip(50)
	tip4.Rules = rule("False")

	catalog := &Catalog{Tips: []Tip{tip1, tip0, tip2, tip3, tip4}}
	got, err := newGenerator().Generate(context.Background(), catalog, Request{})

	require.NoError(t, err)
	assert.Equal(t, []ID{tip3.ID, tip2.ID, tip1.ID, tip0.ID}, ids(got))
}

func TestGenerate_OutputsOnlyAllowListedFields(t *testing.T) {
	t.Parallel()

	tip := newTip(50)
	tip.IsPersonalized = true
	tip.Rules = rule("true")
	tip.AlwaysVisible = true

	got, err := newGenerator().Generate(context.Background(), &Catalog{Tips: []Tip{tip}}, Request{OptIn: true, UserData: map[string]any{}})
	require.NoError(t, err)
	require.Len(t, got, 1)

	body, err := json.Marshal(got[0])
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(body, &fields))

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	assert.Equal(t, []string{
		"audience", "dateActiveEnd", "dateActiveStart", "datePublished", "description",
		"id", "imgUrl", "isPersonalized", "link", "priority", "reason", "title",
	}, keys)
}

func TestGenerate_Gates(t *testing.T) {
	t.Parallel()

	inactive := newTip(50)
	inactive.Active = false
	failing := newTip(50)
	failing.Rules = rule("false")
	passing := newTip(50)
	passing.Rules = rule("true")
	plain := newTip(50)

	catalog := &Catalog{Tips: []Tip{inactive, failing, passing, plain}}
	got, err := newGenerator().Generate(context.Background(), catalog, Request{})

	require.NoError(t, err)
	assert.Equal(t, []ID{passing.ID, plain.ID}, ids(got))
}

func TestGenerate_EvaluatesUserDataOnlyWhenOptedIn(t *testing.T) {
	t.Parallel()

	tip := newTip(50)
	tip.IsPersonalized = true
	tip.AlwaysVisible = true
	tip.Rules = rule("$.ERFPACHT.isKnown is true")

	userData := map[string]any{"ERFPACHT": map[string]any{"isKnown": true}}
	catalog := &Catalog{Tips: []Tip{tip}}
	g := newGenerator()

	got, err := g.Generate(context.Background(), catalog, Request{OptIn: true, UserData: userData})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = g.Generate(context.Background(), catalog, Request{OptIn: false, UserData: userData})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInclude(t *testing.T) {
	t.Parallel()

	g := newGenerator()
	empty := query.NewTree(map[string]any{})

	tests := []struct {
		name  string
		tip   Tip
		optIn bool
		want  bool
	}{
		{name: "Should exclude personalized tips without opt-in", tip: Tip{IsPersonalized: true, Active: true}, optIn: false, want: false},
		{name: "Should include non-personalized tips without opt-in", tip: Tip{IsPersonalized: false, Active: true}, optIn: false, want: true},
		{name: "Should exclude non-personalized tips with opt-in", tip: Tip{IsPersonalized: false, Active: true}, optIn: true, want: false},
		{name: "Should exclude inactive tips", tip: Tip{IsPersonalized: true, Active: false}, optIn: true, want: false},
		{name: "Should include personalized tips with opt-in", tip: Tip{IsPersonalized: true, Active: true}, optIn: true, want: true},
		{name: "Should bypass visibility for always visible tips", tip: Tip{IsPersonalized: true, AlwaysVisible: true, Active: true}, optIn: false, want: true},
		{name: "Should still require active for always visible tips", tip: Tip{AlwaysVisible: true}, optIn: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := g.Include(&tt.tip, empty, tt.optIn, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInclude_ActivationWindow(t *testing.T) {
	t.Parallel()

	g := newGenerator()

	tests := []struct {
		name  string
		start string
		end   string
		want  bool
	}{
		{name: "Should include between start and end", start: "2021-03-14", end: "2021-03-16", want: true},
		{name: "Should include when start is today", start: "2021-03-15", end: "2021-03-16", want: true},
		{name: "Should include when end is today", start: "2021-03-14", end: "2021-03-15", want: true},
		{name: "Should exclude when the window has passed", start: "2021-03-12", end: "2021-03-14", want: false},
		{name: "Should exclude when the window has not started", start: "2021-03-16", end: "2021-03-17", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			start, err := ParseDate(tt.start)
			require.NoError(t, err)
			end, err := ParseDate(tt.end)
			require.NoError(t, err)

			tip := newTip(50)
			tip.DateActiveStart = &start
			tip.DateActiveEnd = &end

			got, err := g.Include(&tip, query.NewTree(nil), false, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInclude_ActivationWindowUsesLocation(t *testing.T) {
	t.Parallel()

	lateEvening := time.Date(2021, 3, 14, 23, 30, 0, 0, time.UTC)
	cet := time.FixedZone("CET", 3600)
	g := NewGenerator(ruleengine.New(nil), nil,
		WithClock(func() time.Time { return lateEvening }),
		WithLocation(cet),
	)

	start := Date{Year: 2021, Month: time.March, Day: 15}
	tip := newTip(50)
	tip.DateActiveStart = &start

	got, err := g.Include(&tip, query.NewTree(nil), false, nil)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestGenerate_Audience(t *testing.T) {
	t.Parallel()

	tagged := newTip(50)
	tagged.Audience = []string{"zakelijk"}
	untagged := newTip(40)

	catalog := &Catalog{Tips: []Tip{tagged, untagged}}
	g := newGenerator()

	tests := []struct {
		name     string
		audience []string
		want     []ID
	}{
		{name: "Should keep matching audience", audience: []string{"zakelijk"}, want: []ID{tagged.ID}},
		{name: "Should keep intersecting audience", audience: []string{"zakelijk", "persoonlijk"}, want: []ID{tagged.ID}},
		{name: "Should drop disjoint audience", audience: []string{"persoonlijk"}, want: []ID{}},
		{name: "Should drop everything for an unknown audience", audience: []string{"somethingelse"}, want: []ID{}},
		{name: "Should not filter without an audience", audience: nil, want: []ID{tagged.ID, untagged.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := g.Generate(context.Background(), catalog, Request{Audience: tt.audience})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestGenerate_EnrichmentFirstMatchWins(t *testing.T) {
	t.Parallel()

	tip := newTip(50)
	other := newTip(40)
	catalog := &Catalog{
		Tips: []Tip{tip, other},
		Enrichments: []Enrichment{
			{ForIDs: []ID{"unrelated"}, Fields: map[string]json.RawMessage{"title": json.RawMessage(`"Unrelated"`)}},
			{ForIDs: []ID{tip.ID}, Fields: map[string]json.RawMessage{
				"title":  json.RawMessage(`"Enriched"`),
				"imgUrl": json.RawMessage(`"/img/enriched.jpg"`),
			}},
			{ForIDs: []ID{tip.ID}, Fields: map[string]json.RawMessage{"title": json.RawMessage(`"Second"`)}},
		},
	}

	got, err := newGenerator().Generate(context.Background(), catalog, Request{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Enriched", *got[0].Title)
	assert.Equal(t, "/img/enriched.jpg", *got[0].ImgURL)
	assert.Equal(t, *other.Title, *got[1].Title)
}

func TestGenerate_SourceTips(t *testing.T) {
	t.Parallel()

	pool := newTip(50)
	pool.IsPersonalized = true
	raw := []json.RawMessage{
		json.RawMessage(`{"id": "source1-1", "priority": 60, "rules": [{"type": "rule", "rule": "false"}], "reason": "Omdat het kan"}`),
		json.RawMessage(`{"id": "foo-1", "priority": 50, "conditional": "True"}`),
	}

	got, err := newGenerator().Generate(context.Background(), &Catalog{Tips: []Tip{pool}}, Request{
		OptIn:      true,
		UserData:   map[string]any{},
		SourceTips: raw,
	})
	require.NoError(t, err)
	assert.Equal(t, []ID{"source1-1", pool.ID, "foo-1"}, ids(got))
	assert.Equal(t, []string{"Omdat het kan"}, got[0].Reason)

	body, err := json.Marshal(got)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "rules")
	assert.NotContains(t, string(body), "conditional")
}

func TestGenerate_EmbeddedSourceTips(t *testing.T) {
	t.Parallel()

	userData := map[string]any{
		"BELASTINGEN": map[string]any{
			"tips": []any{map[string]any{"id": 1, "title": "Aangifte", "priority": 70}},
		},
		"ERFPACHT": map[string]any{"isKnown": true},
	}

	got, err := newGenerator().Generate(context.Background(), &Catalog{}, Request{OptIn: true, UserData: userData})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ID("belasting-1"), got[0].ID)
	assert.True(t, got[0].IsPersonalized)
}

func TestGenerate_PropagatesConfigurationDefects(t *testing.T) {
	t.Parallel()

	tip := newTip(50)
	tip.Rules = ruleengine.RuleList{ruleengine.Reference("loop")}
	catalog := &Catalog{
		Tips:  []Tip{tip},
		Rules: ruleengine.Table{"loop": {Name: "loop", Rules: ruleengine.RuleList{ruleengine.Reference("loop")}}},
	}

	_, err := newGenerator().Generate(context.Background(), catalog, Request{})
	assert.ErrorIs(t, err, ruleengine.ErrReferenceCycle)
}

func TestGenerate_RejectsUndecodableSourceTips(t *testing.T) {
	t.Parallel()

	_, err := newGenerator().Generate(context.Background(), &Catalog{}, Request{
		SourceTips: []json.RawMessage{json.RawMessage(`{"id": "x", "priority": "high"}`)},
	})
	assert.ErrorIs(t, err, ErrInvalidSourceTip)
}

func TestTip_MalformedRulesShape(t *testing.T) {
	t.Parallel()

	var tip Tip
	err := json.Unmarshal([]byte(`{"id": "x", "rules": "true"}`), &tip)
	assert.ErrorIs(t, err, ruleengine.ErrMalformedRules)
}
