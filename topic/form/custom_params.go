package form

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gmbyapa/ktopics/pkg/orderedmap"
	"github.com/gmbyapa/ktopics/topic"
	"github.com/google/uuid"
)

// CustomParam is a user entered configuration override.
type CustomParam struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FormattedParams maps a custom parameter name to its value.
type FormattedParams map[string]string

// IndexGenerator allocates opaque index keys for custom params.
type IndexGenerator func() string

// SequentialIndexes returns a generator producing "0", "1", "2", ...
func SequentialIndexes() IndexGenerator {
	var next int
	return func() string {
		idx := strconv.Itoa(next)
		next++
		return idx
	}
}

// UUIDIndexes generates random UUID keys.
func UUIDIndexes() string {
	return uuid.New().String()
}

type CustomParamsOption func(*CustomParams)

func WithIndexGenerator(gen IndexGenerator) CustomParamsOption {
	return func(p *CustomParams) {
		p.nextIndex = gen
	}
}

// CustomParams holds custom params keyed by an index allocated at entry time, so entries
// can be edited before their names are known or unique. Keys are never renumbered.
type CustomParams struct {
	byIndex   *orderedmap.Map[string, CustomParam]
	nextIndex IndexGenerator
}

func NewCustomParams(options ...CustomParamsOption) *CustomParams {
	p := &CustomParams{
		byIndex:   orderedmap.New[string, CustomParam](),
		nextIndex: SequentialIndexes(),
	}
	for _, opt := range options {
		opt(p)
	}

	return p
}

// Add appends an empty entry and returns its index.
func (p *CustomParams) Add() string {
	idx := p.nextIndex()
	for p.byIndex.Has(idx) {
		idx = p.nextIndex()
	}
	p.byIndex.Set(idx, CustomParam{})

	return idx
}

// Update replaces the entry at index.
func (p *CustomParams) Update(index string, param CustomParam) error {
	if !p.byIndex.Has(index) {
		return &topic.NotFoundError{Kind: `custom param`, Key: index}
	}
	p.byIndex.Set(index, param)

	return nil
}

func (p *CustomParams) SetName(index, name string) error {
	param, err := p.Get(index)
	if err != nil {
		return err
	}
	param.Name = name

	return p.Update(index, param)
}

func (p *CustomParams) SetValue(index, value string) error {
	param, err := p.Get(index)
	if err != nil {
		return err
	}
	param.Value = value

	return p.Update(index, param)
}

// Remove deletes the entry at index. Other entries keep their index.
func (p *CustomParams) Remove(index string) {
	p.byIndex.Delete(index)
}

func (p *CustomParams) Get(index string) (CustomParam, error) {
	param, ok := p.byIndex.Get(index)
	if !ok {
		return CustomParam{}, &topic.NotFoundError{Kind: `custom param`, Key: index}
	}

	return param, nil
}

// Indexes returns the entry indexes in display order.
func (p *CustomParams) Indexes() []string {
	return p.byIndex.Keys()
}

func (p *CustomParams) Len() int {
	return p.byIndex.Len()
}

// Flatten maps every named entry to its value in index order. A name entered twice keeps the
// value of the later entry. Entries with a blank name are skipped.
func (p *CustomParams) Flatten() FormattedParams {
	params := FormattedParams{}
	p.byIndex.Range(func(_ string, param CustomParam) bool {
		name := strings.TrimSpace(param.Name)
		if name == `` {
			return true
		}
		params[name] = param.Value
		return true
	})

	return params
}

type customParamsJSON struct {
	ByIndex    map[string]CustomParam `json:"byIndex"`
	AllIndexes []string               `json:"allIndexes"`
}

func (p *CustomParams) MarshalJSON() ([]byte, error) {
	out := customParamsJSON{
		ByIndex:    map[string]CustomParam{},
		AllIndexes: p.byIndex.Keys(),
	}
	p.byIndex.Range(func(idx string, param CustomParam) bool {
		out.ByIndex[idx] = param
		return true
	})

	return json.Marshal(out)
}

// UnmarshalJSON reads the byIndex/allIndexes form. Indexes listed in allIndexes without an
// entry, and entries missing from allIndexes, are dropped.
func (p *CustomParams) UnmarshalJSON(data []byte) error {
	in := customParamsJSON{}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	if p.byIndex == nil {
		p.byIndex = orderedmap.New[string, CustomParam]()
	}
	p.byIndex.Reset()
	if p.nextIndex == nil {
		p.nextIndex = SequentialIndexes()
	}

	for _, idx := range in.AllIndexes {
		param, ok := in.ByIndex[idx]
		if !ok {
			continue
		}
		p.byIndex.Set(idx, param)
	}

	return nil
}
