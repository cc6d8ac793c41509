/*
Package factory provides rate-table document to Go conversion.

PURPOSE:
  Converts the published per-diem document (the JSON served to the mobile
  app, or a YAML copy kept by an operator) into a diaria.RateTable. When a
  decree changes the rates, only the document changes, never the code.

JSON SCHEMA:
  {
    "decretos": [
      {"title": "Diárias", "decree": "Decreto nº 4.307",
       "date": "18/07/2002", "link": "https://..."}
    ],
    "aed": {"title": "Adicional de Embarque e Desembarque", "value": 95.00},
    "grupos": {"A": "Comandantes de Força ...", "B": "..."},
    "localidades": {"l1": "Brasília, Manaus e Rio de Janeiro", "l2": "..."},
    "diarias": {"A": {"l1": 406.70, "l2": 386.37}, "B": {"l1": 321.10}}
  }

KEY FEATURES:
  - Rates may be numbers or numeric strings
  - Non-numeric and negative rates are dropped (lookups then yield 0),
    unless the factory is Strict, in which case they are an error
  - The reverse conversion (ToDocument) feeds the rate cache and the
    "tables export" command

USAGE:
  f := factory.NewRateTableFactory()
  table, err := f.Parse(body)

  // From a file on disk (.json, .yaml, .yml)
  table, err := factory.LoadFile("rates.yaml")

SEE ALSO:
  - diaria/types.go: RateTable definition
  - factory/defaults.go: Built-in table
  - ratesource/fetcher.go: Fetches the JSON document
*/
package factory

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cadrimil/engine/diaria"
)

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// RateDocument is the published rate-table document.
type RateDocument struct {
	Decrees    []DecreeDoc                     `json:"decretos" yaml:"decretos"`
	Allowance  AllowanceDoc                    `json:"aed" yaml:"aed"`
	Groups     map[string]string               `json:"grupos" yaml:"grupos"`
	Localities map[string]string               `json:"localidades" yaml:"localidades"`
	Rates      map[string]map[string]RateValue `json:"diarias" yaml:"diarias"`
}

// DecreeDoc is one legal citation.
type DecreeDoc struct {
	Title  string `json:"title" yaml:"title"`
	Decree string `json:"decree" yaml:"decree"`
	Date   string `json:"date" yaml:"date"`
	Link   string `json:"link" yaml:"link"`
}

// AllowanceDoc is the AED entry.
type AllowanceDoc struct {
	Title string    `json:"title" yaml:"title"`
	Value RateValue `json:"value" yaml:"value"`
}

// RateValue is a monetary value that tolerates malformed input: anything
// that is not a number decodes as invalid rather than failing the document.
type RateValue struct {
	Value decimal.Decimal
	Valid bool
}

// NewRateValue wraps a decimal.
func NewRateValue(d decimal.Decimal) RateValue { return RateValue{Value: d, Valid: true} }

func (v RateValue) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return []byte(v.Value.String()), nil
}

func (v *RateValue) UnmarshalJSON(b []byte) error {
	*v = parseRateValue(string(bytes.Trim(b, `"`)))
	return nil
}

func (v RateValue) MarshalYAML() (any, error) {
	if !v.Valid {
		return nil, nil
	}
	f, _ := v.Value.Float64()
	return f, nil
}

func (v *RateValue) UnmarshalYAML(node *yaml.Node) error {
	*v = parseRateValue(node.Value)
	return nil
}

func parseRateValue(s string) RateValue {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return RateValue{}
	}
	// Accept "406,70" as written in Brazilian documents.
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return RateValue{}
	}
	return RateValue{Value: d, Valid: true}
}

// =============================================================================
// RATE TABLE FACTORY
// =============================================================================

// RateTableFactory converts documents to rate tables.
type RateTableFactory struct {
	// Strict rejects documents with invalid or negative rates instead of
	// dropping those entries.
	Strict bool
}

// NewRateTableFactory creates a lenient factory.
func NewRateTableFactory() *RateTableFactory {
	return &RateTableFactory{}
}

// Parse decodes a JSON document.
func (f *RateTableFactory) Parse(data []byte) (diaria.RateTable, error) {
	var doc RateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return diaria.RateTable{}, fmt.Errorf("failed to parse rate table JSON: %w", err)
	}
	return f.FromDocument(doc)
}

// ParseYAML decodes a YAML document.
func (f *RateTableFactory) ParseYAML(data []byte) (diaria.RateTable, error) {
	var doc RateDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return diaria.RateTable{}, fmt.Errorf("failed to parse rate table YAML: %w", err)
	}
	return f.FromDocument(doc)
}

// FromDocument converts a decoded document into a RateTable.
func (f *RateTableFactory) FromDocument(doc RateDocument) (diaria.RateTable, error) {
	table := diaria.RateTable{
		Groups:     make(map[diaria.GroupKey]string, len(doc.Groups)),
		Localities: make(map[diaria.LocalityKey]string, len(doc.Localities)),
		Rates:      make(map[diaria.GroupKey]map[diaria.LocalityKey]decimal.Decimal, len(doc.Rates)),
		Allowance: diaria.Allowance{
			Title: doc.Allowance.Title,
			Value: decimal.Zero,
		},
	}

	for k, label := range doc.Groups {
		table.Groups[diaria.GroupKey(k)] = label
	}
	for k, label := range doc.Localities {
		table.Localities[diaria.LocalityKey(k)] = label
	}

	for group, byLocality := range doc.Rates {
		rates := make(map[diaria.LocalityKey]decimal.Decimal, len(byLocality))
		for locality, v := range byLocality {
			if !v.Valid || v.Value.IsNegative() {
				if f.Strict {
					return diaria.RateTable{}, fmt.Errorf("invalid rate for %s/%s", group, locality)
				}
				continue
			}
			rates[diaria.LocalityKey(locality)] = v.Value
		}
		table.Rates[diaria.GroupKey(group)] = rates
	}

	if doc.Allowance.Value.Valid && !doc.Allowance.Value.Value.IsNegative() {
		table.Allowance.Value = doc.Allowance.Value.Value
	} else if f.Strict && doc.Allowance.Value.Valid {
		return diaria.RateTable{}, fmt.Errorf("invalid allowance value %s", doc.Allowance.Value.Value)
	}

	for _, d := range doc.Decrees {
		table.Decrees = append(table.Decrees, diaria.Decree{
			Title:  d.Title,
			Decree: d.Decree,
			Date:   d.Date,
			Link:   d.Link,
		})
	}

	return table, nil
}

// ToDocument converts a RateTable back to its document form.
func ToDocument(t diaria.RateTable) RateDocument {
	doc := RateDocument{
		Allowance: AllowanceDoc{
			Title: t.Allowance.Title,
			Value: NewRateValue(t.Allowance.Value),
		},
		Groups:     make(map[string]string, len(t.Groups)),
		Localities: make(map[string]string, len(t.Localities)),
		Rates:      make(map[string]map[string]RateValue, len(t.Rates)),
		Decrees:    make([]DecreeDoc, len(t.Decrees)),
	}
	for k, v := range t.Groups {
		doc.Groups[string(k)] = v
	}
	for k, v := range t.Localities {
		doc.Localities[string(k)] = v
	}
	for g, byLocality := range t.Rates {
		rates := make(map[string]RateValue, len(byLocality))
		for l, v := range byLocality {
			rates[string(l)] = NewRateValue(v)
		}
		doc.Rates[string(g)] = rates
	}
	for i, d := range t.Decrees {
		doc.Decrees[i] = DecreeDoc{Title: d.Title, Decree: d.Decree, Date: d.Date, Link: d.Link}
	}
	return doc
}

// MarshalTable encodes a table as an indented JSON document.
func MarshalTable(t diaria.RateTable) ([]byte, error) {
	return json.MarshalIndent(ToDocument(t), "", "  ")
}

// =============================================================================
// CONVENIENCE
// =============================================================================

// ParseRateTable decodes a JSON document with a lenient factory.
func ParseRateTable(data []byte) (diaria.RateTable, error) {
	return NewRateTableFactory().Parse(data)
}

// LoadFile reads a JSON, YAML or Excel document from disk, chosen by
// extension.
func LoadFile(path string) (diaria.RateTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return diaria.RateTable{}, fmt.Errorf("failed to read rate table: %w", err)
	}

	f := NewRateTableFactory()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return f.ParseYAML(data)
	case ".xlsx", ".xls":
		return f.ParseSpreadsheet(bytes.NewReader(data), path)
	default:
		return f.Parse(data)
	}
}
