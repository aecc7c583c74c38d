// Package ingest decodes and validates raw tick batches at the service
// boundary. The schema pins the envelope shape only; record-level repair of
// messy field values stays with the cleaner.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/luke0708/stock-analysis/internal/models"
)

// AnalyzeRequest is the wire form of one analysis request: one security,
// one trading date, one raw tick batch.
type AnalyzeRequest struct {
	Symbol string `json:"symbol"`
	// Date is the analysis date, YYYY-MM-DD, venue-local.
	Date string `json:"date"`
	// CurrentDay is the provider's current-trading-day signal.
	CurrentDay     bool              `json:"current_day"`
	WindowMin      int               `json:"window_min,omitempty"`
	IncludeAuction bool              `json:"include_auction,omitempty"`
	Ticks          []models.RawTrade `json:"ticks"`
}

// ParsedDate returns the request date in the given location.
func (r *AnalyzeRequest) ParsedDate(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", r.Date, loc)
}

// ValidationError is a batch-shape validation failure with the offending
// field location.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request field %q: %s", e.Field, e.Message)
}

// Validator validates analyze-request payloads against the batch schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the batch schema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7

	schemaJSON, err := json.Marshal(analyzeRequestSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	if err := compiler.AddResource("analyze_request.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile("analyze_request.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// Decode validates raw JSON against the schema and unmarshals it. A payload
// that fails the schema never reaches the pipeline.
func (v *Validator) Decode(data []byte) (*AnalyzeRequest, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}

	if err := v.schema.Validate(doc); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			leaf := ve
			for len(leaf.Causes) > 0 {
				leaf = leaf.Causes[0]
			}
			return nil, &ValidationError{Field: leaf.InstanceLocation, Message: leaf.Message}
		}
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var req AnalyzeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}

// analyzeRequestSchema is the JSON Schema (Draft 7) for the analyze
// request envelope. Tick fields stay permissive: the cleaner owns unit,
// side, and timestamp repair.
func analyzeRequestSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"symbol": map[string]interface{}{
				"type":      "string",
				"minLength": 1,
				"maxLength": 16,
			},
			"date": map[string]interface{}{
				"type":    "string",
				"pattern": `^\d{4}-\d{2}-\d{2}$`,
			},
			"current_day": map[string]interface{}{
				"type": "boolean",
			},
			"window_min": map[string]interface{}{
				"type": "integer",
				"enum": []interface{}{1, 5, 10},
			},
			"include_auction": map[string]interface{}{
				"type": "boolean",
			},
			"ticks": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"time":   map[string]interface{}{"type": "string"},
						"price":  map[string]interface{}{"type": "number"},
						"volume": map[string]interface{}{"type": "number"},
						"amount": map[string]interface{}{"type": "number"},
						"side":   map[string]interface{}{"type": "string"},
						"seq":    map[string]interface{}{"type": "integer"},
					},
					"required": []string{"time", "price", "volume"},
				},
			},
		},
		"required": []string{"symbol", "date", "current_day", "ticks"},
	}
}
