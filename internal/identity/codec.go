package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// record is the persisted shape. It has no token field, so encoding can never
// leak one regardless of what the in-memory Identity holds.
type record struct {
	ID              string     `json:"id"`
	DisplayName     string     `json:"displayName"`
	ServiceUsername string     `json:"serviceUsername"`
	CommitterName   string     `json:"committerName"`
	CommitterEmail  string     `json:"committerEmail"`
	IsActive        bool       `json:"isActive"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastUsedAt      *time.Time `json:"lastUsedAt,omitempty"`
}

const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "displayName", "serviceUsername", "committerName", "committerEmail", "isActive", "createdAt"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "displayName": {"type": "string"},
      "serviceUsername": {"type": "string", "minLength": 1, "maxLength": 39},
      "committerName": {"type": "string"},
      "committerEmail": {"type": "string"},
      "isActive": {"type": "boolean"},
      "createdAt": {"type": "string"},
      "lastUsedAt": {"type": "string"}
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchema))
		if err != nil {
			schemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("identities.schema.json", doc); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("identities.schema.json")
	})
	return schema, schemaErr
}

// Encode serialises the non-secret fields as an ordered JSON array.
func Encode(identities []Identity) ([]byte, error) {
	records := make([]record, 0, len(identities))
	for _, i := range identities {
		records = append(records, record{
			ID:              i.ID,
			DisplayName:     i.DisplayName,
			ServiceUsername: i.ServiceUsername,
			CommitterName:   i.CommitterName,
			CommitterEmail:  i.CommitterEmail,
			IsActive:        i.IsActive,
			CreatedAt:       i.CreatedAt,
			LastUsedAt:      i.LastUsedAt,
		})
	}
	return json.MarshalIndent(records, "", "  ")
}

// Decode validates data against the document schema and returns the identities
// in stored order. Decoded identities never carry a token.
func Decode(data []byte) ([]Identity, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile identity schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse identities: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("identities document does not match schema: %w", err)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode identities: %w", err)
	}
	out := make([]Identity, 0, len(records))
	for _, r := range records {
		out = append(out, Identity{
			ID:              r.ID,
			DisplayName:     r.DisplayName,
			ServiceUsername: r.ServiceUsername,
			CommitterName:   r.CommitterName,
			CommitterEmail:  r.CommitterEmail,
			IsActive:        r.IsActive,
			CreatedAt:       r.CreatedAt,
			LastUsedAt:      r.LastUsedAt,
		})
	}
	return out, nil
}
