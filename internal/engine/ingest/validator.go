package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	apierrors "monitorflow/internal/pkg/errors"
	"monitorflow/internal/pkg/validator"
)

const (
	maxFields            = 10
	maxDescriptionLength = 1000
)

// EventRequest is the decoded ingestion body.
type EventRequest struct {
	Category    string
	Fields      map[string]interface{}
	Description string
}

// ParseRequest decodes and validates an ingestion body. Unknown keys are
// rejected, fields are capped at 10 entries of string/number/boolean
// values, and the category name is lowercased the same way categories are
// normalized at creation. A syntactically broken body yields a 400 error;
// everything else is a 422 validation error.
func ParseRequest(body []byte) (*EventRequest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apierrors.BadRequest("Invalid JSON request body")
	}

	for key := range raw {
		switch key {
		case "category", "fields", "description":
		default:
			return nil, apierrors.Validation(fmt.Sprintf("Unrecognized key %q in request body", key), nil)
		}
	}

	rawCategory, ok := raw["category"]
	if !ok {
		return nil, apierrors.Validation("Category is required", nil)
	}
	var category string
	if err := json.Unmarshal(rawCategory, &category); err != nil {
		return nil, apierrors.Validation("Category must be a string", nil)
	}
	category = strings.ToLower(strings.TrimSpace(category))
	if err := validator.CategoryName(category); err != nil {
		return nil, apierrors.Validation(err.Error(), nil)
	}

	req := &EventRequest{Category: category}

	if rawFields, ok := raw["fields"]; ok {
		var fields map[string]interface{}
		if err := json.Unmarshal(rawFields, &fields); err != nil {
			return nil, apierrors.Validation("Fields must be an object", nil)
		}
		if len(fields) > maxFields {
			return nil, apierrors.Validation(fmt.Sprintf("Maximum %d fields allowed", maxFields), nil)
		}
		for key, value := range fields {
			switch value.(type) {
			case string, float64, bool:
			default:
				return nil, apierrors.Validation(fmt.Sprintf("Field %q must be a string, number, or boolean", key), nil)
			}
		}
		req.Fields = fields
	}

	if rawDescription, ok := raw["description"]; ok {
		var description string
		if err := json.Unmarshal(rawDescription, &description); err != nil {
			return nil, apierrors.Validation("Description must be a string", nil)
		}
		if description == "" {
			return nil, apierrors.Validation("Description must not be empty", nil)
		}
		if utf8.RuneCountInString(description) > maxDescriptionLength {
			return nil, apierrors.Validation(fmt.Sprintf("Description must be less than %d characters", maxDescriptionLength), nil)
		}
		req.Description = description
	}

	return req, nil
}
