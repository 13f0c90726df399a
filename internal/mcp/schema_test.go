package mcp

import (
	"regexp"
	"strings"
	"testing"
)

func TestArgSchemaValidate(t *testing.T) {
	schema := &argSchema{
		properties: []argProperty{
			{name: "name", typ: "string", pattern: regexp.MustCompile(`^[a-z]+$`), patternReason: "name must be lowercase letters"},
			{name: "note", typ: "string", minLen: 3, maxLen: 10},
			{name: "level", typ: "string", enum: []string{"low", "high"}},
			{name: "count", typ: "integer", minimum: intPtr(1), maximum: intPtr(9)},
			{name: "flag", typ: "boolean"},
			{name: "extra", typ: "object"},
		},
		required: map[string]struct{}{
			"name": {},
			"note": {},
		},
	}

	valid := map[string]interface{}{
		"name":  "alpha",
		"note":  "fine",
		"level": "low",
		"count": float64(3),
		"flag":  true,
		"extra": map[string]interface{}{"k": "v"},
	}
	if toolErr := schema.validate(valid); toolErr != nil {
		t.Fatalf("valid arguments rejected: %+v", toolErr)
	}

	cases := []struct {
		name     string
		mutate   func(map[string]interface{})
		code     string
		fragment string
	}{
		{
			name:     "unknown field",
			mutate:   func(m map[string]interface{}) { m["bogus"] = 1 },
			code:     "INVALID_FIELD",
			fragment: "unknown argument: bogus",
		},
		{
			name:     "missing required in declaration order",
			mutate:   func(m map[string]interface{}) { delete(m, "name"); delete(m, "note") },
			code:     "MISSING_FIELD",
			fragment: "name is required",
		},
		{
			name:     "string type violation",
			mutate:   func(m map[string]interface{}) { m["name"] = 5 },
			code:     "INVALID_FIELD",
			fragment: "name must be a string",
		},
		{
			name:     "pattern violation uses declared reason",
			mutate:   func(m map[string]interface{}) { m["name"] = "Alpha9" },
			code:     "INVALID_FIELD",
			fragment: "name must be lowercase letters",
		},
		{
			name:     "string below minimum length",
			mutate:   func(m map[string]interface{}) { m["note"] = "no" },
			code:     "INVALID_RANGE",
			fragment: "between 3 and 10",
		},
		{
			name:     "string above maximum length",
			mutate:   func(m map[string]interface{}) { m["note"] = strings.Repeat("n", 11) },
			code:     "INVALID_RANGE",
			fragment: "between 3 and 10",
		},
		{
			name:     "enum violation",
			mutate:   func(m map[string]interface{}) { m["level"] = "medium" },
			code:     "INVALID_FIELD",
			fragment: "level must be one of low, high",
		},
		{
			name:     "integer below minimum",
			mutate:   func(m map[string]interface{}) { m["count"] = float64(0) },
			code:     "INVALID_RANGE",
			fragment: "between 1 and 9",
		},
		{
			name:     "integer above maximum",
			mutate:   func(m map[string]interface{}) { m["count"] = float64(10) },
			code:     "INVALID_RANGE",
			fragment: "between 1 and 9",
		},
		{
			name:     "fractional integer",
			mutate:   func(m map[string]interface{}) { m["count"] = 2.5 },
			code:     "INVALID_FIELD",
			fragment: "count must be an integer",
		},
		{
			name:     "boolean type violation",
			mutate:   func(m map[string]interface{}) { m["flag"] = "yes" },
			code:     "INVALID_FIELD",
			fragment: "flag must be a boolean",
		},
		{
			name:     "object type violation",
			mutate:   func(m map[string]interface{}) { m["extra"] = []interface{}{1} },
			code:     "INVALID_FIELD",
			fragment: "extra must be an object",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			args := map[string]interface{}{}
			for k, v := range valid {
				args[k] = v
			}
			tc.mutate(args)

			toolErr := schema.validate(args)
			if toolErr == nil {
				t.Fatalf("expected violation")
			}
			if toolErr.Code != tc.code {
				t.Fatalf("expected code %s, got %s (%s)", tc.code, toolErr.Code, toolErr.Message)
			}
			if !strings.Contains(toolErr.Message, tc.fragment) {
				t.Fatalf("expected message containing %q, got %q", tc.fragment, toolErr.Message)
			}
		})
	}
}

func TestArgSchemaJSONSchema(t *testing.T) {
	rendered := queryArgSchema().jsonSchema()

	if rendered["type"] != "object" || rendered["additionalProperties"] != false {
		t.Fatalf("unexpected schema envelope: %#v", rendered)
	}
	required, ok := rendered["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "query" {
		t.Fatalf("unexpected required list: %#v", rendered["required"])
	}

	properties := rendered["properties"].(map[string]interface{})
	queryProp := properties["query"].(map[string]interface{})
	if queryProp["minLength"] != queryMinLength || queryProp["maxLength"] != queryMaxLength {
		t.Fatalf("query bounds not rendered: %#v", queryProp)
	}

	maxResultsProp := properties["maxResults"].(map[string]interface{})
	if maxResultsProp["minimum"] != 1 || maxResultsProp["maximum"] != 20 {
		t.Fatalf("maxResults bounds not rendered: %#v", maxResultsProp)
	}
	if maxResultsProp["default"] != defaultMaxResults {
		t.Fatalf("maxResults default not rendered: %#v", maxResultsProp)
	}

	includeProp := properties["includeSources"].(map[string]interface{})
	if includeProp["default"] != true {
		t.Fatalf("includeSources default not rendered: %#v", includeProp)
	}
}

func TestUploadArgSchemaFilenamePattern(t *testing.T) {
	accepted := []string{"notes.md", "report.pdf", "a_b-c.1.md", "X.pdf"}
	rejected := []string{"notes", "notes.txt", "../notes.md", "dir/notes.md", "no tes.md", "notes.PDF", ""}

	for _, name := range accepted {
		if !filenamePattern.MatchString(name) {
			t.Fatalf("expected %q to be accepted", name)
		}
	}
	for _, name := range rejected {
		if filenamePattern.MatchString(name) {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}
