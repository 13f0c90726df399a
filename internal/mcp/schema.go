package mcp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kb2mcp/kb2mcp/internal/protocol"
)

// argSchema is the declared parameter shape of one tool. The dispatcher
// validates call arguments against it before the handler runs, and the
// same structure renders the inputSchema advertised by tools/list.
type argSchema struct {
	properties []argProperty
	required   map[string]struct{}
}

type argProperty struct {
	name        string
	typ         string // "string", "integer", "boolean", "object"
	description string

	enum          []string
	pattern       *regexp.Regexp
	patternReason string
	minLen        int
	maxLen        int
	minimum       *int
	maximum       *int
	defaultValue  interface{}
}

func intPtr(v int) *int {
	return &v
}

// validate checks args against the schema and reports the first violation:
// unknown fields, then missing required fields in declaration order, then
// per-field type, enumeration, pattern, and range checks.
func (s *argSchema) validate(args map[string]interface{}) *toolExecutionError {
	allowed := make(map[string]struct{}, len(s.properties))
	for _, prop := range s.properties {
		allowed[prop.name] = struct{}{}
	}
	if err := assertNoUnknownArguments(args, allowed); err != nil {
		return &toolExecutionError{Code: protocol.ErrorCodeInvalidField, Message: err.Error()}
	}

	for _, prop := range s.properties {
		if _, required := s.required[prop.name]; !required {
			continue
		}
		if _, present := args[prop.name]; !present {
			return &toolExecutionError{
				Code:    protocol.ErrorCodeMissingField,
				Message: prop.name + " is required",
			}
		}
	}

	for _, prop := range s.properties {
		raw, present := args[prop.name]
		if !present {
			continue
		}
		if toolErr := prop.check(raw); toolErr != nil {
			return toolErr
		}
	}
	return nil
}

func (p *argProperty) check(raw interface{}) *toolExecutionError {
	switch p.typ {
	case "string":
		value, ok := raw.(string)
		if !ok {
			return &toolExecutionError{Code: protocol.ErrorCodeInvalidField, Message: p.name + " must be a string"}
		}
		return p.checkString(value)
	case "integer":
		value, err := parseInteger(raw, p.name)
		if err != nil {
			return &toolExecutionError{Code: protocol.ErrorCodeInvalidField, Message: err.Error()}
		}
		return p.checkInteger(value)
	case "boolean":
		if _, ok := raw.(bool); !ok {
			return &toolExecutionError{Code: protocol.ErrorCodeInvalidField, Message: p.name + " must be a boolean"}
		}
	case "object":
		if _, ok := raw.(map[string]interface{}); !ok {
			return &toolExecutionError{Code: protocol.ErrorCodeInvalidField, Message: p.name + " must be an object"}
		}
	}
	return nil
}

func (p *argProperty) checkString(value string) *toolExecutionError {
	if len(p.enum) > 0 {
		found := false
		for _, allowed := range p.enum {
			if value == allowed {
				found = true
				break
			}
		}
		if !found {
			return &toolExecutionError{
				Code:    protocol.ErrorCodeInvalidField,
				Message: fmt.Sprintf("%s must be one of %s", p.name, strings.Join(p.enum, ", ")),
			}
		}
	}
	if p.pattern != nil && !p.pattern.MatchString(value) {
		reason := p.patternReason
		if reason == "" {
			reason = fmt.Sprintf("%s must match %s", p.name, p.pattern.String())
		}
		return &toolExecutionError{Code: protocol.ErrorCodeInvalidField, Message: reason}
	}
	if p.minLen > 0 && len(value) < p.minLen {
		return p.lengthRangeError()
	}
	if p.maxLen > 0 && len(value) > p.maxLen {
		return p.lengthRangeError()
	}
	return nil
}

func (p *argProperty) lengthRangeError() *toolExecutionError {
	switch {
	case p.minLen > 0 && p.maxLen > 0:
		return &toolExecutionError{
			Code:    protocol.ErrorCodeInvalidRange,
			Message: fmt.Sprintf("%s must be between %d and %d characters", p.name, p.minLen, p.maxLen),
		}
	case p.maxLen > 0:
		return &toolExecutionError{
			Code:    protocol.ErrorCodeInvalidRange,
			Message: fmt.Sprintf("%s must be at most %d characters", p.name, p.maxLen),
		}
	default:
		return &toolExecutionError{
			Code:    protocol.ErrorCodeInvalidRange,
			Message: fmt.Sprintf("%s must be at least %d characters", p.name, p.minLen),
		}
	}
}

func (p *argProperty) checkInteger(value int) *toolExecutionError {
	if p.minimum != nil && value < *p.minimum || p.maximum != nil && value > *p.maximum {
		lower, upper := "", ""
		if p.minimum != nil {
			lower = fmt.Sprint(*p.minimum)
		}
		if p.maximum != nil {
			upper = fmt.Sprint(*p.maximum)
		}
		return &toolExecutionError{
			Code:    protocol.ErrorCodeInvalidRange,
			Message: fmt.Sprintf("%s must be between %s and %s", p.name, lower, upper),
		}
	}
	return nil
}

// jsonSchema renders the schema in JSON-Schema form for tools/list.
func (s *argSchema) jsonSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(s.properties))
	for _, prop := range s.properties {
		properties[prop.name] = prop.jsonSchema()
	}

	required := make([]string, 0, len(s.required))
	for _, prop := range s.properties {
		if _, ok := s.required[prop.name]; ok {
			required = append(required, prop.name)
		}
	}

	schema := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func (p *argProperty) jsonSchema() map[string]interface{} {
	out := map[string]interface{}{"type": p.typ}
	if p.description != "" {
		out["description"] = p.description
	}
	if len(p.enum) > 0 {
		out["enum"] = p.enum
	}
	if p.pattern != nil {
		out["pattern"] = p.pattern.String()
	}
	if p.minLen > 0 {
		out["minLength"] = p.minLen
	}
	if p.maxLen > 0 {
		out["maxLength"] = p.maxLen
	}
	if p.minimum != nil {
		out["minimum"] = *p.minimum
	}
	if p.maximum != nil {
		out["maximum"] = *p.maximum
	}
	if p.defaultValue != nil {
		out["default"] = p.defaultValue
	}
	return out
}
