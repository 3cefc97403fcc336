package main

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// jqMatcher holds compiled jq filters that must all evaluate truthy.
type jqMatcher struct {
	filters []*gojq.Code
}

func compileJQFilters(filters []string) (*jqMatcher, error) {
	m := &jqMatcher{filters: make([]*gojq.Code, len(filters))}
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		m.filters[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return m, nil
}

// Match reports whether v passes every filter. v is evaluated through its
// JSON form so filters see the same field names the API returns.
func (m *jqMatcher) Match(v interface{}) (bool, error) {
	if len(m.filters) == 0 {
		return true, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, err
	}

	for _, code := range m.filters {
		iter := code.Run(doc)
		result, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, isErr := result.(error); isErr {
			return false, err
		}
		if !isTruthy(result) {
			return false, nil
		}
	}
	return true, nil
}

func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	// Everything else (numbers, strings, objects, arrays) is truthy
	return true
}
