package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// FieldList restricts a read or write grant to a subset of the target's
// fields. A nil FieldList means the grant is unrestricted and covers every
// field. The empty non-nil list is not valid on a grant.
type FieldList []string

// NewFieldList returns a normalized copy of fields: sorted, deduplicated.
// Returns nil for an empty input, which denotes an unrestricted grant.
func NewFieldList(fields []string) FieldList {
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(fields))
	result := make(FieldList, 0, len(fields))
	for _, field := range fields {
		if field == "" || seen[field] {
			continue
		}
		seen[field] = true
		result = append(result, field)
	}
	if len(result) == 0 {
		return nil
	}
	sort.Strings(result)
	return result
}

// Unrestricted returns true if the list covers every field.
func (s FieldList) Unrestricted() bool {
	return s == nil
}

// Contains returns true if the list covers the named field. An unrestricted
// list contains every field.
func (s FieldList) Contains(field string) bool {
	if s == nil {
		return true
	}
	for _, f := range s {
		if f == field {
			return true
		}
	}
	return false
}

// Union combines two field lists. If either side is unrestricted the result
// is unrestricted.
func (s FieldList) Union(other FieldList) FieldList {
	if s == nil || other == nil {
		return nil
	}
	return NewFieldList(append(append([]string{}, s...), other...))
}

func (s *FieldList) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch t := src.(type) {
	case string:
		data = []byte(t)
	case []byte:
		data = t
	default:
		return fmt.Errorf("error expected string or []byte: %#v", src)
	}
	if len(data) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(data, s)
}

func (s FieldList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
