package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ResourceID globally and uniquely identifies a resource of any kind.
// The string form is "kind:uuid" e.g. "sensor:7cb0a6a2-....".
// The zero value is not a valid ID.
type ResourceID struct {
	kind ResourceKind
	id   string
}

func NewResourceID(kind ResourceKind) ResourceID {
	return ResourceID{kind: kind, id: uuid.New().String()}
}

// ParseResourceID parses the "kind:uuid" string form of a resource ID.
func ParseResourceID(str string) (ResourceID, error) {
	parts := strings.SplitN(str, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ResourceID{}, fmt.Errorf("error invalid resource id %q", str)
	}
	return ResourceID{kind: ResourceKind(parts[0]), id: parts[1]}, nil
}

// MustParseResourceID parses the string form of a resource ID, panicking on
// malformed input. For use in tests and static initializers only.
func MustParseResourceID(str string) ResourceID {
	id, err := ParseResourceID(str)
	if err != nil {
		panic(err)
	}
	return id
}

func (s ResourceID) Kind() ResourceKind {
	return s.kind
}

func (s ResourceID) String() string {
	if s.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s:%s", s.kind, s.id)
}

func (s ResourceID) Valid() bool {
	return s.kind != "" && s.id != ""
}

func (s ResourceID) IsZero() bool {
	return s.kind == "" && s.id == ""
}

func (s *ResourceID) Scan(src interface{}) error {
	if src == nil {
		*s = ResourceID{}
		return nil
	}
	str, ok := src.(string)
	if !ok {
		return fmt.Errorf("error expected string: %#v", src)
	}
	if str == "" {
		*s = ResourceID{}
		return nil
	}
	id, err := ParseResourceID(str)
	if err != nil {
		return err
	}
	*s = id
	return nil
}

func (s ResourceID) Value() (driver.Value, error) {
	if s.IsZero() {
		return nil, nil
	}
	return s.String(), nil
}

func (s ResourceID) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ResourceID) UnmarshalJSON(data []byte) error {
	var str string
	err := json.Unmarshal(data, &str)
	if err != nil {
		return err
	}
	if str == "" {
		*s = ResourceID{}
		return nil
	}
	id, err := ParseResourceID(str)
	if err != nil {
		return err
	}
	*s = id
	return nil
}
