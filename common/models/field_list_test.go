package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFieldList(t *testing.T) {
	assert.Nil(t, NewFieldList(nil))
	assert.Nil(t, NewFieldList([]string{}))
	assert.Nil(t, NewFieldList([]string{"", ""}), "blank names do not make a restriction")

	list := NewFieldList([]string{"c", "a", "b", "a"})
	assert.Equal(t, FieldList{"a", "b", "c"}, list, "lists are sorted and deduplicated")
}

func TestFieldListContains(t *testing.T) {
	var unrestricted FieldList
	assert.True(t, unrestricted.Unrestricted())
	assert.True(t, unrestricted.Contains("anything"))

	list := NewFieldList([]string{"a", "b"})
	assert.False(t, list.Unrestricted())
	assert.True(t, list.Contains("a"))
	assert.False(t, list.Contains("c"))
}

func TestFieldListUnion(t *testing.T) {
	ab := NewFieldList([]string{"a", "b"})
	bc := NewFieldList([]string{"b", "c"})

	assert.Equal(t, FieldList{"a", "b", "c"}, ab.Union(bc))

	// Either side unrestricted collapses the union to unrestricted.
	assert.Nil(t, ab.Union(nil))
	assert.Nil(t, FieldList(nil).Union(bc))
}

func TestFieldListScanRoundTrip(t *testing.T) {
	list := NewFieldList([]string{"temperature", "humidity"})
	value, err := list.Value()
	assert.NoError(t, err)

	var scanned FieldList
	assert.NoError(t, scanned.Scan(value))
	assert.Equal(t, list, scanned)

	// nil stores as NULL and scans back to unrestricted
	value, err = FieldList(nil).Value()
	assert.NoError(t, err)
	assert.Nil(t, value)
	var unrestricted FieldList
	assert.NoError(t, unrestricted.Scan(nil))
	assert.Nil(t, unrestricted)
}
