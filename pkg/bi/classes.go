package bi

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownEntity   = errors.New("entity not in classification")
	ErrDuplicateEntity = errors.New("entity already scored")
)

// Classes holds the classification table and the class sizes derived from it.
// It is not modified after construction and is safe for concurrent reads.
type Classes struct {
	labels map[string]string
	sizes  map[string]int
}

// NewClasses builds the classification table from entity ID to label.
func NewClasses(labels map[string]string) *Classes {
	c := &Classes{
		labels: make(map[string]string, len(labels)),
		sizes:  make(map[string]int),
	}
	for id, label := range labels {
		c.labels[id] = label
		c.sizes[label]++
	}
	return c
}

// Label returns the classification of the entity.
func (c *Classes) Label(id string) (string, error) {
	label, ok := c.labels[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	return label, nil
}

// Size returns the number of entities carrying the label.
func (c *Classes) Size(label string) int {
	return c.sizes[label]
}

func (c *Classes) Len() int {
	return len(c.labels)
}

// IDs returns all classified entity IDs in sorted order.
func (c *Classes) IDs() []string {
	ids := make([]string, 0, len(c.labels))
	for id := range c.labels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sizes returns a copy of the class size table.
func (c *Classes) Sizes() map[string]int {
	m := make(map[string]int, len(c.sizes))
	for k, v := range c.sizes {
		m[k] = v
	}
	return m
}
