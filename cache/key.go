package cache

import (
	"fmt"
	"strings"

	"github.com/saiset-co/sai-feed/utils"
)

// Key identifies a cached query. Two keys are equal when their segments
// encode to the same values in the same order.
type Key struct {
	segments []interface{}
	parts    []string
	hash     string
}

func NewKey(segments ...interface{}) Key {
	parts := make([]string, len(segments))
	for i, segment := range segments {
		parts[i] = encodeSegment(segment)
	}

	copied := make([]interface{}, len(segments))
	copy(copied, segments)

	return Key{
		segments: copied,
		parts:    parts,
		hash:     "[" + strings.Join(parts, ",") + "]",
	}
}

func encodeSegment(segment interface{}) string {
	data, err := utils.Marshal(segment)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprintf("%v", segment))
	}
	return string(data)
}

func (k Key) String() string {
	return k.hash
}

func (k Key) IsEmpty() bool {
	return len(k.parts) == 0
}

func (k Key) Segments() []interface{} {
	out := make([]interface{}, len(k.segments))
	copy(out, k.segments)
	return out
}

func (k Key) Equal(other Key) bool {
	return k.hash == other.hash
}

// HasPrefix reports whether prefix's segments lead k's segments.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix.parts) > len(k.parts) {
		return false
	}
	for i, part := range prefix.parts {
		if k.parts[i] != part {
			return false
		}
	}
	return true
}
