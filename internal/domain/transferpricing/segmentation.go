package transferpricing

import (
	"sort"
	"strconv"
	"strings"
)

// Wire prefixes of segmentation attributes. The numeric suffix is the
// segment index.
const (
	DeclaringSegmentationPrefix   = "atp_declaring_entity_segmentation_"
	CounterpartSegmentationPrefix = "atp_counterpart_entity_segmentation_"
)

// Segmentation maps a segment index to its value.
type Segmentation map[int]string

// Indexes returns the segment indexes in ascending order
func (s Segmentation) Indexes() []int {
	idx := make([]int, 0, len(s))
	for i := range s {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// MinIndex returns the lowest segment index, false when s is empty
func (s Segmentation) MinIndex() (int, bool) {
	if len(s) == 0 {
		return 0, false
	}
	lowest := 0
	first := true
	for i := range s {
		if first || i < lowest {
			lowest = i
			first = false
		}
	}
	return lowest, true
}

// Get returns the value at index i
func (s Segmentation) Get(i int) (string, bool) {
	v, ok := s[i]
	return v, ok
}

// Covers reports whether other holds every key of s with an identical value.
// An empty s is covered by anything.
func (s Segmentation) Covers(other Segmentation) bool {
	for i, v := range s {
		if ov, ok := other[i]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Equal reports whether both segmentations hold the same pairs
func (s Segmentation) Equal(other Segmentation) bool {
	return len(s) == len(other) && s.Covers(other)
}

// Signature is a canonical rendering used to order rules deterministically
func (s Segmentation) Signature() string {
	var b strings.Builder
	for n, i := range s.Indexes() {
		if n > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.Itoa(i))
		b.WriteByte('=')
		b.WriteString(s[i])
	}
	return b.String()
}

// Merge returns a copy of s completed with the keys of fallback it lacks
func (s Segmentation) Merge(fallback Segmentation) Segmentation {
	out := make(Segmentation, len(s)+len(fallback))
	for i, v := range fallback {
		out[i] = v
	}
	for i, v := range s {
		out[i] = v
	}
	return out
}

// Clone returns an independent copy
func (s Segmentation) Clone() Segmentation {
	if s == nil {
		return nil
	}
	out := make(Segmentation, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// Key renders the wire attribute name for index i under prefix
func Key(prefix string, i int) string {
	return prefix + strconv.Itoa(i)
}

// ParseKey extracts the index from a wire attribute name carrying prefix
func ParseKey(prefix, key string) (int, bool) {
	if !strings.HasPrefix(key, prefix) {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}
