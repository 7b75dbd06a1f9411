package gitutil

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAddContains(t *testing.T) {
	s := Set[string]{}
	assert.False(t, s.Contains("a"))
	s.Add("a")
	s.Add("a")
	s.Add("b")
	assert.True(t, s.Contains("a"))
	assert.True(t, s.Contains("b"))
	assert.False(t, s.Contains("c"))

	elems := s.Elements()
	sort.Strings(elems)
	assert.Equal(t, []string{"a", "b"}, elems)
}

func TestSetElementsEmpty(t *testing.T) {
	s := Set[int]{}
	assert.Empty(t, s.Elements())
}
