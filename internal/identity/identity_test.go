package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		a, b  string
		equal bool
	}{
		{"https://example.com/one/one", "https://example.com/OnE/oNe", true},
		{"https://example.com/one/one", "https://example.com/one/one/", true},
		{"https://example.com/one/one", "https://example.com/one/one.git", false},
		{"https://example.com/one", "https://example.com/two", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.equal, Equal(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}

func TestSet_KeepsFirstSpelling(t *testing.T) {
	s := NewSet("https://example.com/A/a", "https://example.com/a/A", "https://example.com/b")

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"https://example.com/A/a", "https://example.com/b"}, s.Refs())

	got, ok := s.Lookup("HTTPS://EXAMPLE.COM/a/a")
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/A/a", got)
}

func TestSet_SubtractAndFilter(t *testing.T) {
	persisted := NewSet("1", "2", "3")
	fetched := NewSet("1", "4", "5")

	assert.Equal(t, []string{"4", "5"}, fetched.Subtract(persisted))
	assert.Equal(t, []string{"2", "3"}, persisted.Subtract(fetched))
	assert.Equal(t, []string{"1"}, fetched.Filter(persisted))
}

func TestSet_NilSafe(t *testing.T) {
	var s *Set
	assert.False(t, s.Contains("x"))
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Refs())
	assert.Equal(t, []string{"x"}, NewSet("x").Subtract(s))
}
