package id

import (
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Sortable(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestNew_Parses(t *testing.T) {
	_, err := ulid.Parse(New())
	require.NoError(t, err)
}

func TestWithPrefix(t *testing.T) {
	v := WithPrefix("POS")
	assert.True(t, strings.HasPrefix(v, "POS_"))
	assert.Len(t, v, len("POS_")+26)
}
