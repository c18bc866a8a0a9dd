package uuid

import (
	"testing"

	guuid "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsValidUUID(t *testing.T) {
	t.Parallel()

	id, err := NewUUIDGenerator().NewID()
	require.NoError(t, err)

	parsed, err := guuid.Parse(id)
	require.NoError(t, err)
	require.Equal(t, guuid.Version(7), parsed.Version())
}

func TestNewIDIsUnique(t *testing.T) {
	t.Parallel()

	gen := NewUUIDGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := gen.NewID()
		require.NoError(t, err)
		require.False(t, seen[id])
		seen[id] = true
	}
}
