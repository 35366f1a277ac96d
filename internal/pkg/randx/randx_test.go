package randx_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wschat/internal/pkg/randx"
)

func TestGuestName(t *testing.T) {
	seen := make(map[string]struct{})
	for range 50 {
		name, err := randx.GuestName()
		require.NoError(t, err)

		require.True(t, strings.HasPrefix(name, randx.GuestNamePrefix))
		suffix := strings.TrimPrefix(name, randx.GuestNamePrefix)
		require.Len(t, suffix, randx.GuestNameRawLength)
		for _, c := range suffix {
			assert.Contains(t, randx.Base62Chars, string(c))
		}
		seen[name] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}

func TestIDs(t *testing.T) {
	for _, id := range []string{randx.SessionID(), randx.PeerID()} {
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	}
	assert.NotEqual(t, randx.SessionID(), randx.SessionID())
}
