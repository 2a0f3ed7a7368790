package refcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestAndOrderPrefixes(t *testing.T) {
	g, err := New("test-salt")
	require.NoError(t, err)

	req, err := g.Request()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(req, "PRQ-"))

	ord, err := g.Order()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ord, "ORD-"))
}

func TestCodesAreUnique(t *testing.T) {
	g, err := New("test-salt")
	require.NoError(t, err)

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		ref, err := g.Order()
		require.NoError(t, err)
		_, dup := seen[ref]
		require.False(t, dup, "duplicate reference %s", ref)
		seen[ref] = struct{}{}
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	g, err := New("test-salt")
	require.NoError(t, err)

	ref, err := g.Request()
	require.NoError(t, err)

	ids, err := g.Decode(ref)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestDecodeRejectsWrongSalt(t *testing.T) {
	g1, err := New("salt-one")
	require.NoError(t, err)
	g2, err := New("salt-two")
	require.NoError(t, err)

	ref, err := g1.Order()
	require.NoError(t, err)

	_, err = g2.Decode(ref)
	assert.Error(t, err)
}

func TestDecodeRejectsMalformedReference(t *testing.T) {
	g, err := New("test-salt")
	require.NoError(t, err)

	_, err = g.Decode("NOPREFIX")
	assert.Error(t, err)
}
