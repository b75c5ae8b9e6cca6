package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntFromString(t *testing.T) {
	assert.Equal(t, 42, IntFromString("42", 7))
	assert.Equal(t, 7, IntFromString("", 7))
	assert.Equal(t, 7, IntFromString("forty-two", 7))
}

func TestSplitUri(t *testing.T) {
	did, rkey, err := SplitUri(
		"at://did:plc:abc123/app.bsky.feed.post/3kxyz",
		"/app.bsky.feed.post/",
	)
	require.NoError(t, err)
	assert.Equal(t, "did:plc:abc123", did)
	assert.Equal(t, "3kxyz", rkey)

	_, _, err = SplitUri(
		"at://did:plc:abc123/app.bsky.feed.like/3kxyz",
		"/app.bsky.feed.post/",
	)
	require.Error(t, err)

	_, _, err = SplitUri("at://did:plc:abc123/app.bsky.feed.post/", "/app.bsky.feed.post/")
	require.Error(t, err)
}
