package ulid

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateWithPrefix(t *testing.T) {
	id := GenerateWithPrefix(PrefixRequest)

	assert.Equal(t, PrefixRequest, id.Prefix())
	assert.True(t, Validate(id.String()))
	assert.Contains(t, id.String(), PrefixRequest+PrefixSeparator)
}

func TestParseRoundTrip(t *testing.T) {
	orig := GenerateWithPrefix(PrefixReview)

	parsed, err := Parse(orig.String())
	require.NoError(t, err)

	assert.Equal(t, orig.String(), parsed.String())
	assert.Equal(t, PrefixReview, parsed.Prefix())
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("req-not-a-ulid")
	assert.Error(t, err)

	assert.False(t, Validate("nope"))
}

func TestSortableByTime(t *testing.T) {
	earlier := NewWithTime(time.Now().Add(-time.Hour))
	later := NewWithTime(time.Now())

	assert.Less(t, earlier.String(), later.String())
}

func TestJSONRoundTrip(t *testing.T) {
	id := GenerateWithPrefix(PrefixRequest)

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded ULID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id.String(), decoded.String())
}

func TestRequestID(t *testing.T) {
	id := RequestID()
	assert.True(t, Validate(id))

	parsed, err := Parse(id)
	require.NoError(t, err)
	assert.Equal(t, PrefixRequest, parsed.Prefix())
}
