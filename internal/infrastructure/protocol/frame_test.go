package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSerializeRoundTrip(t *testing.T) {
	f := &Frame{ID: 1, RequestID: 0, Type: TypeLogin, Content: map[string]any{"username": "admin", "password": "admin"}}
	raw, err := Serialize(f)
	require.NoError(t, err)

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, f.ID, parsed.ID)
	assert.Equal(t, f.RequestID, parsed.RequestID)
	assert.Equal(t, f.Type, parsed.Type)
	assert.Equal(t, f.Content["username"], parsed.Content["username"])
}

func TestParseRejectsMissingFields(t *testing.T) {
	_, err := Parse([]byte(`{"id":1,"requestId":0,"type":100}`))
	require.Error(t, err)
	protoErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, StatusUnknownType, protoErr.Code)
}

func TestParseRejectsNonIntegerID(t *testing.T) {
	_, err := Parse([]byte(`{"id":"one","requestId":0,"type":100,"content":"{}"}`))
	require.Error(t, err)
}

func TestParseRejectsNonStringContent(t *testing.T) {
	_, err := Parse([]byte(`{"id":1,"requestId":0,"type":100,"content":{}}`))
	require.Error(t, err)
}

func TestParseRejectsZeroID(t *testing.T) {
	_, err := Parse([]byte(`{"id":0,"requestId":0,"type":100,"content":"{}"}`))
	require.Error(t, err)
}
