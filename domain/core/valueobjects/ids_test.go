package valueobjects

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "canvas-backend/pkg/errors"
)

func TestNewNodeID(t *testing.T) {
	id := NewNodeID()

	assert.NotEmpty(t, id.String())
	assert.False(t, id.IsZero())

	_, err := uuid.Parse(id.String())
	assert.NoError(t, err)
}

func TestNewNodeIDFromString(t *testing.T) {
	validUUID := uuid.New().String()

	tests := []struct {
		name    string
		input   string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid UUID string",
			input:   validUUID,
			wantErr: false,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
			errMsg:  "node ID cannot be empty",
		},
		{
			name:    "invalid UUID format",
			input:   "not-a-uuid",
			wantErr: true,
			errMsg:  "node ID must be a valid UUID",
		},
		{
			name:    "whitespace only",
			input:   "   ",
			wantErr: true,
			errMsg:  "node ID must be a valid UUID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewNodeIDFromString(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.True(t, pkgerrors.IsValidation(err))
				assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeMalformedID))
				assert.True(t, id.IsZero())
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.input, id.String())
			}
		})
	}
}

func TestNewNodeIDFromString_Canonicalizes(t *testing.T) {
	raw := uuid.New().String()

	id, err := NewNodeIDFromString(strings.ToUpper(raw))

	require.NoError(t, err)
	assert.Equal(t, raw, id.String())
	assert.Equal(t, NodeID(raw), id)
}

func TestNodeID_TextRoundTrip(t *testing.T) {
	original := NewNodeID()

	text, err := original.MarshalText()
	require.NoError(t, err)

	var decoded NodeID
	require.NoError(t, decoded.UnmarshalText(text))
	assert.True(t, original.Equals(decoded))

	var empty NodeID
	require.NoError(t, empty.UnmarshalText(nil))
	assert.True(t, empty.IsZero())

	assert.Error(t, decoded.UnmarshalText([]byte("bogus")))
}

func TestParseSessionID(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		raw := uuid.New().String()
		id, err := ParseSessionID(raw)
		require.NoError(t, err)
		assert.Equal(t, SessionID(raw), id)
		assert.False(t, id.IsZero())
	})

	t.Run("malformed is a validation error, not a lookup miss", func(t *testing.T) {
		_, err := ParseSessionID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
		assert.False(t, pkgerrors.IsNotFound(err))
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeMalformedID))
	})
}

func TestParseGraphID(t *testing.T) {
	raw := uuid.New().String()

	id, err := ParseGraphID(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, id.String())

	_, err = ParseGraphID("")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeMalformedID))
}

func TestNewIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		for _, id := range []string{NewGraphID().String(), NewEdgeID().String(), NewSessionID().String()} {
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
	}
}
