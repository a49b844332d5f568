package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "canvas-backend/pkg/errors"
)

type sample struct {
	Name      string `json:"name" validate:"required,max=5"`
	Direction string `json:"direction" validate:"omitempty,oneof=TD LR"`
	Limit     int    `json:"limit" validate:"gte=0"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		input   sample
		wantMsg string
	}{
		{name: "valid", input: sample{Name: "ok", Direction: "LR"}},
		{name: "required", input: sample{}, wantMsg: "name is required"},
		{name: "max", input: sample{Name: "toolong"}, wantMsg: "name must be at most 5 characters"},
		{name: "oneof", input: sample{Name: "a", Direction: "BT"}, wantMsg: "direction must be one of: TD LR"},
		{name: "gte", input: sample{Name: "a", Limit: -1}, wantMsg: "limit must be greater than or equal to 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)

			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateStruct_ReportsEveryField(t *testing.T) {
	err := ValidateStruct(sample{Direction: "up", Limit: -3})

	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	fields := appErr.Details["fields"].(map[string]interface{})
	assert.Len(t, fields, 3)
}

func TestTimestamps(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 1500, time.FixedZone("CET", 3600))

	s := FormatTimestamp(at)

	assert.Equal(t, "2026-03-01T11:00:00.0000015Z", s)
	assert.True(t, at.Equal(ParseTimestamp(s)))
	assert.True(t, ParseTimestamp("yesterday").IsZero())
	assert.Less(t, FormatTimestamp(at), FormatTimestamp(at.Add(time.Second)))
}
