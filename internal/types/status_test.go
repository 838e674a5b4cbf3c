package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, st := range AllStatuses {
		got, err := ParseStatus(string(st))
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}

	got, err := ParseStatus("Interviewed")
	require.NoError(t, err)
	assert.Equal(t, StatusInterviewing, got)

	_, err = ParseStatus("ghosted")
	assert.Error(t, err)
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusRejected.IsTerminal())
	assert.True(t, StatusHired.IsTerminal())
	assert.False(t, StatusInterested.IsTerminal())
	assert.False(t, StatusApplied.IsTerminal())
	assert.False(t, StatusInterviewing.IsTerminal())
	assert.False(t, StatusOffer.IsTerminal())
}

func TestStatus_Rank(t *testing.T) {
	assert.Less(t, StatusInterested.Rank(), StatusApplied.Rank())
	assert.Less(t, StatusApplied.Rank(), StatusInterviewing.Rank())
	assert.Less(t, StatusInterviewing.Rank(), StatusOffer.Rank())
	assert.Less(t, StatusOffer.Rank(), StatusHired.Rank())
	assert.Equal(t, -1, StatusRejected.Rank())
}

func TestStatus_IsValid(t *testing.T) {
	assert.True(t, StatusApplied.IsValid())
	assert.False(t, Status("Applied").IsValid())
	assert.False(t, Status("").IsValid())
}

func TestJobApplication_IsOpen(t *testing.T) {
	app := JobApplication{Status: StatusApplied}
	assert.True(t, app.IsOpen())
	app.Status = StatusHired
	assert.False(t, app.IsOpen())
}
