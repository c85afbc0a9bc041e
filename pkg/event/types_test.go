package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_String(t *testing.T) {
	assert.Equal(t, "sort_changed", TypeSortChanged.String())
	assert.Equal(t, "type(99)", Type(99).String())
}

func TestGroup_RoundTrip(t *testing.T) {
	for _, g := range Groups() {
		parsed, err := ParseGroup(g.String())
		require.NoError(t, err)
		assert.Equal(t, g, parsed)
	}
	_, err := ParseGroup("albums")
	assert.Error(t, err)
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, "row_hidden", Of(TypeRowHidden).String())
	assert.Equal(t, "row_hidden@report", Of(TypeRowHidden).In(GroupReport).String())
}

func TestSubscription_Accepts(t *testing.T) {
	grouped := newSubscription(TypeSortChanged, RouteTable, nil, []SubscribeOption{WithGroup(GroupSongs)})
	assert.True(t, grouped.Accepts(Of(TypeSortChanged).In(GroupSongs)))
	assert.True(t, grouped.Accepts(Of(TypeSortChanged)))
	assert.False(t, grouped.Accepts(Of(TypeSortChanged).In(GroupReport)))
	assert.False(t, grouped.Accepts(Of(TypeRowHidden).In(GroupSongs)))
	assert.NotEmpty(t, grouped.ID)
}

func TestSubscription_UngroupedAcceptsEveryGroup(t *testing.T) {
	ungrouped := newSubscription(TypeSaveRequested, RouteStore, nil, nil)
	for _, g := range append(Groups(), GroupNone) {
		assert.True(t, ungrouped.Accepts(Of(TypeSaveRequested).In(g)), g.String())
	}
}
