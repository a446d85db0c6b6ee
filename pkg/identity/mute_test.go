package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryMutes struct {
	rules []MuteRule
	saved []MuteRule
}

func (m *memoryMutes) LoadMutes(context.Context) ([]MuteRule, error) { return m.rules, nil }

func (m *memoryMutes) SaveMutes(_ context.Context, rules []MuteRule) error {
	m.saved = rules
	return nil
}

func str(s string) *string { return &s }

func loadedMuteList(t *testing.T, rules ...MuteRule) *MuteList {
	t.Helper()
	list := NewMuteList(&memoryMutes{rules: rules})
	require.NoError(t, list.Load(context.Background()))
	return list
}

func TestIsMuted(t *testing.T) {
	list := loadedMuteList(t,
		MuteRule{UserID: 1, Type: MuteAll},
		MuteRule{UserID: 2, Type: MuteInclude, Events: []MutedEvent{
			{EventName: "push"},
			{EventName: "issues", Actions: []string{"opened"}},
		}},
		MuteRule{UserID: 3, Type: MuteExclude, Events: []MutedEvent{
			{EventName: "pull_request", Actions: []string{"opened"}},
			{EventName: "release"},
		}},
	)

	tests := []struct {
		name   string
		user   int64
		event  string
		action *string
		want   bool
	}{
		{"no rule", 99, "push", nil, false},
		{"all", 1, "star", str("created"), true},
		{"include any action", 2, "push", nil, true},
		{"include listed action", 2, "issues", str("opened"), true},
		{"include other action", 2, "issues", str("closed"), false},
		{"include listed actions without action", 2, "issues", nil, false},
		{"include other event", 2, "star", str("created"), false},
		{"exclude listed action", 3, "pull_request", str("opened"), false},
		{"exclude other action", 3, "pull_request", str("closed"), true},
		{"exclude without action", 3, "pull_request", nil, false},
		{"exclude null actions grants nothing", 3, "release", str("published"), true},
		{"exclude other event", 3, "push", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, list.IsMuted(tt.user, tt.event, tt.action))
		})
	}
}

func TestIsMutedUnknownType(t *testing.T) {
	list := loadedMuteList(t, MuteRule{UserID: 1, Type: "sometimes"})
	assert.False(t, list.IsMuted(1, "push", nil))
}

func TestMuteListReplaceAndSave(t *testing.T) {
	backend := &memoryMutes{rules: []MuteRule{{UserID: 1, Type: MuteAll}, {UserID: 2, Type: MuteAll}}}
	list := NewMuteList(backend)

	assert.ErrorIs(t, list.Replace(1, nil), ErrNotLoaded)
	assert.ErrorIs(t, list.Save(context.Background()), ErrNotLoaded)

	require.NoError(t, list.Load(context.Background()))
	require.NoError(t, list.Replace(1, nil))
	require.NoError(t, list.Replace(3, &MuteRule{Type: MuteInclude, Events: []MutedEvent{{EventName: "push"}}}))
	require.NoError(t, list.Save(context.Background()))

	require.Len(t, backend.saved, 2)
	assert.Equal(t, int64(2), backend.saved[0].UserID)
	assert.Equal(t, int64(3), backend.saved[1].UserID)
	assert.False(t, list.IsMuted(1, "push", nil))
	assert.True(t, list.IsMuted(3, "push", nil))
}
