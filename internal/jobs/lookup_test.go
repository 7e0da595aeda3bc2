package jobs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alceccentric/mltd-borderbot/internal/dao"
	"github.com/alceccentric/mltd-borderbot/internal/format"
	"github.com/alceccentric/mltd-borderbot/internal/matsuri"
	"github.com/alceccentric/mltd-borderbot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestLookup_CurrentCacheMiss(t *testing.T) {
	lookup := NewLookup(newStore(t), new(MockResolver), new(MockSource))
	_, err := lookup.Render(context.Background(), nil)
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestLookup_CurrentUsesStoredBaseline(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	prev := snapshot(jst(12, 0, 0), 700)
	require.NoError(t, store.Replace(ctx, snapshot(jst(12, 30, 0), 1000), &prev))

	text, err := NewLookup(store, new(MockResolver), new(MockSource)).Render(ctx, nil)
	require.NoError(t, err)
	assert.Contains(t, text, "(+300)")
}

func TestLookup_PastEndedEventIsCached(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	ev := activeEvent()
	ev.ID = 250
	ev.IsActive = false
	doc := snapshot(jst(12, 0, 0), 42)
	doc.Metadata.ID = 250

	resolver := new(MockResolver)
	resolver.On("ResolveEvent", mock.Anything, intPtr(250)).Return(ev, nil).Once()
	source := new(MockSource)
	source.On("FetchBorder", mock.Anything, ev).Return(doc, nil).Once()

	lookup := NewLookup(store, resolver, source)
	lookup.now = func() time.Time { return doc.Metadata.Ends.Add(time.Hour) }

	first, err := lookup.Past(ctx, 250)
	require.NoError(t, err)
	second, err := lookup.Past(ctx, 250)
	require.NoError(t, err)

	assert.Equal(t, 42, first.Borders[100])
	assert.Equal(t, first.Borders, second.Borders)
	resolver.AssertNumberOfCalls(t, "ResolveEvent", 1)
	source.AssertNumberOfCalls(t, "FetchBorder", 1)
}

func TestLookup_PastOngoingEventIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	ev := activeEvent()
	doc := snapshot(jst(12, 0, 0), 42)

	resolver := new(MockResolver)
	resolver.On("ResolveEvent", mock.Anything, intPtr(300)).Return(ev, nil)
	source := new(MockSource)
	source.On("FetchBorder", mock.Anything, ev).Return(doc, nil)

	lookup := NewLookup(store, resolver, source)
	lookup.now = func() time.Time { return jst(12, 5, 0) }

	_, err := lookup.Past(ctx, 300)
	require.NoError(t, err)
	_, err = store.Past(ctx, 300)
	assert.ErrorIs(t, err, dao.ErrNotFound)

	_, err = lookup.Past(ctx, 300)
	require.NoError(t, err)
	source.AssertNumberOfCalls(t, "FetchBorder", 2)
}

func TestLookup_PastErrorsKeepIdentity(t *testing.T) {
	ctx := context.Background()
	resolver := new(MockResolver)
	resolver.On("ResolveEvent", mock.Anything, intPtr(999)).Return(models.EventRecord{}, matsuri.ErrEventNotFound)
	borderless := activeEvent()
	borderless.ID = 12
	borderless.HasBorder = false
	resolver.On("ResolveEvent", mock.Anything, intPtr(12)).Return(borderless, nil)
	source := new(MockSource)
	source.On("FetchBorder", mock.Anything, borderless).Return(models.BorderDocument{}, matsuri.ErrNoBorderForEvent)

	lookup := NewLookup(newStore(t), resolver, source)

	_, err := lookup.Render(ctx, intPtr(999))
	assert.ErrorIs(t, err, matsuri.ErrEventNotFound)
	_, err = lookup.Render(ctx, intPtr(12))
	assert.ErrorIs(t, err, matsuri.ErrNoBorderForEvent)
}

func TestLookup_RenderPastHasNoDelta(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	doc := snapshot(jst(12, 0, 0), 42)
	doc.Metadata.ID = 7
	require.NoError(t, store.SavePast(ctx, doc))

	text, err := NewLookup(store, new(MockResolver), new(MockSource)).Render(ctx, intPtr(7))
	require.NoError(t, err)
	assert.False(t, strings.Contains(text, "(+"))
	assert.True(t, strings.HasPrefix(text, format.Fence))
}
