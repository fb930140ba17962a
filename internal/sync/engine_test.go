package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamechanger/internal/bgg"
	"github.com/gamechanger/internal/domain"
)

// fakeFetcher serves metadata from a map and records every chunk it is asked
// for. A chunk containing a fail id errors as a whole, like a fetch that
// exhausted its retries.
type fakeFetcher struct {
	limit   int
	items   map[int]bgg.ThingItem
	failIDs map[int]struct{}
	calls   [][]int
}

func (f *fakeFetcher) MaxIDsPerRequest() int {
	if f.limit == 0 {
		return 20
	}
	return f.limit
}

func (f *fakeFetcher) FetchBoardgames(_ context.Context, ids []int) ([]bgg.ThingItem, error) {
	f.calls = append(f.calls, append([]int(nil), ids...))
	var items []bgg.ThingItem
	for _, id := range ids {
		if _, fail := f.failIDs[id]; fail {
			return nil, errors.New("thing request failed")
		}
		if item, ok := f.items[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func thing(id int, primary string) bgg.ThingItem {
	return bgg.ThingItem{
		ID:            id,
		Names:         []bgg.Name{{Type: "primary", Value: primary}},
		Image:         "https://cf.geekdo-images.com/full.jpg",
		Thumbnail:     "https://cf.geekdo-images.com/thumb.jpg",
		YearPublished: bgg.IntValue{Value: 2019},
		MinPlayers:    bgg.IntValue{Value: 1},
		MaxPlayers:    bgg.IntValue{Value: 5},
		PlayingTime:   bgg.IntValue{Value: 70},
		Average:       bgg.FloatValue{Value: 8.1},
		AverageWeight: bgg.FloatValue{Value: 2.4},
	}
}

func newPlay(id int, date, location string, bgID int, bgName string, players ...bgg.PlayPlayer) bgg.Play {
	return bgg.Play{
		ID:       id,
		Date:     date,
		Length:   "90",
		Location: location,
		Item:     bgg.PlayItem{Name: bgName, ObjectID: bgID},
		Players:  players,
	}
}

func threePlayerSnapshot() []bgg.Play {
	return []bgg.Play{
		newPlay(1001, "2025-03-12", "Clubhouse", 266192, "Flügelschlag",
			bgg.PlayPlayer{Username: "alice_bgg", Name: "Alice", Score: "20", Win: "1"},
			bgg.PlayPlayer{Username: "", Name: "Bob", Score: "15", Win: "0"},
			bgg.PlayPlayer{Username: "", Name: "Carol", Score: "15", Win: "0"},
		),
	}
}

func TestRunCreatesEverything(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{items: map[int]bgg.ThingItem{266192: thing(266192, "Wingspan")}}
	engine := NewEngine(store, fetcher, nil, testLogger())

	sum, err := engine.Run(context.Background(), threePlayerSnapshot())
	require.NoError(t, err)

	// 1 boardgame, 1 location, 3 players, 1 game, 3 positions.
	assert.Equal(t, 9, sum.Created)
	assert.Equal(t, 0, sum.Updated)
	assert.Equal(t, 0, sum.Deleted)
	assert.Equal(t, 0, sum.SkippedRecords)
	assert.Empty(t, sum.UnresolvedIDs)
	assert.NotEmpty(t, sum.RunID)

	bg, err := store.GetBoardgame(context.Background(), 266192)
	require.NoError(t, err)
	// The play item name is the localized display name, the metadata name
	// stays the primary one.
	assert.Equal(t, "Flügelschlag", bg.Name)
	assert.Equal(t, "Wingspan", bg.NamePrimary)
	assert.Equal(t, 2019, bg.YearPublished)
	assert.InDelta(t, 2.4, bg.Weight, 0.001)

	game, err := store.GetGameByPlayID(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, 90, game.Playtime)
	assert.Equal(t, 266192, game.BoardgameID)

	positions, err := store.ListPositions(context.Background(), game.ID)
	require.NoError(t, err)
	require.Len(t, positions, 3)

	alice, err := store.GetPlayerByName(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice_bgg", alice.BGGUsername)
	for _, pos := range positions {
		if pos.PlayerID == alice.ID {
			require.NotNil(t, pos.Points)
			assert.InDelta(t, 20, *pos.Points, 0.001)
			assert.True(t, pos.Win)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{items: map[int]bgg.ThingItem{266192: thing(266192, "Wingspan")}}
	engine := NewEngine(store, fetcher, nil, testLogger())

	_, err := engine.Run(context.Background(), threePlayerSnapshot())
	require.NoError(t, err)

	sum, err := engine.Run(context.Background(), threePlayerSnapshot())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Created)
	assert.Equal(t, 0, sum.Updated)
	assert.Equal(t, 0, sum.Deleted)
	// 1 boardgame, 1 game, 3 positions report as unchanged; locations and
	// players are immutable and not re-reported.
	assert.Equal(t, 5, sum.Unchanged)
}

func TestRunDeletesStaleGames(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{items: map[int]bgg.ThingItem{
		266192: thing(266192, "Wingspan"),
		342942: thing(342942, "Ark Nova"),
	}}
	engine := NewEngine(store, fetcher, nil, testLogger())

	first := append(threePlayerSnapshot(),
		newPlay(1002, "2025-03-13", "Clubhouse", 342942, "Ark Nova",
			bgg.PlayPlayer{Name: "Alice", Score: "101", Win: "1"},
			bgg.PlayPlayer{Name: "Bob", Score: "88", Win: "0"},
		))
	_, err := engine.Run(context.Background(), first)
	require.NoError(t, err)

	stale, err := store.GetGameByPlayID(context.Background(), 1002)
	require.NoError(t, err)

	sum, err := engine.Run(context.Background(), threePlayerSnapshot())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Deleted)

	_, err = store.GetGameByPlayID(context.Background(), 1002)
	assert.True(t, errors.Is(err, domain.ErrGameNotFound))

	// Positions are deleted with their game.
	positions, err := store.ListPositions(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Empty(t, positions)

	// The boardgame and players survive, only the game record goes.
	_, err = store.GetBoardgame(context.Background(), 342942)
	assert.NoError(t, err)
}

func TestRunChunksMetadataFetches(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{limit: 20, items: make(map[int]bgg.ThingItem)}
	var plays []bgg.Play
	for i := 1; i <= 25; i++ {
		fetcher.items[i] = thing(i, "Game")
		plays = append(plays, newPlay(2000+i, "2025-01-10", "Clubhouse", i, "Game"))
	}
	engine := NewEngine(store, fetcher, nil, testLogger())

	_, err := engine.Run(context.Background(), plays)
	require.NoError(t, err)

	require.Len(t, fetcher.calls, 2)
	assert.Len(t, fetcher.calls[0], 20)
	assert.Len(t, fetcher.calls[1], 5)
}

func TestRunContinuesPastUnresolvedChunk(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{
		limit: 2,
		items: map[int]bgg.ThingItem{
			1: thing(1, "One"),
			2: thing(2, "Two"),
		},
		failIDs: map[int]struct{}{3: {}},
	}
	engine := NewEngine(store, fetcher, nil, testLogger())

	plays := []bgg.Play{
		newPlay(3001, "2025-02-01", "Clubhouse", 1, "One"),
		newPlay(3002, "2025-02-02", "Clubhouse", 2, "Two"),
		newPlay(3003, "2025-02-03", "Clubhouse", 3, "Three"),
	}
	sum, err := engine.Run(context.Background(), plays)
	require.NoError(t, err)

	assert.Equal(t, []int{3}, sum.UnresolvedIDs)
	assert.Equal(t, 1, sum.SkippedRecords)

	_, err = store.GetGameByPlayID(context.Background(), 3001)
	assert.NoError(t, err)
	_, err = store.GetGameByPlayID(context.Background(), 3002)
	assert.NoError(t, err)
	_, err = store.GetGameByPlayID(context.Background(), 3003)
	assert.True(t, errors.Is(err, domain.ErrGameNotFound))
}

func TestRunFallsBackToStoredBoardgame(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.CreateBoardgame(context.Background(), &domain.Boardgame{
		BGGID: 7, Name: "Cascadia", NamePrimary: "Cascadia",
	}))
	fetcher := &fakeFetcher{failIDs: map[int]struct{}{7: {}}}
	engine := NewEngine(store, fetcher, nil, testLogger())

	sum, err := engine.Run(context.Background(), []bgg.Play{
		newPlay(4001, "2025-02-05", "Clubhouse", 7, "Cascadia",
			bgg.PlayPlayer{Name: "Alice", Score: "85", Win: "1"}),
	})
	require.NoError(t, err)

	// Metadata was unresolved this pass but the record still syncs against
	// the previously stored boardgame.
	assert.Equal(t, []int{7}, sum.UnresolvedIDs)
	assert.Equal(t, 0, sum.SkippedRecords)
	_, err = store.GetGameByPlayID(context.Background(), 4001)
	assert.NoError(t, err)
}

func TestRunSkipsMalformedDate(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{items: map[int]bgg.ThingItem{1: thing(1, "One")}}
	engine := NewEngine(store, fetcher, nil, testLogger())

	plays := []bgg.Play{
		newPlay(5001, "not-a-date", "Clubhouse", 1, "One"),
		newPlay(5002, "2025-02-06", "Clubhouse", 1, "One"),
	}
	sum, err := engine.Run(context.Background(), plays)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.SkippedRecords)
	_, err = store.GetGameByPlayID(context.Background(), 5001)
	assert.True(t, errors.Is(err, domain.ErrGameNotFound))
	_, err = store.GetGameByPlayID(context.Background(), 5002)
	assert.NoError(t, err)
}

func TestRunReconcilesPositions(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{items: map[int]bgg.ThingItem{266192: thing(266192, "Wingspan")}}
	engine := NewEngine(store, fetcher, nil, testLogger())

	_, err := engine.Run(context.Background(), threePlayerSnapshot())
	require.NoError(t, err)

	// Alice's score was corrected, Bob's entry was removed, Carol's score
	// was cleared and Dave joined.
	changed := []bgg.Play{
		newPlay(1001, "2025-03-12", "Clubhouse", 266192, "Flügelschlag",
			bgg.PlayPlayer{Username: "alice_bgg", Name: "Alice", Score: "21", Win: "1"},
			bgg.PlayPlayer{Name: "Carol", Score: "", Win: "0"},
			bgg.PlayPlayer{Name: "Dave", Score: "12", Win: "0"},
		),
	}
	sum, err := engine.Run(context.Background(), changed)
	require.NoError(t, err)

	// Dave's player record plus his position.
	assert.Equal(t, 2, sum.Created)
	// Alice's and Carol's positions.
	assert.Equal(t, 2, sum.Updated)
	// Bob's position; his player record stays.
	assert.Equal(t, 1, sum.Deleted)

	game, err := store.GetGameByPlayID(context.Background(), 1001)
	require.NoError(t, err)
	positions, err := store.ListPositions(context.Background(), game.ID)
	require.NoError(t, err)
	require.Len(t, positions, 3)

	byPlayer := make(map[int64]domain.PlayerPosition)
	for _, pos := range positions {
		byPlayer[pos.PlayerID] = pos
	}

	alice, _ := store.GetPlayerByName(context.Background(), "Alice")
	require.NotNil(t, byPlayer[alice.ID].Points)
	assert.InDelta(t, 21, *byPlayer[alice.ID].Points, 0.001)

	carol, _ := store.GetPlayerByName(context.Background(), "Carol")
	assert.Nil(t, byPlayer[carol.ID].Points)

	bob, _ := store.GetPlayerByName(context.Background(), "Bob")
	_, hasBob := byPlayer[bob.ID]
	assert.False(t, hasBob)
}

func TestRunDiscardsHintsOnCountMismatch(t *testing.T) {
	store := newMemStore()
	// Two ids requested in one chunk, only one comes back: positional name
	// hints cannot be trusted.
	fetcher := &fakeFetcher{items: map[int]bgg.ThingItem{1: thing(1, "Wingspan")}}
	engine := NewEngine(store, fetcher, nil, testLogger())

	plays := []bgg.Play{
		newPlay(6001, "2025-02-07", "Clubhouse", 1, "Flügelschlag"),
		newPlay(6002, "2025-02-08", "Clubhouse", 2, "Arche Nova"),
	}
	sum, err := engine.Run(context.Background(), plays)
	require.NoError(t, err)

	bg, err := store.GetBoardgame(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Wingspan", bg.Name)
	assert.Equal(t, "Wingspan", bg.NamePrimary)

	// Id 2 never resolved and its record is skipped.
	assert.Equal(t, 1, sum.SkippedRecords)
}

func TestBoardgameFromThing(t *testing.T) {
	item := thing(266192, "Wingspan")

	t.Run("no hint", func(t *testing.T) {
		bg := boardgameFromThing(item, nil)
		assert.Equal(t, "Wingspan", bg.Name)
		assert.Equal(t, "Wingspan", bg.NamePrimary)
	})

	t.Run("display hint", func(t *testing.T) {
		bg := boardgameFromThing(item, &NameHint{Name: "Flügelschlag"})
		assert.Equal(t, "Flügelschlag", bg.Name)
		assert.Equal(t, "Wingspan", bg.NamePrimary)
	})

	t.Run("primary hint", func(t *testing.T) {
		bg := boardgameFromThing(item, &NameHint{Name: "Flügelschlag", Primary: true})
		assert.Equal(t, "Flügelschlag", bg.Name)
		assert.Equal(t, "Flügelschlag", bg.NamePrimary)
	})
}

func TestRunCooperativeFlag(t *testing.T) {
	store := newMemStore()
	coop := thing(161936, "Pandemic Legacy")
	coop.Links = []bgg.Link{
		{Type: "boardgamecategory", Value: "Medical"},
		{Type: "boardgamemechanic", Value: "Cooperative Game"},
	}
	fetcher := &fakeFetcher{items: map[int]bgg.ThingItem{161936: coop}}
	engine := NewEngine(store, fetcher, nil, testLogger())

	_, err := engine.Run(context.Background(), []bgg.Play{
		newPlay(7001, "2025-02-09", "Clubhouse", 161936, "Pandemic Legacy"),
	})
	require.NoError(t, err)

	bg, err := store.GetBoardgame(context.Background(), 161936)
	require.NoError(t, err)
	assert.True(t, bg.Cooperative)
}
