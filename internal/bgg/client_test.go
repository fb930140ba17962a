package bgg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamechanger/internal/config"
)

const playsPageOne = `<?xml version="1.0" encoding="utf-8"?>
<plays username="clubfeed" total="2" page="1">
  <play id="1001" date="2025-03-12" length="90" location="Clubhouse">
    <item name="Fl&#252;gelschlag" objectid="266192"/>
    <players>
      <player username="alice_bgg" name="Alice" score="20" win="1"/>
      <player username="" name="Bob" score="15" win="0"/>
      <player username="" name="Carol" score="" win="0"/>
    </players>
  </play>
  <play id="1002" date="2025-03-13" length="" location="Cabin">
    <item name="Ark Nova" objectid="342942"/>
    <players>
      <player username="" name="Alice" score="101" win="1"/>
    </players>
  </play>
</plays>`

const thingResponse = `<?xml version="1.0" encoding="utf-8"?>
<items>
  <item type="boardgame" id="266192">
    <thumbnail>https://cf.geekdo-images.com/thumb.jpg</thumbnail>
    <image>https://cf.geekdo-images.com/full.jpg</image>
    <name type="primary" sortindex="1" value="Wingspan"/>
    <name type="alternate" sortindex="1" value="Fl&#252;gelschlag"/>
    <yearpublished value="2019"/>
    <minplayers value="1"/>
    <maxplayers value="5"/>
    <playingtime value="70"/>
    <link type="boardgamecategory" id="1089" value="Animals"/>
    <link type="boardgamemechanic" id="2664" value="Hand Management"/>
    <statistics page="1">
      <ratings>
        <average value="8.1"/>
        <averageweight value="2.45"/>
      </ratings>
    </statistics>
  </item>
</items>`

const searchResponse = `<?xml version="1.0" encoding="utf-8"?>
<items total="2">
  <item type="boardgame" id="266192">
    <name type="primary" value="Wingspan"/>
    <yearpublished value="2019"/>
  </item>
  <item type="boardgame" id="290448">
    <name type="alternate" value="Wingspan: European Expansion"/>
    <yearpublished value="2019"/>
  </item>
</items>`

func newTestClient(baseURL string) *Client {
	cfg := &config.BGGConfig{
		BaseURL:          baseURL,
		Timeout:          5 * time.Second,
		RetryAttempts:    3,
		RetryDelay:       time.Millisecond,
		MaxIDsPerRequest: 20,
		MaxPages:         10,
	}
	return NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetchPlaysPaginates(t *testing.T) {
	var pages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/plays", r.URL.Path)
		require.Equal(t, "clubfeed", r.URL.Query().Get("username"))
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		if page == "1" {
			fmt.Fprint(w, playsPageOne)
			return
		}
		fmt.Fprint(w, `<plays username="clubfeed" total="2" page="2"></plays>`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	plays, err := client.FetchPlays(context.Background(), "clubfeed")
	require.NoError(t, err)

	// Page 2 comes back empty and stops the paging loop.
	assert.Equal(t, []string{"1", "2"}, pages)
	require.Len(t, plays, 2)

	first := plays[0]
	assert.Equal(t, 1001, first.ID)
	assert.Equal(t, "2025-03-12", first.Date)
	assert.Equal(t, "Clubhouse", first.Location)
	assert.Equal(t, 90, first.PlaytimeMinutes())
	assert.Equal(t, "Flügelschlag", first.Item.Name)
	assert.Equal(t, 266192, first.Item.ObjectID)

	entries := first.PlayerEntries()
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Won())
	require.NotNil(t, entries[0].PointsValue())
	assert.InDelta(t, 20, *entries[0].PointsValue(), 0.001)
	assert.False(t, entries[1].Won())
	assert.Nil(t, entries[2].PointsValue())

	// A blank length attribute decodes to zero minutes.
	assert.Equal(t, 0, plays[1].PlaytimeMinutes())
}

func TestFetchBoardgamesParsesMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/thing", r.URL.Path)
		require.Equal(t, "1", r.URL.Query().Get("stats"))
		require.Equal(t, "266192", r.URL.Query().Get("id"))
		fmt.Fprint(w, thingResponse)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	items, err := client.FetchBoardgames(context.Background(), []int{266192})
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, 266192, item.ID)
	assert.Equal(t, "Wingspan", item.PrimaryName())
	assert.Equal(t, "https://cf.geekdo-images.com/full.jpg", item.Image)
	assert.Equal(t, 2019, item.Year())
	assert.Equal(t, 1, item.MinPlayers.Value)
	assert.Equal(t, 5, item.MaxPlayers.Value)
	assert.Equal(t, 70, item.PlayingTime.Value)
	assert.InDelta(t, 8.1, item.Rating(), 0.001)
	assert.InDelta(t, 2.45, item.Weight(), 0.001)
	assert.False(t, item.IsCooperative())
}

func TestFetchBoardgamesRetriesQueuedResponse(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			// BGG acknowledges a queued request with an empty item list.
			fmt.Fprint(w, `<items></items>`)
			return
		}
		fmt.Fprint(w, thingResponse)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	items, err := client.FetchBoardgames(context.Background(), []int{266192})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, items, 1)
}

func TestFetchBoardgamesGivesUpAfterRetries(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchBoardgames(context.Background(), []int{266192})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestFetchBoardgamesRejectsOversizedIDSet(t *testing.T) {
	client := newTestClient("http://unused.invalid")
	ids := make([]int, 21)
	for i := range ids {
		ids[i] = i + 1
	}
	_, err := client.FetchBoardgames(context.Background(), ids)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit is 20")
}

func TestFetchBoardgamesEmptyIDSet(t *testing.T) {
	client := newTestClient("http://unused.invalid")
	items, err := client.FetchBoardgames(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "boardgame", r.URL.Query().Get("type"))
		require.Equal(t, "wingspan", r.URL.Query().Get("query"))
		fmt.Fprint(w, searchResponse)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	results, err := client.Search(context.Background(), "wingspan")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, SearchResult{ID: 266192, Name: "Wingspan", Primary: true, Year: 2019}, results[0])
	assert.False(t, results[1].Primary)
}
