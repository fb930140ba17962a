// Package service holds the business logic between the HTTP layer and the
// stores: event scoping, ranking computation, caching and broadcast.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/gamechanger/internal/domain"
	"github.com/gamechanger/internal/event"
	"github.com/gamechanger/internal/ranking"
	"github.com/gamechanger/internal/redis"
	"github.com/gamechanger/internal/websocket"
)

// GameSource is the read side of the persistence layer the service consumes.
type GameSource interface {
	ListRankedGames(ctx context.Context) ([]ranking.Game, error)
	ListBoardgames(ctx context.Context) ([]domain.Boardgame, error)
	GetBoardgame(ctx context.Context, bggID int) (*domain.Boardgame, error)
}

// StandingsService provides business logic for event standings and statistics
type StandingsService struct {
	source GameSource
	events *event.Store
	cache  *redis.StandingsCache
	hub    *websocket.Hub
	logger *slog.Logger
}

// NewStandingsService creates a new standings service. The cache is optional;
// without it every read recomputes from the database.
func NewStandingsService(
	source GameSource,
	events *event.Store,
	cache *redis.StandingsCache,
	logger *slog.Logger,
) *StandingsService {
	return &StandingsService{
		source: source,
		events: events,
		cache:  cache,
		logger: logger,
	}
}

// SetHub wires the WebSocket hub for standings broadcasts.
func (s *StandingsService) SetHub(hub *websocket.Hub) {
	s.hub = hub
}

// EventSummary describes one configured event.
type EventSummary struct {
	Name            string    `json:"name"`
	Location        string    `json:"location"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	ExcludedPlayers []string  `json:"excluded_players,omitempty"`
}

// ListEvents returns all configured events.
func (s *StandingsService) ListEvents(ctx context.Context) []EventSummary {
	summaries := make([]EventSummary, 0, len(s.events.Names()))
	for _, name := range s.events.Names() {
		def, err := s.events.Get(name)
		if err != nil {
			continue
		}
		summaries = append(summaries, EventSummary{
			Name:            name,
			Location:        def.Location,
			Start:           def.Start,
			End:             def.End,
			ExcludedPlayers: def.ExcludedPlayers,
		})
	}
	return summaries
}

// eventGames loads all games and narrows them to the event's location and
// date window.
func (s *StandingsService) eventGames(ctx context.Context, def event.Definition) ([]ranking.Game, error) {
	games, err := s.source.ListRankedGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading games: %w", err)
	}
	return ranking.FilterGamesForEvent(games, def.Location, def.Start, def.End), nil
}

// EventGames returns the games of an event ranked under the given mode,
// newest first.
func (s *StandingsService) EventGames(ctx context.Context, eventName string, mode ranking.Mode) ([]ranking.Game, error) {
	def, err := s.events.Get(eventName)
	if err != nil {
		return nil, err
	}

	games, err := s.eventGames(ctx, def)
	if err != nil {
		return nil, err
	}

	ranked := make([]ranking.Game, 0, len(games))
	for _, g := range games {
		rg, err := ranking.RankGamePlayers(g, mode)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, rg)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Date.After(ranked[j].Date)
	})
	return ranked, nil
}

// EventStandings returns the standings table of an event under one mode,
// serving from the cache when possible. A positive top trims the table.
func (s *StandingsService) EventStandings(ctx context.Context, eventName string, mode ranking.Mode, top int) ([]ranking.Standing, error) {
	def, err := s.events.Get(eventName)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		standings, hit, err := s.cache.GetTable(ctx, eventName, mode)
		if err != nil {
			s.logger.Warn("standings cache read failed", "event", eventName, "error", err)
		} else if hit {
			return trimStandings(standings, top), nil
		}
	}

	standings, err := s.computeStandings(ctx, def, mode)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Rebuild(ctx, eventName, mode, standings); err != nil {
			s.logger.Warn("standings cache rebuild failed", "event", eventName, "error", err)
		}
	}
	return trimStandings(standings, top), nil
}

func trimStandings(standings []ranking.Standing, top int) []ranking.Standing {
	if top > 0 && top < len(standings) {
		return standings[:top]
	}
	return standings
}

func (s *StandingsService) computeStandings(ctx context.Context, def event.Definition, mode ranking.Mode) ([]ranking.Standing, error) {
	games, err := s.eventGames(ctx, def)
	if err != nil {
		return nil, err
	}

	ranked := make([]ranking.Game, 0, len(games))
	for _, g := range games {
		rg, err := ranking.RankGamePlayers(g, mode)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, rg)
	}
	return ranking.BuildStandings(ranked, def.ExcludedSet()), nil
}

// EventRankings returns the full event page payload: ranked games plus the
// standings of all three modes.
func (s *StandingsService) EventRankings(ctx context.Context, eventName string) (ranking.EventRankings, error) {
	def, err := s.events.Get(eventName)
	if err != nil {
		return ranking.EventRankings{}, err
	}

	games, err := s.eventGames(ctx, def)
	if err != nil {
		return ranking.EventRankings{}, err
	}
	return ranking.AllStandings(games, def.ExcludedSet())
}

// RefreshAll recomputes the standings of every configured event, rebuilds the
// cache and broadcasts the new tables. Called after each sync run.
func (s *StandingsService) RefreshAll(ctx context.Context) {
	for _, name := range s.events.Names() {
		def, err := s.events.Get(name)
		if err != nil {
			continue
		}

		games, err := s.eventGames(ctx, def)
		if err != nil {
			s.logger.Error("refreshing standings failed", "event", name, "error", err)
			continue
		}

		rankings, err := ranking.AllStandings(games, def.ExcludedSet())
		if err != nil {
			s.logger.Error("refreshing standings failed", "event", name, "error", err)
			continue
		}

		tables := map[ranking.Mode][]ranking.Standing{
			ranking.ModeDefault:    rankings.Default,
			ranking.ModePlaytime:   rankings.Playtime,
			ranking.ModeComplexity: rankings.Complexity,
		}
		for mode, standings := range tables {
			if s.cache != nil {
				if err := s.cache.Rebuild(ctx, name, mode, standings); err != nil {
					s.logger.Warn("standings cache rebuild failed", "event", name, "mode", string(mode), "error", err)
				}
			}
			if s.hub != nil {
				s.hub.BroadcastStandings(name, mode, standings)
			}
		}
		s.logger.Info("standings refreshed", "event", name, "games", len(games))
	}
}

// PlayerGameRef is one game from a player's perspective.
type PlayerGameRef struct {
	Date          string   `json:"date"`
	Boardgame     string   `json:"boardgame"`
	Points        *float64 `json:"points,omitempty"`
	RankingPoints float64  `json:"ranking_points"`
	Position      int      `json:"position"`
	Win           bool     `json:"win"`
}

// PlayerBoardgameRow aggregates one player's record on one boardgame.
type PlayerBoardgameRow struct {
	Boardgame string  `json:"boardgame"`
	Plays     int     `json:"plays"`
	Wins      int     `json:"wins"`
	AvgPoints float64 `json:"avg_points"`
}

// PlayerStats aggregates one player's record across all stored games.
type PlayerStats struct {
	Player        string               `json:"player"`
	GamesPlayed   int                  `json:"games_played"`
	Wins          int                  `json:"wins"`
	WinRate       float64              `json:"win_rate"`
	TotalPoints   float64              `json:"total_points"`
	AvgPosition   float64              `json:"avg_position"`
	MostPlayed    string               `json:"most_played,omitempty"`
	FirstPlayed   string               `json:"first_played,omitempty"`
	LastPlayed    string               `json:"last_played,omitempty"`
	DistinctGames int                  `json:"distinct_games"`
	BestGames     []PlayerGameRef      `json:"best_games,omitempty"`
	RecentGames   []PlayerGameRef      `json:"recent_games,omitempty"`
	Boardgames    []PlayerBoardgameRow `json:"boardgames,omitempty"`
}

// GetPlayerStats computes a player's statistics under the default ranking
// mode across all stored games.
func (s *StandingsService) GetPlayerStats(ctx context.Context, playerName string) (*PlayerStats, error) {
	games, err := s.source.ListRankedGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading games: %w", err)
	}

	stats := PlayerStats{Player: playerName}
	playCounts := make(map[string]int)
	perBoardgame := make(map[string]*PlayerBoardgameRow)
	var refs []PlayerGameRef
	var refDates []time.Time
	var positionSum, positions int
	var first, last time.Time

	for _, g := range games {
		rg, err := ranking.RankGamePlayers(g, ranking.ModeDefault)
		if err != nil {
			return nil, err
		}
		for _, p := range rg.Players {
			if p.Name != playerName {
				continue
			}
			stats.GamesPlayed++
			playCounts[g.Boardgame]++
			row, ok := perBoardgame[g.Boardgame]
			if !ok {
				row = &PlayerBoardgameRow{Boardgame: g.Boardgame}
				perBoardgame[g.Boardgame] = row
			}
			row.Plays++
			if p.Win {
				stats.Wins++
				row.Wins++
			}
			if p.Points != nil {
				stats.TotalPoints += p.RankingPoints
				row.AvgPoints += p.RankingPoints
				positionSum += p.Position
				positions++
			}
			if first.IsZero() || g.Date.Before(first) {
				first = g.Date
			}
			if g.Date.After(last) {
				last = g.Date
			}
			refs = append(refs, PlayerGameRef{
				Date:          g.Date.Format("2006-01-02"),
				Boardgame:     g.Boardgame,
				Points:        p.Points,
				RankingPoints: p.RankingPoints,
				Position:      p.Position,
				Win:           p.Win,
			})
			refDates = append(refDates, g.Date)
		}
	}

	if stats.GamesPlayed == 0 {
		return nil, domain.ErrPlayerNotFound
	}

	stats.WinRate = round2(float64(stats.Wins) / float64(stats.GamesPlayed))
	if positions > 0 {
		stats.AvgPosition = round2(float64(positionSum) / float64(positions))
	}
	stats.TotalPoints = round2(stats.TotalPoints)
	stats.DistinctGames = len(playCounts)
	stats.MostPlayed = mostPlayed(playCounts)
	stats.FirstPlayed = first.Format("2006-01-02")
	stats.LastPlayed = last.Format("2006-01-02")
	stats.BestGames = bestGames(refs, 5)
	stats.RecentGames = recentGames(refs, refDates, 5)

	for _, row := range perBoardgame {
		row.AvgPoints = round2(row.AvgPoints / float64(row.Plays))
		stats.Boardgames = append(stats.Boardgames, *row)
	}
	sort.SliceStable(stats.Boardgames, func(i, j int) bool {
		if stats.Boardgames[i].Plays != stats.Boardgames[j].Plays {
			return stats.Boardgames[i].Plays > stats.Boardgames[j].Plays
		}
		return stats.Boardgames[i].Boardgame < stats.Boardgames[j].Boardgame
	})
	return &stats, nil
}

// bestGames returns the player's n highest-scoring games.
func bestGames(refs []PlayerGameRef, n int) []PlayerGameRef {
	sorted := make([]PlayerGameRef, len(refs))
	copy(sorted, refs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RankingPoints > sorted[j].RankingPoints
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// recentGames returns the player's n most recent games, newest first. The
// dates slice is parallel to refs and carries the parsed game dates.
func recentGames(refs []PlayerGameRef, dates []time.Time, n int) []PlayerGameRef {
	idx := make([]int, len(refs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return dates[idx[i]].After(dates[idx[j]])
	})
	if len(idx) > n {
		idx = idx[:n]
	}
	out := make([]PlayerGameRef, 0, len(idx))
	for _, i := range idx {
		out = append(out, refs[i])
	}
	return out
}

func mostPlayed(counts map[string]int) string {
	best := ""
	bestCount := 0
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if counts[name] > bestCount {
			best = name
			bestCount = counts[name]
		}
	}
	return best
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BoardgameRanking is one row of the play-frequency table of the collection.
type BoardgameRanking struct {
	BGGID      int     `json:"bgg_id"`
	Name       string  `json:"name"`
	Plays      int     `json:"plays"`
	AvgPlayers float64 `json:"avg_players"`
	Rating     float64 `json:"rating"`
	Weight     float64 `json:"weight"`
	LastPlayed string  `json:"last_played,omitempty"`
}

// GetBoardgameRanking aggregates play counts per boardgame across all stored
// games, most played first.
func (s *StandingsService) GetBoardgameRanking(ctx context.Context) ([]BoardgameRanking, error) {
	games, err := s.source.ListRankedGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading games: %w", err)
	}
	boardgames, err := s.source.ListBoardgames(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading boardgames: %w", err)
	}

	byID := make(map[int]*BoardgameRanking, len(boardgames))
	var order []int
	for _, bg := range boardgames {
		byID[bg.BGGID] = &BoardgameRanking{
			BGGID:  bg.BGGID,
			Name:   bg.Name,
			Rating: bg.Rating,
			Weight: bg.Weight,
		}
		order = append(order, bg.BGGID)
	}

	playerSums := make(map[int]int)
	lastPlayed := make(map[int]time.Time)
	for _, g := range games {
		row, ok := byID[g.BGGID]
		if !ok {
			continue
		}
		row.Plays++
		playerSums[g.BGGID] += len(g.Players)
		if g.Date.After(lastPlayed[g.BGGID]) {
			lastPlayed[g.BGGID] = g.Date
		}
	}

	rankings := make([]BoardgameRanking, 0, len(order))
	for _, id := range order {
		row := byID[id]
		if row.Plays > 0 {
			row.AvgPlayers = round2(float64(playerSums[id]) / float64(row.Plays))
			row.LastPlayed = lastPlayed[id].Format("2006-01-02")
		}
		rankings = append(rankings, *row)
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].Plays > rankings[j].Plays
	})
	return rankings, nil
}

// BoardgamePlayerRank is one player's record on one boardgame, computed for
// the boardgame detail view.
type BoardgamePlayerRank struct {
	Player      string  `json:"player"`
	Plays       int     `json:"plays"`
	Wins        int     `json:"wins"`
	TotalPoints float64 `json:"total_points"`
	AvgPoints   float64 `json:"avg_points"`
	AvgPosition float64 `json:"avg_position"`
	BestScore   float64 `json:"best_score"`
	WorstScore  float64 `json:"worst_score"`
}

// BoardgameDetail is one boardgame with its games and per-player ranking.
type BoardgameDetail struct {
	Boardgame domain.Boardgame      `json:"boardgame"`
	Games     []ranking.Game        `json:"games"`
	Players   []BoardgamePlayerRank `json:"players"`
}

// GetBoardgameDetail returns one boardgame with its games, newest first, and
// the per-player ranking sorted by average position.
func (s *StandingsService) GetBoardgameDetail(ctx context.Context, bggID int) (*BoardgameDetail, error) {
	bg, err := s.source.GetBoardgame(ctx, bggID)
	if err != nil {
		return nil, err
	}

	games, err := s.source.ListRankedGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading games: %w", err)
	}

	detail := BoardgameDetail{Boardgame: *bg}
	byPlayer := make(map[string]*BoardgamePlayerRank)
	positionSums := make(map[string]int)
	positionCounts := make(map[string]int)
	for _, g := range games {
		if g.BGGID != bggID {
			continue
		}
		rg, err := ranking.RankGamePlayers(g, ranking.ModeDefault)
		if err != nil {
			return nil, err
		}
		detail.Games = append(detail.Games, rg)

		for _, p := range rg.Players {
			rank, ok := byPlayer[p.Name]
			if !ok {
				rank = &BoardgamePlayerRank{Player: p.Name}
				byPlayer[p.Name] = rank
			}
			rank.Plays++
			if p.Win {
				rank.Wins++
			}
			if p.Points != nil {
				rank.TotalPoints += *p.Points
				positionSums[p.Name] += p.Position
				positionCounts[p.Name]++
				if positionCounts[p.Name] == 1 || *p.Points > rank.BestScore {
					rank.BestScore = *p.Points
				}
				if positionCounts[p.Name] == 1 || *p.Points < rank.WorstScore {
					rank.WorstScore = *p.Points
				}
			}
		}
	}

	sort.SliceStable(detail.Games, func(i, j int) bool {
		return detail.Games[i].Date.After(detail.Games[j].Date)
	})

	for name, rank := range byPlayer {
		if n := positionCounts[name]; n > 0 {
			rank.TotalPoints = round2(rank.TotalPoints)
			rank.AvgPoints = round2(rank.TotalPoints / float64(n))
			rank.AvgPosition = round2(float64(positionSums[name]) / float64(n))
		}
		detail.Players = append(detail.Players, *rank)
	}
	sort.SliceStable(detail.Players, func(i, j int) bool {
		a, b := detail.Players[i], detail.Players[j]
		if a.AvgPosition != b.AvgPosition {
			return a.AvgPosition < b.AvgPosition
		}
		return a.Player < b.Player
	})
	return &detail, nil
}

// ListBoardgames returns all stored boardgames.
func (s *StandingsService) ListBoardgames(ctx context.Context) ([]domain.Boardgame, error) {
	return s.source.ListBoardgames(ctx)
}

// GetBoardgame returns one stored boardgame by its BGG id.
func (s *StandingsService) GetBoardgame(ctx context.Context, bggID int) (*domain.Boardgame, error) {
	return s.source.GetBoardgame(ctx, bggID)
}
