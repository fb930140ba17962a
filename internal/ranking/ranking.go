// Package ranking converts raw per-game scores into comparable ranking points
// and aggregates them into event standings. All functions are pure: inputs are
// never mutated, annotated copies are returned.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/gamechanger/internal/domain"
)

// Mode selects the scale for ranking points.
type Mode string

const (
	// ModeDefault scales points by the number of players.
	ModeDefault Mode = "default"
	// ModePlaytime additionally weighs points by the game's playtime in hours.
	ModePlaytime Mode = "playtime"
	// ModeComplexity additionally weighs points by the boardgame's weight.
	ModeComplexity Mode = "complexity"
)

// ParseMode validates a mode string. An empty string maps to ModeDefault;
// anything else unknown fails with domain.ErrInvalidMode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDefault, ModePlaytime, ModeComplexity:
		return Mode(s), nil
	case "":
		return ModeDefault, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidMode, s)
	}
}

// PlayerResult is one player's outcome within a game, annotated with the
// computed position and ranking points.
type PlayerResult struct {
	Name          string   `json:"name"`
	BGGUsername   string   `json:"bgg_username,omitempty"`
	Points        *float64 `json:"points,omitempty"`
	Win           bool     `json:"win"`
	Position      int      `json:"position,omitempty"`
	RankingPoints float64  `json:"ranking_points"`
}

// Game is the read model of one play used by the ranking engine: the stored
// game joined with its boardgame, location and player results.
type Game struct {
	ID        int64          `json:"id"`
	PlayID    int            `json:"play_id"`
	Date      time.Time      `json:"date"`
	Boardgame string         `json:"boardgame"`
	BGGID     int            `json:"bgg_id"`
	ImgSmall  string         `json:"img_small,omitempty"`
	Playtime  int            `json:"playtime"`
	Weight    float64        `json:"weight"`
	Location  string         `json:"location"`
	Players   []PlayerResult `json:"players"`
}

// DateLabel renders the game date the way the standings tables show it.
func (g Game) DateLabel() string {
	return g.Date.Format("02.Jan 2006")
}

// PlaytimeHours converts the recorded playtime to hours for playtime-weighted
// ranking. Durations of 10 minutes or less count as unrecorded and are rated
// at half an hour.
func (g Game) PlaytimeHours() float64 {
	if g.Playtime > 10 {
		return float64(g.Playtime) / 60
	}
	return 0.5
}

// AssignPositions returns a copy of players sorted by (win desc, score desc)
// with standard competition ranks: tied players share a position and the next
// distinct position skips accordingly. Unscored players sort below scored ones.
func AssignPositions(players []PlayerResult) []PlayerResult {
	out := make([]PlayerResult, len(players))
	copy(out, players)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Win != out[j].Win {
			return out[i].Win
		}
		return scoreValue(out[i]) > scoreValue(out[j])
	})

	for i := range out {
		if i > 0 && out[i].Win == out[i-1].Win && scoreValue(out[i]) == scoreValue(out[i-1]) {
			out[i].Position = out[i-1].Position
			continue
		}
		out[i].Position = i + 1
	}
	return out
}

func scoreValue(p PlayerResult) float64 {
	if p.Points == nil {
		return math.Inf(-1)
	}
	return *p.Points
}

// RankGame assigns ranking points to the given player results. Every player
// must carry a score and a position (see AssignPositions); unscored players
// are the caller's job to filter out.
//
// Points are linearly spaced from +max down to -max and sum to zero across
// the game, where max depends on the mode: n for default, n*playtimeHours for
// playtime, n*complexity for complexity. Tied players receive the average of
// the point slots their positions occupy, which keeps the zero sum only up to
// rounding. Results are rounded to two decimals.
func RankGame(players []PlayerResult, mode Mode, playtimeHours, complexity float64) ([]PlayerResult, error) {
	n := len(players)
	if n == 0 {
		return nil, nil
	}

	var maxVal float64
	switch mode {
	case ModeDefault:
		maxVal = float64(n)
	case ModePlaytime:
		maxVal = float64(n) * playtimeHours
	case ModeComplexity:
		maxVal = float64(n) * complexity
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMode, mode)
	}

	out := make([]PlayerResult, n)
	copy(out, players)

	if n == 1 {
		out[0].RankingPoints = 0
		return out, nil
	}

	step := (2 * maxVal) / float64(n-1)
	base := make([]float64, n)
	for i := range base {
		base[i] = maxVal - float64(i)*step
	}

	// Group indices by position so tie groups can share the averaged value.
	groups := make(map[int][]int)
	for i, p := range out {
		groups[p.Position] = append(groups[p.Position], i)
	}

	for position, members := range groups {
		size := len(members)
		start := position - 1
		end := start + size

		var points float64
		if end <= len(base) {
			sum := 0.0
			for _, v := range base[start:end] {
				sum += v
			}
			points = sum / float64(size)
		} else if start < len(base) {
			points = base[start]
		}

		points = round2(points)
		for _, idx := range members {
			out[idx].RankingPoints = points
		}
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RankGamePlayers returns a copy of g with ranking points computed under the
// given mode. Players without a score are dropped from the ranked result; if
// nobody scored, the game is returned untouched.
func RankGamePlayers(g Game, mode Mode) (Game, error) {
	scored := make([]PlayerResult, 0, len(g.Players))
	for _, p := range g.Players {
		if p.Points != nil {
			scored = append(scored, p)
		}
	}
	if len(scored) == 0 {
		return g, nil
	}

	ranked, err := RankGame(scored, mode, g.PlaytimeHours(), g.Weight)
	if err != nil {
		return Game{}, err
	}
	g.Players = ranked
	return g, nil
}

// FilterGamesForEvent selects games whose location matches exactly and whose
// date falls within [start, end]. Games without a date never match.
func FilterGamesForEvent(games []Game, location string, start, end time.Time) []Game {
	var out []Game
	for _, g := range games {
		if g.Location != location || g.Date.IsZero() {
			continue
		}
		if g.Date.Before(start) || g.Date.After(end) {
			continue
		}
		out = append(out, g)
	}
	return out
}

// GameDetail records one player's result in one game of the standings table.
type GameDetail struct {
	Game     string  `json:"game"`
	Position int     `json:"position"`
	Points   float64 `json:"points"`
	Date     string  `json:"date"`
}

// Standing is one player's row in an event standings table. PerGame has one
// slot per game of the event, zero where the player did not take part.
type Standing struct {
	Player  string       `json:"player"`
	Total   float64      `json:"total"`
	PerGame []float64    `json:"per_game"`
	Details []GameDetail `json:"details"`
}

// BuildStandings aggregates ranking points per player across the given ranked
// games. Excluded players still influence positions and points inside each
// game; they are only omitted from the resulting table. The result is sorted
// by total points descending; players tied on total keep the order in which
// they first appeared.
func BuildStandings(games []Game, excluded map[string]struct{}) []Standing {
	index := make(map[string]int)
	var standings []Standing

	for gi, game := range games {
		for _, p := range game.Players {
			if p.Points == nil {
				continue
			}
			if _, skip := excluded[p.Name]; skip {
				continue
			}

			si, ok := index[p.Name]
			if !ok {
				si = len(standings)
				index[p.Name] = si
				standings = append(standings, Standing{
					Player:  p.Name,
					PerGame: make([]float64, len(games)),
				})
			}

			standings[si].Total += p.RankingPoints
			standings[si].PerGame[gi] = p.RankingPoints
			standings[si].Details = append(standings[si].Details, GameDetail{
				Game:     game.Boardgame,
				Position: p.Position,
				Points:   p.RankingPoints,
				Date:     game.DateLabel(),
			})
		}
	}

	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Total > standings[j].Total
	})
	return standings
}

// EventRankings bundles the ranked game list with the standings of all three
// modes, the way the event page consumes them.
type EventRankings struct {
	Games        []Game     `json:"games"`
	MaxPositions int        `json:"max_positions"`
	Default      []Standing `json:"ranking_default"`
	Playtime     []Standing `json:"ranking_playtime"`
	Complexity   []Standing `json:"ranking_complexity"`
}

// AllStandings ranks the given games under every mode and builds the three
// standings tables at once. Games are ordered newest first, matching the
// per-game point columns of the tables.
func AllStandings(games []Game, excluded map[string]struct{}) (EventRankings, error) {
	ordered := make([]Game, len(games))
	copy(ordered, games)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.After(ordered[j].Date)
	})

	maxPositions := 0
	rankings := EventRankings{MaxPositions: 0}

	for _, mode := range []Mode{ModeDefault, ModePlaytime, ModeComplexity} {
		ranked := make([]Game, 0, len(ordered))
		for _, g := range ordered {
			rg, err := RankGamePlayers(g, mode)
			if err != nil {
				return EventRankings{}, err
			}
			ranked = append(ranked, rg)
		}

		standings := BuildStandings(ranked, excluded)
		switch mode {
		case ModeDefault:
			rankings.Games = ranked
			rankings.Default = standings
			for _, g := range ranked {
				if len(g.Players) > maxPositions {
					maxPositions = len(g.Players)
				}
			}
		case ModePlaytime:
			rankings.Playtime = standings
		case ModeComplexity:
			rankings.Complexity = standings
		}
	}

	rankings.MaxPositions = maxPositions
	return rankings, nil
}
