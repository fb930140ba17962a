package domain

import "time"

// Location is a place where games are played. Locations are created on first
// reference and never renamed or deleted.
type Location struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Player is one member of the group. The BGG username is recorded when the
// player is first seen and kept as-is afterwards.
type Player struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	BGGUsername string `json:"bgg_username,omitempty"`
}

// Game is one completed play of one boardgame on one date at one location.
// PlayID is the external BGG play identifier, unique and stable across syncs.
type Game struct {
	ID          int64     `json:"id"`
	PlayID      int       `json:"play_id"`
	Date        time.Time `json:"date"`
	Playtime    int       `json:"playtime"`
	BoardgameID int       `json:"boardgame_id"`
	LocationID  int64     `json:"location_id"`
}

// Update overwrites the fields that differ from src and reports whether
// anything changed. Identity fields (ID, PlayID) are never touched.
func (g *Game) Update(src Game) bool {
	changed := false
	if !g.Date.Equal(src.Date) {
		g.Date = src.Date
		changed = true
	}
	if g.Playtime != src.Playtime {
		g.Playtime = src.Playtime
		changed = true
	}
	if g.BoardgameID != src.BoardgameID {
		g.BoardgameID = src.BoardgameID
		changed = true
	}
	if g.LocationID != src.LocationID {
		g.LocationID = src.LocationID
		changed = true
	}
	return changed
}

// PlayerPosition is one player's recorded outcome within a game. A nil Points
// means the source recorded no score, which is a valid unscored state.
type PlayerPosition struct {
	ID       int64    `json:"id"`
	GameID   int64    `json:"game_id"`
	PlayerID int64    `json:"player_id"`
	Points   *float64 `json:"points,omitempty"`
	Win      bool     `json:"win"`
}

// Update overwrites score and win flag from src and reports whether anything
// changed.
func (p *PlayerPosition) Update(src PlayerPosition) bool {
	changed := false
	if !floatPtrEqual(p.Points, src.Points) {
		p.Points = src.Points
		changed = true
	}
	if p.Win != src.Win {
		p.Win = src.Win
		changed = true
	}
	return changed
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
