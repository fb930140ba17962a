package bgg

import (
	"encoding/xml"
	"strconv"
)

// playsEnvelope is the root of a /plays response.
type playsEnvelope struct {
	XMLName xml.Name `xml:"plays"`
	Total   int      `xml:"total,attr"`
	Page    int      `xml:"page,attr"`
	Plays   []Play   `xml:"play"`
}

// Play is one recorded play from the BGG plays feed. Numeric attributes that
// BGG leaves empty are kept as strings and decoded by the accessor methods.
type Play struct {
	ID       int          `xml:"id,attr"`
	Date     string       `xml:"date,attr"`
	Length   string       `xml:"length,attr"`
	Location string       `xml:"location,attr"`
	Item     PlayItem     `xml:"item"`
	Players  []PlayPlayer `xml:"players>player"`
}

// PlayItem names the boardgame of a play.
type PlayItem struct {
	Name     string `xml:"name,attr"`
	ObjectID int    `xml:"objectid,attr"`
}

// PlayPlayer is one participant entry of a play. Score is an optional decimal
// string; Win is the source's "1"/"0" sentinel.
type PlayPlayer struct {
	Username string `xml:"username,attr"`
	Name     string `xml:"name,attr"`
	Score    string `xml:"score,attr"`
	Win      string `xml:"win,attr"`
}

// PlayerEntries returns the participant entries of the play.
func (p Play) PlayerEntries() []PlayPlayer {
	return p.Players
}

// PlaytimeMinutes decodes the recorded duration; 0 when absent or malformed.
func (p Play) PlaytimeMinutes() int {
	v, err := strconv.Atoi(p.Length)
	if err != nil {
		return 0
	}
	return v
}

// PointsValue decodes the score. A missing or unparseable score yields nil,
// the unscored state, never zero.
func (p PlayPlayer) PointsValue() *float64 {
	if p.Score == "" {
		return nil
	}
	v, err := strconv.ParseFloat(p.Score, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Won reports whether the source marked this entry as a win. Only the literal
// "1" counts.
func (p PlayPlayer) Won() bool {
	return p.Win == "1"
}

// thingEnvelope is the root of a /thing response.
type thingEnvelope struct {
	XMLName xml.Name    `xml:"items"`
	Items   []ThingItem `xml:"item"`
}

// ThingItem is the full metadata record of one boardgame.
type ThingItem struct {
	ID            int        `xml:"id,attr"`
	Names         []Name     `xml:"name"`
	Image         string     `xml:"image"`
	Thumbnail     string     `xml:"thumbnail"`
	YearPublished IntValue   `xml:"yearpublished"`
	MinPlayers    IntValue   `xml:"minplayers"`
	MaxPlayers    IntValue   `xml:"maxplayers"`
	PlayingTime   IntValue   `xml:"playingtime"`
	Links         []Link     `xml:"link"`
	Average       FloatValue `xml:"statistics>ratings>average"`
	AverageWeight FloatValue `xml:"statistics>ratings>averageweight"`
}

// Name is one of a boardgame's listed names; Type is "primary" or "alternate".
type Name struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

// Link is one metadata link entry (category, mechanic, designer and so on).
type Link struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

// IntValue decodes BGG's <tag value="42"/> integer convention.
type IntValue struct {
	Value int `xml:"value,attr"`
}

// FloatValue decodes BGG's <tag value="7.5"/> decimal convention.
type FloatValue struct {
	Value float64 `xml:"value,attr"`
}

// PrimaryName returns the name entry flagged as primary, falling back to the
// first name listed.
func (t ThingItem) PrimaryName() string {
	for _, n := range t.Names {
		if n.Type == "primary" {
			return n.Value
		}
	}
	if len(t.Names) > 0 {
		return t.Names[0].Value
	}
	return ""
}

// IsCooperative scans the metadata links for the cooperative mechanic.
func (t ThingItem) IsCooperative() bool {
	for _, l := range t.Links {
		if l.Value == "Cooperative Game" {
			return true
		}
	}
	return false
}

// Year returns the publication year.
func (t ThingItem) Year() int { return t.YearPublished.Value }

// Rating returns the average community rating.
func (t ThingItem) Rating() float64 { return t.Average.Value }

// Weight returns the average complexity weight.
func (t ThingItem) Weight() float64 { return t.AverageWeight.Value }

// searchEnvelope is the root of a /search response.
type searchEnvelope struct {
	XMLName xml.Name     `xml:"items"`
	Items   []searchItem `xml:"item"`
}

type searchItem struct {
	ID   int      `xml:"id,attr"`
	Name Name     `xml:"name"`
	Year IntValue `xml:"yearpublished"`
}

// SearchResult is one hit of a free-text boardgame search.
type SearchResult struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Primary bool   `json:"primary"`
	Year    int    `json:"year,omitempty"`
}
