package domain

// Boardgame holds the metadata of one boardgame as fetched from BoardGameGeek.
// It is created and updated only by the sync engine and read-only everywhere else.
type Boardgame struct {
	BGGID         int     `json:"bgg_id"`
	Name          string  `json:"name"`
	NamePrimary   string  `json:"name_primary"`
	Img           string  `json:"img,omitempty"`
	ImgSmall      string  `json:"img_small,omitempty"`
	YearPublished int     `json:"year_published"`
	MinPlayers    int     `json:"min_players"`
	MaxPlayers    int     `json:"max_players"`
	Playtime      int     `json:"playtime"`
	Cooperative   bool    `json:"cooperative"`
	Rating        float64 `json:"rating"`
	Weight        float64 `json:"weight"`
}

// Update overwrites the fields that differ from src and reports whether
// anything changed. The BGG ID is the identity and is never touched.
func (b *Boardgame) Update(src Boardgame) bool {
	changed := false
	if b.Name != src.Name {
		b.Name = src.Name
		changed = true
	}
	if b.NamePrimary != src.NamePrimary {
		b.NamePrimary = src.NamePrimary
		changed = true
	}
	if b.Img != src.Img {
		b.Img = src.Img
		changed = true
	}
	if b.ImgSmall != src.ImgSmall {
		b.ImgSmall = src.ImgSmall
		changed = true
	}
	if b.YearPublished != src.YearPublished {
		b.YearPublished = src.YearPublished
		changed = true
	}
	if b.MinPlayers != src.MinPlayers {
		b.MinPlayers = src.MinPlayers
		changed = true
	}
	if b.MaxPlayers != src.MaxPlayers {
		b.MaxPlayers = src.MaxPlayers
		changed = true
	}
	if b.Playtime != src.Playtime {
		b.Playtime = src.Playtime
		changed = true
	}
	if b.Cooperative != src.Cooperative {
		b.Cooperative = src.Cooperative
		changed = true
	}
	if b.Rating != src.Rating {
		b.Rating = src.Rating
		changed = true
	}
	if b.Weight != src.Weight {
		b.Weight = src.Weight
		changed = true
	}
	return changed
}
