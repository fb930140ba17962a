// Package sync reconciles the BGG play feed against the persisted entities:
// boardgames, locations and players are additive, games and their player
// positions follow the source snapshot including deletion of stale plays.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gamechanger/internal/bgg"
	"github.com/gamechanger/internal/domain"
)

const dateLayout = "2006-01-02"

// Fetcher is the slice of the BGG client the engine needs.
type Fetcher interface {
	FetchBoardgames(ctx context.Context, ids []int) ([]bgg.ThingItem, error)
	MaxIDsPerRequest() int
}

// NameHint is an alternate name for a boardgame id supplied by the step that
// discovered the id (a play item or a search hit).
type NameHint struct {
	Name    string
	Primary bool
}

// Summary is the structured result of one sync run. UnresolvedIDs lists the
// boardgame ids whose metadata could not be fetched this pass; records
// depending on them are skipped, not failed.
type Summary struct {
	RunID          string `json:"run_id"`
	Created        int    `json:"created"`
	Updated        int    `json:"updated"`
	Deleted        int    `json:"deleted"`
	Unchanged      int    `json:"unchanged"`
	SkippedRecords int    `json:"skipped_records"`
	UnresolvedIDs  []int  `json:"unresolved_ids,omitempty"`
}

// Engine reconciles play snapshots against a Store. It holds no connection
// state of its own; the Store passed in scopes all writes of one run.
type Engine struct {
	store    Store
	fetcher  Fetcher
	reporter Reporter
	logger   *slog.Logger
}

// NewEngine creates a sync engine.
func NewEngine(store Store, fetcher Fetcher, reporter Reporter, logger *slog.Logger) *Engine {
	if reporter == nil {
		reporter = NewLogReporter(logger)
	}
	return &Engine{
		store:    store,
		fetcher:  fetcher,
		reporter: reporter,
		logger:   logger,
	}
}

// Run reconciles the snapshot: boardgame metadata first in batched calls,
// then deletion of games absent from the snapshot, then per-record
// reconciliation of location, game and player positions. A malformed record
// is logged and skipped without aborting the pass.
func (e *Engine) Run(ctx context.Context, plays []bgg.Play) (Summary, error) {
	sum := Summary{RunID: uuid.New().String()}
	logger := e.logger.With("run_id", sum.RunID)
	logger.Info("sync run started", "plays", len(plays))

	ids, hints := collectBoardgameRefs(plays)
	boardgames, err := e.syncBoardgames(ctx, ids, hints, &sum)
	if err != nil {
		return sum, fmt.Errorf("syncing boardgames: %w", err)
	}

	if err := e.deleteStaleGames(ctx, plays, &sum); err != nil {
		return sum, fmt.Errorf("deleting stale games: %w", err)
	}

	for _, play := range plays {
		if err := e.syncPlay(ctx, play, boardgames, &sum); err != nil {
			if errors.Is(err, errSkipRecord) {
				sum.SkippedRecords++
				continue
			}
			return sum, fmt.Errorf("syncing play %d: %w", play.ID, err)
		}
	}

	logger.Info("sync run finished",
		"created", sum.Created,
		"updated", sum.Updated,
		"deleted", sum.Deleted,
		"unchanged", sum.Unchanged,
		"skipped", sum.SkippedRecords,
		"unresolved_ids", len(sum.UnresolvedIDs),
	)
	return sum, nil
}

// errSkipRecord marks per-record failures that must not abort the pass.
var errSkipRecord = errors.New("skip record")

func collectBoardgameRefs(plays []bgg.Play) ([]int, map[int]NameHint) {
	var ids []int
	hints := make(map[int]NameHint)
	for _, play := range plays {
		id := play.Item.ObjectID
		if _, seen := hints[id]; seen {
			continue
		}
		ids = append(ids, id)
		// Play items carry the localized display name, never the primary one.
		hints[id] = NameHint{Name: play.Item.Name}
	}
	return ids, hints
}

// syncBoardgames fetches metadata for the id set in chunks bounded by the
// external per-call limit and upserts each record. A chunk whose fetch fails
// after the client's retries is recorded as unresolved and skipped. When a
// chunk comes back with a different item count than requested, its name hints
// are discarded rather than risk mislabeling by position.
func (e *Engine) syncBoardgames(ctx context.Context, ids []int, hints map[int]NameHint, sum *Summary) (map[int]*domain.Boardgame, error) {
	resolved := make(map[int]*domain.Boardgame)
	if len(ids) == 0 {
		return resolved, nil
	}

	limit := e.fetcher.MaxIDsPerRequest()
	for start := 0; start < len(ids); start += limit {
		end := start + limit
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		items, err := e.fetcher.FetchBoardgames(ctx, chunk)
		if err != nil {
			e.logger.Warn("boardgame chunk unresolved", "ids", chunk, "error", err)
			sum.UnresolvedIDs = append(sum.UnresolvedIDs, chunk...)
			continue
		}

		useHints := len(items) == len(chunk)
		if !useHints {
			e.logger.Warn("boardgame chunk count mismatch, ignoring name hints",
				"requested", len(chunk), "received", len(items))
		}

		for _, item := range items {
			var hint *NameHint
			if useHints {
				if h, ok := hints[item.ID]; ok && h.Name != "" {
					hint = &h
				}
			}
			bg, err := e.upsertBoardgame(ctx, item, hint, sum)
			if err != nil {
				return nil, err
			}
			resolved[item.ID] = bg
		}
	}
	return resolved, nil
}

func (e *Engine) upsertBoardgame(ctx context.Context, item bgg.ThingItem, hint *NameHint, sum *Summary) (*domain.Boardgame, error) {
	desired := boardgameFromThing(item, hint)

	existing, err := e.store.GetBoardgame(ctx, item.ID)
	switch {
	case err == nil:
		if existing.Update(desired) {
			if err := e.store.UpdateBoardgame(ctx, existing); err != nil {
				return nil, err
			}
			e.report(ctx, sum, "boardgame", strconv.Itoa(item.ID), ActionUpdated)
		} else {
			e.report(ctx, sum, "boardgame", strconv.Itoa(item.ID), ActionUnchanged)
		}
		return existing, nil

	case errors.Is(err, domain.ErrBoardgameNotFound):
		bg := desired
		if err := e.store.CreateBoardgame(ctx, &bg); err != nil {
			return nil, err
		}
		e.report(ctx, sum, "boardgame", strconv.Itoa(item.ID), ActionCreated)
		return &bg, nil

	default:
		return nil, err
	}
}

// boardgameFromThing maps a metadata record to the domain entity, applying
// the alternate-name rule: a primary hint overrides both names, a non-primary
// hint only the display name, no hint defaults both to the metadata name.
func boardgameFromThing(item bgg.ThingItem, hint *NameHint) domain.Boardgame {
	name := item.PrimaryName()
	namePrimary := name
	if hint != nil {
		name = hint.Name
		if hint.Primary {
			namePrimary = hint.Name
		}
	}

	return domain.Boardgame{
		BGGID:         item.ID,
		Name:          name,
		NamePrimary:   namePrimary,
		Img:           item.Image,
		ImgSmall:      item.Thumbnail,
		YearPublished: item.Year(),
		MinPlayers:    item.MinPlayers.Value,
		MaxPlayers:    item.MaxPlayers.Value,
		Playtime:      item.PlayingTime.Value,
		Cooperative:   item.IsCooperative(),
		Rating:        item.Rating(),
		Weight:        item.Weight(),
	}
}

// deleteStaleGames removes every stored game whose play id no longer appears
// in the snapshot. Player positions go with their game.
func (e *Engine) deleteStaleGames(ctx context.Context, plays []bgg.Play, sum *Summary) error {
	current := make(map[int]struct{}, len(plays))
	for _, play := range plays {
		current[play.ID] = struct{}{}
	}

	stored, err := e.store.ListGames(ctx)
	if err != nil {
		return err
	}

	for _, game := range stored {
		if _, ok := current[game.PlayID]; ok {
			continue
		}
		if err := e.store.DeleteGame(ctx, game.ID); err != nil {
			return err
		}
		e.report(ctx, sum, "game", strconv.Itoa(game.PlayID), ActionDeleted)
	}
	return nil
}

func (e *Engine) syncPlay(ctx context.Context, play bgg.Play, boardgames map[int]*domain.Boardgame, sum *Summary) error {
	date, err := time.Parse(dateLayout, play.Date)
	if err != nil {
		e.logger.Warn("skipping play with malformed date",
			"play_id", play.ID, "date", play.Date, "error", err)
		return errSkipRecord
	}

	bgID := play.Item.ObjectID
	boardgame, ok := boardgames[bgID]
	if !ok {
		// Metadata unresolved this pass; an earlier pass may have stored it.
		stored, err := e.store.GetBoardgame(ctx, bgID)
		if errors.Is(err, domain.ErrBoardgameNotFound) {
			e.logger.Warn("skipping play with unresolved boardgame",
				"play_id", play.ID, "bgg_id", bgID)
			return errSkipRecord
		}
		if err != nil {
			return err
		}
		boardgame = stored
	}

	location, err := e.getOrCreateLocation(ctx, play.Location, sum)
	if err != nil {
		return err
	}

	game, err := e.upsertGame(ctx, play, date, boardgame, location, sum)
	if err != nil {
		return err
	}

	return e.syncPositions(ctx, game, play.PlayerEntries(), sum)
}

// getOrCreateLocation resolves a location by exact name. Locations are
// immutable once created.
func (e *Engine) getOrCreateLocation(ctx context.Context, name string, sum *Summary) (*domain.Location, error) {
	location, err := e.store.GetLocationByName(ctx, name)
	if err == nil {
		return location, nil
	}
	if !errors.Is(err, domain.ErrLocationNotFound) {
		return nil, err
	}

	location = &domain.Location{Name: name}
	if err := e.store.CreateLocation(ctx, location); err != nil {
		return nil, err
	}
	e.report(ctx, sum, "location", name, ActionCreated)
	return location, nil
}

// getOrCreatePlayer resolves a player by exact name. The BGG username is
// stored at creation and never changed afterwards.
func (e *Engine) getOrCreatePlayer(ctx context.Context, name, bggUsername string, sum *Summary) (*domain.Player, error) {
	player, err := e.store.GetPlayerByName(ctx, name)
	if err == nil {
		return player, nil
	}
	if !errors.Is(err, domain.ErrPlayerNotFound) {
		return nil, err
	}

	player = &domain.Player{Name: name, BGGUsername: bggUsername}
	if err := e.store.CreatePlayer(ctx, player); err != nil {
		return nil, err
	}
	e.report(ctx, sum, "player", name, ActionCreated)
	return player, nil
}

func (e *Engine) upsertGame(ctx context.Context, play bgg.Play, date time.Time, boardgame *domain.Boardgame, location *domain.Location, sum *Summary) (*domain.Game, error) {
	desired := domain.Game{
		PlayID:      play.ID,
		Date:        date,
		Playtime:    play.PlaytimeMinutes(),
		BoardgameID: boardgame.BGGID,
		LocationID:  location.ID,
	}

	existing, err := e.store.GetGameByPlayID(ctx, play.ID)
	switch {
	case err == nil:
		if existing.Update(desired) {
			if err := e.store.UpdateGame(ctx, existing); err != nil {
				return nil, err
			}
			e.report(ctx, sum, "game", strconv.Itoa(play.ID), ActionUpdated)
		} else {
			e.report(ctx, sum, "game", strconv.Itoa(play.ID), ActionUnchanged)
		}
		return existing, nil

	case errors.Is(err, domain.ErrGameNotFound):
		game := desired
		if err := e.store.CreateGame(ctx, &game); err != nil {
			return nil, err
		}
		e.report(ctx, sum, "game", strconv.Itoa(play.ID), ActionCreated)
		return &game, nil

	default:
		return nil, err
	}
}

// syncPositions reconciles a game's player positions with the participant
// entries of the snapshot, source-is-master: entries update or create their
// position, stored positions without a matching entry are deleted.
func (e *Engine) syncPositions(ctx context.Context, game *domain.Game, entries []bgg.PlayPlayer, sum *Summary) error {
	existing, err := e.store.ListPositions(ctx, game.ID)
	if err != nil {
		return err
	}
	byPlayer := make(map[int64]*domain.PlayerPosition, len(existing))
	for i := range existing {
		byPlayer[existing[i].PlayerID] = &existing[i]
	}

	seen := make(map[int64]struct{}, len(entries))
	for _, entry := range entries {
		player, err := e.getOrCreatePlayer(ctx, entry.Name, entry.Username, sum)
		if err != nil {
			return err
		}
		if _, dup := seen[player.ID]; dup {
			continue
		}
		seen[player.ID] = struct{}{}

		key := fmt.Sprintf("%d/%s", game.PlayID, player.Name)
		desired := domain.PlayerPosition{
			GameID:   game.ID,
			PlayerID: player.ID,
			Points:   entry.PointsValue(),
			Win:      entry.Won(),
		}

		if pos, ok := byPlayer[player.ID]; ok {
			if pos.Update(desired) {
				if err := e.store.UpdatePosition(ctx, pos); err != nil {
					return err
				}
				e.report(ctx, sum, "position", key, ActionUpdated)
			} else {
				e.report(ctx, sum, "position", key, ActionUnchanged)
			}
			continue
		}

		pos := desired
		if err := e.store.CreatePosition(ctx, &pos); err != nil {
			return err
		}
		e.report(ctx, sum, "position", key, ActionCreated)
	}

	for playerID, pos := range byPlayer {
		if _, ok := seen[playerID]; ok {
			continue
		}
		if err := e.store.DeletePosition(ctx, pos.ID); err != nil {
			return err
		}
		e.report(ctx, sum, "position", fmt.Sprintf("%d/%d", game.PlayID, playerID), ActionDeleted)
	}
	return nil
}

func (e *Engine) report(ctx context.Context, sum *Summary, entity, key string, action Action) {
	switch action {
	case ActionCreated:
		sum.Created++
	case ActionUpdated:
		sum.Updated++
	case ActionDeleted:
		sum.Deleted++
	case ActionUnchanged:
		sum.Unchanged++
	}
	e.reporter.Report(ctx, Change{
		RunID:     sum.RunID,
		Entity:    entity,
		Key:       key,
		Action:    action,
		Timestamp: time.Now().UTC(),
	})
}
