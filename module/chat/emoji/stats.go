// Package emoji keeps per-user usage statistics for the picker. All of it is
// a best-effort enrichment: a tracking failure never surfaces past a log.
package emoji

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"BPortal/docstore"
	"BPortal/logger"
	"BPortal/module/chat/model"
	"BPortal/tools/errs"
)

type Tracker struct {
	store docstore.Store
}

func New(store docstore.Store) *Tracker {
	return &Tracker{store: store}
}

// TrackUsage increments the user's counter for the symbol, creating the
// record on first use.
func (t *Tracker) TrackUsage(ctx context.Context, userID, symbol string) {
	coll := t.store.Collection(model.CollEmojiStats)
	id := model.EmojiStatID(userID, symbol)

	_, ok, err := coll.Get(ctx, id)
	if err != nil {
		logger.Debugf("emoji usage tracking skipped: %v", err)
		return
	}
	if ok {
		err = coll.Update(ctx, id, docstore.Update{
			Inc:        map[string]int64{"count": 1},
			ServerTime: []string{"lastUsed"},
		})
	} else {
		err = coll.Set(ctx, id, bson.M{
			"emoji":      symbol,
			"count":      int64(1),
			"lastUsed":   docstore.ServerTimestamp,
			"isFavorite": false,
			"userId":     userID,
		})
	}
	if err != nil {
		logger.Debugf("emoji usage tracking skipped: %v", err)
	}
}

// Stats returns the user's top 50 symbols by usage count.
func (t *Tracker) Stats(ctx context.Context, userID string) ([]model.EmojiStat, error) {
	recs, err := t.store.Collection(model.CollEmojiStats).Find(ctx, docstore.Query{
		Eq:     bson.M{"userId": userID},
		SortBy: "count",
		Desc:   true,
		Limit:  50,
	})
	if err != nil {
		return nil, errs.Wrap(err, "load emoji stats")
	}
	out := make([]model.EmojiStat, 0, len(recs))
	for _, rec := range recs {
		var st model.EmojiStat
		if err := model.Decode(rec.Data, &st); err != nil {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

// ToggleFavorite flips the favorite flag; unknown symbols are ignored.
func (t *Tracker) ToggleFavorite(ctx context.Context, userID, symbol string) error {
	coll := t.store.Collection(model.CollEmojiStats)
	id := model.EmojiStatID(userID, symbol)
	raw, ok, err := coll.Get(ctx, id)
	if err != nil {
		return errs.Wrap(err, "load emoji stat")
	}
	if !ok {
		return nil
	}
	fav, _ := raw["isFavorite"].(bool)
	return errs.Wrap(coll.Update(ctx, id, docstore.Update{
		Set: bson.M{"isFavorite": !fav},
	}), "toggle emoji favorite")
}
