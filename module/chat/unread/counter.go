// Package unread maintains the per-chat, per-participant unread counters.
// Increments ride the store's atomic per-field $inc so concurrent senders
// cannot lose updates; there is no read-modify-write anywhere here.
package unread

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"BPortal/docstore"
	"BPortal/logger"
	"BPortal/module/chat/model"
	"BPortal/tools/errs"
)

type Counter struct {
	store docstore.Store
}

func New(store docstore.Store) *Counter {
	return &Counter{store: store}
}

// Increment advances the unread count of every participant except the sender
// in one update. The participant-record mirrors advance too, best-effort, so
// badge totals stay cheap to read.
func (c *Counter) Increment(ctx context.Context, chatID, excludeUserID string) error {
	chats := c.store.Collection(model.CollChats)
	raw, ok, err := chats.Get(ctx, chatID)
	if err != nil {
		return errs.Wrap(err, "load chat for unread increment")
	}
	if !ok {
		return errs.New("chat not found for unread increment")
	}

	participants := participantIDs(raw)
	inc := map[string]int64{}
	for _, uid := range participants {
		if uid != excludeUserID {
			inc["unreadCount."+uid] = 1
		}
	}
	if len(inc) == 0 {
		return nil
	}
	if err := chats.Update(ctx, chatID, docstore.Update{Inc: inc}); err != nil {
		return errs.Wrap(err, "increment unread counts")
	}

	c.bumpMirrors(ctx, chatID, excludeUserID)
	return nil
}

// Reset zeroes exactly the given user's entry with a targeted field write; no
// read is needed, so it is race-free under concurrent sends.
func (c *Counter) Reset(ctx context.Context, chatID, userID string) error {
	return errs.Wrap(c.store.Collection(model.CollChats).Update(ctx, chatID, docstore.Update{
		Set: bson.M{"unreadCount." + userID: int64(0)},
	}), "reset unread count")
}

// Total sums the caller's active participant mirrors across all chats.
func (c *Counter) Total(ctx context.Context, userID string) (int64, error) {
	recs, err := c.store.Collection(model.CollParticipants).Find(ctx, docstore.Query{
		Eq: bson.M{"userId": userID, "isActive": true},
	})
	if err != nil {
		return 0, errs.Wrap(err, "list participant records")
	}
	var total int64
	for _, rec := range recs {
		var p model.Participant
		if err := model.Decode(rec.Data, &p); err != nil {
			continue
		}
		total += p.UnreadCount
	}
	return total, nil
}

func (c *Counter) bumpMirrors(ctx context.Context, chatID, excludeUserID string) {
	parts := c.store.Collection(model.CollParticipants)
	recs, err := parts.Find(ctx, docstore.Query{Eq: bson.M{"chatId": chatID, "isActive": true}})
	if err != nil {
		logger.Debugf("unread mirror lookup for %s failed: %v", chatID, err)
		return
	}
	for _, rec := range recs {
		var p model.Participant
		if err := model.Decode(rec.Data, &p); err != nil || p.UserID == excludeUserID {
			continue
		}
		if err := parts.Update(ctx, rec.ID, docstore.Update{Inc: map[string]int64{"unreadCount": 1}}); err != nil {
			logger.Debugf("unread mirror bump for %s/%s failed: %v", chatID, p.UserID, err)
		}
	}
}

func participantIDs(raw bson.M) []string {
	switch v := raw["participants"].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, el := range v {
			if s, ok := el.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
