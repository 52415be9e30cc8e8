package message

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"BPortal/docstore"
	"BPortal/logger"
	"BPortal/module/chat/model"
	"BPortal/tools/errs"
)

// MarkDelivered records delivery to userID. Status only ever climbs the
// sent→delivered→read ladder; re-marking is a set-semantics no-op.
func (s *Store) MarkDelivered(ctx context.Context, userID, chatID, messageID string) error {
	return s.advanceStatus(ctx, userID, messageID, model.StatusDelivered, "deliveredTo")
}

// MarkRead records the read receipt, then resets the reader's unread counter
// and bumps their participant record. The follow-ups are secondary: they log
// and never fail the receipt.
func (s *Store) MarkRead(ctx context.Context, userID, chatID, messageID string) error {
	if err := s.advanceStatus(ctx, userID, messageID, model.StatusRead, "readBy"); err != nil {
		return err
	}
	if err := s.unread.Reset(ctx, chatID, userID); err != nil {
		logger.Warnf("unread reset for %s/%s failed: %v", chatID, userID, err)
	}
	s.touchParticipant(ctx, chatID, userID)
	return nil
}

func (s *Store) advanceStatus(ctx context.Context, userID, messageID string, next model.MessageStatus, setField string) error {
	coll := s.store.Collection(model.CollMessages)
	raw, ok, err := coll.Get(ctx, messageID)
	if err != nil {
		return errs.Wrap(err, "load message")
	}
	if !ok {
		return errs.New("message not found")
	}
	current, _ := raw["status"].(string)

	u := docstore.Update{
		AddToSet: map[string]interface{}{setField: userID},
	}
	if model.StatusAdvances(model.MessageStatus(current), next) {
		u.Set = bson.M{"status": string(next)}
	}
	return errs.Wrap(coll.Update(ctx, messageID, u), "advance message status")
}

// AcceptEscalation adds the acting user to the acceptor set and marks the
// action taken. Adding an existing member is a no-op, so this is idempotent.
func (s *Store) AcceptEscalation(ctx context.Context, userID, messageID string) error {
	return errs.Wrap(s.store.Collection(model.CollMessages).Update(ctx, messageID, docstore.Update{
		AddToSet: map[string]interface{}{"escalationData.acceptedBy": userID},
		Set:      bson.M{"escalationData.actionTaken": true},
	}), "accept escalation")
}

func (s *Store) touchParticipant(ctx context.Context, chatID, userID string) {
	parts := s.store.Collection(model.CollParticipants)
	recs, err := parts.Find(ctx, docstore.Query{
		Eq: bson.M{"chatId": chatID, "userId": userID},
	})
	if err != nil {
		logger.Debugf("participant lookup for %s/%s failed: %v", chatID, userID, err)
		return
	}
	for _, rec := range recs {
		if err := parts.Update(ctx, rec.ID, docstore.Update{
			Set:        bson.M{"unreadCount": int64(0)},
			ServerTime: []string{"lastReadAt"},
		}); err != nil {
			logger.Debugf("participant touch for %s/%s failed: %v", chatID, userID, err)
		}
	}
}
