package message

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"BPortal/docstore"
	"BPortal/module/chat/model"
	"BPortal/tools/errs"
)

// Messages returns the newest limit messages of the chat, oldest first.
// Ordering is by store-assigned creation timestamp; two messages in the same
// clock tick fall back to arrival order.
func (s *Store) Messages(ctx context.Context, chatID string, limit int64) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	recs, err := s.store.Collection(model.CollMessages).Find(ctx, docstore.Query{
		Eq:     bson.M{"chatId": chatID},
		SortBy: "timestamp",
		Desc:   true,
		Limit:  limit,
	})
	if err != nil {
		return nil, errs.Wrap(err, "list messages")
	}
	out := decodeMessages(recs)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Search matches messages whose text starts with queryText, optionally
// scoped to one chat. Prefix matching is what the store's range queries can
// answer; full-text search stays out of scope.
func (s *Store) Search(ctx context.Context, queryText, chatID string) ([]model.Message, error) {
	q := docstore.Query{
		PrefixField: "text",
		Prefix:      queryText,
	}
	if chatID != "" {
		q.Eq = bson.M{"chatId": chatID}
	}
	recs, err := s.store.Collection(model.CollMessages).Find(ctx, q)
	if err != nil {
		return nil, errs.Wrap(err, "search messages")
	}
	return decodeMessages(recs), nil
}

// Get loads one message by id from the primary collection.
func (s *Store) Get(ctx context.Context, messageID string) (model.Message, bool, error) {
	raw, ok, err := s.store.Collection(model.CollMessages).Get(ctx, messageID)
	if err != nil || !ok {
		return model.Message{}, false, errs.Wrap(err, "load message")
	}
	var m model.Message
	if err := model.Decode(raw, &m); err != nil {
		return model.Message{}, false, err
	}
	m.MessageID = messageID
	return m, true, nil
}

// Delete is the user-initiated retraction; the facade removes any attachment
// blob before calling this.
func (s *Store) Delete(ctx context.Context, messageID string) error {
	return errs.Wrap(s.store.Collection(model.CollMessages).Delete(ctx, messageID), "delete message")
}

func decodeMessages(recs []docstore.Record) []model.Message {
	out := make([]model.Message, 0, len(recs))
	for _, rec := range recs {
		var m model.Message
		if err := model.Decode(rec.Data, &m); err != nil {
			continue
		}
		m.MessageID = rec.ID
		out = append(out, m)
	}
	return out
}
