// Package sync bridges the store's push-based change notifications into
// render-ready snapshots for the presentation layer, and republishes them on
// the bus for other gateway nodes.
package sync

import (
	"context"
	"encoding/json"
	"sort"
	gosync "sync"

	"go.mongodb.org/mongo-driver/bson"

	"BPortal/docstore"
	"BPortal/logger"
	"BPortal/module/chat/compat"
	"BPortal/module/chat/directory"
	"BPortal/module/chat/model"
	"BPortal/service/natsx"
	"BPortal/tools/errs"
)

type Sync struct {
	store  docstore.Store
	schema *compat.Schema
	tenant string
	bus    *natsx.Client // nil-safe; snapshots also fan out to other nodes
}

func New(store docstore.Store, schema *compat.Schema, tenant string, bus *natsx.Client) *Sync {
	return &Sync{store: store, schema: schema, tenant: tenant, bus: bus}
}

// SubscribeToChats opens one subscription per reachable candidate collection
// and delivers the union of their snapshots, keyed by chat id with the most
// recently updated record winning per id. The returned unsubscribe tears
// down every underlying subscription.
func (s *Sync) SubscribeToChats(ctx context.Context, fn func([]model.Chat)) (docstore.Unsubscribe, error) {
	var (
		mu        gosync.Mutex
		perColl   = map[string]map[string]model.Chat{}
		teardowns []docstore.Unsubscribe
	)

	deliver := func() {
		mu.Lock()
		merged := map[string]model.Chat{}
		for _, chats := range perColl {
			for id, c := range chats {
				if prev, ok := merged[id]; !ok || c.Metadata.UpdatedAt > prev.Metadata.UpdatedAt {
					merged[id] = c
				}
			}
		}
		out := make([]model.Chat, 0, len(merged))
		for _, c := range merged {
			out = append(out, c)
		}
		mu.Unlock()

		sort.Slice(out, func(i, j int) bool {
			return out[i].Metadata.UpdatedAt > out[j].Metadata.UpdatedAt
		})
		fn(out)
		s.republish(out)
	}

	for _, coll := range s.schema.ChatSubscribeOrder() {
		coll := coll
		q := docstore.Query{}
		if !s.schema.Fallback() {
			// v1 records predate tenant stamps, so only standard mode filters
			q.Eq = bson.M{"metadata.concernID": s.tenant}
		}
		unsub, err := s.store.Collection(coll).Subscribe(ctx, q, func(recs []docstore.Record) {
			snapshot := make(map[string]model.Chat, len(recs))
			for _, rec := range recs {
				chat, err := directory.NormalizeChat(rec.ID, rec.Data, s.tenant)
				if err != nil {
					continue
				}
				snapshot[rec.ID] = chat
			}
			mu.Lock()
			perColl[coll] = snapshot
			mu.Unlock()
			deliver()
		})
		if err != nil {
			logger.Debugf("chat subscription on %s not available: %v", coll, err)
			continue
		}
		teardowns = append(teardowns, unsub)
	}

	if len(teardowns) == 0 {
		return nil, errs.New("no chat collection accepted a subscription")
	}
	return func() {
		for _, t := range teardowns {
			t()
		}
	}, nil
}

// SubscribeToMessages re-delivers the full ordered message list of the chat
// on every change; there is no incremental diffing.
func (s *Sync) SubscribeToMessages(ctx context.Context, chatID string, fn func([]model.Message)) (docstore.Unsubscribe, error) {
	return s.store.Collection(model.CollMessages).Subscribe(ctx, docstore.Query{
		Eq:     bson.M{"chatId": chatID},
		SortBy: "timestamp",
	}, func(recs []docstore.Record) {
		out := make([]model.Message, 0, len(recs))
		for _, rec := range recs {
			var m model.Message
			if err := model.Decode(rec.Data, &m); err != nil {
				continue
			}
			m.MessageID = rec.ID
			out = append(out, m)
		}
		fn(out)
	})
}

// SubscribeToUserStatus surfaces presence changes of a single user.
func (s *Sync) SubscribeToUserStatus(ctx context.Context, userID string, fn func(model.PresenceStatus)) (docstore.Unsubscribe, error) {
	return s.store.Collection(model.CollUsers).SubscribeDoc(ctx, userID, func(raw bson.M, ok bool) {
		if !ok {
			fn(model.PresenceOffline)
			return
		}
		status, _ := raw["status"].(string)
		if status == "" {
			status = string(model.PresenceOffline)
		}
		fn(model.PresenceStatus(status))
	})
}

func (s *Sync) republish(chats []model.Chat) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(chats)
	if err != nil {
		return
	}
	s.bus.Publish("portal.chats."+s.tenant, data)
}
