// Package users reads and mutates the account documents the engine shares
// with the rest of the portal: presence, display names, tenant membership.
package users

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"BPortal/docstore"
	"BPortal/logger"
	"BPortal/module/chat/model"
	"BPortal/service/storage"
	"BPortal/tools/errs"
)

type Service struct {
	store       docstore.Store
	tenant      string
	presenceTTL time.Duration
}

func New(store docstore.Store, tenant string, presenceTTL time.Duration) *Service {
	if presenceTTL == 0 {
		presenceTTL = 2 * time.Minute
	}
	return &Service{store: store, tenant: tenant, presenceTTL: presenceTTL}
}

// UpdateStatus writes the user's presence to their account document and
// mirrors it into the TTL'd presence cache. The cache write is best-effort.
func (s *Service) UpdateStatus(ctx context.Context, userID string, status model.PresenceStatus) error {
	if userID == "" {
		return nil
	}
	err := s.store.Collection(model.CollUsers).Update(ctx, userID, docstore.Update{
		Set:        bson.M{"status": string(status)},
		ServerTime: []string{"lastSeen"},
	})
	if err != nil {
		return errs.Wrap(err, "update user status")
	}

	if status == model.PresenceOffline {
		if cerr := storage.PresenceClear(userID); cerr != nil {
			logger.Debugf("presence clear for %s skipped: %v", userID, cerr)
		}
	} else if cerr := storage.PresenceSet(userID, string(status), s.presenceTTL); cerr != nil {
		logger.Debugf("presence cache for %s skipped: %v", userID, cerr)
	}
	return nil
}

// Status prefers the presence cache, falling back to the account document;
// unknown users read as offline.
func (s *Service) Status(ctx context.Context, userID string) model.PresenceStatus {
	if cached, online, err := storage.PresenceLookup(userID); err == nil && online {
		return model.PresenceStatus(cached)
	}
	raw, ok, err := s.store.Collection(model.CollUsers).Get(ctx, userID)
	if err != nil || !ok {
		return model.PresenceOffline
	}
	var u model.User
	if err := model.Decode(raw, &u); err != nil || u.Status == "" {
		return model.PresenceOffline
	}
	return u.Status
}

// DisplayName resolves a human-readable name: first+last name, then the
// profile display name, then the account email, in that order.
func (s *Service) DisplayName(ctx context.Context, userID string) string {
	raw, ok, err := s.store.Collection(model.CollUsers).Get(ctx, userID)
	if err != nil || !ok {
		return shortID(userID)
	}
	var u model.User
	if err := model.Decode(raw, &u); err != nil {
		return shortID(userID)
	}
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		return u.Email
	}
	return shortID(userID)
}

// TenantMembers lists every account of the tenant.
func (s *Service) TenantMembers(ctx context.Context) ([]model.User, error) {
	recs, err := s.store.Collection(model.CollUsers).Find(ctx, docstore.Query{
		Eq: bson.M{"concernID": s.tenant},
	})
	if err != nil {
		return nil, errs.Wrap(err, "list tenant members")
	}
	out := make([]model.User, 0, len(recs))
	for _, rec := range recs {
		var u model.User
		if err := model.Decode(rec.Data, &u); err != nil {
			continue
		}
		u.UID = rec.ID
		if u.Status == "" {
			u.Status = model.PresenceOffline
		}
		out = append(out, u)
	}
	return out, nil
}

func shortID(userID string) string {
	if len(userID) > 8 {
		return "user " + userID[:8] + "..."
	}
	return "user " + userID
}
