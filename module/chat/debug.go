package chat

import (
	"context"

	"BPortal/docstore"
	"BPortal/module/chat/model"
)

// CollectionProbe is one entry of the diagnostic: whether the collection
// answered, how many documents the bounded read returned, and a few samples.
type CollectionProbe struct {
	Name       string            `json:"name"`
	Accessible bool              `json:"accessible"`
	DocCount   int               `json:"documentCount,omitempty"`
	Samples    []docstore.Record `json:"sampleDocuments,omitempty"`
	Error      string            `json:"error,omitempty"`
}

type DebugReport struct {
	Mode           string            `json:"portalVersion"`
	FallbackMode   bool              `json:"fallbackMode"`
	CurrentUser    string            `json:"currentUser"`
	TenantID       string            `json:"concernID"`
	Collections    []CollectionProbe `json:"accessibleCollections"`
	RecentMessages []docstore.Record `json:"recentMessages"`
	RecentChats    []docstore.Record `json:"recentChats"`
}

// DebugMessagingSystem enumerates every known collection name with a bounded
// sample read, plus the most recent messages and chats, for support and
// troubleshooting. Probe failures are part of the report, never errors.
func (m *Messenger) DebugMessagingSystem(ctx context.Context) DebugReport {
	report := DebugReport{
		Mode:         string(m.schema.Mode),
		FallbackMode: m.schema.Fallback(),
		CurrentUser:  m.self.UserID,
		TenantID:     m.self.TenantID,
	}

	for _, name := range model.DebugCandidates {
		probe := CollectionProbe{Name: name}
		recs, err := m.store.Collection(name).Find(ctx, docstore.Query{Limit: 5})
		if err != nil {
			probe.Error = err.Error()
		} else {
			probe.Accessible = true
			probe.DocCount = len(recs)
			probe.Samples = recs
		}
		report.Collections = append(report.Collections, probe)
	}

	if recs, err := m.store.Collection(model.CollMessages).Find(ctx, docstore.Query{
		SortBy: "timestamp", Desc: true, Limit: 10,
	}); err == nil {
		report.RecentMessages = recs
	}
	if recs, err := m.store.Collection(model.CollChats).Find(ctx, docstore.Query{
		SortBy: "metadata.updatedAt", Desc: true, Limit: 10,
	}); err == nil {
		report.RecentChats = recs
	}
	return report
}
