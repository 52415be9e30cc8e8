// Package compat probes which historical chat/message collections are
// reachable under current access rules and selects the behavioral mode for
// the session. The result is an explicit Schema value handed to the
// directory, message store and sync layer; nothing here is process-global.
package compat

import (
	"context"

	"BPortal/docstore"
	"BPortal/logger"
	"BPortal/module/chat/model"
)

type Mode string

const (
	ModeStandard Mode = "v2"
	ModeFallback Mode = "v1"
)

// Schema is the compatibility decision for one session.
type Schema struct {
	Mode      Mode
	Reachable []string
}

func (s *Schema) Fallback() bool { return s.Mode == ModeFallback }

// ChatSearchOrder lists the chat collections find-or-create walks, legacy
// names first in fallback mode.
func (s *Schema) ChatSearchOrder() []string {
	if s.Fallback() {
		return model.ChatSearchFallback
	}
	return model.ChatSearchStandard
}

// ChatSubscribeOrder lists the collections the chat-list subscription opens.
func (s *Schema) ChatSubscribeOrder() []string {
	if s.Fallback() {
		return model.ChatSubscribeFallback
	}
	return model.ChatSubscribeStandard
}

// Detect issues a bounded read against every probe candidate. A failed read
// is expected and only lowers the reachable count; fewer than two reachable
// collections selects fallback mode. Detection never fails: any trouble
// defaults to fallback, which is the fail-safe choice.
func Detect(ctx context.Context, store docstore.Store) *Schema {
	var reachable []string
	for _, name := range model.ProbeCandidates {
		_, err := store.Collection(name).Find(ctx, docstore.Query{Limit: 1})
		if err != nil {
			logger.Debugf("compat probe %s not accessible: %v", name, err)
			continue
		}
		reachable = append(reachable, name)
	}

	s := &Schema{Mode: ModeStandard, Reachable: reachable}
	if len(reachable) < 2 {
		s.Mode = ModeFallback
		logger.Warnf("compat: only %d collections reachable, using v1 fallback mode", len(reachable))
	} else {
		logger.Infof("compat: %d collections reachable, using v2 standard mode", len(reachable))
	}
	return s
}
