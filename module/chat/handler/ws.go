package handler

import (
	"net/http"
	gosync "sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"BPortal/docstore"
	"BPortal/logger"
	"BPortal/module/chat/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type wsFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// websocket streams live snapshots over one connection: the caller's chat
// list, presence of users named in the watch query, and the message list of
// chatId when present. Every subscription is torn down when the socket
// closes.
func (h *Handler) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("ws upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	m := h.newMessenger(c)
	ctx := c.Request.Context()

	var writeMu gosync.Mutex
	send := func(frameType string, data interface{}) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(wsFrame{Type: frameType, Data: data}); err != nil {
			logger.Debugf("ws write: %v", err)
		}
	}

	var unsubs []docstore.Unsubscribe
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	unsub, err := m.SubscribeToChats(ctx, func(chats []model.Chat) {
		send("chats", chats)
	})
	if err != nil {
		send("error", err.Error())
		return
	}
	unsubs = append(unsubs, unsub)

	if chatID := c.Query("chatId"); chatID != "" {
		unsub, err := m.SubscribeToMessages(ctx, chatID, func(msgs []model.Message) {
			send("messages", msgs)
		})
		if err != nil {
			send("error", err.Error())
		} else {
			unsubs = append(unsubs, unsub)
		}
	}

	if watch := c.Query("watch"); watch != "" {
		unsub, err := m.SubscribeToUserStatus(ctx, watch, func(status model.PresenceStatus) {
			send("status", gin.H{"userId": watch, "status": status})
		})
		if err != nil {
			send("error", err.Error())
		} else {
			unsubs = append(unsubs, unsub)
		}
	}

	// Read loop only to detect the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
