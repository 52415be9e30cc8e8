// Package handler is the HTTP edge over the messaging engine. Each
// authenticated user gets one Messenger per process, created on first touch
// so the schema probe runs once per session.
package handler

import (
	"net/http"
	"strconv"
	gosync "sync"
	"time"

	"github.com/gin-gonic/gin"

	"BPortal/blobstore"
	"BPortal/docstore"
	"BPortal/global/config"
	"BPortal/middleware/security"
	"BPortal/module/chat"
	"BPortal/module/chat/attach"
	"BPortal/module/chat/model"
	"BPortal/tools/errs"
)

type Handler struct {
	cfg   *config.AppConfig
	store docstore.Store
	blobs blobstore.Store

	newMessenger func(c *gin.Context) *chat.Messenger

	mu       gosync.Mutex
	sessions map[string]*chat.Messenger
}

func New(cfg *config.AppConfig, store docstore.Store, blobs blobstore.Store, factory func(self chat.Identity) *chat.Messenger) *Handler {
	h := &Handler{
		cfg:      cfg,
		store:    store,
		blobs:    blobs,
		sessions: make(map[string]*chat.Messenger),
	}
	h.newMessenger = func(c *gin.Context) *chat.Messenger {
		self := chat.Identity{UserID: security.UserID(c), TenantID: security.TenantID(c)}
		h.mu.Lock()
		defer h.mu.Unlock()
		if m, ok := h.sessions[self.UserID]; ok {
			return m
		}
		m := factory(self)
		h.sessions[self.UserID] = m
		return m
	}
	return h
}

func (h *Handler) Register(r *gin.Engine) {
	auth := r.Group("/", security.Middleware(h.cfg.JWTSecret))

	auth.POST("/chats", h.createChat)
	auth.GET("/chats", h.listChats)
	auth.POST("/chats/:id/leave", h.leaveChat)

	auth.GET("/chats/:id/messages", h.listMessages)
	auth.POST("/chats/:id/messages", h.sendMessage)
	auth.POST("/chats/:id/escalations", h.sendEscalation)
	auth.POST("/chats/:id/messages/:mid/delivered", h.markDelivered)
	auth.POST("/chats/:id/messages/:mid/read", h.markRead)
	auth.POST("/messages/:mid/accept", h.acceptEscalation)
	auth.DELETE("/messages/:mid", h.deleteMessage)
	auth.GET("/messages/search", h.searchMessages)
	auth.GET("/unread", h.unreadCount)

	auth.POST("/upload", h.uploadFile)
	auth.DELETE("/files/*key", h.deleteFile)
	auth.GET("/attachments/url", h.fileURL)
	auth.POST("/presence", h.updatePresence)
	auth.GET("/users", h.tenantMembers)
	auth.GET("/users/:id/status", h.userStatus)

	auth.POST("/emoji/track", h.trackEmoji)
	auth.GET("/emoji/stats", h.emojiStats)
	auth.POST("/emoji/favorite", h.toggleEmojiFavorite)

	auth.GET("/debug/messaging", h.debugMessaging)
	auth.GET("/ws", h.websocket)

	if g, ok := h.blobs.(*blobstore.GridFSStore); ok {
		r.GET("/files/*key", func(c *gin.Context) {
			key := c.Param("key")
			if len(key) > 0 && key[0] == '/' {
				key = key[1:]
			}
			if err := g.Download(c.Request.Context(), key, c.Writer); err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			}
		})
	}
}

func (h *Handler) createChat(c *gin.Context) {
	var req struct {
		Kind         string   `json:"kind" binding:"required"`
		OtherUserID  string   `json:"otherUserId"`
		Name         string   `json:"name"`
		Participants []string `json:"participants"`
		Description  string   `json:"description"`
		Priority     string   `json:"priority"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m := h.newMessenger(c)
	switch model.ChatKind(req.Kind) {
	case model.KindDirect:
		if req.OtherUserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "otherUserId is required"})
			return
		}
		id, err := m.CreateDirectChat(c.Request.Context(), req.OtherUserID)
		respondID(c, id, err)
	case model.KindGroup:
		if req.Name == "" || len(req.Participants) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and participants are required"})
			return
		}
		id, err := m.CreateGroupChat(c.Request.Context(), req.Name, req.Participants, req.Description)
		respondID(c, id, err)
	case model.KindEscalation:
		if req.Name == "" || len(req.Participants) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and participants are required"})
			return
		}
		id, err := m.CreateEscalationChat(c.Request.Context(), req.Name, req.Participants, model.Priority(req.Priority))
		respondID(c, id, err)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be direct, group or escalation"})
	}
}

func (h *Handler) listChats(c *gin.Context) {
	chats, err := h.newMessenger(c).GetChats(c.Request.Context())
	respondData(c, gin.H{"chats": chats}, err)
}

func (h *Handler) leaveChat(c *gin.Context) {
	respondOK(c, h.newMessenger(c).LeaveChat(c.Request.Context(), c.Param("id")))
}

func (h *Handler) listMessages(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	msgs, err := h.newMessenger(c).GetMessages(c.Request.Context(), c.Param("id"), limit)
	respondData(c, gin.H{"messages": msgs}, err)
}

func (h *Handler) sendMessage(c *gin.Context) {
	var req struct {
		Text  string       `json:"text"`
		Media *model.Media `json:"media"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Text == "" && req.Media == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty message"})
		return
	}
	id, err := h.newMessenger(c).SendMessage(c.Request.Context(), c.Param("id"), req.Text, req.Media)
	respondID(c, id, err)
}

func (h *Handler) sendEscalation(c *gin.Context) {
	var req struct {
		Text           string `json:"text" binding:"required"`
		RequiresAction *bool  `json:"requiresAction"`
		Priority       string `json:"priority"`
		Deadline       string `json:"deadline"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	requires := true
	if req.RequiresAction != nil {
		requires = *req.RequiresAction
	}
	var deadline *time.Time
	if req.Deadline != "" {
		t, err := time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "deadline must be RFC3339"})
			return
		}
		deadline = &t
	}
	id, err := h.newMessenger(c).SendEscalationMessage(c.Request.Context(), c.Param("id"), req.Text, requires, model.Priority(req.Priority), deadline)
	respondID(c, id, err)
}

func (h *Handler) markDelivered(c *gin.Context) {
	respondOK(c, h.newMessenger(c).MarkDelivered(c.Request.Context(), c.Param("id"), c.Param("mid")))
}

func (h *Handler) markRead(c *gin.Context) {
	respondOK(c, h.newMessenger(c).MarkRead(c.Request.Context(), c.Param("id"), c.Param("mid")))
}

func (h *Handler) acceptEscalation(c *gin.Context) {
	respondOK(c, h.newMessenger(c).AcceptEscalation(c.Request.Context(), c.Param("mid")))
}

func (h *Handler) deleteMessage(c *gin.Context) {
	respondOK(c, h.newMessenger(c).DeleteMessage(c.Request.Context(), c.Param("mid")))
}

func (h *Handler) searchMessages(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	msgs, err := h.newMessenger(c).SearchMessages(c.Request.Context(), q, c.Query("chatId"))
	respondData(c, gin.H{"messages": msgs}, err)
}

func (h *Handler) unreadCount(c *gin.Context) {
	total, err := h.newMessenger(c).GetUnreadCount(c.Request.Context())
	respondData(c, gin.H{"unread": total}, err)
}

func (h *Handler) uploadFile(c *gin.Context) {
	chatID := c.Query("chatId")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chatId is required"})
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	src, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer func() { _ = src.Close() }()

	res := h.newMessenger(c).UploadFile(c.Request.Context(), attach.File{
		Name:     fh.Filename,
		Size:     fh.Size,
		MimeType: fh.Header.Get("Content-Type"),
		Content:  src,
	}, chatID, nil)

	status := http.StatusOK
	if res.Status == attach.StatusError {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{
		"status":       res.Status,
		"progress":     res.Progress,
		"downloadUrl":  res.DownloadURL,
		"thumbnailUrl": res.ThumbnailURL,
		"error":        res.ErrorMessage,
	})
}

func (h *Handler) deleteFile(c *gin.Context) {
	key := c.Param("key")
	if len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}
	respondOK(c, h.newMessenger(c).DeleteFile(c.Request.Context(), key))
}

func (h *Handler) fileURL(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}
	url, err := h.newMessenger(c).FileDownloadURL(c.Request.Context(), key)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) updatePresence(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch model.PresenceStatus(req.Status) {
	case model.PresenceOnline, model.PresenceOffline, model.PresenceAway:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be online, offline or away"})
		return
	}
	respondOK(c, h.newMessenger(c).UpdateStatus(c.Request.Context(), model.PresenceStatus(req.Status)))
}

func (h *Handler) tenantMembers(c *gin.Context) {
	members, err := h.newMessenger(c).TenantMembers(c.Request.Context())
	respondData(c, gin.H{"users": members}, err)
}

func (h *Handler) userStatus(c *gin.Context) {
	m := h.newMessenger(c)
	userID := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"status":      m.UserStatus(c.Request.Context(), userID),
		"displayName": m.UserDisplayName(c.Request.Context(), userID),
	})
}

func (h *Handler) trackEmoji(c *gin.Context) {
	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.newMessenger(c).TrackEmojiUsage(c.Request.Context(), req.Emoji)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) emojiStats(c *gin.Context) {
	stats, err := h.newMessenger(c).EmojiStats(c.Request.Context())
	respondData(c, gin.H{"stats": stats}, err)
}

func (h *Handler) toggleEmojiFavorite(c *gin.Context) {
	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	respondOK(c, h.newMessenger(c).ToggleEmojiFavorite(c.Request.Context(), req.Emoji))
}

func (h *Handler) debugMessaging(c *gin.Context) {
	c.JSON(http.StatusOK, h.newMessenger(c).DebugMessagingSystem(c.Request.Context()))
}

func respondID(c *gin.Context, id string, err error) {
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func respondData(c *gin.Context, data gin.H, err error) {
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func respondOK(c *gin.Context, err error) {
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func respondErr(c *gin.Context, err error) {
	if errs.IsValidation(err) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
