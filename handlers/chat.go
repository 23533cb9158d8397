package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/cropverse/config"
	"github.com/yourusername/cropverse/metrics"
	"github.com/yourusername/cropverse/middleware"
	"github.com/yourusername/cropverse/models"
	"github.com/yourusername/cropverse/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MaxMessageRunes = 2000
	threadListLimit = 200
)

var ErrNotThreadMember = errors.New("not a thread member")

type ChatHandler struct {
	db     *gorm.DB
	config *config.Config
	images *utils.ImageStore
	logger *logrus.Logger
}

func NewChatHandler(db *gorm.DB, cfg *config.Config, images *utils.ImageStore, logger *logrus.Logger) *ChatHandler {
	return &ChatHandler{db: db, config: cfg, images: images, logger: logger}
}

// memberThread loads a thread the user belongs to. Unknown threads also yield ErrNotThreadMember
// so callers cannot probe which ids exist.
func memberThread(db *gorm.DB, threadID, userID uint) (*models.ChatThread, error) {
	var thread models.ChatThread
	err := db.First(&thread, threadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotThreadMember
	}
	if err != nil {
		return nil, fmt.Errorf("load thread: %w", err)
	}
	if !thread.HasMember(userID) {
		return nil, ErrNotThreadMember
	}
	return &thread, nil
}

func (h *ChatHandler) threadFailure(c *gin.Context, err error) {
	if errors.Is(err, ErrNotThreadMember) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
		return
	}
	h.logger.WithError(err).Error("Chat thread lookup failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Chat unavailable"})
}

type CreateThreadRequest struct {
	FarmerID uint `json:"farmer_id"`
	BuyerID  uint `json:"buyer_id"`
}

// CreateThread returns the caller's thread with the other party, creating it on first contact.
func (h *ChatHandler) CreateThread(c *gin.Context) {
	var req CreateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	callerID := middleware.CurrentUserID(c)
	thread := models.ChatThread{}
	if middleware.CurrentRole(c) == models.RoleBuyer {
		thread.BuyerID, thread.FarmerID = callerID, req.FarmerID
	} else {
		thread.BuyerID, thread.FarmerID = req.BuyerID, callerID
	}

	for _, party := range []struct {
		id   uint
		role string
		msg  string
	}{
		{thread.BuyerID, models.RoleBuyer, "Invalid buyer"},
		{thread.FarmerID, models.RoleFarmer, "Invalid farmer"},
	} {
		ok, err := h.hasRole(party.id, party.role)
		if err != nil {
			h.logger.WithError(err).WithField("user_id", party.id).Error("Chat party lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Chat unavailable"})
			return
		}
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": party.msg})
			return
		}
	}

	err := h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "buyer_id"}, {Name: "farmer_id"}},
		DoNothing: true,
	}).Create(&thread).Error
	if err == nil {
		err = h.db.Where("buyer_id = ? AND farmer_id = ?", thread.BuyerID, thread.FarmerID).First(&thread).Error
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to open chat thread")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open thread"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"thread": thread})
}

func (h *ChatHandler) hasRole(userID uint, role string) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	var n int64
	if err := h.db.Model(&models.User{}).Where("user_id = ? AND role = ?", userID, role).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

type SendMessageRequest struct {
	ThreadID uint   `json:"thread_id" binding:"required"`
	Message  string `json:"message"`
}

func (h *ChatHandler) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing thread_id/message"})
		return
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing thread_id/message"})
		return
	}
	if utf8.RuneCountInString(text) > MaxMessageRunes {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Message too long (max %d characters)", MaxMessageRunes)})
		return
	}

	senderID := middleware.CurrentUserID(c)
	if _, err := memberThread(h.db, req.ThreadID, senderID); err != nil {
		h.threadFailure(c, err)
		return
	}

	msg := models.ChatMessage{ThreadID: req.ThreadID, SenderID: senderID, Message: text, MessageType: models.MessageText}
	if err := h.db.Create(&msg).Error; err != nil {
		h.logger.WithError(err).WithField("thread_id", req.ThreadID).Error("Failed to store message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}
	metrics.RecordChatMessage(models.MessageText)

	c.JSON(http.StatusOK, gin.H{"message": "Sent", "message_id": msg.ID})
}

// SendImage stores an image message. Membership is checked before the upload touches disk.
func (h *ChatHandler) SendImage(c *gin.Context) {
	threadID, err := strconv.ParseUint(c.PostForm("thread_id"), 10, 64)
	if err != nil || threadID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing thread_id"})
		return
	}
	senderID := middleware.CurrentUserID(c)
	if _, err := memberThread(h.db, uint(threadID), senderID); err != nil {
		h.threadFailure(c, err)
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing image"})
		return
	}
	url, err := saveImage(c, h.images, fh, utils.ChatDir, fmt.Sprintf("t%d_u%d", threadID, senderID), utils.MaxChatImageBytes)
	if err != nil {
		if isUploadRejection(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to save chat image")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload image"})
		return
	}

	msg := models.ChatMessage{
		ThreadID:    uint(threadID),
		SenderID:    senderID,
		Message:     strings.TrimSpace(c.PostForm("message")),
		MessageType: models.MessageImage,
		ImageURL:    &url,
	}
	if err := h.db.Create(&msg).Error; err != nil {
		h.logger.WithError(err).WithField("thread_id", threadID).Error("Failed to store image message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send image"})
		return
	}
	metrics.RecordChatMessage(models.MessageImage)

	c.JSON(http.StatusOK, gin.H{"message": "Image sent", "image_url": url, "message_id": msg.ID})
}

// Messages returns the messages after the caller's cursor in id order. The returned cursor is the
// highest id seen, or after_id unchanged when nothing is new.
func (h *ChatHandler) Messages(c *gin.Context) {
	threadID, ok := parseIDQuery(c, "thread_id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing thread_id"})
		return
	}
	afterID, err := strconv.ParseUint(c.DefaultQuery("after_id", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid after_id"})
		return
	}
	limit := h.config.ChatPageLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		if n < limit {
			limit = n
		}
	}

	if _, err := memberThread(h.db, threadID, middleware.CurrentUserID(c)); err != nil {
		h.threadFailure(c, err)
		return
	}

	items := []models.ChatMessage{}
	err = h.db.Where("thread_id = ? AND message_id > ?", threadID, afterID).
		Order("message_id ASC").Limit(limit).Find(&items).Error
	if err != nil {
		h.logger.WithError(err).WithField("thread_id", threadID).Error("Failed to fetch messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	cursor := uint(afterID)
	if len(items) > 0 {
		cursor = items[len(items)-1].ID
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "cursor": cursor})
}

func (h *ChatHandler) Threads(c *gin.Context) {
	selfCol, otherCol := "buyer_id", "farmer_id"
	if middleware.CurrentRole(c) == models.RoleFarmer {
		selfCol, otherCol = "farmer_id", "buyer_id"
	}

	query := fmt.Sprintf(`SELECT t.thread_id, t.buyer_id, t.farmer_id,
		u.user_id AS other_id, u.name AS other_name, u.email AS other_email, u.district AS other_district,
		lm.message_id AS last_message_id, lm.message AS last_message,
		lm.message_type AS last_message_type, lm.created_at AS last_message_at,
		t.created_at AS thread_created_at
	FROM chat_threads t
	JOIN users u ON u.user_id = t.%s
	LEFT JOIN chat_messages lm ON lm.message_id =
		(SELECT MAX(m2.message_id) FROM chat_messages m2 WHERE m2.thread_id = t.thread_id)
	WHERE t.%s = ?
	ORDER BY COALESCE(lm.created_at, t.created_at) DESC, t.thread_id DESC
	LIMIT %d`, otherCol, selfCol, threadListLimit)

	items := []models.ThreadSummary{}
	if err := h.db.Raw(query, middleware.CurrentUserID(c)).Scan(&items).Error; err != nil {
		h.logger.WithError(err).Error("Failed to fetch threads")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch threads"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
