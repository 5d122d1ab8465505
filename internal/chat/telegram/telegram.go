// Package telegram provides Telegram Bot API integration using go-telegram/bot library.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
	"unicode/utf16"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"mentionguard/internal/chat"
	"mentionguard/pkg/text"
)

const (
	entityTypeMention     = "mention"
	entityTypeTextMention = "text_mention"
	chatTypeGroup         = "group"
	chatTypeSuperGroup    = "supergroup"
	// usernameCacheSize bounds the username -> user id mapping learned from senders
	usernameCacheSize = 4096
)

var errDisabled = errors.New("telegram frontend is disabled")

// Config holds Telegram-specific configuration
type Config struct {
	BotToken string
	GroupID  int64 // Chat ID of the group to monitor, 0 monitors every group the bot is in
	Enabled  bool
}

// Frontend implements the chat.Frontend interface for Telegram
type Frontend struct {
	config *Config
	logger *zap.Logger
	bot    *bot.Bot

	// Message handling
	handlerMutex   sync.RWMutex
	messageHandler func(*chat.Message)

	// Usernames seen in the group, used to resolve "@username" command targets
	usernames *lru.Cache[string, int64]
}

// NewFrontend creates a new Telegram frontend
func NewFrontend(config *Config, logger *zap.Logger) *Frontend {
	usernames, err := lru.New[string, int64](usernameCacheSize)
	if err != nil {
		// Only fails for a non-positive size
		panic(fmt.Sprintf("failed to create username cache: %v", err))
	}

	return &Frontend{
		config:    config,
		logger:    logger,
		usernames: usernames,
	}
}

// Start initializes the Telegram bot
func (f *Frontend) Start(ctx context.Context) error {
	if !f.config.Enabled {
		f.logger.Info("Telegram frontend is disabled, skipping initialization")
		return nil
	}

	f.logger.Info("Starting Telegram frontend",
		zap.Int64("groupId", f.config.GroupID))

	b, err := bot.New(f.config.BotToken, bot.WithDefaultHandler(f.handleUpdate))
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}

	f.bot = b

	// Verify bot can access the group (skip if GroupID is 0, every group is monitored then)
	if f.config.GroupID != 0 {
		if err := f.verifyGroupAccess(ctx); err != nil {
			return fmt.Errorf("failed to verify group access: %w", err)
		}
	}

	f.logger.Info("Telegram frontend started successfully")
	return nil
}

// Listen starts long polling and calls the handler for each group message.
// It blocks until ctx is done.
func (f *Frontend) Listen(ctx context.Context, handler func(*chat.Message)) error {
	if !f.config.Enabled {
		return nil // Do nothing if disabled
	}

	f.handlerMutex.Lock()
	f.messageHandler = handler
	f.handlerMutex.Unlock()

	f.bot.Start(ctx)

	return nil
}

// SendText sends a text message to the specified chat, optionally as a reply
func (f *Frontend) SendText(ctx context.Context, chatID, replyToID, text string) (string, error) {
	if !f.config.Enabled {
		return "", errDisabled
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid chat ID: %w", err)
	}

	params := &bot.SendMessageParams{
		ChatID: chatIDInt,
		Text:   text,
	}

	disabled := true
	params.LinkPreviewOptions = &models.LinkPreviewOptions{
		IsDisabled: &disabled,
	}

	if replyToID != "" {
		messageID, parseErr := strconv.Atoi(replyToID)
		if parseErr != nil {
			return "", fmt.Errorf("invalid reply message ID: %w", parseErr)
		}
		// The offending message may already be deleted
		params.ReplyParameters = &models.ReplyParameters{
			MessageID:                messageID,
			AllowSendingWithoutReply: true,
		}
	}

	msg, err := f.bot.SendMessage(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	return strconv.Itoa(msg.ID), nil
}

// SendDirectMessage sends a private message to a user. The user must have started the bot.
func (f *Frontend) SendDirectMessage(ctx context.Context, userID, text string) (string, error) {
	return f.SendText(ctx, userID, "", text)
}

// DeleteMessage deletes a message by its ID. The sender is not needed on Telegram.
func (f *Frontend) DeleteMessage(ctx context.Context, chatID, _, msgID string) error {
	if !f.config.Enabled {
		return errDisabled
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}

	messageID, err := strconv.Atoi(msgID)
	if err != nil {
		return fmt.Errorf("invalid message ID: %w", err)
	}

	params := &bot.DeleteMessageParams{
		ChatID:    chatIDInt,
		MessageID: messageID,
	}

	if _, err := f.bot.DeleteMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	return nil
}

// handleUpdate is the default handler for all updates
func (f *Frontend) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message != nil {
		f.handleMessage(ctx, update.Message)
	}
}

// handleMessage converts group messages into the unified format
func (f *Frontend) handleMessage(_ context.Context, msg *models.Message) {
	message, ok := f.convertMessage(msg)
	if !ok {
		return
	}

	f.handlerMutex.RLock()
	handler := f.messageHandler
	f.handlerMutex.RUnlock()

	if handler != nil {
		handler(message)
	}
}

// convertMessage builds a chat.Message, returning false for messages that should be ignored
func (f *Frontend) convertMessage(msg *models.Message) (*chat.Message, bool) {
	// Channel posts and service messages have no sender
	if msg.From == nil || msg.From.IsBot {
		return nil, false
	}

	isGroup := msg.Chat.Type == chatTypeGroup || msg.Chat.Type == chatTypeSuperGroup
	if !isGroup {
		return nil, false
	}

	if f.config.GroupID != 0 && msg.Chat.ID != f.config.GroupID {
		return nil, false
	}

	f.rememberUser(msg.From)

	body, entities := msg.Text, msg.Entities
	if body == "" {
		body, entities = msg.Caption, msg.CaptionEntities
	}

	return &chat.Message{
		ID:         strconv.Itoa(msg.ID),
		ChatID:     strconv.FormatInt(msg.Chat.ID, 10),
		SenderID:   strconv.FormatInt(msg.From.ID, 10),
		SenderName: f.getUserDisplayName(msg.From),
		Text:       body,
		Mentions:   f.extractMentions(body, entities),
		Timestamp:  time.Unix(int64(msg.Date), 0),
		IsGroup:    true,
		Raw:        msg,
	}, true
}

// extractMentions returns one entry per mention entity: the user id when it is known, otherwise the username
func (f *Frontend) extractMentions(body string, entities []models.MessageEntity) []string {
	var mentions []string
	var units []uint16

	for _, entity := range entities {
		switch entity.Type {
		case entityTypeTextMention:
			if entity.User != nil {
				mentions = append(mentions, strconv.FormatInt(entity.User.ID, 10))
			}
		case entityTypeMention:
			if units == nil {
				units = utf16.Encode([]rune(body))
			}
			handle := text.CleanTarget(entityText(units, entity.Offset, entity.Length))
			if handle == "" {
				continue
			}
			if id, ok := f.lookupUsername(handle); ok {
				mentions = append(mentions, strconv.FormatInt(id, 10))
			} else {
				mentions = append(mentions, handle)
			}
		}
	}

	return mentions
}

// entityText slices a message by UTF-16 offsets as reported by the Bot API
func entityText(units []uint16, offset, length int) string {
	if offset < 0 || length <= 0 || offset+length > len(units) {
		return ""
	}
	return string(utf16.Decode(units[offset : offset+length]))
}

func (f *Frontend) rememberUser(user *models.User) {
	if user.Username != "" {
		f.usernames.Add(text.FoldCase(user.Username), user.ID)
	}
}

func (f *Frontend) lookupUsername(username string) (int64, bool) {
	return f.usernames.Get(text.FoldCase(username))
}

// ResolveUser maps "@username" or a numeric id to a user id
func (f *Frontend) ResolveUser(handle string) (string, bool) {
	handle = text.CleanTarget(handle)
	if handle == "" {
		return "", false
	}
	if _, err := strconv.ParseInt(handle, 10, 64); err == nil {
		return handle, true
	}
	if id, ok := f.lookupUsername(handle); ok {
		return strconv.FormatInt(id, 10), true
	}
	return "", false
}

// verifyGroupAccess checks if the bot has access to the configured group
func (f *Frontend) verifyGroupAccess(ctx context.Context) error {
	chat, err := f.bot.GetChat(ctx, &bot.GetChatParams{
		ChatID: f.config.GroupID,
	})
	if err != nil {
		return fmt.Errorf("cannot access group %d: %w", f.config.GroupID, err)
	}

	f.logger.Info("Bot has access to group",
		zap.String("groupTitle", chat.Title),
		zap.String("groupType", string(chat.Type)))

	return nil
}

// getUserDisplayName creates a display name for the user
func (f *Frontend) getUserDisplayName(user *models.User) string {
	if user.Username != "" {
		return "@" + user.Username
	}

	name := user.FirstName
	if user.LastName != "" {
		name += " " + user.LastName
	}

	return name
}

// GetGroupAdmins returns the ids of the human administrators of a group
func (f *Frontend) GetGroupAdmins(ctx context.Context, chatID int64) ([]int64, error) {
	if !f.config.Enabled {
		return nil, errDisabled
	}

	admins, err := f.bot.GetChatAdministrators(ctx, &bot.GetChatAdministratorsParams{
		ChatID: chatID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get chat administrators: %w", err)
	}

	var adminIDs []int64
	for _, admin := range admins {
		var user *models.User

		switch admin.Type {
		case models.ChatMemberTypeOwner:
			if admin.Owner != nil && admin.Owner.User != nil {
				user = admin.Owner.User
			}
		case models.ChatMemberTypeAdministrator:
			if admin.Administrator != nil {
				user = &admin.Administrator.User
			}
		case models.ChatMemberTypeMember, models.ChatMemberTypeRestricted,
			models.ChatMemberTypeLeft, models.ChatMemberTypeBanned:
			continue
		}

		// Skip bots from admin list
		if user != nil && !user.IsBot {
			adminIDs = append(adminIDs, user.ID)
		}
	}

	f.logger.Debug("Retrieved group admins",
		zap.Int64("chatId", chatID),
		zap.Int("count", len(adminIDs)))

	return adminIDs, nil
}

// GetAdminUserIDs implements chat.Frontend
func (f *Frontend) GetAdminUserIDs(ctx context.Context, chatID string) ([]string, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	adminIDs, err := f.GetGroupAdmins(ctx, chatIDInt)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(adminIDs))
	for _, id := range adminIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return ids, nil
}

// IsUserAdmin checks whether the user administers the chat
func (f *Frontend) IsUserAdmin(ctx context.Context, chatID, userID string) (bool, error) {
	if !f.config.Enabled {
		return false, errDisabled
	}

	userIDInt, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("invalid user ID: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("invalid chat ID: %w", err)
	}

	adminIDs, err := f.GetGroupAdmins(ctx, chatIDInt)
	if err != nil {
		return false, fmt.Errorf("failed to get group admins: %w", err)
	}

	for _, adminID := range adminIDs {
		if adminID == userIDInt {
			return true, nil
		}
	}
	return false, nil
}
