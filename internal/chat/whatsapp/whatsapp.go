// Package whatsapp provides WhatsApp client integration using whatsmeow library.
package whatsapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	// SQLite driver for whatsmeow session storage
	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/mdp/qrterminal/v3"

	"mentionguard/internal/chat"
	"mentionguard/pkg/text"
)

var errDisabled = errors.New("whatsapp frontend is disabled")

// Config holds WhatsApp-specific configuration
type Config struct {
	GroupJID    string // Group to monitor, empty monitors every group
	SessionPath string
	Enabled     bool
}

// Frontend implements the chat.Frontend interface for WhatsApp
type Frontend struct {
	config    *Config
	logger    *zap.Logger
	client    *whatsmeow.Client
	container *sqlstore.Container

	// Message handling
	handlerMutex   sync.RWMutex
	messageHandler func(*chat.Message)
}

// NewFrontend creates a new WhatsApp frontend
func NewFrontend(config *Config, logger *zap.Logger) *Frontend {
	return &Frontend{
		config: config,
		logger: logger,
	}
}

// Start initializes the WhatsApp client and logs in, showing a QR code on first use
func (f *Frontend) Start(ctx context.Context) error {
	if !f.config.Enabled {
		f.logger.Info("WhatsApp frontend is disabled, skipping initialization")
		return nil
	}

	f.logger.Info("Starting WhatsApp frontend", zap.String("sessionPath", f.config.SessionPath))

	if err := f.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}

	if err := f.initClient(ctx); err != nil {
		return fmt.Errorf("failed to init client: %w", err)
	}

	f.client.AddEventHandler(f.handleEvent)

	if f.client.Store.ID == nil {
		qrChan, _ := f.client.GetQRChannel(ctx)
		if err := f.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}

		for evt := range qrChan {
			if evt.Event == "code" {
				f.logger.Info("QR code received, please scan with your phone")
				fmt.Println("QR Code:")
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			} else {
				f.logger.Info("Login event", zap.String("event", evt.Event))
			}
		}
	} else if err := f.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	f.logger.Info("WhatsApp frontend started successfully")
	return nil
}

// Listen registers the handler and blocks until ctx is done.
// Events arrive on whatsmeow's own goroutines.
func (f *Frontend) Listen(ctx context.Context, handler func(*chat.Message)) error {
	if !f.config.Enabled {
		return nil // Do nothing if disabled
	}

	f.handlerMutex.Lock()
	f.messageHandler = handler
	f.handlerMutex.Unlock()

	<-ctx.Done()

	return f.stop()
}

// SendText sends a text message to the specified chat, optionally quoting a message
func (f *Frontend) SendText(ctx context.Context, chatID, replyToID, body string) (string, error) {
	if !f.config.Enabled {
		return "", errDisabled
	}

	jid, err := types.ParseJID(chatID)
	if err != nil {
		return "", fmt.Errorf("invalid chat JID: %w", err)
	}

	var msg *waE2E.Message
	if replyToID != "" {
		msg = &waE2E.Message{
			ExtendedTextMessage: &waE2E.ExtendedTextMessage{
				Text: &body,
				ContextInfo: &waE2E.ContextInfo{
					StanzaID: &replyToID,
				},
			},
		}
	} else {
		msg = &waE2E.Message{
			Conversation: &body,
		}
	}

	resp, err := f.client.SendMessage(ctx, jid, msg)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	return resp.ID, nil
}

// SendDirectMessage sends a message to a user's private chat
func (f *Frontend) SendDirectMessage(ctx context.Context, userID, body string) (string, error) {
	return f.SendText(ctx, userID, "", body)
}

// DeleteMessage revokes a message for everyone. The bot account must be a group admin
// to revoke messages of other participants.
func (f *Frontend) DeleteMessage(ctx context.Context, chatID, senderID, msgID string) error {
	if !f.config.Enabled {
		return errDisabled
	}

	chatJID, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("invalid chat JID: %w", err)
	}

	// an empty sender revokes one of our own messages
	senderJID := types.EmptyJID
	if senderID != "" {
		if senderJID, err = types.ParseJID(senderID); err != nil {
			return fmt.Errorf("invalid sender JID: %w", err)
		}
	}

	revoke := f.client.BuildRevoke(chatJID, senderJID, msgID)
	if _, err := f.client.SendMessage(ctx, chatJID, revoke); err != nil {
		return fmt.Errorf("failed to revoke message: %w", err)
	}

	return nil
}

// handleEvent processes incoming WhatsApp events
func (f *Frontend) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		f.handleMessageEvent(v)
	case *events.KeepAliveTimeout:
		f.logger.Warn("Received KeepAlive timeout, reconnecting...")
	case *events.KeepAliveRestored:
		f.logger.Info("Connection restored after timeout")
	case *events.LoggedOut:
		f.logger.Error("WhatsApp session logged out, delete the session file and scan the QR code again")
	default:
	}
}

// handleMessageEvent processes incoming messages
func (f *Frontend) handleMessageEvent(evt *events.Message) {
	message, ok := f.convertMessage(evt)
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
func (f *Frontend) convertMessage(evt *events.Message) (*chat.Message, bool) {
	if evt.Message == nil {
		return nil, false
	}

	if evt.Info.Chat.Server != types.GroupServer {
		return nil, false
	}

	if f.config.GroupJID != "" && evt.Info.Chat.String() != f.config.GroupJID {
		return nil, false
	}

	if evt.Info.IsFromMe {
		return nil, false
	}

	body := extractMessageText(evt.Message)

	return &chat.Message{
		ID:         evt.Info.ID,
		ChatID:     evt.Info.Chat.String(),
		SenderID:   evt.Info.Sender.ToNonAD().String(),
		SenderName: evt.Info.PushName,
		Text:       body,
		Mentions:   extractMentions(evt.Message, body),
		Timestamp:  evt.Info.Timestamp,
		IsGroup:    true,
		Raw:        evt,
	}, true
}

// stop closes the WhatsApp client connection
func (f *Frontend) stop() error {
	f.logger.Info("Stopping WhatsApp frontend")

	if f.client != nil {
		f.client.Disconnect()
	}

	if f.container != nil {
		if err := f.container.Close(); err != nil {
			f.logger.Warn("Failed to close whatsapp container", zap.Error(err))
		}
	}

	return nil
}

// initDatabase initializes the SQLite database for session storage
func (f *Frontend) initDatabase(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", f.config.SessionPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return err
	}

	container := sqlstore.NewWithDB(db, "sqlite3", nil)
	f.container = container
	return container.Upgrade(ctx)
}

// initClient initializes the WhatsApp client
func (f *Frontend) initClient(ctx context.Context) error {
	deviceStore, err := f.container.GetFirstDevice(ctx)
	if err != nil {
		return err
	}

	f.client = whatsmeow.NewClient(deviceStore, nil)
	return nil
}

// extractMessageText extracts text content from various WhatsApp message types
func extractMessageText(msg *waE2E.Message) string {
	switch {
	case msg.GetConversation() != "":
		return msg.GetConversation()
	case msg.GetExtendedTextMessage().GetText() != "":
		return msg.GetExtendedTextMessage().GetText()
	case msg.GetImageMessage().GetCaption() != "":
		return msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage().GetCaption() != "":
		return msg.GetVideoMessage().GetCaption()
	case msg.GetDocumentMessage().GetCaption() != "":
		return msg.GetDocumentMessage().GetCaption()
	}
	return ""
}

// contextInfo returns the context info of the first message type carrying one
func contextInfo(msg *waE2E.Message) *waE2E.ContextInfo {
	switch {
	case msg.GetExtendedTextMessage().GetContextInfo() != nil:
		return msg.GetExtendedTextMessage().GetContextInfo()
	case msg.GetImageMessage().GetContextInfo() != nil:
		return msg.GetImageMessage().GetContextInfo()
	case msg.GetVideoMessage().GetContextInfo() != nil:
		return msg.GetVideoMessage().GetContextInfo()
	case msg.GetDocumentMessage().GetContextInfo() != nil:
		return msg.GetDocumentMessage().GetContextInfo()
	}
	return nil
}

// extractMentions prefers the structured mention list and falls back to "@<number>" tokens in the text
func extractMentions(msg *waE2E.Message, body string) []string {
	if mentioned := contextInfo(msg).GetMentionedJID(); len(mentioned) > 0 {
		return mentioned
	}

	numbers := text.ExtractMentions(body)
	if len(numbers) == 0 {
		return nil
	}

	mentions := make([]string, 0, len(numbers))
	for _, number := range numbers {
		mentions = append(mentions, types.NewJID(number, types.DefaultUserServer).String())
	}
	return mentions
}

// ResolveUser maps "@<number>" or a full JID to a user JID
func (f *Frontend) ResolveUser(handle string) (string, bool) {
	handle = text.CleanTarget(handle)
	if handle == "" {
		return "", false
	}

	if strings.Contains(handle, "@") {
		jid, err := types.ParseJID(handle)
		if err != nil || jid.User == "" {
			return "", false
		}
		return jid.ToNonAD().String(), true
	}

	for _, r := range handle {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return types.NewJID(handle, types.DefaultUserServer).String(), true
}

// IsUserAdmin always reports false. Group admin lookups are not used on WhatsApp,
// configure owner ids instead.
func (f *Frontend) IsUserAdmin(_ context.Context, chatID, userID string) (bool, error) {
	if !f.config.Enabled {
		return false, errDisabled
	}

	f.logger.Debug("WhatsApp admin checking not implemented, returning false",
		zap.String("chatId", chatID),
		zap.String("userId", userID))

	return false, nil
}

// GetAdminUserIDs is not supported on WhatsApp and returns no ids
func (f *Frontend) GetAdminUserIDs(_ context.Context, _ string) ([]string, error) {
	if !f.config.Enabled {
		return nil, errDisabled
	}
	return nil, nil
}
