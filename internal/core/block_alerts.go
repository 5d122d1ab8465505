package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"mentionguard/internal/chat"
)

// blockAlert is the set of direct messages sent to admins about one blocked sender
type blockAlert struct {
	frontend chat.Frontend
	until    time.Time         // block expiry; a later block sends a fresh alert
	messages map[string]string // recipientID -> messageID
}

// BlockAlertManager sends one direct-message alert per block and retracts it when the sender is reset.
type BlockAlertManager struct {
	alerts map[string]*blockAlert // sender -> alert
	mutex  sync.Mutex
	clock  clockwork.Clock
	logger *zap.Logger
}

// NewBlockAlertManager creates a new alert manager.
func NewBlockAlertManager(clock clockwork.Clock, logger *zap.Logger) *BlockAlertManager {
	return &BlockAlertManager{
		alerts: make(map[string]*blockAlert),
		clock:  clock,
		logger: logger,
	}
}

// IsAlertActive reports whether an alert for sender's current block is out or being sent
func (m *BlockAlertManager) IsAlertActive(sender string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.activeLocked(sender)
}

func (m *BlockAlertManager) activeLocked(sender string) bool {
	alert, ok := m.alerts[sender]
	return ok && m.clock.Now().Before(alert.until)
}

// pruneLocked drops alerts whose block has expired
func (m *BlockAlertManager) pruneLocked() {
	now := m.clock.Now()
	for sender, alert := range m.alerts {
		if !now.Before(alert.until) {
			delete(m.alerts, sender)
		}
	}
}

// SendBlockAlert sends message to every recipient unless an alert for this block is already out.
// The alert is claimed before sending and the lock is not held across network calls.
func (m *BlockAlertManager) SendBlockAlert(
	ctx context.Context,
	frontend chat.Frontend,
	sender string,
	until time.Time,
	recipients []string,
	message string,
) error {
	m.mutex.Lock()
	if m.activeLocked(sender) {
		m.mutex.Unlock()
		return nil
	}
	m.pruneLocked()

	alert := &blockAlert{
		frontend: frontend,
		until:    until,
		messages: make(map[string]string),
	}
	m.alerts[sender] = alert
	m.mutex.Unlock()

	sent := make(map[string]string, len(recipients))
	var failures int
	for _, recipient := range recipients {
		msgID, err := frontend.SendDirectMessage(ctx, recipient, message)
		if err != nil {
			m.logger.Warn("Failed to send block alert",
				zap.String("sender", sender),
				zap.String("recipient", recipient),
				zap.Error(err))
			failures++
			continue
		}
		sent[recipient] = msgID
	}

	m.mutex.Lock()
	current := m.alerts[sender] == alert
	if current {
		alert.messages = sent
	}
	m.mutex.Unlock()

	if !current {
		// cleared while sending
		m.deleteMessages(ctx, frontend, sent)
		return nil
	}

	m.logger.Info("Block alert sent",
		zap.String("sender", sender),
		zap.Int("successCount", len(sent)),
		zap.Int("totalRecipients", len(recipients)))

	if failures > 0 {
		return fmt.Errorf("failed to send %d/%d block alerts", failures, len(recipients))
	}
	return nil
}

// ClearAlert forgets the alert for sender and deletes the direct messages that were sent.
func (m *BlockAlertManager) ClearAlert(ctx context.Context, sender string) {
	m.mutex.Lock()
	alert, ok := m.alerts[sender]
	delete(m.alerts, sender)
	m.mutex.Unlock()

	if !ok || len(alert.messages) == 0 {
		return
	}

	m.logger.Debug("Clearing block alert messages",
		zap.String("sender", sender),
		zap.Int("messageCount", len(alert.messages)))

	m.deleteMessages(ctx, alert.frontend, alert.messages)
}

func (m *BlockAlertManager) deleteMessages(ctx context.Context, frontend chat.Frontend, messages map[string]string) {
	for recipient, msgID := range messages {
		// the recipient's DM chat id is the recipient id, the message is our own
		if err := frontend.DeleteMessage(ctx, recipient, "", msgID); err != nil {
			m.logger.Debug("Failed to delete block alert message",
				zap.String("recipient", recipient),
				zap.String("messageID", msgID),
				zap.Error(err))
		}
	}
}
