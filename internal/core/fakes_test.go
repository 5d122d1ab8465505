package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"mentionguard/internal/antispam"
	"mentionguard/internal/audit"
	"mentionguard/internal/chat"
	"mentionguard/internal/store"
)

var testEpoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

const testChatID = "chat1"

type sentMessage struct {
	chatID  string
	replyTo string
	text    string
}

// fakeFrontend records outgoing traffic and answers admin lookups from a fixed set
type fakeFrontend struct {
	mu       sync.Mutex
	started  bool
	sent     []sentMessage
	direct   map[string][]string // recipient -> texts
	deleted  []string            // chatID/messageID
	admins   map[string]bool
	users    map[string]string // handle -> id
	sendErr  error
	nextID   int
	lookups  int // GetAdminUserIDs calls
	listened chan struct{}
}

var (
	_ chat.Frontend     = (*fakeFrontend)(nil)
	_ chat.UserResolver = (*fakeFrontend)(nil)
)

func newFakeFrontend() *fakeFrontend {
	return &fakeFrontend{
		direct:   make(map[string][]string),
		admins:   make(map[string]bool),
		users:    make(map[string]string),
		listened: make(chan struct{}),
	}
}

func (f *fakeFrontend) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeFrontend) Listen(ctx context.Context, _ func(*chat.Message)) error {
	close(f.listened)
	<-ctx.Done()
	return nil
}

func (f *fakeFrontend) SendText(_ context.Context, chatID, replyToID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, replyTo: replyToID, text: text})
	f.nextID++
	return fmt.Sprintf("out-%d", f.nextID), nil
}

func (f *fakeFrontend) DeleteMessage(_ context.Context, chatID, _, msgID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, chatID+"/"+msgID)
	return nil
}

func (f *fakeFrontend) IsUserAdmin(_ context.Context, _, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admins[userID], nil
}

func (f *fakeFrontend) GetAdminUserIDs(context.Context, string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	ids := make([]string, 0, len(f.admins))
	for id := range f.admins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeFrontend) SendDirectMessage(_ context.Context, userID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct[userID] = append(f.direct[userID], text)
	f.nextID++
	return fmt.Sprintf("dm-%d", f.nextID), nil
}

func (f *fakeFrontend) ResolveUser(handle string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.users[handle]
	return id, ok
}

func (f *fakeFrontend) sentTexts() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeFrontend) lastText() string {
	sent := f.sentTexts()
	if len(sent) == 0 {
		return ""
	}
	return sent[len(sent)-1].text
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt audit.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []audit.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]audit.EventType, 0, len(p.events))
	for _, evt := range p.events {
		out = append(out, evt.Type)
	}
	return out
}

type recordingMetrics struct {
	mu       sync.Mutex
	messages []string
	verdicts []string
	commands []string
	errors   []string
}

func (m *recordingMetrics) RecordMessage(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, status)
}

func (m *recordingMetrics) RecordVerdict(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts = append(m.verdicts, action)
}

func (m *recordingMetrics) RecordCommand(command, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, command+":"+status)
}

func (m *recordingMetrics) RecordError(component, errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, component+":"+errorType)
}

func (m *recordingMetrics) RecordProcessingTime(time.Duration) {}

func (m *recordingMetrics) lastMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return ""
	}
	return m.messages[len(m.messages)-1]
}

type memorySettings struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newMemorySettings() *memorySettings {
	return &memorySettings{values: make(map[string]string)}
}

func (s *memorySettings) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memorySettings) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	return nil
}

func (s *memorySettings) All(context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

var errSendFailed = errors.New("send failed")

// testHarness wires a dispatcher to fakes around a real engine on a fake clock
type testHarness struct {
	dispatcher *Dispatcher
	engine     *antispam.Engine
	frontend   *fakeFrontend
	publisher  *recordingPublisher
	metrics    *recordingMetrics
	settings   *memorySettings
	clock      clockwork.FakeClock
	nextMsg    int
}

func newHarness(t *testing.T, mutate func(*Config)) *testHarness {
	t.Helper()

	config := DefaultConfig()
	if mutate != nil {
		mutate(config)
	}

	clock := clockwork.NewFakeClockAt(testEpoch)
	engine, err := antispam.New(config.AntiSpam, clock, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(engine.Close)

	h := &testHarness{
		engine:    engine,
		frontend:  newFakeFrontend(),
		publisher: &recordingPublisher{},
		metrics:   &recordingMetrics{},
		settings:  newMemorySettings(),
		clock:     clock,
	}
	dedup, err := store.NewMessageDedup(1000, 0.001)
	if err != nil {
		t.Fatalf("failed to create dedup store: %v", err)
	}

	h.dispatcher = NewDispatcher(config, Services{
		Engine:    engine,
		Frontends: []chat.Frontend{h.frontend},
		Dedup:     dedup,
		Settings:  h.settings,
		Publisher: h.publisher,
		Metrics:   h.metrics,
		Clock:     clock,
	}, zap.NewNop())
	h.dispatcher.pick = func(int) int { return 0 }

	return h
}

// send delivers a message with n mentions from sender and returns the recorded status
func (h *testHarness) send(sender string, mentions int) string {
	h.nextMsg++
	msg := &chat.Message{
		ID:         fmt.Sprintf("m%d", h.nextMsg),
		ChatID:     testChatID,
		SenderID:   sender,
		SenderName: "@" + sender,
		Timestamp:  h.clock.Now(),
		IsGroup:    true,
	}
	for i := 0; i < mentions; i++ {
		msg.Mentions = append(msg.Mentions, fmt.Sprintf("u%d", i))
	}
	return h.deliver(msg)
}

// command delivers a command text from sender, with optional structured mentions
func (h *testHarness) command(sender, text string, mentions ...string) string {
	h.nextMsg++
	return h.deliver(&chat.Message{
		ID:        fmt.Sprintf("m%d", h.nextMsg),
		ChatID:    testChatID,
		SenderID:  sender,
		Text:      text,
		Mentions:  mentions,
		Timestamp: h.clock.Now(),
		IsGroup:   true,
	})
}

func (h *testHarness) deliver(msg *chat.Message) string {
	h.dispatcher.HandleMessage(context.Background(), h.frontend, msg)
	return h.metrics.lastMessage()
}
