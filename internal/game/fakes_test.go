package game

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeClock gives tests full control over elapsed time inside a phase.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeGateway implements the full Gateway contract in memory. Tests drive it
// by pushing messages and reactions at the captured handlers.
type fakeGateway struct {
	mu sync.Mutex

	messageHandler  func(Message)
	reactionHandler func(ReactionEvent)
	msgSubscribed   chan struct{}
	reactSubscribed chan struct{}
	msgUnsubs       int
	reactUnsubs     int

	createErr     error
	createdEmojis []Emoji
	deletedEmojis []Emoji
	fallback      Emoji
	hasFallback   bool

	addReactionErr error
	reactionsAdded []string
	reacted        chan struct{}
	cleared        []string

	members map[string]*Member

	publicChannels map[string]bool

	summaries []Summary

	botID string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		msgSubscribed:   make(chan struct{}, 8),
		reactSubscribed: make(chan struct{}, 8),
		reacted:         make(chan struct{}, 8),
		members:         make(map[string]*Member),
		publicChannels:  make(map[string]bool),
		botID:           "bot-1",
	}
}

func (f *fakeGateway) SubscribeMessages(handler func(Message)) func() {
	f.mu.Lock()
	f.messageHandler = handler
	f.mu.Unlock()
	f.msgSubscribed <- struct{}{}
	return func() {
		f.mu.Lock()
		f.messageHandler = nil
		f.msgUnsubs++
		f.mu.Unlock()
	}
}

func (f *fakeGateway) SubscribeReactions(handler func(ReactionEvent)) func() {
	f.mu.Lock()
	f.reactionHandler = handler
	f.mu.Unlock()
	f.reactSubscribed <- struct{}{}
	return func() {
		f.mu.Lock()
		f.reactionHandler = nil
		f.reactUnsubs++
		f.mu.Unlock()
	}
}

func (f *fakeGateway) pushMessage(msg Message) {
	f.mu.Lock()
	handler := f.messageHandler
	f.mu.Unlock()
	if handler != nil {
		handler(msg)
	}
}

func (f *fakeGateway) pushReaction(ev ReactionEvent) {
	f.mu.Lock()
	handler := f.reactionHandler
	f.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

func (f *fakeGateway) CreateTransient(ctx context.Context, name string) (Emoji, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return Emoji{}, f.createErr
	}
	e := Emoji{ID: "transient-" + name, Name: name}
	f.createdEmojis = append(f.createdEmojis, e)
	return e, nil
}

func (f *fakeGateway) DeleteEmoji(ctx context.Context, e Emoji) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedEmojis = append(f.deletedEmojis, e)
	return nil
}

func (f *fakeGateway) FallbackEmoji() (Emoji, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fallback, f.hasFallback
}

func (f *fakeGateway) AddReaction(ctx context.Context, channelID, messageID string, e Emoji) error {
	f.mu.Lock()
	if f.addReactionErr != nil {
		err := f.addReactionErr
		f.mu.Unlock()
		return err
	}
	f.reactionsAdded = append(f.reactionsAdded, messageID+"/"+e.ID)
	f.mu.Unlock()
	f.reacted <- struct{}{}
	return nil
}

func (f *fakeGateway) ClearReaction(ctx context.Context, channelID, messageID string, e Emoji) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, messageID+"/"+e.ID)
	return nil
}

func (f *fakeGateway) FetchMember(ctx context.Context, userID string) (*Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[userID]
	if !ok {
		return nil, errors.New("member not found")
	}
	return m, nil
}

func (f *fakeGateway) IsPublicChannel(channelID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.publicChannels[channelID]
}

func (f *fakeGateway) PostSummary(ctx context.Context, summary Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, summary)
	return nil
}

func (f *fakeGateway) postedSummaries() []Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Summary, len(f.summaries))
	copy(out, f.summaries)
	return out
}

func (f *fakeGateway) BotUserID() string {
	return f.botID
}

// fakePublisher records feed publications.
type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) Publish(msgType string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msgType)
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	copy(out, p.events)
	return out
}
