package game

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/scythe504/ninjahunt-backend/internal"
)

func huntTestConfig() HuntConfig {
	return HuntConfig{
		GuildID:    "guild-1",
		PublicOnly: false,
		Multiplier: 1.0,
		Channels: internal.AllowDenyGroup{
			Allow: internal.NewAllowDenySet(internal.Wildcard),
			Deny:  internal.NewAllowDenySet(),
		},
		Categories: internal.AllowDenyGroup{
			Allow: internal.NewAllowDenySet(internal.Wildcard),
			Deny:  internal.NewAllowDenySet(),
		},
	}
}

func eligibleMessage() Message {
	return Message{
		ID:         "msg-1",
		GuildID:    "guild-1",
		ChannelID:  "chan-1",
		CategoryID: "cat-1",
		AuthorID:   "user-1",
	}
}

func TestHuntingFilter(t *testing.T) {
	gw := newFakeGateway()
	gw.publicChannels["chan-public"] = true

	cases := []struct {
		name    string
		mutate  func(*HuntConfig, *Message)
		ignored bool
	}{
		{
			name:    "plain eligible message",
			mutate:  func(cfg *HuntConfig, m *Message) {},
			ignored: false,
		},
		{
			name: "foreign guild",
			mutate: func(cfg *HuntConfig, m *Message) {
				m.GuildID = "guild-other"
			},
			ignored: true,
		},
		{
			name: "bot author",
			mutate: func(cfg *HuntConfig, m *Message) {
				m.AuthorBot = true
			},
			ignored: true,
		},
		{
			name: "public-only rejects private channel",
			mutate: func(cfg *HuntConfig, m *Message) {
				cfg.PublicOnly = true
			},
			ignored: true,
		},
		{
			name: "public-only accepts public channel",
			mutate: func(cfg *HuntConfig, m *Message) {
				cfg.PublicOnly = true
				m.ChannelID = "chan-public"
			},
			ignored: false,
		},
		{
			name: "denied channel",
			mutate: func(cfg *HuntConfig, m *Message) {
				cfg.Channels.Deny = internal.NewAllowDenySet("chan-1")
			},
			ignored: true,
		},
		{
			name: "channel allow wins over category deny",
			mutate: func(cfg *HuntConfig, m *Message) {
				cfg.Channels.Allow = internal.NewAllowDenySet("chan-1")
				cfg.Categories.Deny = internal.NewAllowDenySet("cat-1")
			},
			ignored: false,
		},
		{
			name: "denied category",
			mutate: func(cfg *HuntConfig, m *Message) {
				cfg.Channels.Allow = internal.NewAllowDenySet()
				cfg.Categories.Deny = internal.NewAllowDenySet("cat-1")
			},
			ignored: true,
		},
		{
			name: "channel deny wins over channel allow",
			mutate: func(cfg *HuntConfig, m *Message) {
				cfg.Channels.Deny = internal.NewAllowDenySet("chan-1")
				cfg.Channels.Allow = internal.NewAllowDenySet("chan-1")
			},
			ignored: true,
		},
		{
			name: "no allow list matches",
			mutate: func(cfg *HuntConfig, m *Message) {
				cfg.Channels.Allow = internal.NewAllowDenySet("chan-other")
				cfg.Categories.Allow = internal.NewAllowDenySet("cat-other")
			},
			ignored: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := huntTestConfig()
			msg := eligibleMessage()
			tc.mutate(&cfg, &msg)

			p := NewHuntingPhase(cfg, gw, gw, rand.New(rand.NewSource(1)), nil)
			if got := p.ignoredMessage(msg); got != tc.ignored {
				t.Fatalf("ignoredMessage() = %v, want %v", got, tc.ignored)
			}
		})
	}
}

func TestHuntingSelectsEligibleMessage(t *testing.T) {
	gw := newFakeGateway()
	cfg := huntTestConfig()
	// A multiplier this large makes the very first eligible message a
	// certain pick, so the test never depends on the draw.
	cfg.Multiplier = 1000

	p := NewHuntingPhase(cfg, gw, gw, rand.New(rand.NewSource(1)), nil)
	if err := p.Enter(context.Background()); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}

	ignored := eligibleMessage()
	ignored.AuthorBot = true
	gw.pushMessage(ignored)
	if p.done.resolved() {
		t.Fatal("an ineligible message must never be selected")
	}

	want := eligibleMessage()
	gw.pushMessage(want)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	p.Exit(context.Background())

	target, ok := p.Target()
	if !ok {
		t.Fatal("Target() reported no selection after a finished hunt")
	}
	if target.ID != want.ID {
		t.Fatalf("Target().ID = %s, want %s", target.ID, want.ID)
	}
	if gw.msgUnsubs != 1 {
		t.Fatalf("message unsubscribes = %d, want 1", gw.msgUnsubs)
	}
}

func TestHuntingIneligibleDoesNotAdvanceCounter(t *testing.T) {
	gw := newFakeGateway()
	cfg := huntTestConfig()
	cfg.Multiplier = 1000

	p := NewHuntingPhase(cfg, gw, gw, rand.New(rand.NewSource(1)), nil)
	if err := p.Enter(context.Background()); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}
	defer p.Exit(context.Background())

	for i := 0; i < 50; i++ {
		bot := eligibleMessage()
		bot.AuthorBot = true
		gw.pushMessage(bot)
	}
	if p.k != 0 {
		t.Fatalf("eligible counter = %d after only ineligible traffic, want 0", p.k)
	}
}

func TestHuntingZeroMultiplierNeverSelects(t *testing.T) {
	gw := newFakeGateway()
	cfg := huntTestConfig()
	cfg.Multiplier = 0

	p := NewHuntingPhase(cfg, gw, gw, rand.New(rand.NewSource(1)), nil)
	if err := p.Enter(context.Background()); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}
	defer p.Exit(context.Background())

	for i := 0; i < 300; i++ {
		gw.pushMessage(eligibleMessage())
	}
	if p.done.resolved() {
		t.Fatal("a zero multiplier must never select a message")
	}
	if p.k != 300 {
		t.Fatalf("eligible counter = %d, want 300", p.k)
	}
}

func TestHuntingCancelledPhaseIgnoresMessages(t *testing.T) {
	gw := newFakeGateway()
	cfg := huntTestConfig()
	cfg.Multiplier = 1000

	p := NewHuntingPhase(cfg, gw, gw, rand.New(rand.NewSource(1)), nil)
	if err := p.Enter(context.Background()); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}
	p.Cancel()
	gw.pushMessage(eligibleMessage())
	p.Exit(context.Background())

	if _, ok := p.Target(); ok {
		t.Fatal("a cancelled hunt must not select a target")
	}
}

func TestHuntingCancelUnblocksRun(t *testing.T) {
	gw := newFakeGateway()
	p := NewHuntingPhase(huntTestConfig(), gw, gw, rand.New(rand.NewSource(1)), nil)

	done := make(chan error, 1)
	go func() {
		done <- RunPhase(context.Background(), p)
	}()

	select {
	case <-gw.msgSubscribed:
	case <-time.After(time.Second):
		t.Fatal("hunt never subscribed to the message stream")
	}
	p.Cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunPhase() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled hunt never returned")
	}
}
