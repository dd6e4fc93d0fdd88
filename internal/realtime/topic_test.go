package realtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/plaetorius/streambet/internal/realtime"
)

func TestTopicBetStream(t *testing.T) {
	cases := []struct {
		platform, name string
		kind           realtime.Kind
		want           string
	}{
		{"twitch", "caseoblonge", realtime.KindAll, "bets:twitch:caseoblonge"},
		{"twitch", "caseoblonge", realtime.KindPool, "bets:pool:twitch:caseoblonge"},
		{"twitch", "caseoblonge", realtime.KindPlacement, "bets:placement:twitch:caseoblonge"},
		{"twitch", "caseoblonge", realtime.KindResolution, "bets:resolution:twitch:caseoblonge"},
		{"YouTube", "SomeStreamer", realtime.KindAll, "bets:youtube:somestreamer"},
		{"TWITCH", "CaseOblonge", realtime.KindPool, "bets:pool:twitch:caseoblonge"},
	}
	for _, c := range cases {
		got := realtime.TopicBetStream(c.platform, c.name, c.kind)
		if got != c.want {
			t.Errorf("TopicBetStream(%q, %q, %q) = %q, want %q",
				c.platform, c.name, c.kind, got, c.want)
		}
	}
}

func TestTopicBetStream_CaseInsensitive(t *testing.T) {
	a := realtime.TopicBetStream("Twitch", "CaseOblonge", realtime.KindAll)
	b := realtime.TopicBetStream("twitch", "caseoblonge", realtime.KindAll)
	if a != b {
		t.Errorf("differently cased stream refs should share a topic: %q vs %q", a, b)
	}
}

func TestBetEvent(t *testing.T) {
	if realtime.BetEvent(true) != realtime.EventBetTeamA {
		t.Error("side A should map to bet_team_a")
	}
	if realtime.BetEvent(false) != realtime.EventBetTeamB {
		t.Error("side B should map to bet_team_b")
	}
}

func TestMemoryBus_SelfDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := realtime.NewMemoryBus()
	sub, err := bus.Subscribe(ctx, "bets:twitch:caseoblonge")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	env, err := realtime.NewEnvelope(realtime.EventBetTeamA, map[string]string{"betId": "x"})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := bus.Publish(ctx, "bets:twitch:caseoblonge", env); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-sub:
		if got.Event != realtime.EventBetTeamA {
			t.Errorf("event = %q, want %q", got.Event, realtime.EventBetTeamA)
		}
	case <-time.After(time.Second):
		t.Fatal("publisher's own subscription never received the envelope")
	}
}

func TestMemoryBus_PublisherOrdering(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := realtime.NewMemoryBus()
	sub, err := bus.Subscribe(ctx, "results")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	events := []string{"first", "second", "third"}
	for _, e := range events {
		env, _ := realtime.NewEnvelope(e, nil)
		if err := bus.Publish(ctx, "results", env); err != nil {
			t.Fatalf("Publish(%s): %v", e, err)
		}
	}

	for _, want := range events {
		select {
		case got := <-sub:
			if got.Event != want {
				t.Errorf("event = %q, want %q (single-publisher order)", got.Event, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestMemoryBus_PublishWithoutSubscribers(t *testing.T) {
	bus := realtime.NewMemoryBus()
	env, _ := realtime.NewEnvelope(realtime.EventResult, nil)
	if err := bus.Publish(context.Background(), "results", env); err != nil {
		t.Errorf("publishing with no subscribers should succeed, got %v", err)
	}
}

func TestMemoryBus_TopicIsolation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := realtime.NewMemoryBus()
	other, err := bus.Subscribe(ctx, "bets:twitch:other")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	env, _ := realtime.NewEnvelope(realtime.EventNewMarket, nil)
	if err := bus.Publish(ctx, "bets:twitch:caseoblonge", env); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-other:
		t.Errorf("subscriber on another topic received %q", got.Event)
	case <-time.After(50 * time.Millisecond):
	}
}
