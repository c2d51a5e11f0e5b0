package bot

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"monopolis-server/config"
	"monopolis-server/game"
	"monopolis-server/session"
)

type fakeSeat struct {
	mu    sync.Mutex
	mine  bool
	turns int
}

func (f *fakeSeat) IsMyTurn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mine
}

func (f *fakeSeat) TakeTurn(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns++
	f.mine = false
	return 4, nil
}

func (f *fakeSeat) taken() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.turns
}

var fast = config.BotParams{Name: "Bacchus", DelayMinMS: 0, DelayMaxMS: 2}

func TestRunExitsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := New(&fakeSeat{}, fast, rand.New(rand.NewSource(1)))

	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after cancel")
	}
}

func TestBotActsOnlyOnItsTurn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	seat := &fakeSeat{}
	b := New(seat, fast, rand.New(rand.NewSource(1)))
	go b.Run(ctx)

	b.Wake(1)
	time.Sleep(20 * time.Millisecond)
	if n := seat.taken(); n != 0 {
		t.Fatalf("bot played %d turns out of turn", n)
	}

	seat.mu.Lock()
	seat.mine = true
	seat.mu.Unlock()
	b.Wake(2)

	deadline := time.Now().Add(2 * time.Second)
	for seat.taken() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("bot never took its turn")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDelayStaysInProfileRange(t *testing.T) {
	b := New(&fakeSeat{}, config.BotParams{DelayMinMS: 100, DelayMaxMS: 200}, rand.New(rand.NewSource(3)))
	for i := 0; i < 100; i++ {
		d := b.delay()
		if d < 100*time.Millisecond || d >= 200*time.Millisecond {
			t.Fatalf("delay %v out of range", d)
		}
	}
}

func tableConfig() *config.Config {
	cfg := config.Defaults()
	cfg.StepDelayMS = 0
	cfg.Bots = []config.BotParams{
		{Name: "Bacchus", DelayMinMS: 0, DelayMaxMS: 2},
		{Name: "Silène", DelayMinMS: 1, DelayMaxMS: 3},
	}
	return cfg
}

func TestTwoBotsPlayPassAndPlay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	table, err := NewTable(ctx, tableConfig(), "table", nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Players) != 2 || table.Players[0].Name != "Bacchus" || table.Players[1].Name != "Silène" {
		t.Fatalf("unexpected seats %+v", table.Players)
	}

	room, err := table.Hub().Rooms().Get("table")
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		v, err := room.View(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if v.Seq >= 20 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("bots stalled at seq %d", v.Seq)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestPersonPlaysAgainstConfiguredBots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := tableConfig()
	table, err := NewTable(ctx, cfg, "table", []game.PlayerInfo{{ID: "me", Name: "Me"}}, 3)
	if err != nil {
		t.Fatal(err)
	}
	wantNames := []string{"Me", "Bacchus", "Silène", "Bacchus"}
	for i, p := range table.Players {
		if p.Name != wantNames[i] {
			t.Errorf("seat %d: expected %s, got %s", i, wantNames[i], p.Name)
		}
	}
	if table.IsBot("me") || !table.IsBot("cpu-3") {
		t.Error("bot seats misreported")
	}
	if _, err := table.Seat(ctx, "cpu-1", session.Options{}); !errors.Is(err, ErrBotSeat) {
		t.Errorf("expected ErrBotSeat, got %v", err)
	}

	me, err := table.Seat(ctx, "me", session.Options{RNG: rand.New(rand.NewSource(7))})
	if err != nil {
		t.Fatal(err)
	}
	go me.Run(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for me.LastSeq() < 24 {
		if time.Now().After(deadline) {
			t.Fatalf("table stalled at seq %d", me.LastSeq())
		}
		if me.IsMyTurn() {
			if _, err := me.TakeTurn(ctx); err != nil {
				t.Fatalf("TakeTurn: %v", err)
			}
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTableNeedsProfilesForBots(t *testing.T) {
	cfg := tableConfig()
	cfg.Bots = nil
	_, err := NewTable(context.Background(), cfg, "table", []game.PlayerInfo{{ID: "me"}}, 1)
	if !errors.Is(err, ErrNoBotProfiles) {
		t.Errorf("expected ErrNoBotProfiles, got %v", err)
	}
}
