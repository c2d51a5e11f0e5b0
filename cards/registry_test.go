package cards

import (
	"context"
	"testing"

	"monopolis-server/game"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(Shield{})

	def, ok := r.GetCard("SHIELD")
	if !ok {
		t.Fatal("expected to find SHIELD in registry")
	}
	if def.Kind != game.KindKeep {
		t.Errorf("expected keep kind, got %s", def.Kind)
	}
	if def.Title == "" || def.Apply == nil {
		t.Errorf("incomplete definition: %+v", def)
	}
	if _, ok := r.GetCard("NOPE"); ok {
		t.Error("expected GetCard to return false for unknown key")
	}
}

func TestRegisterAllOrderAndKinds(t *testing.T) {
	all := Standard().AllCards()
	want := []string{"GIVE_SHOT", "TAKE_SHOT", "GIVE_TAF", "CLEANSE", "MOVE_3", "BACK_2", "TELEPORT_PRISON", "CHANCE", "SHIELD", "DOUBLE_ROLL", "RETURN_START", "DUEL"}
	if len(all) != len(want) {
		t.Fatalf("expected %d cards, got %d", len(want), len(all))
	}
	for i, def := range all {
		if def.Key != want[i] {
			t.Errorf("card %d: expected %s, got %s", i, want[i], def.Key)
		}
		wantKind := game.KindInstant
		if i >= 8 {
			wantKind = game.KindKeep
		}
		if def.Kind != wantKind {
			t.Errorf("%s: expected %s, got %s", def.Key, wantKind, def.Kind)
		}
	}
}

func TestRegisterTwiceKeepsOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(Duel{})
	r.Register(Chance{})
	r.Register(Duel{})
	all := r.AllCards()
	if len(all) != 2 || all[0].Key != "DUEL" {
		t.Errorf("unexpected order %v", all)
	}
}

// drawOnce seats players, places the first one on from, and rolls so that
// they land on the CARD tile at index 3 holding only c in the deck.
func drawOnce(t *testing.T, c Card, players []game.PlayerInfo, mutate func(s *game.Snapshot)) *game.Engine {
	t.Helper()
	r := NewRegistry()
	r.Register(c)
	e, err := game.NewEngine(game.DefaultBoard(), r, players, game.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if mutate != nil {
		s := e.Snapshot()
		mutate(&s)
		if err := e.Restore(s); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := e.ApplyRoll(context.Background(), players[0].ID, 3); err != nil {
		t.Fatal(err)
	}
	return e
}

func seats(ids ...string) []game.PlayerInfo {
	out := make([]game.PlayerInfo, len(ids))
	for i, id := range ids {
		out[i] = game.PlayerInfo{ID: id, Name: id}
	}
	return out
}

func TestInstantEffects(t *testing.T) {
	tests := []struct {
		card   Card
		check  func(t *testing.T, a, b game.Player)
		mutate func(s *game.Snapshot)
	}{
		{GiveShot{}, func(t *testing.T, a, b game.Player) {
			if a.ShotCount != 0 || b.ShotCount != 1 {
				t.Errorf("a=%d b=%d", a.ShotCount, b.ShotCount)
			}
		}, nil},
		{TakeShot{}, func(t *testing.T, a, b game.Player) {
			if a.ShotCount != 1 || b.ShotCount != 0 {
				t.Errorf("a=%d b=%d", a.ShotCount, b.ShotCount)
			}
		}, nil},
		{GiveTaf{}, func(t *testing.T, a, b game.Player) {
			if a.TaskCount != 0 || b.TaskCount != 1 {
				t.Errorf("a=%d b=%d", a.TaskCount, b.TaskCount)
			}
		}, nil},
		{Cleanse{}, func(t *testing.T, a, _ game.Player) {
			if a.ShotCount != 1 {
				t.Errorf("expected 2-1=1 shots, got %d", a.ShotCount)
			}
		}, func(s *game.Snapshot) { s.Players[0].ShotCount = 2 }},
		{Cleanse{}, func(t *testing.T, a, _ game.Player) {
			if a.ShotCount != 0 {
				t.Errorf("cleanse must floor at 0, got %d", a.ShotCount)
			}
		}, nil},
		{Move3{}, func(t *testing.T, a, _ game.Player) {
			if a.Position != 6 {
				t.Errorf("expected 6, got %d", a.Position)
			}
		}, nil},
		{Back2{}, func(t *testing.T, a, _ game.Player) {
			if a.Position != 1 {
				t.Errorf("expected 1, got %d", a.Position)
			}
		}, nil},
		{TeleportPrison{}, func(t *testing.T, a, _ game.Player) {
			if a.Position != 8 || a.PrisonTurnsRemaining != 1 || a.ShotCount != 1 || !a.HasShield {
				t.Errorf("unexpected %+v", a)
			}
		}, func(s *game.Snapshot) {
			s.Players[0].HasShield = true
			s.Players[0].Hand = []string{game.ShieldKey}
			s.Players[0].HeldKeys = []string{game.ShieldKey}
		}},
		{Chance{}, func(t *testing.T, a, b game.Player) {
			if a.Position != 3 || a.ShotCount != 0 || b.ShotCount != 0 {
				t.Errorf("chance should do nothing: %+v", a)
			}
		}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.card.Key(), func(t *testing.T) {
			e := drawOnce(t, tt.card, seats("a", "b"), tt.mutate)
			a, _ := e.Player("a")
			b, _ := e.Player("b")
			tt.check(t, a, b)
		})
	}
}

func TestGiveCardsWithSinglePlayer(t *testing.T) {
	for _, c := range []Card{GiveShot{}, GiveTaf{}} {
		e := drawOnce(t, c, seats("solo"), nil)
		p, _ := e.Player("solo")
		if p.ShotCount != 0 || p.TaskCount != 0 {
			t.Errorf("%s: expected no-op alone, got %+v", c.Key(), p)
		}
	}
}

func TestBack2WrapsBelowZero(t *testing.T) {
	r := NewRegistry()
	r.Register(Back2{})
	tiles := game.DefaultLayout()
	tiles[1].Type = game.TileCard
	board, err := game.NewBoard(tiles)
	if err != nil {
		t.Fatal(err)
	}
	e, err := game.NewEngine(board, r, seats("solo"), game.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.ApplyRoll(context.Background(), "solo", 1); err != nil {
		t.Fatal(err)
	}
	p, _ := e.Player("solo")
	if p.Position != 39 {
		t.Errorf("1-2 should wrap to 39, got %d", p.Position)
	}
}

func TestKeepableEffects(t *testing.T) {
	e := drawOnce(t, Shield{}, seats("a", "b"), nil)
	a, _ := e.Player("a")
	if !a.HasShield || !a.Holds("SHIELD") {
		t.Errorf("expected shield: %+v", a)
	}

	e = drawOnce(t, DoubleRoll{}, seats("a", "b"), nil)
	a, _ = e.Player("a")
	if !a.HasDoubleRoll || !a.Holds("DOUBLE_ROLL") {
		t.Errorf("expected double roll: %+v", a)
	}

	for _, c := range []Card{ReturnStart{}, Duel{}} {
		e = drawOnce(t, c, seats("a", "b"), nil)
		a, _ = e.Player("a")
		if !a.Holds(c.Key()) || a.HasShield || a.HasDoubleRoll || a.Position != 3 {
			t.Errorf("%s should only be held: %+v", c.Key(), a)
		}
	}
}

func TestKeepableDroppedOnFullHand(t *testing.T) {
	e := drawOnce(t, Shield{}, seats("a", "b"), func(s *game.Snapshot) {
		s.Players[0].Hand = []string{"DUEL", "RETURN_START"}
		s.Players[0].HeldKeys = []string{"DUEL", "RETURN_START"}
	})
	a, _ := e.Player("a")
	if a.HasShield || a.Holds("SHIELD") || len(a.Hand) != 2 {
		t.Errorf("expected shield wasted: %+v", a)
	}
}
