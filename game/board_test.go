package game

import (
	"errors"
	"testing"
)

func TestDefaultBoardLayout(t *testing.T) {
	b := DefaultBoard()
	if b.Len() != BoardSize {
		t.Fatalf("expected %d tiles, got %d", BoardSize, b.Len())
	}
	for i, tile := range b.Tiles() {
		if tile.Index != i {
			t.Errorf("tile %d has index %d", i, tile.Index)
		}
	}
	checks := map[int]TileType{0: TileStart, 3: TileCard, 8: TilePrison, 19: TileFreePark, 29: TileGoToPrison, 39: TileTax}
	for pos, want := range checks {
		if got := b.TileAt(pos).Type; got != want {
			t.Errorf("tile %d: expected %s, got %s", pos, want, got)
		}
	}
	if b.PrisonPosition() != 8 {
		t.Errorf("expected prison at 8, got %d", b.PrisonPosition())
	}
}

func TestTileAtNormalizes(t *testing.T) {
	b := DefaultBoard()
	if b.TileAt(43).Index != 3 {
		t.Errorf("TileAt(43) should be tile 3, got %d", b.TileAt(43).Index)
	}
	if b.TileAt(-1).Index != 39 {
		t.Errorf("TileAt(-1) should be tile 39, got %d", b.TileAt(-1).Index)
	}
	if b.TileAt(-81).Index != 39 {
		t.Errorf("TileAt(-81) should be tile 39, got %d", b.TileAt(-81).Index)
	}
}

func TestStepwiseMoveMatchesModulo(t *testing.T) {
	for n := 1; n <= 45; n++ {
		tiles := make([]Tile, n)
		tiles[n-1].Type = TilePrison
		b, err := NewBoard(tiles)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		for start := 0; start < n; start++ {
			for k := 0; k <= 2*n+3; k++ {
				pos := start
				for i := 0; i < k; i++ {
					pos = b.Normalize(pos + 1)
				}
				if want := (start + k) % n; pos != want {
					t.Fatalf("n=%d start=%d k=%d: got %d, want %d", n, start, k, pos, want)
				}
			}
		}
	}
}

func TestFindFirstOfType(t *testing.T) {
	b := DefaultBoard()
	pos, ok := b.FindFirstOfType(TileCard)
	if !ok || pos != 3 {
		t.Errorf("expected first CARD at 3, got %d (ok=%v)", pos, ok)
	}
	tiles := []Tile{{Type: TileStart}, {Type: TilePrison}}
	small, err := NewBoard(tiles)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := small.FindFirstOfType(TileCard); ok {
		t.Error("expected no CARD tile")
	}
}

func TestNewBoardValidation(t *testing.T) {
	if _, err := NewBoard(nil); !errors.Is(err, ErrEmptyBoard) {
		t.Errorf("expected ErrEmptyBoard, got %v", err)
	}
	tiles := DefaultLayout()
	tiles[8].Type = TileSober
	if _, err := NewBoard(tiles); !errors.Is(err, ErrNoPrisonTile) {
		t.Errorf("expected ErrNoPrisonTile, got %v", err)
	}
}

func TestTileTypeString(t *testing.T) {
	if TileGoToPrison.String() != "GO_TO_PRISON" {
		t.Errorf("unexpected %q", TileGoToPrison.String())
	}
	if TileType(99).String() != "unknown" {
		t.Errorf("unexpected %q", TileType(99).String())
	}
}
