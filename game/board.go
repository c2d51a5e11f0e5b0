package game

import "fmt"

// TileType identifies what happens when a pawn lands on a tile.
type TileType int

const (
	TileStart TileType = iota
	TileSober
	TileShot1
	TileShot2
	TileTax1
	TileCard
	TilePrison
	TileGoToPrison
	TileFreePark
	TileTax
	TileSexy
	TileFun
)

// String returns the protocol string for a TileType.
func (t TileType) String() string {
	switch t {
	case TileStart:
		return "START"
	case TileSober:
		return "SOBER"
	case TileShot1:
		return "SHOT_1"
	case TileShot2:
		return "SHOT_2"
	case TileTax1:
		return "TAX_1"
	case TileCard:
		return "CARD"
	case TilePrison:
		return "PRISON"
	case TileGoToPrison:
		return "GO_TO_PRISON"
	case TileFreePark:
		return "FREE_PARK"
	case TileTax:
		return "TAX"
	case TileSexy:
		return "SEXY"
	case TileFun:
		return "FUN"
	default:
		return "unknown"
	}
}

// Tile is one square of the ring.
type Tile struct {
	Index int      `json:"index"`
	Type  TileType `json:"type"`
	Label string   `json:"label"`
}

// BoardSize is the length of the default ring.
const BoardSize = 40

// Board is an immutable ring of tiles. Positions are always taken mod Len().
type Board struct {
	tiles  []Tile
	prison int
}

// NewBoard validates the layout and re-indexes tiles by position.
// A board without a PRISON tile is rejected since GO_TO_PRISON and
// the teleport card would have nowhere to send a player.
func NewBoard(tiles []Tile) (*Board, error) {
	if len(tiles) == 0 {
		return nil, ErrEmptyBoard
	}
	b := &Board{tiles: make([]Tile, len(tiles)), prison: -1}
	for i, t := range tiles {
		t.Index = i
		b.tiles[i] = t
		if t.Type == TilePrison && b.prison < 0 {
			b.prison = i
		}
	}
	if b.prison < 0 {
		return nil, fmt.Errorf("%d tiles: %w", len(tiles), ErrNoPrisonTile)
	}
	return b, nil
}

// DefaultBoard returns the standard 40-tile layout.
func DefaultBoard() *Board {
	b, err := NewBoard(DefaultLayout())
	if err != nil {
		panic(err)
	}
	return b
}

// DefaultLayout returns a fresh copy of the standard layout.
func DefaultLayout() []Tile {
	types := [BoardSize]TileType{
		TileStart, TileSober, TileShot1, TileCard, TileSexy, TileTax1, TileSober, TileFun, TilePrison, TileShot2,
		TileSober, TileCard, TileFun, TileShot1, TileTax1, TileSexy, TileSober, TileCard, TileShot2, TileFreePark,
		TileSober, TileFun, TileShot1, TileTax1, TileCard, TileSexy, TileShot2, TileSober, TileFun, TileGoToPrison,
		TileShot1, TileTax1, TileCard, TileSexy, TileSober, TileShot2, TileFun, TileCard, TileSexy, TileTax,
	}
	tiles := make([]Tile, BoardSize)
	for i, t := range types {
		tiles[i] = Tile{Index: i, Type: t, Label: defaultLabel(t)}
	}
	return tiles
}

func defaultLabel(t TileType) string {
	switch t {
	case TileStart:
		return "Départ"
	case TileSober:
		return "Sobre"
	case TileShot1:
		return "+1 Shot"
	case TileShot2:
		return "+2 Shots"
	case TileTax1:
		return "+1 Taf"
	case TileCard:
		return "Carte"
	case TilePrison:
		return "Prison"
	case TileGoToPrison:
		return "Allez en prison"
	case TileFreePark:
		return "Parc gratuit"
	case TileTax:
		return "Impôt"
	case TileSexy:
		return "Sexy"
	case TileFun:
		return "Fun"
	default:
		return ""
	}
}

// Len returns the ring length.
func (b *Board) Len() int {
	return len(b.tiles)
}

// Normalize maps any integer position, negative included, onto the ring.
func (b *Board) Normalize(pos int) int {
	n := len(b.tiles)
	return ((pos % n) + n) % n
}

// TileAt returns the tile at pos mod Len().
func (b *Board) TileAt(pos int) Tile {
	return b.tiles[b.Normalize(pos)]
}

// FindFirstOfType returns the lowest index holding a tile of type t.
func (b *Board) FindFirstOfType(t TileType) (int, bool) {
	for i, tile := range b.tiles {
		if tile.Type == t {
			return i, true
		}
	}
	return 0, false
}

// PrisonPosition is the index players are sent to by GO_TO_PRISON.
func (b *Board) PrisonPosition() int {
	return b.prison
}

// Tiles returns a copy of the layout.
func (b *Board) Tiles() []Tile {
	out := make([]Tile, len(b.tiles))
	copy(out, b.tiles)
	return out
}
