package game

import (
	"math/rand"
)

// CardKind separates cards that resolve on draw from cards a player keeps.
type CardKind int

const (
	KindInstant CardKind = iota
	KindKeep
)

// String returns the protocol string for a CardKind.
func (k CardKind) String() string {
	switch k {
	case KindInstant:
		return "instant"
	case KindKeep:
		return "keep"
	default:
		return "unknown"
	}
}

// CardDef is a card template as seen by the engine.
// Apply runs after the engine has handled hand limits for keepable cards.
type CardDef struct {
	Key         string
	Kind        CardKind
	Title       string
	Description string
	Apply       func(ctx *EffectContext)
}

// CardProvider abstracts the card catalog so the game package does not
// import the cards package.
type CardProvider interface {
	GetCard(key string) (CardDef, bool)
	AllCards() []CardDef
}

// CopiesPerTemplate is how many of each template a fresh deck holds.
const CopiesPerTemplate = 2

// BuildShuffled returns CopiesPerTemplate copies of every template in a
// uniformly random order.
func BuildShuffled(templates []CardDef, rng *rand.Rand) []CardDef {
	cards := make([]CardDef, 0, len(templates)*CopiesPerTemplate)
	for _, t := range templates {
		for i := 0; i < CopiesPerTemplate; i++ {
			cards = append(cards, t)
		}
	}
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return cards
}

// Deck is the draw pile plus the discard pile. The top of the draw pile is
// the end of the slice.
//
// Every rebuild shuffles with its own source derived from the seed and the
// rebuild count, so two decks with the same seed and the same history hold
// the same cards in the same order, even after a snapshot restore.
type Deck struct {
	templates []CardDef
	byKey     map[string]CardDef
	seed      int64
	rebuilds  int

	DrawPile    []CardDef
	DiscardPile []CardDef
}

// NewDeck builds the first shuffled draw pile.
func NewDeck(templates []CardDef, seed int64) *Deck {
	d := &Deck{
		templates: append([]CardDef(nil), templates...),
		byKey:     make(map[string]CardDef, len(templates)),
		seed:      seed,
	}
	for _, t := range templates {
		d.byKey[t.Key] = t
	}
	d.rebuild()
	return d
}

func (d *Deck) rebuild() {
	rng := rand.New(rand.NewSource(d.seed + int64(d.rebuilds)*7919))
	d.rebuilds++
	d.DrawPile = BuildShuffled(d.templates, rng)
	d.DiscardPile = d.DiscardPile[:0]
}

// Draw pops the top card and moves it to the discard pile, rebuilding
// first when the draw pile is empty. A deck built from no templates
// returns a zero CardDef.
func (d *Deck) Draw() CardDef {
	if len(d.DrawPile) == 0 {
		d.rebuild()
	}
	if len(d.DrawPile) == 0 {
		return CardDef{}
	}
	top := d.DrawPile[len(d.DrawPile)-1]
	d.DrawPile = d.DrawPile[:len(d.DrawPile)-1]
	d.DiscardPile = append(d.DiscardPile, top)
	return top
}

// Size is len(draw)+len(discard); constant between rebuilds.
func (d *Deck) Size() int {
	return len(d.DrawPile) + len(d.DiscardPile)
}

// Rebuilds reports how many times the draw pile has been shuffled.
func (d *Deck) Rebuilds() int {
	return d.rebuilds
}

// DeckState is the serializable form of a Deck.
type DeckState struct {
	Seed     int64    `json:"seed"`
	Rebuilds int      `json:"rebuilds"`
	Draw     []string `json:"draw"`
	Discard  []string `json:"discard"`
}

func (d *Deck) state() DeckState {
	return DeckState{
		Seed:     d.seed,
		Rebuilds: d.rebuilds,
		Draw:     cardKeys(d.DrawPile),
		Discard:  cardKeys(d.DiscardPile),
	}
}

func (d *Deck) restore(s DeckState) error {
	draw, err := d.lookup(s.Draw)
	if err != nil {
		return err
	}
	discard, err := d.lookup(s.Discard)
	if err != nil {
		return err
	}
	d.seed = s.Seed
	d.rebuilds = s.Rebuilds
	d.DrawPile = draw
	d.DiscardPile = discard
	return nil
}

func (d *Deck) lookup(keys []string) ([]CardDef, error) {
	out := make([]CardDef, 0, len(keys))
	for _, k := range keys {
		def, ok := d.byKey[k]
		if !ok {
			return nil, &UnknownCardError{Key: k}
		}
		out = append(out, def)
	}
	return out, nil
}

// UnknownCardError is returned when a snapshot names a card the catalog lacks.
type UnknownCardError struct {
	Key string
}

func (e *UnknownCardError) Error() string {
	return "unknown card " + e.Key
}

func cardKeys(cards []CardDef) []string {
	keys := make([]string, len(cards))
	for i, c := range cards {
		keys[i] = c.Key
	}
	return keys
}
