package cards

import (
	"monopolis-server/game"
)

// Card defines the interface that every card template must implement.
type Card interface {
	Key() string
	Kind() game.CardKind
	Title() string
	Description() string
	Apply(ctx *game.EffectContext)
}

// Registry holds all registered card templates indexed by key.
type Registry struct {
	cards map[string]Card
	order []string // registration order for deterministic AllCards()
}

// NewRegistry creates a new empty card registry.
func NewRegistry() *Registry {
	return &Registry{
		cards: make(map[string]Card),
	}
}

// Register adds a card template to the registry.
func (r *Registry) Register(c Card) {
	key := c.Key()
	if _, exists := r.cards[key]; !exists {
		r.order = append(r.order, key)
	}
	r.cards[key] = c
}

func toDef(c Card) game.CardDef {
	return game.CardDef{
		Key:         c.Key(),
		Kind:        c.Kind(),
		Title:       c.Title(),
		Description: c.Description(),
		Apply:       c.Apply,
	}
}

// GetCard returns the card definition for the game package.
// It satisfies the game.CardProvider interface.
func (r *Registry) GetCard(key string) (game.CardDef, bool) {
	c, ok := r.cards[key]
	if !ok {
		return game.CardDef{}, false
	}
	return toDef(c), true
}

// AllCards returns every registered template in registration order.
// Deck contents depend on this order, so every replica must register the same cards the same way.
// It satisfies the game.CardProvider interface.
func (r *Registry) AllCards() []game.CardDef {
	defs := make([]game.CardDef, 0, len(r.order))
	for _, key := range r.order {
		defs = append(defs, toDef(r.cards[key]))
	}
	return defs
}

// RegisterAll registers the standard catalog.
func RegisterAll(r *Registry) {
	r.Register(GiveShot{})
	r.Register(TakeShot{})
	r.Register(GiveTaf{})
	r.Register(Cleanse{})
	r.Register(Move3{})
	r.Register(Back2{})
	r.Register(TeleportPrison{})
	r.Register(Chance{})
	r.Register(Shield{})
	r.Register(DoubleRoll{})
	r.Register(ReturnStart{})
	r.Register(Duel{})
}

// Standard returns a registry holding the standard catalog.
func Standard() *Registry {
	r := NewRegistry()
	RegisterAll(r)
	return r
}
