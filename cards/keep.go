package cards

import (
	"monopolis-server/game"
)

// Keepable cards are granted to the drawer's hand by the engine before Apply
// runs, unless the hand is full.
type keep struct{}

func (keep) Kind() game.CardKind { return game.KindKeep }

// Shield negates the next penalty.
type Shield struct{ keep }

func (Shield) Key() string         { return game.ShieldKey }
func (Shield) Title() string       { return "Bouclier" }
func (Shield) Description() string { return "Annule la prochaine pénalité." }

func (Shield) Apply(ctx *game.EffectContext) {
	ctx.Drawer().HasShield = true
}

// DoubleRoll lets the holder roll two dice and keep the best on their next turn.
type DoubleRoll struct{ keep }

func (DoubleRoll) Key() string         { return game.DoubleRollKey }
func (DoubleRoll) Title() string       { return "Double dé" }
func (DoubleRoll) Description() string { return "Au prochain tour, lance deux dés et garde le meilleur." }

func (DoubleRoll) Apply(ctx *game.EffectContext) {
	ctx.Drawer().HasDoubleRoll = true
}

// ReturnStart is held until played.
type ReturnStart struct{ keep }

func (ReturnStart) Key() string         { return "RETURN_START" }
func (ReturnStart) Title() string       { return "Retour au départ" }
func (ReturnStart) Description() string { return "Garde-la pour revenir au départ." }

func (ReturnStart) Apply(*game.EffectContext) {}

// Duel is held until played.
type Duel struct{ keep }

func (Duel) Key() string         { return "DUEL" }
func (Duel) Title() string       { return "Duel" }
func (Duel) Description() string { return "Garde-la pour défier un joueur." }

func (Duel) Apply(*game.EffectContext) {}
