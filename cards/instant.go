package cards

import (
	"monopolis-server/game"
)

type instant struct{}

func (instant) Kind() game.CardKind { return game.KindInstant }

// GiveShot makes the next player drink.
type GiveShot struct{ instant }

func (GiveShot) Key() string         { return "GIVE_SHOT" }
func (GiveShot) Title() string       { return "Distribue 1 shot" }
func (GiveShot) Description() string { return "Le joueur suivant boit 1 shot." }

func (GiveShot) Apply(ctx *game.EffectContext) {
	if target := ctx.NextPlayer(); target != nil {
		target.ShotCount++
	}
}

// TakeShot makes the drawer drink.
type TakeShot struct{ instant }

func (TakeShot) Key() string         { return "TAKE_SHOT" }
func (TakeShot) Title() string       { return "Bois 1 shot" }
func (TakeShot) Description() string { return "Tu bois 1 shot." }

func (TakeShot) Apply(ctx *game.EffectContext) {
	ctx.Drawer().ShotCount++
}

// GiveTaf hands a task to the next player.
type GiveTaf struct{ instant }

func (GiveTaf) Key() string         { return "GIVE_TAF" }
func (GiveTaf) Title() string       { return "Distribue 1 taf" }
func (GiveTaf) Description() string { return "Le joueur suivant reçoit 1 taf." }

func (GiveTaf) Apply(ctx *game.EffectContext) {
	if target := ctx.NextPlayer(); target != nil {
		target.TaskCount++
	}
}

// Cleanse removes one of the drawer's shots.
type Cleanse struct{ instant }

func (Cleanse) Key() string         { return "CLEANSE" }
func (Cleanse) Title() string       { return "Purification" }
func (Cleanse) Description() string { return "Retire 1 shot de ton compteur." }

func (Cleanse) Apply(ctx *game.EffectContext) {
	if p := ctx.Drawer(); p.ShotCount > 0 {
		p.ShotCount--
	}
}

// Move3 jumps the drawer three tiles forward.
type Move3 struct{ instant }

func (Move3) Key() string         { return "MOVE_3" }
func (Move3) Title() string       { return "Avance de 3" }
func (Move3) Description() string { return "Avance de 3 cases." }

func (Move3) Apply(ctx *game.EffectContext) {
	ctx.MoveBy(3)
}

// Back2 moves the drawer two tiles back.
type Back2 struct{ instant }

func (Back2) Key() string         { return "BACK_2" }
func (Back2) Title() string       { return "Recule de 2" }
func (Back2) Description() string { return "Recule de 2 cases." }

func (Back2) Apply(ctx *game.EffectContext) {
	ctx.MoveBy(-2)
}

// TeleportPrison sends the drawer to prison. Shields do not stop it.
type TeleportPrison struct{ instant }

func (TeleportPrison) Key() string         { return "TELEPORT_PRISON" }
func (TeleportPrison) Title() string       { return "Direction prison" }
func (TeleportPrison) Description() string { return "Va directement en prison." }

func (TeleportPrison) Apply(ctx *game.EffectContext) {
	ctx.TeleportToPrison()
}

// Chance has no effect yet.
type Chance struct{ instant }

func (Chance) Key() string         { return "CHANCE" }
func (Chance) Title() string       { return "Chance" }
func (Chance) Description() string { return "Rien ne se passe... cette fois." }

func (Chance) Apply(*game.EffectContext) {}
