package game

// resolveTile applies the landing tile of p. Must be called with e.mu held.
// Returns the drawn card, if any, for the presenter.
func (e *Engine) resolveTile(p *Player, seat int, res *TurnResult) *CardDef {
	tile := e.board.TileAt(p.Position)
	res.Tile = tile.Type
	switch tile.Type {
	case TileShot1:
		e.penalize(p, res, func() { p.ShotCount++ })
	case TileShot2:
		e.penalize(p, res, func() { p.ShotCount += 2 })
	case TileTax1:
		e.penalize(p, res, func() { p.TaskCount++ })
	case TilePrison:
		e.penalize(p, res, func() { imprison(p) })
	case TileGoToPrison:
		e.penalize(p, res, func() { e.sendToPrison(p) })
	case TileCard:
		card := e.deck.Draw()
		res.CardKey = card.Key
		e.resolveCard(p, seat, card, res)
		return &card
	}
	return nil
}

// penalize runs apply unless p holds a shield, in which case one shield
// copy is spent instead. The flag stays up while another copy is held.
func (e *Engine) penalize(p *Player, res *TurnResult, apply func()) {
	if p.HasShield {
		p.consume(ShieldKey)
		p.HasShield = p.Holds(ShieldKey)
		res.ShieldUsed = true
		return
	}
	apply()
}

func imprison(p *Player) {
	p.PrisonTurnsRemaining++
	p.ShotCount++
}

func (e *Engine) sendToPrison(p *Player) {
	p.Position = e.board.PrisonPosition()
	imprison(p)
}

func (e *Engine) resolveCard(p *Player, seat int, card CardDef, res *TurnResult) {
	if card.Key == "" {
		return
	}
	if card.Kind == KindKeep {
		if p.HandFull() {
			res.CardDropped = true
			return
		}
		p.grant(card.Key)
	}
	if card.Apply != nil {
		card.Apply(&EffectContext{engine: e, drawer: p, seat: seat, Card: card})
	}
}

// EffectContext is what a card effect may touch. It is only valid during
// the card's Apply call, which runs inside the turn's resolution step.
type EffectContext struct {
	engine *Engine
	drawer *Player
	seat   int

	Card CardDef
}

// Drawer is the player who drew the card.
func (c *EffectContext) Drawer() *Player {
	return c.drawer
}

// NextPlayer is the seat after the drawer in turn order, or nil when the
// drawer plays alone.
func (c *EffectContext) NextPlayer() *Player {
	return c.engine.players.NextAfter(c.seat)
}

// MoveBy moves the drawer directly by delta tiles, wrapping around the ring.
// No tile is resolved at the destination.
func (c *EffectContext) MoveBy(delta int) {
	c.drawer.Position = c.engine.board.Normalize(c.drawer.Position + delta)
}

// TeleportToPrison applies the GO_TO_PRISON effect to the drawer without
// consulting the shield.
func (c *EffectContext) TeleportToPrison() {
	c.engine.sendToPrison(c.drawer)
}

// BoardLen is the ring length.
func (c *EffectContext) BoardLen() int {
	return c.engine.board.Len()
}
