package game

import "fmt"

// MaxHandSize is how many keepable cards a player can hold at once.
const MaxHandSize = 2

// MaxPlayers bounds a room.
const MaxPlayers = 8

// PlayerInfo is what the lobby hands over for each seat.
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Skin string `json:"skin,omitempty"`
}

// Player is the mutable per-seat game state.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Skin     string `json:"skin,omitempty"`
	Position int    `json:"position"`

	ShotCount int `json:"shotCount"`
	TaskCount int `json:"taskCount"`

	// PrisonTurnsRemaining is how many of the player's turns will be skipped.
	PrisonTurnsRemaining int `json:"prisonTurnsRemaining"`

	HasShield     bool `json:"hasShield"`
	HasDoubleRoll bool `json:"hasDoubleRoll"`

	// Hand holds at most MaxHandSize keepable card keys.
	Hand []string `json:"hand"`
	// HeldKeys is the set of keepable keys currently in effect.
	HeldKeys []string `json:"heldKeys"`
}

// NewPlayer creates a player at START with empty counters.
func NewPlayer(info PlayerInfo) *Player {
	return &Player{
		ID:       info.ID,
		Name:     info.Name,
		Skin:     info.Skin,
		Hand:     []string{},
		HeldKeys: []string{},
	}
}

// HandFull reports whether another keepable card would be dropped.
func (p *Player) HandFull() bool {
	return len(p.Hand) >= MaxHandSize
}

// Holds reports whether key is in the player's hand.
func (p *Player) Holds(key string) bool {
	for _, k := range p.Hand {
		if k == key {
			return true
		}
	}
	return false
}

func (p *Player) grant(key string) {
	p.Hand = append(p.Hand, key)
	if !containsKey(p.HeldKeys, key) {
		p.HeldKeys = append(p.HeldKeys, key)
	}
}

// consume removes one copy of key from the hand, and from the held set
// once no copy remains.
func (p *Player) consume(key string) {
	for i, k := range p.Hand {
		if k == key {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			break
		}
	}
	if !containsKey(p.Hand, key) {
		p.HeldKeys = removeKey(p.HeldKeys, key)
	}
}

func (p *Player) clone() Player {
	c := *p
	c.Hand = append([]string{}, p.Hand...)
	c.HeldKeys = append([]string{}, p.HeldKeys...)
	return c
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

func removeKey(keys []string, key string) []string {
	out := keys[:0]
	for _, k := range keys {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}

// Registry is the ordered list of seats. Order is the turn order.
type Registry struct {
	players []*Player
	byID    map[string]int
}

// NewRegistry seats players in the given order. An empty list is allowed;
// the engine refuses to play a turn without anyone seated.
func NewRegistry(infos []PlayerInfo) (*Registry, error) {
	if len(infos) > MaxPlayers {
		return nil, fmt.Errorf("%d seats: %w", len(infos), ErrTooManyPlayers)
	}
	r := &Registry{
		players: make([]*Player, 0, len(infos)),
		byID:    make(map[string]int, len(infos)),
	}
	for _, info := range infos {
		if info.ID == "" {
			return nil, ErrEmptyPlayerID
		}
		if _, dup := r.byID[info.ID]; dup {
			return nil, fmt.Errorf("%q: %w", info.ID, ErrDuplicatePlayer)
		}
		r.byID[info.ID] = len(r.players)
		r.players = append(r.players, NewPlayer(info))
	}
	return r, nil
}

// Len returns the number of seats.
func (r *Registry) Len() int {
	return len(r.players)
}

// At returns the player in seat i.
func (r *Registry) At(i int) *Player {
	return r.players[i]
}

// ByID looks a player up by id.
func (r *Registry) ByID(id string) (*Player, bool) {
	i, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return r.players[i], true
}

// IndexOf returns the seat of id, or -1.
func (r *Registry) IndexOf(id string) int {
	i, ok := r.byID[id]
	if !ok {
		return -1
	}
	return i
}

// NextAfter returns the player seated after seat i, or nil when there is
// nobody else to target.
func (r *Registry) NextAfter(i int) *Player {
	if len(r.players) < 2 {
		return nil
	}
	return r.players[(i+1)%len(r.players)]
}

// Infos returns the lobby view of the seats in turn order.
func (r *Registry) Infos() []PlayerInfo {
	out := make([]PlayerInfo, len(r.players))
	for i, p := range r.players {
		out[i] = PlayerInfo{ID: p.ID, Name: p.Name, Skin: p.Skin}
	}
	return out
}
