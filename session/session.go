// Package session is the device side of the synchronization layer. A Session
// owns one local turn engine and keeps it in step with the relay: the device
// holding the turn rolls, the relay sequences the roll, and every device
// (the roller included) applies the relayed event to its own engine.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"monopolis-server/config"
	"monopolis-server/game"
	"monopolis-server/protocol"
)

// Errors returned by Session operations.
var (
	ErrNotConnected   = errors.New("session is not connected")
	ErrConnectionLost = errors.New("connection lost")
	ErrDuplicateEvent = errors.New("event already applied")
	ErrSequenceGap    = errors.New("events missing before this one")
	ErrDiverged       = errors.New("local state diverged from the relay")
)

// Status is the connection state shown to the player.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnected
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Options configure a Session. Zero values are usable.
type Options struct {
	StepDelay time.Duration
	Presenter game.Presenter
	// Token is sent in hello when the relay checks device tokens.
	Token  string
	Logger *slog.Logger
	// RNG generates this device's rolls. Defaults to a time-seeded source.
	RNG *rand.Rand

	OnStatus func(Status)
	// OnReject receives relay rejections of this device's intents.
	OnReject func(protocol.ErrorMsg)
	OnPeer   func(protocol.PeerStatusMsg)
	// OnApplied runs on the Run goroutine after each applied event or snapshot.
	OnApplied func(seq uint64)
}

// DefaultOptions returns Options with the configured step delay.
func DefaultOptions(cfg *config.Config) Options {
	return Options{StepDelay: cfg.StepDelay()}
}

// Session is an explicitly owned connection to one room. Submit methods may
// be called from any goroutine; inbound messages are applied by Run only.
type Session struct {
	RoomID        string
	LocalPlayerID string

	engine    *game.Engine
	transport Transport
	opts      Options
	logger    *slog.Logger

	mu         sync.Mutex
	rng        *rand.Rand
	inbound    <-chan []byte
	status     Status
	lastSeq    uint64
	pending    string // intent id sent and not yet sequenced or rejected
	resumeSent bool
	// welcomeSeq is the room sequence announced on join, cleared once reached
	// or once a resume has been asked for it.
	welcomeSeq uint64
}

// InitializeSession is the lobby hand-off: players is the finalized seat
// order and roomID scopes the event channel and seeds the shared deck.
func InitializeSession(roomID string, players []game.PlayerInfo, localPlayerID string, board *game.Board, cards game.CardProvider, transport Transport, opts Options) (*Session, error) {
	found := false
	for _, p := range players {
		if p.ID == localPlayerID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("local player %q: %w", localPlayerID, game.ErrUnknownPlayer)
	}
	engine, err := game.NewEngine(board, cards, players, game.Options{
		StepDelay: opts.StepDelay,
		Presenter: opts.Presenter,
		Seed:      game.SeedFromRoom(roomID),
	})
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := opts.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Session{
		RoomID:        roomID,
		LocalPlayerID: localPlayerID,
		engine:        engine,
		transport:     transport,
		opts:          opts,
		logger:        logger.With("tag", "session", "room", roomID, "player", localPlayerID),
		rng:           rng,
	}, nil
}

// Engine exposes the local engine for reads.
func (s *Session) Engine() *game.Engine {
	return s.engine
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastSeq is the sequence number of the last applied event.
func (s *Session) LastSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	changed := s.status != st
	s.status = st
	s.mu.Unlock()
	if changed && s.opts.OnStatus != nil {
		s.opts.OnStatus(st)
	}
}

// Connect opens the transport and announces the last applied sequence
// number, so the relay replays only what this device missed.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	hello := protocol.HelloMsg{
		Type:     protocol.TypeHello,
		RoomID:   s.RoomID,
		PlayerID: s.LocalPlayerID,
		Token:    s.opts.Token,
		LastSeq:  s.lastSeq,
	}
	s.mu.Unlock()

	in, err := s.transport.Connect(ctx, hello)
	if err != nil {
		return fmt.Errorf("connect %s: %w", s.RoomID, err)
	}
	s.mu.Lock()
	s.inbound = in
	s.pending = ""
	s.resumeSent = false
	s.welcomeSeq = 0
	s.mu.Unlock()
	s.setStatus(StatusConnected)
	s.logger.Info("connected", "lastSeq", hello.LastSeq)
	return nil
}

// Disconnect closes the transport. The engine state is kept for a later Connect.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	s.inbound = nil
	s.pending = ""
	s.mu.Unlock()
	s.setStatus(StatusDisconnected)
	return s.transport.Close()
}

// SubmitRollIntent rolls for the local player and sends the roll to the
// relay. The roll only takes effect once it comes back sequenced. Rejections
// leave the state untouched and are not fatal.
func (s *Session) SubmitRollIntent(ctx context.Context) (int, error) {
	s.mu.Lock()
	cur, err := s.checkOwner()
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	if cur.PrisonTurnsRemaining > 0 {
		s.mu.Unlock()
		return 0, game.ErrMustServePrison
	}
	roll := game.RollFor(cur, s.rng)
	ev := protocol.Event{
		Type:     protocol.TypeRoll,
		Turn:     s.engine.TurnSeq(),
		PlayerID: s.LocalPlayerID,
		Roll:     roll,
		IntentID: uuid.NewString(),
	}
	s.pending = ev.IntentID
	s.mu.Unlock()

	if err := s.send(ctx, ev); err != nil {
		return 0, err
	}
	s.logger.Debug("roll sent", "turn", ev.Turn, "roll", roll)
	return roll, nil
}

// SubmitPrisonSkip sends the skip of a turn the local player spends in prison.
func (s *Session) SubmitPrisonSkip(ctx context.Context) error {
	s.mu.Lock()
	cur, err := s.checkOwner()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if cur.PrisonTurnsRemaining == 0 {
		s.mu.Unlock()
		return game.ErrNotInPrison
	}
	ev := protocol.Event{
		Type:     protocol.TypePrisonSkip,
		Turn:     s.engine.TurnSeq(),
		PlayerID: s.LocalPlayerID,
		IntentID: uuid.NewString(),
	}
	s.pending = ev.IntentID
	s.mu.Unlock()

	return s.send(ctx, ev)
}

// IsMyTurn reports whether the local player may act now: connected, seat
// holding the turn and nothing in flight.
func (s *Session) IsMyTurn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.checkOwner()
	return err == nil
}

// TakeTurn skips when the local player is in prison and rolls otherwise.
// It returns the roll, or zero for a skip.
func (s *Session) TakeTurn(ctx context.Context) (int, error) {
	p, ok := s.engine.Player(s.LocalPlayerID)
	if ok && p.PrisonTurnsRemaining > 0 {
		return 0, s.SubmitPrisonSkip(ctx)
	}
	return s.SubmitRollIntent(ctx)
}

// checkOwner must be called with s.mu held.
func (s *Session) checkOwner() (game.Player, error) {
	if s.status != StatusConnected {
		return game.Player{}, ErrNotConnected
	}
	if s.pending != "" || s.engine.Phase() != game.PhaseIdle {
		return game.Player{}, game.ErrTurnInFlight
	}
	cur, ok := s.engine.CurrentPlayer()
	if !ok {
		return game.Player{}, game.ErrNoPlayers
	}
	if cur.ID != s.LocalPlayerID {
		return game.Player{}, game.ErrNotYourTurn
	}
	return cur, nil
}

func (s *Session) send(ctx context.Context, ev protocol.Event) error {
	if err := s.transport.Send(ctx, ev); err != nil {
		s.mu.Lock()
		if s.pending == ev.IntentID {
			s.pending = ""
		}
		s.mu.Unlock()
		return fmt.Errorf("send %s: %w", ev.Type, err)
	}
	return nil
}

// Run applies inbound messages in order until ctx is cancelled or the
// connection drops. A dropped connection returns ErrConnectionLost with the
// status set to reconnecting; call Connect and Run again to resume.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	in := s.inbound
	s.mu.Unlock()
	if in == nil {
		return ErrNotConnected
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-in:
			if !ok {
				s.mu.Lock()
				current := s.inbound == in
				if current {
					s.inbound = nil
				}
				s.mu.Unlock()
				if current {
					s.setStatus(StatusReconnecting)
					s.logger.Warn("connection lost", "lastSeq", s.LastSeq())
				}
				return ErrConnectionLost
			}
			s.handle(ctx, data)
			if len(in) == 0 {
				s.checkCaughtUp(ctx)
			}
		}
	}
}

// checkCaughtUp asks for a resume when the inbound queue is drained but the
// session is still behind the sequence announced in the welcome.
func (s *Session) checkCaughtUp(ctx context.Context) {
	s.mu.Lock()
	target, last := s.welcomeSeq, s.lastSeq
	if target == 0 {
		s.mu.Unlock()
		return
	}
	s.welcomeSeq = 0
	s.mu.Unlock()
	if last >= target {
		return
	}
	s.logger.Info("catch-up incomplete", "lastSeq", last, "welcomeSeq", target)
	s.requestResume(ctx, last, false)
}

func (s *Session) handle(ctx context.Context, data []byte) {
	var env protocol.InboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("bad message from relay", "err", err)
		return
	}
	switch env.Type {
	case protocol.TypeRoll, protocol.TypePrisonSkip:
		var ev protocol.Event
		if err := json.Unmarshal(env.Raw, &ev); err != nil {
			s.logger.Warn("bad event", "err", err)
			return
		}
		if err := s.Apply(ctx, ev); err != nil {
			s.logger.Debug("event not applied", "seq", ev.Seq, "err", err)
		}
	case protocol.TypeSync:
		var msg protocol.SyncMsg
		if err := json.Unmarshal(env.Raw, &msg); err != nil {
			s.logger.Warn("bad sync", "err", err)
			return
		}
		if err := s.ApplySync(msg); err != nil {
			s.logger.Warn("sync rejected", "seq", msg.Seq, "err", err)
		}
	case protocol.TypeError:
		var msg protocol.ErrorMsg
		if err := json.Unmarshal(env.Raw, &msg); err != nil {
			return
		}
		s.handleReject(ctx, msg)
	case protocol.TypePeerStatus:
		var msg protocol.PeerStatusMsg
		if err := json.Unmarshal(env.Raw, &msg); err != nil {
			return
		}
		if s.opts.OnPeer != nil {
			s.opts.OnPeer(msg)
		}
	case protocol.TypeWelcome:
		var msg protocol.WelcomeMsg
		if err := json.Unmarshal(env.Raw, &msg); err == nil {
			s.mu.Lock()
			s.welcomeSeq = msg.Seq
			last := s.lastSeq
			s.mu.Unlock()
			s.logger.Info("joined room", "seq", msg.Seq, "lastSeq", last)
		}
	default:
		s.logger.Debug("ignoring message", "type", env.Type)
	}
}

// Apply feeds one sequenced event into the local engine. Events at or
// below the last applied sequence number return ErrDuplicateEvent and
// change nothing; a gap returns ErrSequenceGap after asking the relay to
// replay the missing events.
func (s *Session) Apply(ctx context.Context, ev protocol.Event) error {
	s.mu.Lock()
	last := s.lastSeq
	s.mu.Unlock()

	if ev.Seq <= last {
		return fmt.Errorf("seq %d, last %d: %w", ev.Seq, last, ErrDuplicateEvent)
	}
	if ev.Seq > last+1 {
		s.requestResume(ctx, last, false)
		return fmt.Errorf("seq %d, last %d: %w", ev.Seq, last, ErrSequenceGap)
	}
	if ev.Turn != s.engine.TurnSeq() {
		s.requestResume(ctx, last, true)
		return fmt.Errorf("seq %d is for turn %d, local turn %d: %w", ev.Seq, ev.Turn, s.engine.TurnSeq(), ErrDiverged)
	}

	var err error
	switch ev.Type {
	case protocol.TypeRoll:
		_, err = s.engine.ApplyRoll(ctx, ev.PlayerID, ev.Roll)
	case protocol.TypePrisonSkip:
		_, err = s.engine.ApplyPrisonSkip(ev.PlayerID)
	default:
		err = fmt.Errorf("unknown event type %q", ev.Type)
	}
	if err != nil {
		// The relay's referee accepted this event, so the local state diverged.
		s.logger.Warn("sequenced event rejected locally", "seq", ev.Seq, "type", ev.Type, "err", err)
		s.requestResume(ctx, last, true)
		return fmt.Errorf("seq %d: %w: %w", ev.Seq, ErrDiverged, err)
	}

	s.mu.Lock()
	s.lastSeq = ev.Seq
	s.resumeSent = false
	if ev.PlayerID == s.LocalPlayerID {
		s.pending = ""
	}
	s.mu.Unlock()
	s.applied(ev.Seq)
	return nil
}

func (s *Session) applied(seq uint64) {
	if s.opts.OnApplied != nil {
		s.opts.OnApplied(seq)
	}
}

// ApplySync replaces the local state with a relay snapshot.
func (s *Session) ApplySync(msg protocol.SyncMsg) error {
	if err := s.engine.Restore(msg.Snapshot); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastSeq = msg.Seq
	s.pending = ""
	s.resumeSent = false
	s.mu.Unlock()
	s.logger.Info("state restored from snapshot", "seq", msg.Seq)
	s.applied(msg.Seq)
	return nil
}

func (s *Session) handleReject(ctx context.Context, msg protocol.ErrorMsg) {
	s.mu.Lock()
	if msg.IntentID != "" && msg.IntentID == s.pending {
		s.pending = ""
	}
	last := s.lastSeq
	s.mu.Unlock()

	s.logger.Info("intent rejected", "code", msg.Code, "message", msg.Message)
	if msg.Code == protocol.CodeStaleTurn {
		s.requestResume(ctx, last, false)
	}
	if s.opts.OnReject != nil {
		s.opts.OnReject(msg)
	}
}

// requestResume asks once per gap; further gaps wait until progress is made.
func (s *Session) requestResume(ctx context.Context, last uint64, full bool) {
	s.mu.Lock()
	if s.resumeSent && !full {
		s.mu.Unlock()
		return
	}
	s.resumeSent = true
	s.mu.Unlock()

	msg := protocol.ResumeMsg{Type: protocol.TypeResume, LastSeq: last, Full: full}
	if err := s.transport.Send(ctx, msg); err != nil {
		s.logger.Warn("resume request failed", "lastSeq", last, "err", err)
		s.mu.Lock()
		s.resumeSent = false
		s.mu.Unlock()
	}
}
