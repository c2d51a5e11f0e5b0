package rooms

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"monopolis-server/eventlog"
	"monopolis-server/game"
	"monopolis-server/protocol"
	"monopolis-server/roomerrors"
	"monopolis-server/storage"
	"monopolis-server/wsutil"
)

// ActionType enumerates the kinds of actions a room processes.
type ActionType int

const (
	ActionJoin ActionType = iota
	ActionLeave
	ActionEvent
	ActionResume
	ActionSnapshot
	ActionIdleTimeout // internal: every seat stayed disconnected for the idle timeout
)

// Action is sent into the room's action channel.
type Action struct {
	Type     ActionType
	PlayerID string
	Send     chan []byte // for Join and Leave: the seat's outbound channel
	LastSeq  uint64      // for Join and Resume
	Full     bool        // for Resume: skip replay and send a snapshot
	Event    protocol.Event

	reply     chan error
	viewReply chan View
	idleGen   uint64
}

// View is a consistent read of a room.
type View struct {
	RoomID    string            `json:"roomId"`
	Seq       uint64            `json:"seq"`
	Players   []game.PlayerInfo `json:"players"`
	Connected []string          `json:"connected"`
	Snapshot  game.Snapshot     `json:"snapshot"`
}

// Room sequences the turn events of one game. A single goroutine (Run)
// owns all room state; everything else talks to it through Actions.
type Room struct {
	ID   string
	Seed int64

	referee *game.Engine
	events  eventlog.Log
	store   storage.HistoryStore
	logger  *slog.Logger

	seq   uint64
	seats map[string]chan []byte

	idleTimeout time.Duration
	idleCancel  chan struct{}
	idleGen     uint64

	Actions chan Action
	Done    chan struct{}

	// OnClose is called from Run once the room stops. idle is false when the
	// room stopped because its context was cancelled.
	OnClose func(roomID string, idle bool)
}

func newRoom(id string, seed int64, referee *game.Engine, events eventlog.Log, store storage.HistoryStore, idleTimeout time.Duration) *Room {
	return &Room{
		ID:          id,
		Seed:        seed,
		referee:     referee,
		events:      events,
		store:       store,
		logger:      slog.With("tag", "room", "room", id),
		seats:       make(map[string]chan []byte),
		idleTimeout: idleTimeout,
		Actions:     make(chan Action, 64),
		Done:        make(chan struct{}),
	}
}

// Run is the room loop. It processes actions sequentially until ctx is
// cancelled or the room goes idle.
func (r *Room) Run(ctx context.Context) {
	idle := false
	defer func() {
		r.cancelIdleTimer()
		close(r.Done)
		if r.OnClose != nil {
			r.OnClose(r.ID, idle)
		}
	}()
	r.startIdleTimer()

	for {
		select {
		case <-ctx.Done():
			return
		case a := <-r.Actions:
			switch a.Type {
			case ActionJoin:
				a.reply <- r.handleJoin(ctx, a.PlayerID, a.Send, a.LastSeq)
			case ActionLeave:
				r.handleLeave(a.PlayerID, a.Send)
			case ActionEvent:
				r.handleEvent(ctx, a.PlayerID, a.Event)
			case ActionResume:
				r.handleResume(ctx, a.PlayerID, a.LastSeq, a.Full)
			case ActionSnapshot:
				a.viewReply <- r.view()
			case ActionIdleTimeout:
				if a.idleGen == r.idleGen && len(r.seats) == 0 {
					r.logger.Info("closing idle room")
					idle = true
					return
				}
			}
		}
	}
}

func (r *Room) post(ctx context.Context, a Action) error {
	select {
	case r.Actions <- a:
		return nil
	case <-r.Done:
		return roomerrors.ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join seats a connection for playerID and catches it up from lastSeq.
func (r *Room) Join(ctx context.Context, playerID string, send chan []byte, lastSeq uint64) error {
	reply := make(chan error, 1)
	if err := r.post(ctx, Action{Type: ActionJoin, PlayerID: playerID, Send: send, LastSeq: lastSeq, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-r.Done:
		return roomerrors.ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Leave releases the seat if send is still the connection holding it.
func (r *Room) Leave(playerID string, send chan []byte) {
	_ = r.post(context.Background(), Action{Type: ActionLeave, PlayerID: playerID, Send: send})
}

// Submit forwards a turn event from playerID.
func (r *Room) Submit(ctx context.Context, playerID string, ev protocol.Event) error {
	return r.post(ctx, Action{Type: ActionEvent, PlayerID: playerID, Event: ev})
}

// Resume asks for the events after lastSeq, or a snapshot when full is set.
func (r *Room) Resume(ctx context.Context, playerID string, lastSeq uint64, full bool) error {
	return r.post(ctx, Action{Type: ActionResume, PlayerID: playerID, LastSeq: lastSeq, Full: full})
}

// View returns the room state as of the last sequenced event.
func (r *Room) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := r.post(ctx, Action{Type: ActionSnapshot, viewReply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-r.Done:
		return View{}, roomerrors.ErrRoomClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (r *Room) view() View {
	connected := make([]string, 0, len(r.seats))
	for _, p := range r.referee.Seats() {
		if _, ok := r.seats[p.ID]; ok {
			connected = append(connected, p.ID)
		}
	}
	return View{
		RoomID:    r.ID,
		Seq:       r.seq,
		Players:   r.referee.Seats(),
		Connected: connected,
		Snapshot:  r.referee.Snapshot(),
	}
}

func (r *Room) handleJoin(ctx context.Context, playerID string, send chan []byte, lastSeq uint64) error {
	if _, ok := r.referee.Player(playerID); !ok {
		return roomerrors.ErrNotSeated
	}
	_, reconnect := r.seats[playerID]
	r.seats[playerID] = send
	r.cancelIdleTimer()

	wsutil.SafeSend(send, protocol.Encode(protocol.WelcomeMsg{
		Type:     protocol.TypeWelcome,
		RoomID:   r.ID,
		PlayerID: playerID,
		Players:  r.referee.Seats(),
		Seq:      r.seq,
	}))
	r.catchUp(ctx, playerID, send, lastSeq, false)

	r.logger.Info("seat connected", "player", playerID, "lastSeq", lastSeq, "seq", r.seq, "replaced", reconnect)
	r.broadcastExcept(playerID, protocol.Encode(protocol.PeerStatusMsg{Type: protocol.TypePeerStatus, PlayerID: playerID, Connected: true}))
	return nil
}

func (r *Room) handleLeave(playerID string, send chan []byte) {
	cur, ok := r.seats[playerID]
	if !ok || cur != send {
		return
	}
	delete(r.seats, playerID)
	r.logger.Info("seat disconnected", "player", playerID)
	r.broadcastExcept(playerID, protocol.Encode(protocol.PeerStatusMsg{Type: protocol.TypePeerStatus, PlayerID: playerID, Connected: false}))
	if len(r.seats) == 0 {
		r.startIdleTimer()
	}
}

func (r *Room) handleResume(ctx context.Context, playerID string, lastSeq uint64, full bool) {
	send, ok := r.seats[playerID]
	if !ok {
		return
	}
	r.catchUp(ctx, playerID, send, lastSeq, full)
}

// catchUp sends every event after lastSeq, falling back to a snapshot when
// the log cannot serve them, when they would not fit in the seat's free
// buffer, or when the device claims to be ahead of the room.
func (r *Room) catchUp(ctx context.Context, playerID string, send chan []byte, lastSeq uint64, full bool) {
	if !full && lastSeq == r.seq {
		return
	}
	if !full && lastSeq < r.seq {
		events, err := eventlog.Replay(ctx, r.events, r.ID, lastSeq, r.seq)
		switch {
		case err == nil && len(events) <= cap(send)-len(send):
			for _, ev := range events {
				wsutil.SafeSend(send, protocol.Encode(ev))
			}
			r.logger.Info("replayed events", "player", playerID, "count", len(events))
			return
		case err == nil:
			r.logger.Info("replay exceeds seat buffer", "player", playerID, "count", len(events), "free", cap(send)-len(send))
		case !errors.Is(err, eventlog.ErrTruncated):
			r.logger.Warn("replay failed", "player", playerID, "err", err)
		}
	}
	wsutil.SafeSend(send, protocol.Encode(protocol.SyncMsg{Type: protocol.TypeSync, Seq: r.seq, Snapshot: r.referee.Snapshot()}))
	r.logger.Info("sent snapshot", "player", playerID, "seq", r.seq)
}

func (r *Room) handleEvent(ctx context.Context, playerID string, ev protocol.Event) {
	send := r.seats[playerID]
	reject := func(code, msg string) {
		r.logger.Info("rejected event", "player", playerID, "type", ev.Type, "code", code)
		wsutil.SafeSend(send, protocol.Encode(protocol.NewError(code, msg, ev.IntentID)))
	}
	if send == nil {
		return
	}
	if !protocol.IsTurnEvent(ev.Type) {
		reject(protocol.CodeBadRequest, "unknown event type "+ev.Type)
		return
	}
	if ev.Turn != r.referee.TurnSeq() {
		reject(protocol.CodeStaleTurn, "event is for another turn")
		return
	}

	var res game.TurnResult
	var err error
	if ev.Type == protocol.TypeRoll {
		res, err = r.referee.ApplyRoll(ctx, playerID, ev.Roll)
	} else {
		ev.Roll = 0
		res, err = r.referee.ApplyPrisonSkip(playerID)
	}
	if err != nil {
		reject(protocol.CodeFor(err), err.Error())
		return
	}

	r.seq++
	ev.Seq = r.seq
	ev.PlayerID = playerID
	if err := r.events.Append(ctx, r.ID, ev); err != nil {
		r.logger.Warn("event log append failed", "seq", ev.Seq, "err", err)
	}
	r.persist(res, ev.Seq)
	r.broadcast(protocol.Encode(ev))
}

func (r *Room) persist(res game.TurnResult, seq uint64) {
	if r.store == nil {
		return
	}
	after, _ := r.referee.Player(res.PlayerID)
	rec := storage.NewTurnRecord(r.ID, seq, res, after)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.InsertTurn(ctx, rec); err != nil {
			r.logger.Warn("persist turn failed", "seq", seq, "err", err)
		}
	}()
}

func (r *Room) broadcast(data []byte) {
	for _, send := range r.seats {
		wsutil.SafeSend(send, data)
	}
}

func (r *Room) broadcastExcept(playerID string, data []byte) {
	for id, send := range r.seats {
		if id != playerID {
			wsutil.SafeSend(send, data)
		}
	}
}

func (r *Room) startIdleTimer() {
	if r.idleTimeout <= 0 || r.idleCancel != nil {
		return
	}
	r.idleGen++
	r.idleCancel = make(chan struct{})
	cancel, gen := r.idleCancel, r.idleGen
	go func() {
		select {
		case <-time.After(r.idleTimeout):
			select {
			case r.Actions <- Action{Type: ActionIdleTimeout, idleGen: gen}:
			case <-r.Done:
			}
		case <-cancel:
		}
	}()
}

func (r *Room) cancelIdleTimer() {
	if r.idleCancel != nil {
		close(r.idleCancel)
		r.idleCancel = nil
		r.idleGen++
	}
}
