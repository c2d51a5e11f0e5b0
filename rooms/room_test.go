package rooms

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monopolis-server/cards"
	"monopolis-server/config"
	"monopolis-server/eventlog"
	"monopolis-server/game"
	"monopolis-server/protocol"
	"monopolis-server/roomerrors"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.RoomIdleTimeoutSec = 0
	cfg.StepDelayMS = 0
	return cfg
}

func newTestManager(t *testing.T, cfg *config.Config, logCapacity int) *Manager {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewManager(ctx, cfg, game.DefaultBoard(), cards.Standard(), eventlog.NewMemory(logCapacity), nil)
}

func players() []game.PlayerInfo {
	return []game.PlayerInfo{{ID: "alice", Name: "Alice"}, {ID: "bob", Name: "Bob"}}
}

func readMsg(t *testing.T, ch chan []byte) (string, []byte) {
	t.Helper()
	select {
	case data := <-ch:
		var env protocol.InboundEnvelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env.Type, env.Raw
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return "", nil
	}
}

func expectType(t *testing.T, ch chan []byte, want string) []byte {
	t.Helper()
	typ, raw := readMsg(t, ch)
	require.Equal(t, want, typ, "payload: %s", raw)
	return raw
}

func expectEvent(t *testing.T, ch chan []byte) protocol.Event {
	t.Helper()
	typ, raw := readMsg(t, ch)
	require.True(t, protocol.IsTurnEvent(typ), "expected turn event, got %s", raw)
	var ev protocol.Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func expectNone(t *testing.T, ch chan []byte) {
	t.Helper()
	select {
	case data := <-ch:
		t.Fatalf("unexpected message %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

type seat struct {
	id   string
	send chan []byte
}

// seatBoth creates a room and joins both players, draining the join traffic.
func seatBoth(t *testing.T, m *Manager) (*Room, seat, seat) {
	t.Helper()
	ctx := context.Background()
	room, err := m.Create(ctx, "room-1", players())
	require.NoError(t, err)

	a := seat{"alice", make(chan []byte, 64)}
	b := seat{"bob", make(chan []byte, 64)}
	_, err = m.Join(ctx, room.ID, a.id, a.send, 0)
	require.NoError(t, err)
	expectType(t, a.send, protocol.TypeWelcome)

	_, err = m.Join(ctx, room.ID, b.id, b.send, 0)
	require.NoError(t, err)
	expectType(t, b.send, protocol.TypeWelcome)
	expectType(t, a.send, protocol.TypePeerStatus)
	return room, a, b
}

func roll(turn uint64, v int) protocol.Event {
	return protocol.Event{Type: protocol.TypeRoll, Turn: turn, Roll: v, IntentID: "i"}
}

func TestEventBroadcastToEveryone(t *testing.T) {
	m := newTestManager(t, testConfig(), 0)
	room, a, b := seatBoth(t, m)

	require.NoError(t, room.Submit(context.Background(), "alice", roll(0, 3)))

	for _, s := range []seat{a, b} {
		ev := expectEvent(t, s.send)
		assert.Equal(t, uint64(1), ev.Seq)
		assert.Equal(t, "alice", ev.PlayerID)
		assert.Equal(t, 3, ev.Roll)
		expectNone(t, s.send)
	}
}

func TestPlayerIDComesFromSeat(t *testing.T) {
	m := newTestManager(t, testConfig(), 0)
	room, a, b := seatBoth(t, m)

	ev := roll(0, 2)
	ev.PlayerID = "bob"
	require.NoError(t, room.Submit(context.Background(), "alice", ev))

	assert.Equal(t, "alice", expectEvent(t, a.send).PlayerID)
	assert.Equal(t, "alice", expectEvent(t, b.send).PlayerID)
}

func TestRejectionsGoToSenderOnly(t *testing.T) {
	m := newTestManager(t, testConfig(), 0)
	room, a, b := seatBoth(t, m)
	ctx := context.Background()

	cases := []struct {
		from string
		ev   protocol.Event
		code string
	}{
		{"bob", roll(0, 3), protocol.CodeNotYourTurn},
		{"alice", roll(4, 3), protocol.CodeStaleTurn},
		{"alice", roll(0, 9), protocol.CodeInvalidRoll},
		{"alice", protocol.Event{Type: protocol.TypePrisonSkip, Turn: 0}, protocol.CodeNotInPrison},
		{"alice", protocol.Event{Type: "DANCE", Turn: 0}, protocol.CodeBadRequest},
	}
	for _, c := range cases {
		require.NoError(t, room.Submit(ctx, c.from, c.ev))
		sender, other := a, b
		if c.from == "bob" {
			sender, other = b, a
		}
		raw := expectType(t, sender.send, protocol.TypeError)
		var msg protocol.ErrorMsg
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, c.code, msg.Code)
		assert.Equal(t, c.ev.IntentID, msg.IntentID)
		expectNone(t, other.send)
	}

	v, err := room.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v.Seq)
}

func TestRejoinReplaysMissedEvents(t *testing.T) {
	m := newTestManager(t, testConfig(), 0)
	room, a, b := seatBoth(t, m)
	ctx := context.Background()

	require.NoError(t, room.Submit(ctx, "alice", roll(0, 1)))
	expectEvent(t, a.send)
	expectEvent(t, b.send)

	room.Leave("bob", b.send)
	expectType(t, a.send, protocol.TypePeerStatus)

	// events from a seat with no connection are dropped
	require.NoError(t, room.Submit(ctx, "bob", roll(1, 2)))
	expectNone(t, a.send)
	expectNone(t, b.send)

	b2 := make(chan []byte, 64)
	_, err := m.Join(ctx, room.ID, "bob", b2, 1)
	require.NoError(t, err)
	expectType(t, a.send, protocol.TypePeerStatus)
	raw := expectType(t, b2, protocol.TypeWelcome)
	var w protocol.WelcomeMsg
	require.NoError(t, json.Unmarshal(raw, &w))
	assert.Equal(t, uint64(1), w.Seq)
	expectNone(t, b2)

	require.NoError(t, room.Submit(ctx, "bob", roll(1, 2)))
	expectEvent(t, a.send)
	expectEvent(t, b2)

	b3 := make(chan []byte, 64)
	_, err = m.Join(ctx, room.ID, "bob", b3, 1)
	require.NoError(t, err)
	expectType(t, b3, protocol.TypeWelcome)
	ev := expectEvent(t, b3)
	assert.Equal(t, uint64(2), ev.Seq)
	expectNone(t, b3)
}

func TestTruncatedLogFallsBackToSnapshot(t *testing.T) {
	m := newTestManager(t, testConfig(), 1)
	room, a, b := seatBoth(t, m)
	ctx := context.Background()

	require.NoError(t, room.Submit(ctx, "alice", roll(0, 1)))
	require.NoError(t, room.Submit(ctx, "bob", roll(1, 1)))
	require.NoError(t, room.Submit(ctx, "alice", roll(2, 1)))
	for i := 0; i < 3; i++ {
		expectEvent(t, a.send)
		expectEvent(t, b.send)
	}

	late := make(chan []byte, 64)
	_, err := m.Join(ctx, room.ID, "bob", late, 0)
	require.NoError(t, err)
	expectType(t, late, protocol.TypeWelcome)
	raw := expectType(t, late, protocol.TypeSync)
	var sync protocol.SyncMsg
	require.NoError(t, json.Unmarshal(raw, &sync))
	assert.Equal(t, uint64(3), sync.Seq)
	assert.Equal(t, uint64(3), sync.Snapshot.TurnSeq)
	assert.Equal(t, 2, sync.Snapshot.Players[0].Position)

	require.NoError(t, room.Resume(ctx, "bob", 2, false))
	assert.Equal(t, uint64(3), expectEvent(t, late).Seq)

	require.NoError(t, room.Resume(ctx, "bob", 3, true))
	expectType(t, late, protocol.TypeSync)
}

func TestReplayLargerThanSeatBufferSendsSnapshot(t *testing.T) {
	m := newTestManager(t, testConfig(), 0)
	room, a, b := seatBoth(t, m)
	ctx := context.Background()

	for turn := uint64(0); turn < 4; turn++ {
		from := "alice"
		if turn%2 == 1 {
			from = "bob"
		}
		require.NoError(t, room.Submit(ctx, from, roll(turn, 1)))
		expectEvent(t, a.send)
		expectEvent(t, b.send)
	}

	// room for the welcome and two events only
	small := make(chan []byte, 3)
	_, err := m.Join(ctx, room.ID, "bob", small, 0)
	require.NoError(t, err)
	expectType(t, small, protocol.TypeWelcome)
	raw := expectType(t, small, protocol.TypeSync)
	var sync protocol.SyncMsg
	require.NoError(t, json.Unmarshal(raw, &sync))
	assert.Equal(t, uint64(4), sync.Seq)
	assert.Equal(t, uint64(4), sync.Snapshot.TurnSeq)
	expectNone(t, small)

	require.NoError(t, room.Resume(ctx, "bob", 2, false))
	assert.Equal(t, uint64(3), expectEvent(t, small).Seq)
	assert.Equal(t, uint64(4), expectEvent(t, small).Seq)
}

func TestJoinUnknownPlayer(t *testing.T) {
	m := newTestManager(t, testConfig(), 0)
	room, err := m.Create(context.Background(), "", players())
	require.NoError(t, err)
	assert.NotEmpty(t, room.ID)

	_, err = m.Join(context.Background(), room.ID, "mallory", make(chan []byte, 1), 0)
	assert.ErrorIs(t, err, roomerrors.ErrNotSeated)

	_, err = m.Join(context.Background(), "missing", "alice", make(chan []byte, 1), 0)
	assert.ErrorIs(t, err, roomerrors.ErrRoomNotFound)
}

func TestCreateValidation(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlayers = 2
	cfg.MaxNameLength = 5
	m := newTestManager(t, cfg, 0)
	ctx := context.Background()

	_, err := m.Create(ctx, "r", nil)
	assert.ErrorIs(t, err, game.ErrNoPlayers)

	_, err = m.Create(ctx, "r", []game.PlayerInfo{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	assert.ErrorIs(t, err, game.ErrTooManyPlayers)

	_, err = m.Create(ctx, "r", []game.PlayerInfo{{ID: "a", Name: "Bartholomew"}})
	assert.ErrorIs(t, err, roomerrors.ErrNameTooLong)

	_, err = m.Create(ctx, "r", []game.PlayerInfo{{ID: "a"}, {ID: "a"}})
	assert.ErrorIs(t, err, game.ErrDuplicatePlayer)

	_, err = m.Create(ctx, "r", []game.PlayerInfo{{ID: "a"}})
	require.NoError(t, err)
	_, err = m.Create(ctx, "r", []game.PlayerInfo{{ID: "a"}})
	assert.ErrorIs(t, err, roomerrors.ErrRoomExists)
}

func TestViewReportsConnectedSeats(t *testing.T) {
	m := newTestManager(t, testConfig(), 0)
	room, _, b := seatBoth(t, m)
	room.Leave("bob", b.send)

	v, err := room.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, v.Connected)
	assert.Len(t, v.Players, 2)
	assert.Equal(t, "alice", v.Snapshot.CurrentPlayerID())
}

func TestStaleLeaveKeepsNewerConnection(t *testing.T) {
	m := newTestManager(t, testConfig(), 0)
	room, a, _ := seatBoth(t, m)
	ctx := context.Background()

	newer := make(chan []byte, 64)
	_, err := m.Join(ctx, room.ID, "bob", newer, 0)
	require.NoError(t, err)
	expectType(t, newer, protocol.TypeWelcome)
	expectType(t, a.send, protocol.TypePeerStatus)

	room.Leave("bob", make(chan []byte))
	v, err := room.View(ctx)
	require.NoError(t, err)
	assert.Len(t, v.Connected, 2)
}

func TestIdleRoomCloses(t *testing.T) {
	cfg := testConfig()
	cfg.RoomIdleTimeoutSec = 1
	m := newTestManager(t, cfg, 0)
	room, err := m.Create(context.Background(), "idle", players())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return m.Len() == 0 }, 3*time.Second, 20*time.Millisecond)
	select {
	case <-room.Done:
	default:
		t.Fatal("room loop still running")
	}
	_, err = room.View(context.Background())
	assert.ErrorIs(t, err, roomerrors.ErrRoomClosed)
}
