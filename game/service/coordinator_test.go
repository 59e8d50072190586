package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/gobang-online/directory"
	"github.com/wricardo/gobang-online/game/presence"
	"github.com/wricardo/gobang-online/game/room"
)

const (
	kindUnicast = "unicast"
	kindAll     = "all"
	kindRoom    = "room"
)

type sent struct {
	Kind    string
	Target  string // connection id for unicast, room name for room broadcasts
	Event   string
	Payload any
	Except  []string
}

// recorder is a Broadcaster that keeps every call in order.
type recorder struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recorder) Unicast(connID, event string, payload any) {
	r.record(sent{Kind: kindUnicast, Target: connID, Event: event, Payload: payload})
}

func (r *recorder) BroadcastAll(event string, payload any, except ...string) {
	r.record(sent{Kind: kindAll, Event: event, Payload: payload, Except: except})
}

func (r *recorder) BroadcastRoom(roomName, event string, payload any, except ...string) {
	r.record(sent{Kind: kindRoom, Target: roomName, Event: event, Payload: payload, Except: except})
}

func (r *recorder) record(s sent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, s)
}

// take returns and clears everything recorded so far.
func (r *recorder) take() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sent
	r.sent = nil
	return out
}

func filter(all []sent, kind, event string) []sent {
	var out []sent
	for _, s := range all {
		if s.Kind == kind && s.Event == event {
			out = append(out, s)
		}
	}
	return out
}

// failingDirectory fails every lookup.
type failingDirectory struct{}

func (failingDirectory) FindByIdentity(context.Context, string) (directory.Record, error) {
	return directory.Record{}, errors.New("backend down")
}

type fixture struct {
	coord *coordinator
	out   *recorder
	reg   *presence.Registry
	prom  *prometheus.Registry
}

func newFixture(t *testing.T, dir Directory) *fixture {
	t.Helper()
	if dir == nil {
		dir = directory.NewMemory(
			directory.Record{Username: "alice", Score: 12},
			directory.Record{Username: "bob", Score: 7},
			directory.Record{Username: "carol", Score: 3},
		)
	}
	out := &recorder{}
	reg := presence.NewRegistry()
	prom := prometheus.NewRegistry()
	c := NewCoordinator(out, dir, reg, WithMetricsRegistry(prom)).(*coordinator)
	return &fixture{coord: c, out: out, reg: reg, prom: prom}
}

func conn(id, identity, roomName string) Conn {
	return Conn{ID: id, Identity: identity, Room: roomName}
}

func TestOnConnect_Lobby(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.coord.OnConnect(ctx, conn("c1", "alice", ""))

	got := f.out.take()
	require.Len(t, got, 1)
	assert.Equal(t, sent{Kind: kindAll, Event: EventSystemMessage, Payload: SystemMessage{Message: "alice joined lobby."}}, got[0])
	assert.True(t, f.coord.IsSignedIn("alice"))
	assert.Empty(t, f.coord.RoomList(ctx), "the lobby is not a room")

	f.coord.OnDisconnect(ctx, conn("c1", "alice", ""))
	got = f.out.take()
	require.Len(t, got, 1)
	assert.Equal(t, SystemMessage{Message: "alice left lobby."}, got[0].Payload)
	assert.False(t, f.coord.IsSignedIn("alice"))
}

func TestOnConnect_RoomBroadcastOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.coord.OnConnect(ctx, conn("c1", "alice", "R1"))

	got := f.out.take()
	require.Len(t, got, 3)
	assert.Equal(t, kindAll, got[0].Kind)
	assert.Equal(t, SystemMessage{Message: "alice joined room R1."}, got[0].Payload)

	assert.Equal(t, kindRoom, got[1].Kind)
	assert.Equal(t, "R1", got[1].Target)
	assert.Equal(t, EventRoomUpdate, got[1].Event)
	snap := got[1].Payload.(room.Snapshot)
	assert.Equal(t, "alice", snap.Player1)
	assert.Equal(t, room.Waiting, snap.Status)

	assert.Equal(t, kindAll, got[2].Kind)
	assert.Equal(t, EventRoomUpdate, got[2].Event)
	assert.Equal(t, snap, got[2].Payload)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.coord.metrics.rooms))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.coord.metrics.connections))
}

func TestGameFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := conn("c1", "alice", "R1")
	bob := conn("c2", "bob", "R1")
	carol := conn("c3", "carol", "R1")

	f.coord.OnConnect(ctx, alice)
	f.coord.OnConnect(ctx, bob)
	f.out.take()

	t.Run("first ready stays in room", func(t *testing.T) {
		f.coord.OnReady(ctx, alice, "R1")
		got := f.out.take()
		require.Len(t, got, 1)
		assert.Equal(t, kindRoom, got[0].Kind)
		snap := got[0].Payload.(room.Snapshot)
		assert.Equal(t, room.Started, snap.Player1Status)
		assert.Equal(t, room.Waiting, snap.Status)
	})

	t.Run("second ready starts the game globally", func(t *testing.T) {
		f.coord.OnReady(ctx, bob, "R1")
		got := f.out.take()
		require.Len(t, got, 2)
		assert.Equal(t, kindRoom, got[0].Kind)
		assert.Equal(t, kindAll, got[1].Kind)
		snap := got[1].Payload.(room.Snapshot)
		assert.Equal(t, room.Started, snap.Status)
		assert.Equal(t, 0, snap.Turn)
		assert.Empty(t, snap.Moves)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.coord.metrics.gamesStarted))
	})

	t.Run("move is broadcast to the room only", func(t *testing.T) {
		f.coord.OnMove(ctx, alice, "R1", 8, 8)
		got := f.out.take()
		require.Len(t, got, 1)
		assert.Equal(t, kindRoom, got[0].Kind)
		snap := got[0].Payload.(room.Snapshot)
		assert.Equal(t, []room.Move{{Color: room.ColorP1, X: 8, Y: 8}}, snap.Moves)
		assert.Equal(t, 1, snap.Turn)
	})

	t.Run("rejections are unicast to the requester", func(t *testing.T) {
		f.coord.OnMove(ctx, alice, "R1", 8, 9)
		f.coord.OnMove(ctx, bob, "R1", 16, 5)
		f.coord.OnReady(ctx, alice, "R1")
		f.coord.OnReady(ctx, alice, "nowhere")

		got := f.out.take()
		want := []sent{
			{Kind: kindUnicast, Target: "c1", Event: EventUserClickFailure, Payload: Failure{Reason: "not your turn"}},
			{Kind: kindUnicast, Target: "c2", Event: EventUserClickFailure, Payload: Failure{Reason: "click out of range"}},
			{Kind: kindUnicast, Target: "c1", Event: EventUserStartFailure, Payload: Failure{Reason: "already started"}},
			{Kind: kindUnicast, Target: "c1", Event: EventUserStartFailure, Payload: Failure{Reason: "no such a room"}},
		}
		assert.Equal(t, want, got)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.coord.metrics.rejections.WithLabelValues(EventUserClick, "not your turn")))
	})

	t.Run("late joiner observes", func(t *testing.T) {
		f.coord.OnConnect(ctx, carol)
		f.out.take()

		f.coord.OnReady(ctx, carol, "R1")
		f.coord.OnMove(ctx, carol, "R1", 3, 3)
		got := f.out.take()
		require.Len(t, got, 2)
		assert.Equal(t, Failure{Reason: "observer can only watch"}, got[0].Payload)
		assert.Equal(t, Failure{Reason: "observer can only watch"}, got[1].Payload)
	})

	t.Run("player leaving abandons the game", func(t *testing.T) {
		f.coord.OnDisconnect(ctx, bob)
		got := f.out.take()
		require.Len(t, got, 3)
		assert.Equal(t, SystemMessage{Message: "bob left room R1."}, got[0].Payload)

		roomUpdate := got[1]
		assert.Equal(t, kindRoom, roomUpdate.Kind)
		assert.Equal(t, []string{"c2"}, roomUpdate.Except)
		snap := roomUpdate.Payload.(room.Snapshot)
		assert.Equal(t, room.Waiting, snap.Status)
		assert.Empty(t, snap.Player2)
		assert.Equal(t, room.Waiting, snap.Player1Status)
		assert.Equal(t, []string{"carol"}, snap.Observers)
	})

	t.Run("last member leaving removes the room", func(t *testing.T) {
		f.coord.OnDisconnect(ctx, alice)
		f.coord.OnDisconnect(ctx, carol)
		got := f.out.take()

		last := got[len(got)-1]
		assert.Equal(t, kindAll, last.Kind)
		assert.Equal(t, RoomRemoved{Name: "R1", Removed: true}, last.Payload)
		assert.Empty(t, f.coord.RoomList(ctx))
		assert.Equal(t, 0.0, testutil.ToFloat64(f.coord.metrics.rooms))
		assert.Equal(t, 0.0, testutil.ToFloat64(f.coord.metrics.connections))
	})
}

func TestMultipleTabs(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tab1 := conn("c1", "alice", "R1")
	tab2 := conn("c2", "alice", "R1")

	f.coord.OnConnect(ctx, tab1)
	f.coord.OnConnect(ctx, tab2)

	got := f.out.take()
	assert.Len(t, filter(got, kindAll, EventSystemMessage), 1, "second tab must not announce again")

	info, err := f.coord.RoomInfo(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Room.Player1)
	assert.Empty(t, info.Room.Player2, "the same identity must not take both seats")

	f.coord.OnDisconnect(ctx, tab1)
	info, err = f.coord.RoomInfo(ctx, "R1")
	require.NoError(t, err, "room survives while a tab is open")
	assert.Equal(t, "alice", info.Room.Player1)

	f.coord.OnDisconnect(ctx, tab2)
	_, err = f.coord.RoomInfo(ctx, "R1")
	assert.ErrorIs(t, err, room.ErrNoSuchRoom)
	assert.False(t, f.coord.IsSignedIn("alice"))
}

func TestQueries(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := conn("c1", "alice", "R1")

	f.coord.OnConnect(ctx, alice)
	f.coord.OnConnect(ctx, conn("c2", "bob", "R1"))
	f.coord.OnConnect(ctx, conn("c3", "carol", ""))
	f.out.take()

	t.Run("user list", func(t *testing.T) {
		f.coord.OnQueryUserList(ctx, alice)
		got := f.out.take()
		require.Len(t, got, 1)
		assert.Equal(t, "c1", got[0].Target)
		assert.Equal(t, EventUserList, got[0].Event)
		assert.Equal(t, []UserInfo{
			{Username: "alice", Score: 12, Rooms: []string{"R1"}},
			{Username: "bob", Score: 7, Rooms: []string{"R1"}},
			{Username: "carol", Score: 3},
		}, got[0].Payload)
	})

	t.Run("room list", func(t *testing.T) {
		f.coord.OnQueryRoomList(ctx, alice)
		got := f.out.take()
		require.Len(t, got, 1)
		snaps := got[0].Payload.([]room.Snapshot)
		require.Len(t, snaps, 1)
		assert.Equal(t, "R1", snaps[0].Name)
	})

	t.Run("room info", func(t *testing.T) {
		f.coord.OnQueryRoomInfo(ctx, alice, "R1")
		got := f.out.take()
		require.Len(t, got, 1)
		info := got[0].Payload.(*RoomInfo)
		assert.Equal(t, []MemberInfo{
			{Username: "alice", Score: 12, Role: "player1"},
			{Username: "bob", Score: 7, Role: "player2"},
		}, info.Members)
	})

	t.Run("user list in room", func(t *testing.T) {
		f.coord.OnQueryUserListInRoom(ctx, alice, "R1")
		got := f.out.take()
		require.Len(t, got, 1)
		assert.Equal(t, EventUserListInRoom, got[0].Event)
		assert.Len(t, got[0].Payload, 2)
	})

	t.Run("unknown room", func(t *testing.T) {
		f.coord.OnQueryRoomInfo(ctx, alice, "nowhere")
		f.coord.OnQueryUserListInRoom(ctx, alice, "nowhere")
		got := f.out.take()
		require.Len(t, got, 2)
		assert.Equal(t, ErrorPayload{Error: "no such a room"}, got[0].Payload)
		assert.Equal(t, ErrorPayload{Error: "no such a room"}, got[1].Payload)
	})
}

func TestQueries_DirectoryFailure(t *testing.T) {
	f := newFixture(t, failingDirectory{})
	ctx := context.Background()
	alice := conn("c1", "alice", "R1")
	f.coord.OnConnect(ctx, alice)
	f.coord.OnConnect(ctx, conn("c2", "bob", ""))
	f.out.take()

	f.coord.OnQueryUserList(ctx, alice)
	f.coord.OnQueryRoomInfo(ctx, alice, "R1")

	got := f.out.take()
	require.Len(t, got, 2, "failures go to the requester only")
	for _, s := range got {
		assert.Equal(t, kindUnicast, s.Kind)
		assert.Equal(t, "c1", s.Target)
		payload, ok := s.Payload.(ErrorPayload)
		require.True(t, ok)
		assert.Contains(t, payload.Error, "backend down")
	}

	// Room list needs no directory.
	f.coord.OnQueryRoomList(ctx, alice)
	got = f.out.take()
	require.Len(t, got, 1)
	assert.IsType(t, []room.Snapshot{}, got[0].Payload)
}

func TestChat(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := conn("c1", "alice", "R1")
	data := json.RawMessage(`"hello"`)

	f.coord.OnPublicMessage(ctx, alice, data)
	f.coord.OnPrivateMessage(ctx, alice, "", data)
	f.coord.OnPrivateMessage(ctx, conn("c2", "bob", ""), "", data)

	got := f.out.take()
	require.Len(t, got, 2, "private message from the lobby without a room is dropped")
	assert.Equal(t, sent{
		Kind: kindAll, Event: EventPublicMessage,
		Payload: ChatMessage{From: "alice", Data: data}, Except: []string{"c1"},
	}, got[0])
	assert.Equal(t, sent{
		Kind: kindRoom, Target: "R1", Event: EventPrivateMessage,
		Payload: ChatMessage{From: "alice", Room: "R1", Data: data}, Except: []string{"c1"},
	}, got[1])
}

func TestConcurrentConnectDisconnect(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := conn(fmt.Sprintf("c%d", i), fmt.Sprintf("user-%d", i%8), fmt.Sprintf("R%d", i%3))
			for j := 0; j < 50; j++ {
				f.coord.OnConnect(ctx, c)
				f.coord.OnReady(ctx, c, c.Room)
				f.coord.OnMove(ctx, c, c.Room, 1+j%15, 1+i%15)
				f.coord.OnDisconnect(ctx, c)
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, f.coord.RoomList(ctx))
	assert.Zero(t, f.reg.Count())
	assert.Equal(t, 0.0, testutil.ToFloat64(f.coord.metrics.connections))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.coord.metrics.rooms), "room gauge follows create and remove")
}

func TestOnConnect_AddUserFailureDropsRoom(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.coord.OnConnect(ctx, conn("c1", "", "R9"))

	assert.Empty(t, f.out.take(), "nothing is announced for a rejected member")
	assert.Empty(t, f.coord.RoomList(ctx))
	assert.Zero(t, f.reg.Count())
	assert.Equal(t, 0.0, testutil.ToFloat64(f.coord.metrics.rooms))

	// A later member gets a fresh room.
	f.coord.OnConnect(ctx, conn("c2", "alice", "R9"))
	rooms := f.coord.RoomList(ctx)
	require.Len(t, rooms, 1)
	assert.Equal(t, "alice", rooms[0].Player1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.coord.metrics.rooms))
}

func TestMetricsRegistered(t *testing.T) {
	f := newFixture(t, nil)
	f.coord.OnConnect(context.Background(), conn("c1", "alice", "R1"))

	families, err := f.prom.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["gobang_connections"])
	assert.True(t, names["gobang_rooms"])
}
