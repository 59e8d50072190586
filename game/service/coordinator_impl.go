package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/gobang-online/directory"
	"github.com/wricardo/gobang-online/game/presence"
	"github.com/wricardo/gobang-online/game/room"
)

// DefaultLookupLimit caps concurrent directory lookups per query.
const DefaultLookupLimit = 16

// coordinator implements the Coordinator interface
type coordinator struct {
	out      Broadcaster
	dir      Directory
	presence *presence.Registry
	rooms    *room.Registry

	log         zerolog.Logger
	metrics     *metrics
	lookupLimit int
}

type coordinatorOptions struct {
	logger      zerolog.Logger
	registry    prometheus.Registerer
	rooms       *room.Registry
	lookupLimit int
}

// Option configures the coordinator.
type Option func(*coordinatorOptions)

// WithLogger sets the coordinator logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *coordinatorOptions) {
		o.logger = logger
	}
}

// WithMetricsRegistry registers the coordinator metrics on registry.
func WithMetricsRegistry(registry prometheus.Registerer) Option {
	return func(o *coordinatorOptions) {
		o.registry = registry
	}
}

// WithRoomRegistry shares an existing room registry.
func WithRoomRegistry(rooms *room.Registry) Option {
	return func(o *coordinatorOptions) {
		o.rooms = rooms
	}
}

// WithLookupLimit bounds concurrent directory lookups per query.
func WithLookupLimit(n int) Option {
	return func(o *coordinatorOptions) {
		if n > 0 {
			o.lookupLimit = n
		}
	}
}

// NewCoordinator creates the session coordinator. The presence registry is
// shared with the login path so sign-in checks see the same state.
func NewCoordinator(out Broadcaster, dir Directory, reg *presence.Registry, opts ...Option) Coordinator {
	o := coordinatorOptions{
		logger:      zerolog.Nop(),
		lookupLimit: DefaultLookupLimit,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rooms == nil {
		o.rooms = room.NewRegistry()
	}

	return &coordinator{
		out:         out,
		dir:         dir,
		presence:    reg,
		rooms:       o.rooms,
		log:         o.logger.With().Str("component", "coordinator").Logger(),
		metrics:     newMetrics(o.registry),
		lookupLimit: o.lookupLimit,
	}
}

// OnConnect registers presence and, for a room page, seats the identity.
func (c *coordinator) OnConnect(_ context.Context, conn Conn) {
	c.metrics.connections.Inc()
	log := c.connLogger(conn)
	log.Debug().Msg("connected")

	if conn.Room == "" {
		change := c.presence.Register(conn.Identity, "")
		c.announce(change)
		return
	}

	for {
		rm, created := c.rooms.GetOrCreate(conn.Room)
		if created {
			c.metrics.rooms.Inc()
			log.Debug().Msg("room created")
		}

		var closed bool
		rm.Sequence(func() {
			// The room may have been dropped between lookup and lock.
			if rm.Closed() {
				closed = true
				return
			}

			change := c.presence.Register(conn.Identity, conn.Room)
			if change.FirstInRoom {
				role, err := rm.AddUser(conn.Identity)
				if err != nil {
					log.Error().Err(err).Msg("add user failed")
					c.presence.Unregister(conn.Identity, conn.Room)
					c.dropIfEmpty(conn.Room)
					return
				}
				log.Debug().Str("role", role.String()).Msg("joined room")
			}

			c.announce(change)
			snap := rm.Snapshot()
			c.out.BroadcastRoom(conn.Room, EventRoomUpdate, snap)
			c.out.BroadcastAll(EventRoomUpdate, snap)
		})
		if !closed {
			return
		}
	}
}

// OnDisconnect mirrors OnConnect. It must be called exactly once per
// connection that went through OnConnect.
func (c *coordinator) OnDisconnect(_ context.Context, conn Conn) {
	c.metrics.connections.Dec()
	log := c.connLogger(conn)
	log.Debug().Msg("disconnected")

	if conn.Room == "" {
		c.announce(c.presence.Unregister(conn.Identity, ""))
		return
	}

	rm, ok := c.rooms.Lookup(conn.Room)
	if !ok {
		// Membership and room lifetime move together under the room's
		// sequence lock, so a live member always has a live room.
		log.Error().Err(room.ErrInconsistentState).Msg("member of a missing room")
		c.announce(c.presence.Unregister(conn.Identity, conn.Room))
		return
	}

	rm.Sequence(func() {
		change := c.presence.Unregister(conn.Identity, conn.Room)
		if change.LastInRoom {
			rm.DelUser(conn.Identity)
		}
		removed := c.dropIfEmpty(conn.Room)

		c.announce(change)
		if removed {
			log.Debug().Msg("room removed")
			c.out.BroadcastAll(EventRoomUpdate, RoomRemoved{Name: conn.Room, Removed: true})
			return
		}

		snap := rm.Snapshot()
		c.out.BroadcastRoom(conn.Room, EventRoomUpdate, snap, conn.ID)
		c.out.BroadcastAll(EventRoomUpdate, snap, conn.ID)
	})
}

func (c *coordinator) OnReady(_ context.Context, conn Conn, roomName string) {
	rm, ok := c.rooms.Lookup(roomName)
	if !ok {
		c.reject(conn, EventUserStart, EventUserStartFailure, room.ErrNoSuchRoom)
		return
	}

	rm.Sequence(func() {
		started, err := rm.TryReady(conn.Identity)
		if err != nil {
			c.reject(conn, EventUserStart, EventUserStartFailure, err)
			return
		}

		snap := rm.Snapshot()
		c.out.BroadcastRoom(roomName, EventRoomUpdate, snap)
		if started {
			c.metrics.gamesStarted.Inc()
			c.log.Info().Str("room", roomName).Str("player1", snap.Player1).Str("player2", snap.Player2).Msg("game started")
			c.out.BroadcastAll(EventRoomUpdate, snap)
		}
	})
}

func (c *coordinator) OnMove(_ context.Context, conn Conn, roomName string, x, y int) {
	rm, ok := c.rooms.Lookup(roomName)
	if !ok {
		c.reject(conn, EventUserClick, EventUserClickFailure, room.ErrNoSuchRoom)
		return
	}

	rm.Sequence(func() {
		if _, err := rm.TryMove(conn.Identity, x, y); err != nil {
			c.reject(conn, EventUserClick, EventUserClickFailure, err)
			return
		}
		c.metrics.moves.Inc()
		c.out.BroadcastRoom(roomName, EventRoomUpdate, rm.Snapshot())
	})
}

func (c *coordinator) OnQueryUserList(ctx context.Context, conn Conn) {
	users, err := c.UserList(ctx)
	c.reply(conn, EventUserList, users, err)
}

func (c *coordinator) OnQueryRoomList(ctx context.Context, conn Conn) {
	c.out.Unicast(conn.ID, EventRoomList, c.RoomList(ctx))
}

func (c *coordinator) OnQueryRoomInfo(ctx context.Context, conn Conn, roomName string) {
	info, err := c.RoomInfo(ctx, roomName)
	c.reply(conn, EventRoomInfo, info, err)
}

func (c *coordinator) OnQueryUserListInRoom(ctx context.Context, conn Conn, roomName string) {
	members, err := c.UserListInRoom(ctx, roomName)
	c.reply(conn, EventUserListInRoom, members, err)
}

func (c *coordinator) OnPublicMessage(_ context.Context, conn Conn, data json.RawMessage) {
	c.out.BroadcastAll(EventPublicMessage, ChatMessage{From: conn.Identity, Data: data}, conn.ID)
}

func (c *coordinator) OnPrivateMessage(_ context.Context, conn Conn, roomName string, data json.RawMessage) {
	if roomName == "" {
		roomName = conn.Room
	}
	if roomName == "" {
		return
	}
	msg := ChatMessage{From: conn.Identity, Room: roomName, Data: data}
	c.out.BroadcastRoom(roomName, EventPrivateMessage, msg, conn.ID)
}

// UserList joins every signed-in identity with its directory record.
func (c *coordinator) UserList(ctx context.Context) ([]UserInfo, error) {
	ids := c.presence.Identities()
	records, err := c.lookupAll(ctx, ids)
	if err != nil {
		return nil, err
	}

	users := make([]UserInfo, len(ids))
	for i, id := range ids {
		users[i] = UserInfo{
			Username: records[i].Username,
			Score:    records[i].Score,
			Rooms:    roomsOnly(c.presence.Rooms(id)),
		}
	}
	return users, nil
}

func (c *coordinator) RoomList(_ context.Context) []room.Snapshot {
	rooms := c.rooms.List()
	snaps := make([]room.Snapshot, 0, len(rooms))
	for _, rm := range rooms {
		snaps = append(snaps, rm.Snapshot())
	}
	return snaps
}

func (c *coordinator) RoomInfo(ctx context.Context, roomName string) (*RoomInfo, error) {
	rm, ok := c.rooms.Lookup(roomName)
	if !ok {
		return nil, room.ErrNoSuchRoom
	}
	snap := rm.Snapshot()

	members, err := c.members(ctx, snap)
	if err != nil {
		return nil, err
	}
	return &RoomInfo{Room: snap, Members: members}, nil
}

func (c *coordinator) UserListInRoom(ctx context.Context, roomName string) ([]MemberInfo, error) {
	rm, ok := c.rooms.Lookup(roomName)
	if !ok {
		return nil, room.ErrNoSuchRoom
	}
	return c.members(ctx, rm.Snapshot())
}

func (c *coordinator) IsSignedIn(identity string) bool {
	return c.presence.IsSignedIn(identity)
}

// members resolves the snapshot's players and observers. No room lock is
// held while the directory is queried.
func (c *coordinator) members(ctx context.Context, snap room.Snapshot) ([]MemberInfo, error) {
	ids := snap.Members()
	records, err := c.lookupAll(ctx, ids)
	if err != nil {
		return nil, err
	}

	members := make([]MemberInfo, len(ids))
	for i, id := range ids {
		members[i] = MemberInfo{
			Username: records[i].Username,
			Score:    records[i].Score,
			Role:     snap.RoleOf(id).String(),
		}
	}
	return members, nil
}

// lookupAll fetches one record per identity concurrently and fails on the
// first error.
func (c *coordinator) lookupAll(ctx context.Context, ids []string) ([]directory.Record, error) {
	records := make([]directory.Record, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.lookupLimit)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := c.dir.FindByIdentity(ctx, id)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", id, err)
			}
			if rec.Username == "" {
				rec.Username = id
			}
			records[i] = rec.Public()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// dropIfEmpty removes the room when it has no members left. Callers hold
// the room's sequence lock.
func (c *coordinator) dropIfEmpty(roomName string) bool {
	if !c.rooms.RemoveIfEmpty(roomName) {
		return false
	}
	c.metrics.rooms.Dec()
	return true
}

// announce broadcasts the join or leave notices of a presence change.
func (c *coordinator) announce(change presence.Change) {
	for _, msg := range change.Messages {
		c.out.BroadcastAll(EventSystemMessage, SystemMessage{Message: msg})
	}
}

// reject unicasts a rule violation to the requester. Anything else is an
// internal error: it is logged and nothing is sent.
func (c *coordinator) reject(conn Conn, event, failureEvent string, err error) {
	log := c.connLogger(conn).With().Str("event", event).Logger()

	if !room.IsRuleError(err) {
		log.Error().Err(err).Msg("operation aborted")
		return
	}

	reason := room.Reason(err)
	c.metrics.rejections.WithLabelValues(event, reason).Inc()
	log.Debug().Str("reason", reason).Msg("rejected")
	c.out.Unicast(conn.ID, failureEvent, Failure{Reason: reason})
}

// reply unicasts a query result, or an error payload when it failed.
func (c *coordinator) reply(conn Conn, event string, payload any, err error) {
	if err == nil {
		c.out.Unicast(conn.ID, event, payload)
		return
	}

	msg := err.Error()
	if room.IsRuleError(err) {
		msg = room.Reason(err)
	} else {
		log := c.connLogger(conn)
		log.Warn().Err(err).Str("event", event).Msg("query failed")
	}
	c.out.Unicast(conn.ID, event, ErrorPayload{Error: msg})
}

func (c *coordinator) connLogger(conn Conn) zerolog.Logger {
	return c.log.With().Str("conn", conn.ID).Str("user", conn.Identity).Str("room", conn.Room).Logger()
}

// roomsOnly drops the lobby entry.
func roomsOnly(rooms []string) []string {
	var out []string
	for _, r := range rooms {
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}
