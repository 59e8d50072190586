package room

import (
	"fmt"
	"sort"
	"sync"
)

// Room holds two player slots, an observer set and the turn-based game
// played between the two players. All methods are safe for concurrent use;
// mutations on one room are serialized by its own mutex.
type Room struct {
	name string

	// seq orders compound sections (mutate, snapshot, notify) issued by the
	// coordinator. It is always taken before mu and never while holding it.
	seq sync.Mutex

	mu           sync.Mutex
	status       Status
	players      [2]string
	playerStatus [2]Status
	turn         int
	observers    map[string]struct{}
	moves        []Move
	closed       bool
}

// New creates an empty, waiting room.
func New(name string) *Room {
	return &Room{
		name:      name,
		observers: make(map[string]struct{}),
	}
}

// Name returns the room's unique key.
func (r *Room) Name() string {
	return r.name
}

// Sequence runs fn while holding the room's sequencing lock, so that a
// mutation, the snapshot taken after it and the notifications built from
// that snapshot leave in the same order as the mutations happened.
func (r *Room) Sequence(fn func()) {
	r.seq.Lock()
	defer r.seq.Unlock()
	fn()
}

// AddUser places identity in the room. While the room is waiting the first
// empty player slot is filled (player1 before player2); otherwise the
// newcomer watches. Adding a current member is a no-op that returns its role.
func (r *Room) AddUser(identity string) (Role, error) {
	if identity == "" {
		return RoleNone, ErrNoSuchUser
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return RoleNone, ErrRoomClosed
	}

	if role := r.roleLocked(identity); role != RoleNone {
		return role, nil
	}

	if r.status == Waiting {
		for slot := range r.players {
			if r.players[slot] == "" {
				r.players[slot] = identity
				r.playerStatus[slot] = Waiting
				return slotRole(slot), nil
			}
		}
	}

	r.observers[identity] = struct{}{}
	return RoleObserver, nil
}

// DelUser removes identity. A departing player resets the readiness of both
// slots and abandons a game in progress. It reports whether identity was a
// member.
func (r *Room) DelUser(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.observers[identity]; ok {
		delete(r.observers, identity)
		return true
	}

	slot := r.slotLocked(identity)
	if slot < 0 {
		return false
	}

	r.players[slot] = ""
	r.playerStatus = [2]Status{Waiting, Waiting}
	if r.status == Started {
		r.status = Waiting
	}
	return true
}

// IsPlayer reports whether identity occupies a player slot.
func (r *Room) IsPlayer(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slotLocked(identity) >= 0
}

// IsEmpty reports whether the room has neither players nor observers.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isEmptyLocked()
}

// IsBothStarted reports whether both slots are filled and ready.
func (r *Room) IsBothStarted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isBothStartedLocked()
}

// TryReady marks the calling player ready. When that makes both players
// ready a fresh game starts and started is true.
func (r *Room) TryReady(identity string) (started bool, err error) {
	if identity == "" {
		return false, ErrNoSuchUser
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkLocked(); err != nil {
		return false, err
	}

	slot, err := r.playerSlotLocked(identity)
	if err != nil {
		return false, err
	}
	if r.playerStatus[slot] == Started {
		return false, ErrAlreadyStarted
	}

	r.playerStatus[slot] = Started
	if r.status == Waiting && r.isBothStartedLocked() {
		r.startNewGameLocked()
		return true, nil
	}
	return false, nil
}

// TryMove places a stone for the calling player and passes the turn.
func (r *Room) TryMove(identity string, x, y int) (Move, error) {
	if !InRange(x, y) {
		return Move{}, ErrOutOfRange
	}
	if identity == "" {
		return Move{}, ErrNoSuchUser
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != Started {
		return Move{}, ErrNotStarted
	}
	if err := r.checkLocked(); err != nil {
		return Move{}, err
	}

	slot, err := r.playerSlotLocked(identity)
	if err != nil {
		return Move{}, err
	}
	if slot != r.turn || r.playerStatus[slot] != Started {
		return Move{}, ErrNotYourTurn
	}

	move := Move{Color: colorForSlot(slot), X: x, Y: y}
	r.moves = append(r.moves, move)
	r.turn = 1 - slot
	return move, nil
}

// Role reports the role identity holds.
func (r *Room) Role(identity string) Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roleLocked(identity)
}

// Snapshot copies the room state.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	observers := make([]string, 0, len(r.observers))
	for id := range r.observers {
		observers = append(observers, id)
	}
	sort.Strings(observers)

	moves := make([]Move, len(r.moves))
	copy(moves, r.moves)

	return Snapshot{
		Name:          r.name,
		Status:        r.status,
		Player1:       r.players[0],
		Player2:       r.players[1],
		Player1Status: r.playerStatus[0],
		Player2Status: r.playerStatus[1],
		Turn:          r.turn,
		Observers:     observers,
		Moves:         moves,
	}
}

// Closed reports whether the registry has dropped this room. A closed room
// never reopens; callers look the name up again.
func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// closeIfEmpty marks an empty room closed so late AddUser calls fail.
func (r *Room) closeIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isEmptyLocked() {
		return false
	}
	r.closed = true
	return true
}

func (r *Room) startNewGameLocked() {
	r.turn = 0
	r.moves = nil
	r.status = Started
}

// checkLocked asserts that a started game has both players seated.
func (r *Room) checkLocked() error {
	if r.status == Started && (r.players[0] == "" || r.players[1] == "") {
		return fmt.Errorf("%w: room %q started with players %q/%q",
			ErrInconsistentState, r.name, r.players[0], r.players[1])
	}
	return nil
}

func (r *Room) playerSlotLocked(identity string) (int, error) {
	if slot := r.slotLocked(identity); slot >= 0 {
		return slot, nil
	}
	if _, ok := r.observers[identity]; ok {
		return -1, ErrObserver
	}
	return -1, ErrNotInRoom
}

func (r *Room) slotLocked(identity string) int {
	if identity == "" {
		return -1
	}
	for slot, p := range r.players {
		if p == identity {
			return slot
		}
	}
	return -1
}

func (r *Room) roleLocked(identity string) Role {
	if slot := r.slotLocked(identity); slot >= 0 {
		return slotRole(slot)
	}
	if _, ok := r.observers[identity]; ok {
		return RoleObserver
	}
	return RoleNone
}

func (r *Room) isEmptyLocked() bool {
	return r.players[0] == "" && r.players[1] == "" && len(r.observers) == 0
}

func (r *Room) isBothStartedLocked() bool {
	return r.players[0] != "" && r.players[1] != "" &&
		r.playerStatus[0] == Started && r.playerStatus[1] == Started
}

func slotRole(slot int) Role {
	if slot == 0 {
		return RolePlayer1
	}
	return RolePlayer2
}
