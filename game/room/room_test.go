package room

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
)

// startedRoom returns a room where alice (player1) and bob (player2) have
// both readied up.
func startedRoom(t *testing.T) *Room {
	t.Helper()
	r := New("R1")
	for _, id := range []string{"alice", "bob"} {
		if _, err := r.AddUser(id); err != nil {
			t.Fatalf("AddUser(%s): %v", id, err)
		}
	}
	if _, err := r.TryReady("alice"); err != nil {
		t.Fatalf("TryReady(alice): %v", err)
	}
	started, err := r.TryReady("bob")
	if err != nil {
		t.Fatalf("TryReady(bob): %v", err)
	}
	if !started {
		t.Fatal("expected game to start once both players are ready")
	}
	return r
}

func TestRoom_Scenario(t *testing.T) {
	r := New("R1")

	role, err := r.AddUser("alice")
	if err != nil || role != RolePlayer1 {
		t.Fatalf("AddUser(alice) = %v, %v; want player1", role, err)
	}
	s := r.Snapshot()
	if s.Player1 != "alice" || s.Status != Waiting {
		t.Fatalf("unexpected snapshot after alice joined: %+v", s)
	}

	role, err = r.AddUser("bob")
	if err != nil || role != RolePlayer2 {
		t.Fatalf("AddUser(bob) = %v, %v; want player2", role, err)
	}

	started, err := r.TryReady("alice")
	if err != nil || started {
		t.Fatalf("TryReady(alice) = %v, %v; want false, nil", started, err)
	}
	s = r.Snapshot()
	if s.Player1Status != Started || s.Status != Waiting {
		t.Fatalf("after alice ready: player1_status=%v status=%v", s.Player1Status, s.Status)
	}

	started, err = r.TryReady("bob")
	if err != nil || !started {
		t.Fatalf("TryReady(bob) = %v, %v; want true, nil", started, err)
	}
	s = r.Snapshot()
	if s.Status != Started || s.Turn != 0 || len(s.Moves) != 0 {
		t.Fatalf("after bob ready: %+v", s)
	}

	move, err := r.TryMove("alice", 8, 8)
	if err != nil {
		t.Fatalf("TryMove(alice, 8, 8): %v", err)
	}
	if move != (Move{Color: ColorP1, X: 8, Y: 8}) {
		t.Errorf("unexpected move %+v", move)
	}
	s = r.Snapshot()
	if len(s.Moves) != 1 || s.Moves[0] != move || s.Turn != 1 {
		t.Fatalf("after first move: %+v", s)
	}

	if _, err := r.TryMove("alice", 8, 9); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("second move by alice: got %v, want %v", err, ErrNotYourTurn)
	}

	// A third user arriving mid-game can only watch.
	role, err = r.AddUser("carol")
	if err != nil || role != RoleObserver {
		t.Fatalf("AddUser(carol) = %v, %v; want observer", role, err)
	}
	if _, err := r.TryReady("carol"); !errors.Is(err, ErrObserver) {
		t.Errorf("TryReady(carol): got %v, want %v", err, ErrObserver)
	}
	if _, err := r.TryMove("carol", 3, 3); !errors.Is(err, ErrObserver) {
		t.Errorf("TryMove(carol): got %v, want %v", err, ErrObserver)
	}
}

func TestRoom_TryMoveBounds(t *testing.T) {
	tests := []struct {
		name string
		x, y int
	}{
		{"x zero", 0, 5},
		{"x past edge", 16, 5},
		{"y zero", 5, 0},
		{"y past edge", 5, 16},
		{"negative", -1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := startedRoom(t)
			if _, err := r.TryMove("alice", tt.x, tt.y); !errors.Is(err, ErrOutOfRange) {
				t.Errorf("TryMove(%d, %d): got %v, want %v", tt.x, tt.y, err, ErrOutOfRange)
			}
			if s := r.Snapshot(); s.Turn != 0 || len(s.Moves) != 0 {
				t.Errorf("rejected move changed state: %+v", s)
			}
		})
	}

	t.Run("corners accepted", func(t *testing.T) {
		r := startedRoom(t)
		if _, err := r.TryMove("alice", 1, 1); err != nil {
			t.Fatalf("TryMove(alice, 1, 1): %v", err)
		}
		if _, err := r.TryMove("bob", 15, 15); err != nil {
			t.Fatalf("TryMove(bob, 15, 15): %v", err)
		}
	})
}

func TestRoom_TryMoveRejections(t *testing.T) {
	t.Run("game not started", func(t *testing.T) {
		r := New("R1")
		r.AddUser("alice")
		r.AddUser("bob")
		if _, err := r.TryMove("alice", 3, 3); !errors.Is(err, ErrNotStarted) {
			t.Errorf("got %v, want %v", err, ErrNotStarted)
		}
	})

	t.Run("stranger", func(t *testing.T) {
		r := startedRoom(t)
		if _, err := r.TryMove("mallory", 3, 3); !errors.Is(err, ErrNotInRoom) {
			t.Errorf("got %v, want %v", err, ErrNotInRoom)
		}
	})

	t.Run("empty identity", func(t *testing.T) {
		r := startedRoom(t)
		if _, err := r.TryMove("", 3, 3); !errors.Is(err, ErrNoSuchUser) {
			t.Errorf("got %v, want %v", err, ErrNoSuchUser)
		}
	})

	t.Run("player2 moves first", func(t *testing.T) {
		r := startedRoom(t)
		if _, err := r.TryMove("bob", 3, 3); !errors.Is(err, ErrNotYourTurn) {
			t.Errorf("got %v, want %v", err, ErrNotYourTurn)
		}
	})
}

func TestRoom_TryReadyRejections(t *testing.T) {
	r := New("R1")
	r.AddUser("alice")

	if _, err := r.TryReady(""); !errors.Is(err, ErrNoSuchUser) {
		t.Errorf("empty identity: got %v, want %v", err, ErrNoSuchUser)
	}
	if _, err := r.TryReady("mallory"); !errors.Is(err, ErrNotInRoom) {
		t.Errorf("stranger: got %v, want %v", err, ErrNotInRoom)
	}
	if _, err := r.TryReady("alice"); err != nil {
		t.Fatalf("first ready: %v", err)
	}
	if _, err := r.TryReady("alice"); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second ready: got %v, want %v", err, ErrAlreadyStarted)
	}
	if r.Snapshot().Status != Waiting {
		t.Error("a single ready player must not start the game")
	}
}

func TestRoom_TurnAlternates(t *testing.T) {
	r := startedRoom(t)
	players := []string{"alice", "bob"}

	for i := 0; i < 20; i++ {
		want := i % 2
		if got := r.Snapshot().Turn; got != want {
			t.Fatalf("move %d: turn = %d, want %d", i, got, want)
		}
		x, y := i%BoardSize+1, i/BoardSize+1
		move, err := r.TryMove(players[want], x, y)
		if err != nil {
			t.Fatalf("move %d by %s: %v", i, players[want], err)
		}
		if move.Color != colorForSlot(want) {
			t.Errorf("move %d color = %s", i, move.Color)
		}
		// The player who just moved is refused until the other one plays.
		if _, err := r.TryMove(players[want], x, y); !errors.Is(err, ErrNotYourTurn) {
			t.Fatalf("move %d repeated: got %v", i, err)
		}
	}
	if n := len(r.Snapshot().Moves); n != 20 {
		t.Errorf("move log has %d entries, want 20", n)
	}
}

func TestRoom_PlayerLeavesStartedGame(t *testing.T) {
	r := startedRoom(t)
	r.TryMove("alice", 8, 8)

	if !r.DelUser("bob") {
		t.Fatal("DelUser(bob) reported bob was not a member")
	}

	s := r.Snapshot()
	if s.Status != Waiting {
		t.Errorf("status = %v, want waiting", s.Status)
	}
	if s.Player2 != "" {
		t.Errorf("player2 = %q, want empty", s.Player2)
	}
	if s.Player1Status != Waiting || s.Player2Status != Waiting {
		t.Errorf("readiness not reset: %v/%v", s.Player1Status, s.Player2Status)
	}

	// A newcomer takes the vacated slot and a new game starts from scratch.
	if role, _ := r.AddUser("dave"); role != RolePlayer2 {
		t.Fatalf("dave joined as %v, want player2", role)
	}
	r.TryReady("alice")
	started, err := r.TryReady("dave")
	if err != nil || !started {
		t.Fatalf("restart: %v, %v", started, err)
	}
	if s := r.Snapshot(); len(s.Moves) != 0 || s.Turn != 0 {
		t.Errorf("new game kept old state: %+v", s)
	}
}

func TestRoom_ObserverLifecycle(t *testing.T) {
	r := New("R1")
	r.AddUser("alice")
	r.AddUser("bob")
	if role, _ := r.AddUser("carol"); role != RoleObserver {
		t.Fatalf("carol joined as %v, want observer", role)
	}
	if r.IsPlayer("carol") {
		t.Error("observer reported as player")
	}

	if !r.DelUser("carol") {
		t.Fatal("DelUser(carol) returned false")
	}
	if r.Role("carol") != RoleNone {
		t.Error("carol still a member")
	}
	if r.DelUser("carol") {
		t.Error("second DelUser(carol) returned true")
	}

	r.DelUser("alice")
	r.DelUser("bob")
	if !r.IsEmpty() {
		t.Error("room should be empty")
	}
}

func TestRoom_AddUserIsIdempotent(t *testing.T) {
	r := New("R1")
	r.AddUser("alice")
	role, err := r.AddUser("alice")
	if err != nil || role != RolePlayer1 {
		t.Fatalf("re-adding alice = %v, %v", role, err)
	}
	s := r.Snapshot()
	if s.Player2 != "" || len(s.Observers) != 0 {
		t.Errorf("re-adding alice changed membership: %+v", s)
	}
}

func TestRoom_InconsistentStateIsInternal(t *testing.T) {
	r := startedRoom(t)
	// Break the invariant behind the room's back.
	r.mu.Lock()
	r.players[1] = ""
	r.mu.Unlock()

	_, err := r.TryMove("alice", 4, 4)
	if !errors.Is(err, ErrInconsistentState) {
		t.Fatalf("got %v, want %v", err, ErrInconsistentState)
	}
	if IsRuleError(err) {
		t.Error("inconsistent state must not be reported as a rule error")
	}
}

// TestRoom_MembershipInvariant drives random add/del sequences and checks
// that no identity is ever seated twice or both seated and watching.
func TestRoom_MembershipInvariant(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		r := New(fmt.Sprintf("run-%d", run))
		for step := 0; step < 50; step++ {
			id := ids[rng.Intn(len(ids))]
			switch rng.Intn(3) {
			case 0, 1:
				r.AddUser(id)
			default:
				r.DelUser(id)
			}
			if rng.Intn(4) == 0 {
				r.TryReady(ids[rng.Intn(len(ids))])
			}

			s := r.Snapshot()
			if s.Player1 != "" && s.Player1 == s.Player2 {
				t.Fatalf("run %d step %d: %q holds both slots", run, step, s.Player1)
			}
			for _, o := range s.Observers {
				if o == s.Player1 || o == s.Player2 {
					t.Fatalf("run %d step %d: %q is player and observer", run, step, o)
				}
			}
			bothReady := s.Player1 != "" && s.Player2 != "" &&
				s.Player1Status == Started && s.Player2Status == Started
			if (s.Status == Started) != bothReady {
				t.Fatalf("run %d step %d: status %v with readiness %v/%v",
					run, step, s.Status, s.Player1Status, s.Player2Status)
			}
		}
	}
}

func TestRoom_ConcurrentMoves(t *testing.T) {
	r := startedRoom(t)

	var wg sync.WaitGroup
	for _, id := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for x := MinCoord; x <= MaxCoord; x++ {
				for y := MinCoord; y <= MaxCoord; y++ {
					r.TryMove(id, x, y)
				}
			}
		}(id)
	}
	wg.Wait()

	s := r.Snapshot()
	for i := 1; i < len(s.Moves); i++ {
		if s.Moves[i].Color == s.Moves[i-1].Color {
			t.Fatalf("moves %d and %d share color %s", i-1, i, s.Moves[i].Color)
		}
	}
}

func TestStatus_Text(t *testing.T) {
	for _, st := range []Status{Waiting, Started} {
		text, err := st.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", st, err)
		}
		var back Status
		if err := back.UnmarshalText(text); err != nil || back != st {
			t.Errorf("round trip %v -> %s -> %v (%v)", st, text, back, err)
		}
	}
	if _, err := Status(7).MarshalText(); err == nil {
		t.Error("expected error for unknown status")
	}
}
