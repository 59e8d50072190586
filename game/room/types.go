package room

import "fmt"

// Board geometry. Coordinates are 1-based and inclusive on both ends.
const (
	BoardSize = 15
	MinCoord  = 1
	MaxCoord  = BoardSize
)

// Status is the state of a room's game, and also a player's readiness.
type Status int

const (
	Waiting Status = iota
	Started
)

func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Started:
		return "started"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText encodes the status as the lowercase names clients expect.
func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case Waiting, Started:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("room: unknown status %d", int(s))
	}
}

// UnmarshalText accepts "waiting" and "started".
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "waiting":
		*s = Waiting
	case "started":
		*s = Started
	default:
		return fmt.Errorf("room: unknown status %q", text)
	}
	return nil
}

// Role is how an identity takes part in a room.
type Role int

const (
	RoleNone Role = iota
	RolePlayer1
	RolePlayer2
	RoleObserver
)

func (r Role) String() string {
	switch r {
	case RolePlayer1:
		return "player1"
	case RolePlayer2:
		return "player2"
	case RoleObserver:
		return "observer"
	default:
		return "none"
	}
}

// Color identifies the stones placed by a player slot.
type Color string

const (
	ColorP1 Color = "p1"
	ColorP2 Color = "p2"
)

func colorForSlot(slot int) Color {
	if slot == 0 {
		return ColorP1
	}
	return ColorP2
}

// Move is one entry of a room's move log.
type Move struct {
	Color Color `json:"color"`
	X     int   `json:"x"`
	Y     int   `json:"y"`
}

// Snapshot is a consistent, copy-on-read view of a room.
type Snapshot struct {
	Name          string   `json:"name"`
	Status        Status   `json:"status"`
	Player1       string   `json:"player1"`
	Player2       string   `json:"player2"`
	Player1Status Status   `json:"player1_status"`
	Player2Status Status   `json:"player2_status"`
	Turn          int      `json:"turn"`
	Observers     []string `json:"observers"`
	Moves         []Move   `json:"moves"`
}

// Members lists players (slot order, filled slots only) followed by observers.
func (s Snapshot) Members() []string {
	members := make([]string, 0, 2+len(s.Observers))
	if s.Player1 != "" {
		members = append(members, s.Player1)
	}
	if s.Player2 != "" {
		members = append(members, s.Player2)
	}
	return append(members, s.Observers...)
}

// RoleOf reports the role identity holds in the snapshot.
func (s Snapshot) RoleOf(identity string) Role {
	switch {
	case identity == "":
		return RoleNone
	case s.Player1 == identity:
		return RolePlayer1
	case s.Player2 == identity:
		return RolePlayer2
	}
	for _, o := range s.Observers {
		if o == identity {
			return RoleObserver
		}
	}
	return RoleNone
}

// InRange reports whether (x, y) lies on the board.
func InRange(x, y int) bool {
	return x >= MinCoord && x <= MaxCoord && y >= MinCoord && y <= MaxCoord
}
