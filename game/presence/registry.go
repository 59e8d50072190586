package presence

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrAlreadySignedIn = errors.New("identity already signed in")
	ErrEmptyIdentity   = errors.New("empty identity")
)

// DefaultClaimTTL bounds how long a login may hold an identity before its
// first connection registers.
const DefaultClaimTTL = 30 * time.Second

// Change describes what a Register or Unregister call did.
type Change struct {
	// Messages are the human-readable join or leave notices, at most one per
	// call, empty when the call did not change the room set.
	Messages []string

	// FirstSignIn is set when the identity had no membership before Register.
	FirstSignIn bool
	// SignedOut is set when Unregister removed the last membership.
	SignedOut bool

	// FirstInRoom is set when Register added the first connection of the
	// identity to the room; LastInRoom when Unregister removed the last one.
	FirstInRoom bool
	LastInRoom  bool
}

// membership is the ordered room set of one identity. The lobby is the
// empty room name. counts tracks how many live connections back each room.
type membership struct {
	rooms  []string
	counts map[string]int
}

// Registry maps identities to the rooms they currently participate in and
// holds short-lived login claims. One mutex covers every operation; each is
// O(1) or O(rooms of one identity).
type Registry struct {
	mu      sync.Mutex
	members map[string]*membership
	claims  map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClaimTTL sets how long Claim holds an identity.
func WithClaimTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty presence registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		members: make(map[string]*membership),
		claims:  make(map[string]time.Time),
		ttl:     DefaultClaimTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register records one connection of identity in room ("" for the lobby).
// Only the first connection to a room produces a join message. A pending
// login claim for identity is consumed.
func (r *Registry) Register(identity, room string) Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.claims, identity)

	var change Change
	m, ok := r.members[identity]
	if !ok {
		m = &membership{counts: make(map[string]int)}
		r.members[identity] = m
		change.FirstSignIn = true
	}

	m.counts[room]++
	if m.counts[room] == 1 {
		m.rooms = append(m.rooms, room)
		change.FirstInRoom = true
		change.Messages = []string{joinMessage(identity, room)}
	}
	return change
}

// Unregister removes one connection of identity from room. When the
// identity has no membership left it is signed out. Unregistering an
// unknown pair returns the zero Change.
func (r *Registry) Unregister(identity, room string) Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	var change Change
	m, ok := r.members[identity]
	if !ok || m.counts[room] == 0 {
		return change
	}

	m.counts[room]--
	if m.counts[room] == 0 {
		delete(m.counts, room)
		for i, name := range m.rooms {
			if name == room {
				m.rooms = append(m.rooms[:i], m.rooms[i+1:]...)
				break
			}
		}
		change.LastInRoom = true
		change.Messages = []string{leaveMessage(identity, room)}
	}

	if len(m.rooms) == 0 {
		delete(r.members, identity)
		change.SignedOut = true
	}
	return change
}

// IsSignedIn reports whether identity has at least one membership entry.
func (r *Registry) IsSignedIn(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[identity]
	return ok
}

// Claim atomically checks that identity is neither signed in nor claimed by
// another pending login and reserves it until it registers, Release is
// called, or the claim TTL elapses.
func (r *Registry) Claim(identity string) error {
	if identity == "" {
		return ErrEmptyIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[identity]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadySignedIn, identity)
	}
	now := r.now()
	r.pruneClaimsLocked(now)
	if _, ok := r.claims[identity]; ok {
		return fmt.Errorf("%w: %s (login pending)", ErrAlreadySignedIn, identity)
	}
	r.claims[identity] = now.Add(r.ttl)
	return nil
}

// pruneClaimsLocked drops every claim that expired at or before now.
func (r *Registry) pruneClaimsLocked(now time.Time) {
	for id, expires := range r.claims {
		if !now.Before(expires) {
			delete(r.claims, id)
		}
	}
}

// Release drops a pending claim without registering.
func (r *Registry) Release(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claims, identity)
}

// Identities lists every signed-in identity in lexical order.
func (r *Registry) Identities() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// Rooms returns the rooms identity participates in, in join order.
func (r *Registry) Rooms(identity string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[identity]
	if !ok {
		return nil
	}
	rooms := make([]string, len(m.rooms))
	copy(rooms, m.rooms)
	return rooms
}

// Count returns the number of signed-in identities.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func joinMessage(identity, room string) string {
	if room == "" {
		return identity + " joined lobby."
	}
	return fmt.Sprintf("%s joined room %s.", identity, room)
}

func leaveMessage(identity, room string) string {
	if room == "" {
		return identity + " left lobby."
	}
	return fmt.Sprintf("%s left room %s.", identity, room)
}
