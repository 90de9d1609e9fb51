package profile

import "sync"

// Role says which side of a race the handoff seeds.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Handoff is the session-scoped bridge from the public lobby into a race:
// the lobby drops a room code under one of two well-known keys, and the VS
// view drains it to auto-host or auto-join without any lobby logic of its
// own. Values live for the process only.
type Handoff struct {
	mu       sync.Mutex
	hostCode string
	joinCode string
}

// SeedHost stores a pre-minted code the local player will host with.
func (h *Handoff) SeedHost(code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hostCode = code
}

// SeedJoin stores a code the local player should join as guest.
func (h *Handoff) SeedJoin(code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinCode = code
}

// Take drains the handoff. The host key wins if both are somehow set.
func (h *Handoff) Take() (code string, role Role, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.hostCode != "":
		code, role, ok = h.hostCode, RoleHost, true
	case h.joinCode != "":
		code, role, ok = h.joinCode, RoleGuest, true
	}
	h.hostCode, h.joinCode = "", ""
	return code, role, ok
}
