package session

// Presence is one session's view of who is in the room, keyed by identity.
// Display names are currently the identities themselves. The directory is
// rebuilt in full from every roster envelope, never patched incrementally,
// so it can never hold stale entries from a missed event.
type Presence struct {
	order []string
	names map[string]string
}

func newPresence() *Presence {
	return &Presence{names: make(map[string]string)}
}

// Replace rebuilds the directory wholesale from a roster broadcast.
func (p *Presence) Replace(users []string) {
	p.order = append(p.order[:0], users...)
	clear(p.names)
	for _, id := range users {
		p.names[id] = id
	}
}

// Participants returns the roster in broadcast order.
func (p *Presence) Participants() []string {
	return append([]string(nil), p.order...)
}

// DisplayName resolves an identity to its display name.
func (p *Presence) DisplayName(identity string) (string, bool) {
	name, ok := p.names[identity]
	return name, ok
}

// Len reports the number of participants.
func (p *Presence) Len() int {
	return len(p.order)
}
