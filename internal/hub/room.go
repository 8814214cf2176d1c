package hub

import "sync"

// Registry maps room ids to live rooms. Rooms are created lazily on first
// reference and kept for the life of the process so replay keeps working for
// rooms that momentarily have no members. Synchronization is room-local:
// traffic in one room never contends with another.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Room returns the room with the given id, creating it if needed.
func (r *Registry) Room(name string) *Room {
	r.mu.RLock()
	room, ok := r.rooms[name]
	r.mu.RUnlock()
	if ok {
		return room
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok = r.rooms[name]; ok {
		return room
	}
	room = &Room{name: name, conns: make(map[*Conn]struct{})}
	r.rooms[name] = room
	return room
}

// Room is an independently synchronized broadcast domain. Every mutation and
// every fan-out goes through its mutex, which is the single ordered
// publication point: any two events published to the room are observed in
// the same order by every member.
type Room struct {
	name  string
	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// Name returns the room id.
func (r *Room) Name() string { return r.name }

// Join registers c, replays history to it, and announces the arrival to the
// existing members (never to c itself). replay runs under the room lock so
// the tail it reads is a consistent snapshot relative to concurrent
// publishes. Returned conns saturated their buffers and must be closed by
// the caller, after the lock is released.
func (r *Room) Join(c *Conn, replay func() Event, join Event) (slow []*Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[c] = struct{}{}
	c.joined.Store(true)

	if data, err := replay().Encode(); err == nil && !c.enqueue(data) {
		slow = append(slow, c)
	}
	if data, err := join.Encode(); err == nil {
		slow = append(slow, r.fanOut(data, c)...)
	}
	return slow
}

// Leave removes c and, if it was still a member, announces the departure to
// the remaining members. Calling it again is a no-op, so a connection can
// never produce two leave broadcasts.
func (r *Room) Leave(c *Conn, leave Event) (removed bool, slow []*Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c]; !ok {
		return false, nil
	}
	delete(r.conns, c)

	if data, err := leave.Encode(); err == nil {
		slow = r.fanOut(data, nil)
	}
	return true, slow
}

// Publish persists and fans out one event to the membership at the instant
// of publication, sender included. persist runs under the room lock so the
// log's append order matches the broadcast order; it may be nil.
func (r *Room) Publish(ev Event, persist func()) (slow []*Conn) {
	data, err := ev.Encode()
	if err != nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if persist != nil {
		persist()
	}
	return r.fanOut(data, nil)
}

// fanOut enqueues a frame for every member except the excluded one.
// Enqueueing never blocks; members whose buffers are full are reported back
// so one stuck peer cannot hold up the room. Callers hold r.mu.
func (r *Room) fanOut(data []byte, except *Conn) (slow []*Conn) {
	for c := range r.conns {
		if c == except {
			continue
		}
		if !c.enqueue(data) {
			slow = append(slow, c)
		}
	}
	return slow
}

// Members returns a snapshot of the current membership.
func (r *Room) Members() []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := make([]*Conn, 0, len(r.conns))
	for c := range r.conns {
		members = append(members, c)
	}
	return members
}
