package signaling

import "sort"

type set map[string]struct{}

func (s set) sorted(except string) []string {
	out := make([]string, 0, len(s))
	for id := range s {
		if id != except {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Registry is the room membership table. A room exists iff it has at least one
// member; empty rooms are removed as soon as their last member goes.
//
// Registry does no locking. It is owned by a Hub and only touched from the
// hub's event loop.
type Registry struct {
	rooms       map[string]set // room -> connections
	memberships map[string]set // connection -> rooms
}

// Departure describes one room a connection was removed from.
type Departure struct {
	Room      string
	Remaining []string
}

// RoomSnapshot is a copy of one room's membership.
type RoomSnapshot struct {
	ID      string   `json:"id"`
	Members []string `json:"members"`
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:       make(map[string]set),
		memberships: make(map[string]set),
	}
}

// Join adds conn to room. It returns the other members present at that instant
// and whether membership changed; joining twice is a no-op.
func (r *Registry) Join(conn, room string) (others []string, added bool) {
	members, ok := r.rooms[room]
	if !ok {
		members = make(set)
		r.rooms[room] = members
	}
	others = members.sorted(conn)
	if _, already := members[conn]; already {
		return others, false
	}
	members[conn] = struct{}{}

	joined, ok := r.memberships[conn]
	if !ok {
		joined = make(set)
		r.memberships[conn] = joined
	}
	joined[room] = struct{}{}
	return others, true
}

// Leave removes conn from room and returns who is left. Leaving a room one is
// not in reports removed=false.
func (r *Registry) Leave(conn, room string) (remaining []string, removed bool) {
	members, ok := r.rooms[room]
	if !ok {
		return nil, false
	}
	if _, in := members[conn]; !in {
		return nil, false
	}
	delete(members, conn)
	if len(members) == 0 {
		delete(r.rooms, room)
	}

	if joined, ok := r.memberships[conn]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.memberships, conn)
		}
	}
	return members.sorted(""), true
}

// Disconnect removes conn from every room it joined, in room order.
func (r *Registry) Disconnect(conn string) []Departure {
	joined, ok := r.memberships[conn]
	if !ok {
		return nil
	}
	rooms := joined.sorted("")
	departures := make([]Departure, 0, len(rooms))
	for _, room := range rooms {
		remaining, removed := r.Leave(conn, room)
		if removed {
			departures = append(departures, Departure{Room: room, Remaining: remaining})
		}
	}
	return departures
}

// Members returns the sorted members of room, nil if the room does not exist.
func (r *Registry) Members(room string) []string {
	members, ok := r.rooms[room]
	if !ok {
		return nil
	}
	return members.sorted("")
}

// Others returns the members of room except conn.
func (r *Registry) Others(room, conn string) []string {
	members, ok := r.rooms[room]
	if !ok {
		return nil
	}
	return members.sorted(conn)
}

func (r *Registry) IsMember(conn, room string) bool {
	_, ok := r.rooms[room][conn]
	return ok
}

// RoomsOf returns the sorted rooms conn is in.
func (r *Registry) RoomsOf(conn string) []string {
	joined, ok := r.memberships[conn]
	if !ok {
		return nil
	}
	return joined.sorted("")
}

func (r *Registry) RoomCount() int {
	return len(r.rooms)
}

// Snapshot copies the whole table, rooms sorted by id.
func (r *Registry) Snapshot() []RoomSnapshot {
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]RoomSnapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, RoomSnapshot{ID: id, Members: r.rooms[id].sorted("")})
	}
	return out
}
