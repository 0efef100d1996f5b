package realtime

import (
	"sort"

	"travel-together-api/internal/models"
)

// RoomIndex tracks the members of one kind of room. Empty rooms are deleted so the index
// only grows with concurrently active rooms. Not safe for concurrent use.
type RoomIndex struct {
	rooms map[string]map[string]struct{}
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{rooms: make(map[string]map[string]struct{})}
}

// Join adds userID to roomID, creating the room if needed. It reports whether the user was added.
func (ix *RoomIndex) Join(roomID, userID string) bool {
	members, ok := ix.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		ix.rooms[roomID] = members
	}
	if _, dup := members[userID]; dup {
		return false
	}
	members[userID] = struct{}{}
	return true
}

// Leave removes userID from roomID and returns how many members remain.
func (ix *RoomIndex) Leave(roomID, userID string) int {
	members, ok := ix.rooms[roomID]
	if !ok {
		return 0
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(ix.rooms, roomID)
		return 0
	}
	return len(members)
}

// MembersOf returns the members of roomID in lexical order; empty if the room is absent.
func (ix *RoomIndex) MembersOf(roomID string) []string {
	members := ix.rooms[roomID]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (ix *RoomIndex) IsMember(roomID, userID string) bool {
	_, ok := ix.rooms[roomID][userID]
	return ok
}

func (ix *RoomIndex) Has(roomID string) bool {
	_, ok := ix.rooms[roomID]
	return ok
}

// Len is the number of non-empty rooms.
func (ix *RoomIndex) Len() int {
	return len(ix.rooms)
}

// removeUser leaves every room userID is in and returns how many rooms it left.
func (ix *RoomIndex) removeUser(userID string) int {
	left := 0
	for roomID, members := range ix.rooms {
		if _, ok := members[userID]; ok {
			ix.Leave(roomID, userID)
			left++
		}
	}
	return left
}

// Rooms holds the trip room and direct chat room indexes.
type Rooms struct {
	Trips  *RoomIndex
	Direct *RoomIndex
}

func NewRooms() *Rooms {
	return &Rooms{Trips: NewRoomIndex(), Direct: NewRoomIndex()}
}

func (r *Rooms) Index(kind models.RoomKind) *RoomIndex {
	if kind == models.RoomDirect {
		return r.Direct
	}
	return r.Trips
}

// RemoveUserFromAllRooms purges userID from rooms of every kind and returns how many it left.
func (r *Rooms) RemoveUserFromAllRooms(userID string) int {
	return r.Trips.removeUser(userID) + r.Direct.removeUser(userID)
}
