package model

import "fmt"

// ChangeMetadata tags every change delivery and every snapshot.
type ChangeMetadata struct {
	// The change is local only and not confirmed by the backend yet.
	IsPendingWrite bool `json:"is_pending_write"`
	// The data comes from the local cache; live data may follow.
	IsFromLocalCache bool `json:"is_from_local_cache"`
}

var (
	Confirmed = ChangeMetadata{}
	Pending   = ChangeMetadata{IsPendingWrite: true}
	Cached    = ChangeMetadata{IsFromLocalCache: true}
)

type ChangeKind int

const (
	Added ChangeKind = iota + 1
	Updated
	Removed
	Moved
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	case Moved:
		return "moved"
	default:
		return fmt.Sprintf("change(%d)", int(k))
	}
}

func (k ChangeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ChangeKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "added":
		*k = Added
	case "updated":
		*k = Updated
	case "removed":
		*k = Removed
	case "moved":
		*k = Moved
	default:
		return fmt.Errorf("unknown change kind %q", string(b))
	}
	return nil
}

type Change[T any] struct {
	Kind ChangeKind `json:"kind"`
	Item T          `json:"item"`
}

func AddedOf[T any](item T) Change[T]   { return Change[T]{Kind: Added, Item: item} }
func UpdatedOf[T any](item T) Change[T] { return Change[T]{Kind: Updated, Item: item} }
func RemovedOf[T any](item T) Change[T] { return Change[T]{Kind: Removed, Item: item} }
func MovedOf[T any](item T) Change[T]   { return Change[T]{Kind: Moved, Item: item} }
