// Package credstore persists the operator's session credentials so that a
// gateway restart does not log the operator out.
package credstore

import "errors"

var (
	// ErrStorage indicates the backing store rejected a write or clear.
	ErrStorage = errors.New("credential storage failed")
)

// StoredSession is the durable on-disk representation of a session.
//
// UserJSON holds the serialized user exactly as written; deserialization
// (and the handling of malformed bytes) is the session controller's job.
// All four fields are written and cleared as one atomic group; a store
// must never expose a partial session.
type StoredSession struct {
	Token          string
	UserJSON       []byte
	RefreshToken   string
	LoginTimestamp int64 // milliseconds since epoch, set at login time
}

// Store is durable key/value persistence for a single StoredSession.
type Store interface {
	// Write stores all four fields as one group.
	Write(s StoredSession) error
	// Read returns the stored session. ok is false when nothing is stored.
	// Malformed user bytes are returned as-is, not rejected here.
	Read() (s StoredSession, ok bool, err error)
	// Clear removes all four fields. Clearing an empty store is not an error.
	Clear() error
}
