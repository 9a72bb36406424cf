package credstore

import (
	"fmt"
	"strconv"

	"go.etcd.io/bbolt"
)

const bucketName = "session"

// The four storage keys. They mirror the browser client this gateway
// replaced, which kept the same group in localStorage.
var (
	keyToken          = []byte("token")
	keyUser           = []byte("user")
	keyRefreshToken   = []byte("refreshToken")
	keyLoginTimestamp = []byte("loginTimestamp")
)

// Bolt is a Store backed by a bbolt database. All four session keys live in
// one bucket and every Write/Clear runs in a single update transaction, so
// a crash can never leave a partial session behind.
type Bolt struct {
	db *bbolt.DB
}

var _ Store = (*Bolt)(nil)

// NewBolt wraps an already-open bbolt database.
func NewBolt(db *bbolt.DB) *Bolt {
	return &Bolt{db: db}
}

// NewBoltFromFile opens (or creates) a bbolt database at path.
func NewBoltFromFile(path string, options *bbolt.Options) (*Bolt, error) {
	db, err := bbolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("opening credential db: %w", err)
	}
	return NewBolt(db), nil
}

// Close closes the underlying database.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) Write(s StoredSession) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}
		if err := bkt.Put(keyToken, []byte(s.Token)); err != nil {
			return err
		}
		if err := bkt.Put(keyUser, s.UserJSON); err != nil {
			return err
		}
		if s.RefreshToken != "" {
			if err := bkt.Put(keyRefreshToken, []byte(s.RefreshToken)); err != nil {
				return err
			}
		} else if err := bkt.Delete(keyRefreshToken); err != nil {
			return err
		}
		ts := strconv.FormatInt(s.LoginTimestamp, 10)
		return bkt.Put(keyLoginTimestamp, []byte(ts))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (b *Bolt) Read() (StoredSession, bool, error) {
	var (
		s     StoredSession
		found bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(bucketName))
		if bkt == nil {
			return nil
		}
		token := bkt.Get(keyToken)
		user := bkt.Get(keyUser)
		if token == nil && user == nil {
			return nil
		}
		found = true
		s.Token = string(token)
		s.UserJSON = append([]byte(nil), user...)
		s.RefreshToken = string(bkt.Get(keyRefreshToken))
		if raw := bkt.Get(keyLoginTimestamp); raw != nil {
			// A garbled timestamp reads as zero, which the controller
			// treats as "no timestamp recorded".
			s.LoginTimestamp, _ = strconv.ParseInt(string(raw), 10, 64)
		}
		return nil
	})
	if err != nil {
		return StoredSession{}, false, fmt.Errorf("reading credential db: %w", err)
	}
	return s, found, nil
}

func (b *Bolt) Clear() error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(bucketName))
		if bkt == nil {
			return nil
		}
		for _, k := range [][]byte{keyToken, keyUser, keyRefreshToken, keyLoginTimestamp} {
			if err := bkt.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
