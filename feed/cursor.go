package feed

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

/*

Cursor pins a position in the activity stream: the activity time of the last
item of the previous page plus its tie-break keys. Keyset based, so inserts
that land after the cursor position never shift or repeat items; an activity
backdated to before an already-issued cursor can be missed, which is an
accepted limitation of the scheme.

Serialized as URL-safe base64 over a small JSON payload, opaque to clients.

*/

type Cursor struct {
	ActivityAt  time.Time
	PostId      string
	SparkUserId string
}

// The timestamp travels as unix nanoseconds so no precision is lost on the
// round trip; rows that differ only below the database's own timestamp
// precision still compare the same way on both sides of the token.
type cursorWire struct {
	T int64  `json:"t"`
	P string `json:"p"`
	S string `json:"s,omitempty"`
}

// Encode serializes the cursor into an opaque token.
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(cursorWire{
		T: c.ActivityAt.UnixNano(),
		P: c.PostId,
		S: c.SparkUserId,
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a client supplied token. An empty token means "from the
// top" and yields a nil cursor.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, errors.Wrap(ErrBadCursor, err.Error())
	}
	var wire cursorWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, errors.Wrap(ErrBadCursor, err.Error())
	}
	if wire.P == "" {
		return nil, ErrBadCursor
	}
	return &Cursor{
		ActivityAt:  time.Unix(0, wire.T).UTC(),
		PostId:      wire.P,
		SparkUserId: wire.S,
	}, nil
}

// After reports whether the activity is strictly after the cursor position in
// feed order (descending by time, then post id, then spark attribution).
func (c *Cursor) After(a Activity) bool {
	if c == nil {
		return true
	}
	anchor := Activity{PostId: c.PostId, SparkUserId: c.SparkUserId, ActivityAt: c.ActivityAt}
	return anchor.Before(a)
}
