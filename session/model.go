package session

// Kinds recognised by the engine. Any non-empty kind is accepted by the store.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

const (
	fieldTokenID   = "jti"
	fieldExpiresAt = "exp"
)

// Record is the stored state of one (username, kind) session.
type Record struct {
	Username  string
	Kind      string
	TokenID   string
	ExpiresAt int64
	Meta      map[string]string
}

// Entry is one token id to record for a user, as written by SavePair and
// RotatePair.
type Entry struct {
	Kind      string
	TokenID   string
	ExpiresAt int64
}
