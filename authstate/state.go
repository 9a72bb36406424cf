// Package authstate holds the canonical in-memory session state and the
// pure transition function that folds auth events into new snapshots.
package authstate

// Role tags recognized by the gateway. The backend also issues display-only
// roles (TEACHER, CEO) that pass through untouched; authorization decisions
// only ever look at ADMIN and SUPER_ADMIN.
const (
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleTeacher    = "TEACHER"
	RoleCEO        = "CEO"
)

// User is the authenticated principal as reported by the login endpoint.
// Replaced wholesale on every login, never mutated in place.
type User struct {
	ID         int64   `json:"id"`
	Username   string  `json:"username"`
	Role       string  `json:"role"`
	BranchID   *int64  `json:"branchId"`
	BranchName *string `json:"branchName"`
}

// Session is a point-in-time snapshot of the operator's session.
//
// IsAuthenticated is derived: it is recomputed from User and Token on every
// transition and is never set independently, so it cannot drift.
type Session struct {
	User            *User
	Token           string
	IsAuthenticated bool
	Loading         bool
	Error           string
	Initialized     bool
}

// Event is a state-machine input. Implementations are the only values
// Reduce understands; anything else leaves the state unchanged.
type Event interface {
	authEvent()
}

// InitStart marks the beginning of startup session recovery.
type InitStart struct{}

// InitPayload carries the recovered user/token pair for InitComplete.
type InitPayload struct {
	User  *User
	Token string
}

// InitComplete ends startup recovery. A nil payload means no session was
// recovered and the gateway starts unauthenticated.
type InitComplete struct {
	Payload *InitPayload
}

// LoginStart marks the beginning of a login attempt.
type LoginStart struct{}

// LoginSuccess installs the freshly authenticated user and token.
type LoginSuccess struct {
	User  *User
	Token string
}

// LoginFailure records the user-facing message of a failed login attempt.
type LoginFailure struct {
	Message string
}

// Logout drops the session. Loading and Initialized are left alone so a
// forced logout during recovery does not mask the recovery outcome.
type Logout struct{}

// SetUser installs a user/token pair out of band. No current flow dispatches
// it, but external callers holding the machine may.
type SetUser struct {
	User  *User
	Token string
}

func (InitStart) authEvent()    {}
func (InitComplete) authEvent() {}
func (LoginStart) authEvent()   {}
func (LoginSuccess) authEvent() {}
func (LoginFailure) authEvent() {}
func (Logout) authEvent()       {}
func (SetUser) authEvent()      {}

// Reduce computes the next session snapshot from the current one and an
// event. It is pure: no I/O, no side effects, no mutation of s.
func Reduce(s Session, ev Event) Session {
	switch ev := ev.(type) {
	case InitStart:
		s.Loading = true
		s.Initialized = false
	case InitComplete:
		if ev.Payload != nil {
			s.User = ev.Payload.User
			s.Token = ev.Payload.Token
		} else {
			s.User = nil
			s.Token = ""
		}
		s.IsAuthenticated = s.User != nil && s.Token != ""
		s.Loading = false
		s.Initialized = true
		s.Error = ""
	case LoginStart:
		s.Loading = true
		s.Error = ""
	case LoginSuccess:
		s.Loading = false
		s.User = ev.User
		s.Token = ev.Token
		s.IsAuthenticated = s.User != nil && s.Token != ""
		s.Error = ""
	case LoginFailure:
		s.Loading = false
		s.User = nil
		s.Token = ""
		s.IsAuthenticated = false
		s.Error = ev.Message
	case Logout:
		s.User = nil
		s.Token = ""
		s.IsAuthenticated = false
		s.Error = ""
	case SetUser:
		s.User = ev.User
		s.Token = ev.Token
		s.IsAuthenticated = s.User != nil && s.Token != ""
		s.Loading = false
	}
	return s
}
