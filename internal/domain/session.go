package domain

// Session is the UI state of the single dashboard session.
type Session struct {
	Authenticated bool         `json:"authenticated"`
	User          *UserProfile `json:"user,omitempty"`
	Period        *Period      `json:"period"`
	View          View         `json:"view"`
	Theme         Theme        `json:"theme"`
	Loading       bool         `json:"loading"`
	Remote        bool         `json:"remote"` // a hosted-auth session is attached
}

// Clone returns a copy that shares no pointers with s.
func (s Session) Clone() Session {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	if s.Period != nil {
		p := *s.Period
		out.Period = &p
	}
	return out
}

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued API token and the logged-in user.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"`
	User        UserProfile `json:"user"`
}
