package session

import "github.com/ogabek/istudy-gate/authstate"

// loginPayload is the login/refresh response body. The backend has shipped
// several shapes over time: the token may sit at the top level as "token" or
// "accessToken", or nested one level down under "data". User fields always
// sit next to whichever token field is present.
type loginPayload struct {
	Token        string  `json:"token"`
	AccessToken  string  `json:"accessToken"`
	UserID       int64   `json:"userId"`
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	Role         string  `json:"role"`
	BranchID     *int64  `json:"branchId"`
	BranchName   *string `json:"branchName"`
	RefreshToken string  `json:"refreshToken"`

	Data *loginPayload `json:"data"`
}

// tokenExtractor probes one candidate location for the bearer token. On a
// hit it returns the token and the object that carries the sibling user
// fields.
type tokenExtractor func(p *loginPayload) (token string, container *loginPayload, ok bool)

// tokenExtractors is the precedence order: token, accessToken, data.token,
// data.accessToken. The first hit wins.
var tokenExtractors = []tokenExtractor{
	func(p *loginPayload) (string, *loginPayload, bool) {
		return p.Token, p, p.Token != ""
	},
	func(p *loginPayload) (string, *loginPayload, bool) {
		return p.AccessToken, p, p.AccessToken != ""
	},
	func(p *loginPayload) (string, *loginPayload, bool) {
		if p.Data == nil {
			return "", nil, false
		}
		return p.Data.Token, p.Data, p.Data.Token != ""
	},
	func(p *loginPayload) (string, *loginPayload, bool) {
		if p.Data == nil {
			return "", nil, false
		}
		return p.Data.AccessToken, p.Data, p.Data.AccessToken != ""
	},
}

// extractToken walks the extractor chain over the response payload.
func extractToken(p *loginPayload) (string, *loginPayload, bool) {
	for _, extract := range tokenExtractors {
		if token, container, ok := extract(p); ok {
			return token, container, true
		}
	}
	return "", nil, false
}

// userFromPayload builds the principal from the token's container object.
// The numeric id arrives as "userId" on newer backends and "id" on older
// ones.
func userFromPayload(p *loginPayload) *authstate.User {
	id := p.UserID
	if id == 0 {
		id = p.ID
	}
	return &authstate.User{
		ID:         id,
		Username:   p.Username,
		Role:       p.Role,
		BranchID:   p.BranchID,
		BranchName: p.BranchName,
	}
}
