package models

// Identity is the authenticated caller as vouched for by the session token.
type Identity struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   int    `json:"avatar"`
}

// DisplayName prefers the username, as shown to opponents.
func (i Identity) DisplayName() string {
	if i.Username != "" {
		return i.Username
	}
	return i.Name
}
