package core

import "github.com/orgchat/orgchat-server/internal/store"

// Identity is the immutable result of a successful handshake. It is owned
// by the connection and discarded on disconnect; re-authentication requires
// a new connection.
type Identity struct {
	UserID         int64
	OrganizationID int64
	Role           store.Role
	DisplayName    string
}

// Admin reports whether the identity carries administrative privilege.
func (i Identity) Admin() bool {
	return i.Role.Admin()
}
