package model

import "github.com/google/uuid"

// Principal is the identity attached to a connection attempt. It is
// constructed once by the authenticator and never mutated afterwards.
type Principal struct {
	ID         uuid.UUID
	Username   string
	Privileged bool
	Anonymous  bool
}

// AnonymousPrincipal is attached when no token was supplied or the supplied
// token could not be resolved. It is not an error condition: the protocol
// layer decides what an anonymous connection is allowed to do.
func AnonymousPrincipal() Principal {
	return Principal{Anonymous: true}
}

// UserDetails is the directory projection returned for direct replies.
type UserDetails struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}
