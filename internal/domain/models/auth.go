package models

import "github.com/golang-jwt/jwt/v5"

// AccessClaims is the JWT claims structure issued by the identity provider.
type AccessClaims struct {
	jwt.RegisteredClaims        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	Email                string `json:"email"`
	Role                 string `json:"role"`
	IsAnonymous          bool   `json:"is_anonymous"`
}

// GetUserID returns the user ID from the JWT subject claim.
func (c *AccessClaims) GetUserID() string {
	return c.Subject
}

// Actor is the caller of an operation: either an authenticated user or a
// guest known only by its network origin.
type Actor struct {
	UserID         string // empty for guests
	ClientIdentity string // source address, set for every request
}

// GuestActor builds an unauthenticated actor.
func GuestActor(clientIdentity string) Actor {
	return Actor{ClientIdentity: clientIdentity}
}

// UserActor builds an authenticated actor.
func UserActor(userID, clientIdentity string) Actor {
	return Actor{UserID: userID, ClientIdentity: clientIdentity}
}

// IsGuest reports whether the actor is unauthenticated.
func (a Actor) IsGuest() bool {
	return a.UserID == ""
}
