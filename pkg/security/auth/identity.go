package auth

import "strings"

// Class is the access tier of an identity. Higher classes are granted a
// superset of the endpoints of lower classes.
type Class int

const (
	// ClassAnonymous is any caller without a recognized token.
	ClassAnonymous Class = iota
	// ClassUser is a registered user.
	ClassUser
	// ClassAdmin is a registered administrator.
	ClassAdmin
)

// OpenbarName is the identity name reported when anonymous access is enabled.
const OpenbarName = "openbar"

// String returns the credential-file spelling of the class.
func (c Class) String() string {
	switch c {
	case ClassUser:
		return "user"
	case ClassAdmin:
		return "admin"
	default:
		return "anonymous"
	}
}

// ParseClass parses a credential-file class. Only "user" and "admin" are
// accepted; anonymous is never written in the file.
func ParseClass(s string) (Class, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return ClassUser, true
	case "admin":
		return ClassAdmin, true
	default:
		return ClassAnonymous, false
	}
}

// Identity is a caller as resolved from its bearer token.
type Identity struct {
	Class Class
	Name  string
	Token string
}

// Anonymous is the identity of callers without a recognized token.
var Anonymous = Identity{Class: ClassAnonymous, Name: "anonymous"}

// Openbar is the identity every caller receives when anonymous access is enabled.
var Openbar = Identity{Class: ClassAnonymous, Name: OpenbarName}
