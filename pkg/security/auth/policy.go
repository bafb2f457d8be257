package auth

import (
	"errors"
	"sort"
	"strings"
)

// ErrUnauthorized is returned when an identity may not reach an endpoint.
var ErrUnauthorized = errors.New("forbidden")

// Decision reasons.
const (
	ReasonOpenbar   = "openbar"
	ReasonAllowed   = "allowed"
	ReasonForbidden = "forbidden"
	ReasonUnknown   = "unknown endpoint"
)

// upstreamTiers maps every forwardable endpoint to the lowest class allowed
// to call it. Endpoints absent from both tier maps are forbidden to everyone.
var upstreamTiers = map[string]Class{
	"api/version": ClassAnonymous,

	"api/tags":            ClassUser,
	"api/show":            ClassUser,
	"api/ps":              ClassUser,
	"api/generate":        ClassUser,
	"api/chat":            ClassUser,
	"api/embed":           ClassUser,
	"api/embeddings":      ClassUser,
	"v1/models":           ClassUser,
	"v1/chat/completions": ClassUser,
	"v1/completions":      ClassUser,
	"v1/embeddings":       ClassUser,

	"api/create": ClassAdmin,
	"api/pull":   ClassAdmin,
	"api/push":   ClassAdmin,
	"api/delete": ClassAdmin,
	"api/copy":   ClassAdmin,
}

// pageTiers guards pages the proxy serves itself. They are never forwarded.
var pageTiers = map[string]Class{
	"info/device": ClassUser,
	"info/ps":     ClassUser,
}

// readOnly lists endpoints whose calls are logged at the lower severity.
var readOnly = map[string]bool{
	"api/tags":    true,
	"api/show":    true,
	"api/ps":      true,
	"api/version": true,
	"v1/models":   true,
}

// AccessDecision is the outcome of one authorization check.
type AccessDecision struct {
	IdentityName string
	Allowed      bool
	Reason       string
}

// Err returns ErrUnauthorized for a denied decision and nil otherwise.
func (d AccessDecision) Err() error {
	if d.Allowed {
		return nil
	}
	return ErrUnauthorized
}

// Policy decides which identities may reach which endpoints.
// A Policy holds no mutable state.
type Policy struct {
	openbar bool
}

// NewPolicy creates a policy. With openbar set every request is allowed.
func NewPolicy(openbar bool) *Policy {
	return &Policy{openbar: openbar}
}

// Authorize decides whether id may call endpoint. The result depends only on
// the identity's class, the endpoint and the openbar flag.
func (p *Policy) Authorize(id Identity, endpoint string) AccessDecision {
	if p.openbar {
		return AccessDecision{IdentityName: OpenbarName, Allowed: true, Reason: ReasonOpenbar}
	}

	minClass, known := tierOf(NormalizeEndpoint(endpoint))
	switch {
	case !known:
		return AccessDecision{IdentityName: id.Name, Allowed: false, Reason: ReasonUnknown}
	case id.Class >= minClass:
		return AccessDecision{IdentityName: id.Name, Allowed: true, Reason: ReasonAllowed}
	default:
		return AccessDecision{IdentityName: id.Name, Allowed: false, Reason: ReasonForbidden}
	}
}

func tierOf(endpoint string) (Class, bool) {
	if c, ok := upstreamTiers[endpoint]; ok {
		return c, true
	}
	c, ok := pageTiers[endpoint]
	return c, ok
}

// IsUpstream reports whether endpoint may be forwarded to the model server.
func IsUpstream(endpoint string) bool {
	_, ok := upstreamTiers[NormalizeEndpoint(endpoint)]
	return ok
}

// Openbar reports whether anonymous access is enabled.
func (p *Policy) Openbar() bool {
	return p.openbar
}

// Endpoints returns the endpoints reachable by the given class, sorted.
func Endpoints(c Class) []string {
	var out []string
	for _, tiers := range []map[string]Class{upstreamTiers, pageTiers} {
		for endpoint, minClass := range tiers {
			if c >= minClass {
				out = append(out, endpoint)
			}
		}
	}
	sort.Strings(out)
	return out
}

// IsReadOnly reports whether endpoint only reads upstream state.
func IsReadOnly(endpoint string) bool {
	return readOnly[NormalizeEndpoint(endpoint)]
}

// NormalizeEndpoint strips the leading slashes from a path.
func NormalizeEndpoint(endpoint string) string {
	return strings.TrimLeft(endpoint, "/")
}
