/*
Package auth resolves callers to identities and decides which endpoints
they may reach.

# Credential File

Identities are read once at startup from a colon-delimited file:

	# comment
	user:alice:pro_8f1d2c3b4a
	admin:root:pro_0a9b8c7d6e

Each line must have exactly three non-empty fields and a type of "user" or
"admin"; other lines are skipped with a warning. When the file does not
exist a commented template is written and the store starts empty.

# Tiers

Endpoints are grouped by the lowest class allowed to call them:

	anonymous  api/version
	user       + generation, embedding, model listing, info/device, info/ps
	admin      + api/create, api/pull, api/push, api/delete, api/copy

Unknown endpoints are forbidden to everyone. With anonymous access enabled
("openbar") every request is allowed and reported under the name "openbar".

# Usage

	store, err := auth.LoadUsers("users.conf", false, logger)
	policy := auth.NewPolicy(false)

	id := store.Resolve(auth.BearerToken(r))
	decision := policy.Authorize(id, "api/chat")
	if !decision.Allowed {
		// 403
	}

Token values are never logged; use MaskToken when one must be displayed.
*/
package auth
