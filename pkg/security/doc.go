/*
Package security groups the proxy's access-control code.

# Authentication and Authorization

The auth subpackage resolves bearer tokens to identities from the
credential file and decides, per identity class, which upstream endpoints
a caller may reach:

	users, err := auth.LoadUsers("users.conf", false, logger)
	if err != nil {
		return err
	}
	policy := auth.NewPolicy(false)

	id := users.Resolve(auth.BearerToken(r))
	if decision := policy.Authorize(id, "api/chat"); !decision.Allowed {
		// 403
	}

With anonymous access enabled every caller resolves to the openbar
identity and every endpoint is allowed.

# Credential Watch

UsersWatcher notices edits to the credential file and logs that a restart
is needed; the running store is never reloaded.
*/
package security
