package main

import (
	"net/http"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
)

type Role string

const (
	RoleClient Role = "client"
	RoleSeller Role = "seller"
	RoleWeb    Role = "web"
)

// Principal is the authenticated caller as asserted by the edge proxy. The
// proxy terminates the token and forwards the verified subject and role as
// headers; the gateway never sees credentials.
type Principal struct {
	Subject string
	Role    Role
}

func principalFromRequest(r *http.Request) (Principal, error) {
	sub := r.Header.Get("X-Auth-Subject")
	role := Role(r.Header.Get("X-Auth-Role"))
	if sub == "" || role == "" {
		return Principal{}, apperr.New(apperr.Unauthorized, "missing_credentials",
			"authentication headers are required")
	}
	return Principal{Subject: sub, Role: role}, nil
}

// requirePrincipal authenticates the request and checks the role in one step.
func requirePrincipal(r *http.Request, role Role) (Principal, error) {
	principal, err := principalFromRequest(r)
	if err != nil {
		return Principal{}, err
	}
	if principal.Role != role {
		return Principal{}, apperr.New(apperr.Forbidden, "role_not_allowed",
			"this surface is not available to the caller's role")
	}
	return principal, nil
}
