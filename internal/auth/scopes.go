package auth

const (
	ScopeOpenID      = "openid"
	ScopeProfile     = "profile"
	ScopeEmail       = "email"
	ScopeRevOpsRead  = "revops:read"
	ScopeRevOpsWrite = "revops:write"
)

// AllScopes defines the full set of scopes used by the frontend clients
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeRevOpsRead,
	ScopeRevOpsWrite,
}
