package rbac

// Role names. Keep these stable; they are carried in access tokens.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleRep     = "rep"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsKnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleRep:
		return true
	default:
		return false
	}
}
