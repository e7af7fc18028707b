package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleBuyer         = "buyer"
	RoleSeller        = "seller"
	RoleDeliveryAgent = "delivery_agent"
	RoleModerator     = "moderator"
	RoleSuperAdmin    = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsModerator reports whether the role may resolve escrow disputes.
func IsModerator(role string) bool { return role == RoleModerator || role == RoleSuperAdmin }
