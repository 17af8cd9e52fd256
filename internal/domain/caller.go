package domain

// Role enumerates global caller roles.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleAgent   Role = "AGENT"
)

// CallerIdentity is the resolved caller handed in by the auth layer. The
// core never authenticates, it only authorizes using this value.
type CallerIdentity struct {
	UserID      int
	Role        Role
	Memberships []GroupMembership
}

// ManagedGroupIDs returns the groups where the caller holds an active
// manager membership.
func (c CallerIdentity) ManagedGroupIDs() []int {
	var ids []int
	for _, m := range c.Memberships {
		if m.Active && m.Role == GroupRoleManager {
			ids = append(ids, m.GroupID)
		}
	}
	return ids
}

// IsMemberOf reports whether the caller has any active membership in the
// given group.
func (c CallerIdentity) IsMemberOf(groupID int) bool {
	for _, m := range c.Memberships {
		if m.Active && m.GroupID == groupID {
			return true
		}
	}
	return false
}
