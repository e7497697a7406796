package identity

// RoleProvider answers privilege and ban checks for placement requests.
// Role membership is owned by an external system; implementations only
// mirror it.
type RoleProvider interface {
	IsPrivileged(userID uint64) bool
	IsBanned(userID uint64) bool
}

// StaticRoles is a RoleProvider backed by fixed ID sets, supplied from
// configuration at startup. Privileged users are never reported banned.
type StaticRoles struct {
	privileged map[uint64]struct{}
	banned     map[uint64]struct{}
}

// NewStaticRoles builds a role provider from moderator and banned ID lists.
func NewStaticRoles(moderators, banned []uint64) *StaticRoles {
	r := &StaticRoles{
		privileged: make(map[uint64]struct{}, len(moderators)),
		banned:     make(map[uint64]struct{}, len(banned)),
	}
	for _, id := range moderators {
		r.privileged[id] = struct{}{}
	}
	for _, id := range banned {
		r.banned[id] = struct{}{}
	}
	return r
}

// IsPrivileged reports whether the user may bypass the cooldown.
func (r *StaticRoles) IsPrivileged(userID uint64) bool {
	_, ok := r.privileged[userID]
	return ok
}

// IsBanned reports whether the user is blocked from placing.
func (r *StaticRoles) IsBanned(userID uint64) bool {
	if r.IsPrivileged(userID) {
		return false
	}
	_, ok := r.banned[userID]
	return ok
}
