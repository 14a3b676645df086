package enums

// ActorRole identifies who a bearer token represents.
type ActorRole string

const (
	ActorRoleSeller ActorRole = "seller"
	ActorRoleAdmin  ActorRole = "admin"
)

func (r ActorRole) IsValid() bool {
	switch r {
	case ActorRoleSeller, ActorRoleAdmin:
		return true
	}
	return false
}

func (r ActorRole) String() string {
	return string(r)
}
