package enums

import "fmt"

// CommissionRole identifies which payee a commission row belongs to.
type CommissionRole string

const (
	CommissionRoleProducer   CommissionRole = "producer"
	CommissionRoleCoProducer CommissionRole = "coproducer"
	CommissionRoleAffiliate  CommissionRole = "affiliate"
	CommissionRolePlatform   CommissionRole = "platform"
)

var validCommissionRoles = []CommissionRole{
	CommissionRoleProducer,
	CommissionRoleCoProducer,
	CommissionRoleAffiliate,
	CommissionRolePlatform,
}

// String implements fmt.Stringer.
func (r CommissionRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known CommissionRole.
func (r CommissionRole) IsValid() bool {
	for _, candidate := range validCommissionRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseCommissionRole converts raw input into a CommissionRole.
func ParseCommissionRole(value string) (CommissionRole, error) {
	for _, candidate := range validCommissionRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission role %q", value)
}
