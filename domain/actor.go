package domain

import "strings"

// Role identifies what an actor is allowed to do against the ledger.
type Role string

const (
	RoleProducer          Role = "producer"
	RolePlantOperator     Role = "plant-operator"
	RoleWarehouseOperator Role = "warehouse-operator"
	RoleAdministrator     Role = "administrator"
)

// ParseRole accepts the canonical role names plus the legacy spellings
// (farmer, plant_manager, warehouse_manager, admin).
func ParseRole(value string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "producer", "farmer":
		return RoleProducer, nil
	case "plant-operator", "plant_operator", "plant_manager":
		return RolePlantOperator, nil
	case "warehouse-operator", "warehouse_operator", "warehouse_manager":
		return RoleWarehouseOperator, nil
	case "administrator", "admin":
		return RoleAdministrator, nil
	default:
		return "", Validationf("unknown role %q", value)
	}
}

// Capability is a single permission checked at the ledger boundary.
type Capability string

const (
	CapRegisterLot      Capability = "lot:register"
	CapViewAllLots      Capability = "lot:view-all"
	CapAppendEvent      Capability = "event:append"
	CapManageFacilities Capability = "facility:manage"
	CapViewFacilities   Capability = "facility:view"
)

var roleCapabilities = map[Role][]Capability{
	RoleProducer: {CapRegisterLot},
	RolePlantOperator: {
		CapViewAllLots, CapAppendEvent, CapManageFacilities, CapViewFacilities,
	},
	RoleWarehouseOperator: {
		CapViewAllLots, CapAppendEvent, CapManageFacilities, CapViewFacilities,
	},
	RoleAdministrator: {
		CapViewAllLots, CapAppendEvent, CapManageFacilities, CapViewFacilities,
	},
}

// Actor is the opaque caller identity handed in by the auth collaborator.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Can reports whether the actor's role grants the capability.
func (a Actor) Can(c Capability) bool {
	for _, granted := range roleCapabilities[a.Role] {
		if granted == c {
			return true
		}
	}
	return false
}

// Require returns ErrUnauthorized for an anonymous actor and a FORBIDDEN
// error when the role lacks the capability.
func (a Actor) Require(c Capability) error {
	if a.ID == "" {
		return ErrUnauthorized
	}
	if !a.Can(c) {
		return Forbiddenf("role %q may not perform %s", a.Role, c)
	}
	return nil
}

func (a Actor) CanRegisterLot() bool { return a.Can(CapRegisterLot) }
func (a Actor) CanAppendEvent() bool { return a.Can(CapAppendEvent) }
