// Package identity holds the principal, role and session types shared by the
// authentication and authorization layers.
package identity

import (
	"encoding/json"
	"sort"
	"strings"
)

// Family discriminates the kind of authority a role carries.
type Family uint8

const (
	FamilySuperAdmin Family = iota + 1
	FamilyAdmin
	FamilyManager
	FamilyEmployee
	FamilySender
)

// Module names the product area a role applies to. SuperAdmin has none.
type Module uint8

const (
	ModuleNone Module = iota
	ModulePeople
	ModuleLeave
	ModuleAttendance
	ModuleESign
	ModuleInvoice
)

var moduleNames = map[Module]string{
	ModulePeople:     "PEOPLE",
	ModuleLeave:      "LEAVE",
	ModuleAttendance: "ATTENDANCE",
	ModuleESign:      "ESIGN",
	ModuleInvoice:    "INVOICE",
}

var familyNames = map[Family]string{
	FamilyAdmin:    "ADMIN",
	FamilyManager:  "MANAGER",
	FamilyEmployee: "EMPLOYEE",
	FamilySender:   "SENDER",
}

// Role is a single grant held by a principal. The zero value is not a valid role.
type Role struct {
	Family Family
	Module Module
}

var (
	SuperAdmin = Role{Family: FamilySuperAdmin}

	PeopleAdmin     = Role{FamilyAdmin, ModulePeople}
	LeaveAdmin      = Role{FamilyAdmin, ModuleLeave}
	AttendanceAdmin = Role{FamilyAdmin, ModuleAttendance}
	ESignAdmin      = Role{FamilyAdmin, ModuleESign}
	InvoiceAdmin    = Role{FamilyAdmin, ModuleInvoice}

	PeopleManager     = Role{FamilyManager, ModulePeople}
	LeaveManager      = Role{FamilyManager, ModuleLeave}
	AttendanceManager = Role{FamilyManager, ModuleAttendance}
	InvoiceManager    = Role{FamilyManager, ModuleInvoice}

	PeopleEmployee     = Role{FamilyEmployee, ModulePeople}
	LeaveEmployee      = Role{FamilyEmployee, ModuleLeave}
	AttendanceEmployee = Role{FamilyEmployee, ModuleAttendance}
	ESignEmployee      = Role{FamilyEmployee, ModuleESign}
	InvoiceEmployee    = Role{FamilyEmployee, ModuleInvoice}

	ESignSender = Role{FamilySender, ModuleESign}
)

// AllRoles lists the closed set of roles understood by the engine.
var AllRoles = []Role{
	SuperAdmin,
	PeopleAdmin, LeaveAdmin, AttendanceAdmin, ESignAdmin, InvoiceAdmin,
	PeopleManager, LeaveManager, AttendanceManager, InvoiceManager,
	PeopleEmployee, LeaveEmployee, AttendanceEmployee, ESignEmployee, InvoiceEmployee,
	ESignSender,
}

var rolesByName = func() map[string]Role {
	out := make(map[string]Role, len(AllRoles))
	for _, r := range AllRoles {
		out[r.String()] = r
	}
	return out
}()

// String returns the wire name used by the identity provider, e.g. ROLE_LEAVE_MANAGER.
func (r Role) String() string {
	if r.Family == FamilySuperAdmin {
		return "ROLE_SUPER_ADMIN"
	}
	module, ok := moduleNames[r.Module]
	family, ok2 := familyNames[r.Family]
	if !ok || !ok2 {
		return ""
	}
	return "ROLE_" + module + "_" + family
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	_, ok := rolesByName[r.String()]
	return ok
}

// ParseRole maps a wire role name to a Role. The ROLE_ prefix is optional.
func ParseRole(name string) (Role, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return Role{}, false
	}
	if !strings.HasPrefix(name, "ROLE_") {
		name = "ROLE_" + name
	}
	r, ok := rolesByName[name]
	return r, ok
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// RoleSet is an unordered set of roles.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from roles, skipping invalid ones.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if r.Valid() {
			set[r] = struct{}{}
		}
	}
	return set
}

// ParseRoleSet converts wire names into a set. Unknown names are returned
// separately and never grant anything.
func ParseRoleSet(names []string) (RoleSet, []string) {
	set := make(RoleSet, len(names))
	var unknown []string
	for _, n := range names {
		r, ok := ParseRole(n)
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		set[r] = struct{}{}
	}
	return set, unknown
}

// Has reports membership.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// HasAny reports whether s holds at least one of roles.
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Slice returns the roles sorted by wire name.
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Names returns the sorted wire names.
func (s RoleSet) Names() []string {
	roles := s.Slice()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.String()
	}
	return out
}

// MarshalJSON encodes the set as a sorted array of wire names.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes an array of wire names, dropping unknown entries.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s, _ = ParseRoleSet(names)
	return nil
}
