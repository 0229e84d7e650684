package enums

// UserRole scopes API access. Staff and admins reach the backoffice.
type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleStaff    UserRole = "staff"
	RoleAdmin    UserRole = "admin"
)

var validRoles = []UserRole{RoleCustomer, RoleStaff, RoleAdmin}

func (r UserRole) String() string { return string(r) }

func (r UserRole) IsValid() bool {
	_, err := ParseUserRole(string(r))
	return err == nil
}

// CanOperateVenue reports whether the role may manage venue orders.
func (r UserRole) CanOperateVenue() bool {
	return r == RoleStaff || r == RoleAdmin
}

func ParseUserRole(value string) (UserRole, error) {
	return parse(value, validRoles, "user role")
}
