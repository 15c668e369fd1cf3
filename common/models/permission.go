package models

import (
	"database/sql/driver"
	"fmt"
)

// Permission names an operation a grantee may be allowed (or denied) on a
// resource. Permissions other than member form a strength lattice; see
// SatisfyingPermissions.
type Permission string

const (
	// PermissionMember marks group membership. It is meaningful only on
	// resources of kind group and sits outside the strength lattice.
	PermissionMember Permission = "member"
	PermissionRead   Permission = "read"
	PermissionWrite  Permission = "write"
	PermissionDelete Permission = "delete"
	PermissionCreate Permission = "create"
	PermissionManage Permission = "manage"
)

// permissionClosure maps each permission to the set of permissions that
// satisfy a request for it. The lattice is a static partial order: manage
// implies create, delete, write and read; write, delete and create each imply
// read. member is checked exactly and never expanded.
// Adding a permission later means editing only this table.
var permissionClosure = map[Permission][]Permission{
	PermissionRead:   {PermissionRead, PermissionWrite, PermissionDelete, PermissionCreate, PermissionManage},
	PermissionWrite:  {PermissionWrite, PermissionManage},
	PermissionDelete: {PermissionDelete, PermissionManage},
	PermissionCreate: {PermissionCreate, PermissionManage},
	PermissionManage: {PermissionManage},
	PermissionMember: {PermissionMember},
}

// fieldedPermissions are the permissions for which a grant may carry a field
// list restricting the operation to a subset of fields.
var fieldedPermissions = map[Permission]bool{
	PermissionRead:  true,
	PermissionWrite: true,
}

// SatisfyingPermissions returns the permissions whose grants are eligible to
// satisfy a request for perm, per the strength lattice. Returns nil for an
// unknown permission.
func SatisfyingPermissions(perm Permission) []Permission {
	closure, ok := permissionClosure[perm]
	if !ok {
		return nil
	}
	result := make([]Permission, len(closure))
	copy(result, closure)
	return result
}

// LatticePermissions returns the permissions that participate in the strength
// lattice, in decision-matrix order.
func LatticePermissions() []Permission {
	return []Permission{PermissionRead, PermissionWrite, PermissionDelete, PermissionCreate, PermissionManage}
}

// IsValidPermission returns true if perm names a known permission.
func IsValidPermission(perm Permission) bool {
	_, ok := permissionClosure[perm]
	return ok
}

// SupportsFields returns true if a grant for this permission may carry a
// field list.
func (p Permission) SupportsFields() bool {
	return fieldedPermissions[p]
}

func (p Permission) String() string {
	return string(p)
}

func (p *Permission) Scan(src interface{}) error {
	if src == nil {
		*p = ""
		return nil
	}
	str, ok := src.(string)
	if !ok {
		return fmt.Errorf("error expected string: %#v", src)
	}
	*p = Permission(str)
	return nil
}

func (p Permission) Value() (driver.Value, error) {
	return string(p), nil
}
