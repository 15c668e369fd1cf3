package models

// Decision is the outcome of a permission check. Fields is nil when the
// decision covers every field, either because access was denied or because
// an unrestricted grant applied.
type Decision struct {
	Allowed bool      `json:"allowed"`
	Fields  FieldList `json:"fields,omitempty"`
}

var (
	// DecisionDenied is the all-fields-withheld decision.
	DecisionDenied = Decision{Allowed: false}
	// DecisionAllowedAll allows the permission with no field restriction.
	DecisionAllowedAll = Decision{Allowed: true}
)

// CheckRequest is one element of a bulk permission check.
type CheckRequest struct {
	ResourceID ResourceID `json:"resource_id"`
	Permission Permission `json:"permission"`
}

// GrantOrigin says how a grant reached a decision: directly, or through a
// group the user belongs to.
type GrantOrigin string

const (
	GrantOriginDirect   GrantOrigin = "direct"
	GrantOriginViaGroup GrantOrigin = "group"
)

// EffectiveGrant annotates a grant with how it applies to a particular
// (user, resource) pair: where it came from and how far up the hierarchy
// it sits.
type EffectiveGrant struct {
	Grant  *Grant      `json:"grant"`
	Origin GrantOrigin `json:"origin"`
	// GroupName is set when Origin is group.
	GroupName string `json:"group_name,omitempty"`
	// Depth is the distance from the checked resource to the grant's target:
	// 0 for the resource itself, 1 for its parent, and so on.
	Depth int `json:"depth"`
	// Applicable is false when the grant was gathered but cannot influence
	// the decision, e.g. a non-inherited grant on an ancestor.
	Applicable bool `json:"applicable"`
}

// MatrixCell is one (grantee, permission) cell of a resource's permission
// matrix.
type MatrixCell struct {
	Allowed bool `json:"allowed"`
	// Inherited is true when the deciding grant sits on an ancestor.
	Inherited bool `json:"inherited,omitempty"`
	// Source names the resource the deciding grant is attached to.
	Source          string    `json:"source,omitempty"`
	FieldRestricted bool      `json:"field_restricted,omitempty"`
	Fields          FieldList `json:"fields,omitempty"`
}

// MatrixRow is one grantee's row of a resource's permission matrix. Cells is
// keyed by permission and covers the strength lattice.
type MatrixRow struct {
	GranteeType GranteeType               `json:"grantee_type"`
	GranteeID   ResourceID                `json:"grantee_id"`
	GranteeName string                    `json:"grantee_name"`
	Cells       map[Permission]MatrixCell `json:"cells"`
}

// AncestorLink is one hop of a resource's inheritance chain.
type AncestorLink struct {
	Kind ResourceKind `json:"kind"`
	ID   ResourceID   `json:"id"`
	Name string       `json:"name"`
	// Depth is 0 for the resource itself, increasing towards the root.
	Depth int `json:"depth"`
}

// InheritanceNode is one node of a user's inheritance tree: a resource the
// user can touch, with its decisive annotations and children.
type InheritanceNode struct {
	Kind     ResourceKind       `json:"kind"`
	ID       ResourceID         `json:"id"`
	Name     string             `json:"name"`
	Allowed  []Permission       `json:"allowed,omitempty"`
	Denied   []Permission       `json:"denied,omitempty"`
	Children []*InheritanceNode `json:"children,omitempty"`
}
