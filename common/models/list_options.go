package models

const (
	DefaultListLimit = 30
	MaxListLimit     = 100
)

// ListOptions pages list operations. The zero value means the first page at
// the default limit.
type ListOptions struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// EffectiveLimit returns the limit clamped to [1, MaxListLimit], applying the
// default when unset.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		return MaxListLimit
	}
	return o.Limit
}

// AuditEventFilter narrows audit log listings. Zero-valued members do not
// filter.
type AuditEventFilter struct {
	Kind     AuditEventKind `json:"kind,omitempty"`
	ActorID  ResourceID     `json:"actor_id,omitempty"`
	TargetID ResourceID     `json:"target_id,omitempty"`
	Since    *Time          `json:"since,omitempty"`
	Until    *Time          `json:"until,omitempty"`
}
