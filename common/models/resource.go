package models

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

type Resource interface {
	// GetKind returns the unique name/type of the resource e.g. "site" or "grant".
	GetKind() ResourceKind
	// GetCreatedAt returns the Time at which this resource was created.
	GetCreatedAt() Time
	// GetID returns the globally unique ResourceID of the resource.
	GetID() ResourceID
	// Validate the model by checking for required fields, lengths and types etc.
	Validate() error
}

// ResourceRef identifies a resource by kind and id without asserting that it
// exists. Used on the wire and in grant rows where the target may have been
// deleted out from under the grant.
type ResourceRef struct {
	Kind ResourceKind `json:"kind"`
	ID   ResourceID   `json:"id"`
}

func NewResourceRef(id ResourceID) ResourceRef {
	return ResourceRef{Kind: id.Kind(), ID: id}
}

func (r ResourceRef) Validate() error {
	var result *multierror.Error
	if !IsValidResourceKind(r.Kind) {
		result = multierror.Append(result, errors.Errorf("error unknown resource kind %q", r.Kind))
	}
	if !r.ID.Valid() {
		result = multierror.Append(result, errors.New("error resource id must be set"))
	}
	return result.ErrorOrNil()
}
