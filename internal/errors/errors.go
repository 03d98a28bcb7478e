// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStaleProspect means the prospect moved on since the caller read it.
	ErrStaleProspect = errors.New("prospect state changed since it was loaded; reload the queue")
	// ErrCatalogConflict means another editor saved the catalog first.
	ErrCatalogConflict = errors.New("campaign catalog was modified by someone else; reload and retry")
	// ErrSendInFlight means another send for the same step holds the claim.
	ErrSendInFlight = errors.New("a send for this step is already in progress")
	// ErrInvalidTransition is returned when the current status forbids the action.
	ErrInvalidTransition = errors.New("transition not allowed from the current status")
)

// ErrProspectNotFound is a typed not-found error
type ErrProspectNotFound struct {
	ProspectID string
}

func (e *ErrProspectNotFound) Error() string {
	return fmt.Sprintf("prospect with ID %s not found", e.ProspectID)
}

func NewProspectNotFound(id string) error {
	return &ErrProspectNotFound{ProspectID: id}
}

// ErrCampaignNotFound is returned when neither the campaign nor a default can be used.
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %s not found", e.CampaignID)
}

func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// OwnershipError blocks a send to a prospect owned by another operator.
type OwnershipError struct {
	ProspectID string
	OwnerName  string
	OperatorID string
}

func (e *OwnershipError) Error() string {
	owner := e.OwnerName
	if owner == "" {
		owner = "another operator"
	}
	return fmt.Sprintf("prospect %s is owned by %s; send cancelled", e.ProspectID, owner)
}

type MissingChannelError struct {
	ProspectID string
	Channel    string
}

func (e *MissingChannelError) Error() string {
	return fmt.Sprintf("no %s contact found for prospect %s", e.Channel, e.ProspectID)
}

type UnresolvedFieldsError struct {
	Fields []string
}

func (e *UnresolvedFieldsError) Error() string {
	return "unresolved merge fields: " + strings.Join(e.Fields, ", ")
}

// TransportError wraps a failure from an external capability (mail, AI).
type TransportError struct {
	Capability string
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Capability, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError means a capability answered in an unexpected shape.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return "could not parse rewrite response: " + e.Reason
}

// DispatchRejectedError is a transport answer with success=false.
type DispatchRejectedError struct {
	Blocked bool
	Message string
}

func (e *DispatchRejectedError) Error() string {
	if e.Message == "" {
		return "send rejected by transport"
	}
	return "send rejected by transport: " + e.Message
}

type CatalogValidationError struct {
	Problems []string
}

func (e *CatalogValidationError) Error() string {
	return "invalid campaign catalog: " + strings.Join(e.Problems, "; ")
}
