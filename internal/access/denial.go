// Package access holds the request-denial taxonomy and the branch read-only guard.
package access

import (
	"errors"
	"net/http"
)

// Kind identifies why a request was denied.
type Kind string

const (
	KindUnauthenticated            Kind = "Unauthenticated"
	KindAccountDeactivated         Kind = "AccountDeactivated"
	KindChurchContextNotFound      Kind = "ChurchContextNotFound"
	KindUnauthorizedBranchAccess   Kind = "UnauthorizedBranchAccess"
	KindInvalidChurchContext       Kind = "InvalidChurchContext"
	KindReadOnlyAccess             Kind = "ReadOnlyAccess"
	KindBranchDataReadOnly         Kind = "BranchDataReadOnly"
	KindModuleNotIncluded          Kind = "ModuleNotIncluded"
	KindTrialOrSubscriptionExpired Kind = "TrialOrSubscriptionExpired"
	KindMemberLimitExceeded        Kind = "MemberLimitExceeded"
	KindIneligiblePlan             Kind = "IneligiblePlan"
	KindInsufficientRole           Kind = "InsufficientRole"
)

// Denial is an expected, user-facing refusal. It is never an unexpected server error.
type Denial struct {
	Kind     Kind
	Status   int
	Message  string
	ReadOnly bool
	Locked   bool
}

func (d *Denial) Error() string {
	return string(d.Kind) + ": " + d.Message
}

// AsDenial unwraps err into a *Denial.
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// IsKind reports whether err is a denial of kind k.
func IsKind(err error, k Kind) bool {
	d, ok := AsDenial(err)
	return ok && d.Kind == k
}

func Unauthenticated(msg string) *Denial {
	return &Denial{Kind: KindUnauthenticated, Status: http.StatusUnauthorized, Message: msg}
}

func AccountDeactivated() *Denial {
	return &Denial{
		Kind:     KindAccountDeactivated,
		Status:   http.StatusForbidden,
		Message:  "Your account has been deactivated. You have read-only access.",
		ReadOnly: true,
	}
}

func ChurchContextNotFound() *Denial {
	return &Denial{Kind: KindChurchContextNotFound, Status: http.StatusNotFound, Message: "Church not found"}
}

func UnauthorizedBranchAccess() *Denial {
	return &Denial{
		Kind:    KindUnauthorizedBranchAccess,
		Status:  http.StatusForbidden,
		Message: "You are not authorized to access this church's data",
	}
}

func InvalidChurchContext() *Denial {
	return &Denial{Kind: KindInvalidChurchContext, Status: http.StatusBadRequest, Message: "Invalid church id"}
}

func ReadOnlyAccess() *Denial {
	return &Denial{
		Kind:     KindReadOnlyAccess,
		Status:   http.StatusForbidden,
		Message:  "Your role has read-only access",
		ReadOnly: true,
	}
}

func BranchDataReadOnly() *Denial {
	return &Denial{
		Kind:     KindBranchDataReadOnly,
		Status:   http.StatusForbidden,
		Message:  "Branch data is read-only",
		ReadOnly: true,
	}
}

func ModuleNotIncluded() *Denial {
	return &Denial{
		Kind:    KindModuleNotIncluded,
		Status:  http.StatusForbidden,
		Message: "This module is not included in your current plan. Upgrade to continue.",
	}
}

// SubscriptionExpired builds the billing lock. trial selects the trial wording.
func SubscriptionExpired(trial bool) *Denial {
	msg := "Your subscription has expired. Renew your subscription to continue making changes."
	if trial {
		msg = "Your free trial has ended. Subscribe to a plan to continue making changes."
	}
	return &Denial{
		Kind:     KindTrialOrSubscriptionExpired,
		Status:   http.StatusPaymentRequired,
		Message:  msg,
		ReadOnly: true,
		Locked:   true,
	}
}

func MemberLimitExceeded() *Denial {
	return &Denial{
		Kind:    KindMemberLimitExceeded,
		Status:  http.StatusForbidden,
		Message: "Member limit reached and the grace period has ended. Upgrade your plan to add more members.",
	}
}

func IneligiblePlan(msg string) *Denial {
	return &Denial{Kind: KindIneligiblePlan, Status: http.StatusBadRequest, Message: msg}
}

func InsufficientRole() *Denial {
	return &Denial{Kind: KindInsufficientRole, Status: http.StatusForbidden, Message: "insufficient permissions"}
}
