// Package moderation decides whether an account may use member-only features.
package moderation

import (
	"tdh/internal/models"
	"tdh/internal/observability"
)

// Reason explains a gate decision.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonPendingApproval Reason = "pending_approval"
	ReasonNotAdmin        Reason = "not_admin"
	ReasonNotApproved     Reason = "not_approved"
)

// Decision is the outcome of evaluating an account against the gate.
type Decision struct {
	Reason Reason
}

// Allowed reports whether the operation may proceed.
func (d Decision) Allowed() bool {
	return d.Reason == ReasonNone
}

// Err converts a denial into the error returned to callers. It is nil when allowed.
func (d Decision) Err() error {
	switch d.Reason {
	case ReasonNone:
		return nil
	case ReasonUnauthenticated:
		return models.NewUnauthorizedError("Authentication required")
	case ReasonPendingApproval:
		return models.NewPendingApprovalError()
	case ReasonNotAdmin:
		return models.NewForbiddenError("Administrator access required")
	default:
		return models.NewForbiddenError("Account is not allowed to perform this action")
	}
}

func deny(r Reason) Decision {
	observability.ModerationDenials.WithLabelValues(string(r)).Inc()
	return Decision{Reason: r}
}

// Evaluate applies the membership rules in order: an identity is required,
// pending accounts are held back, administrators always pass.
func Evaluate(account *models.User) Decision {
	if account == nil || account.ID == 0 {
		return deny(ReasonUnauthenticated)
	}
	if account.IsAdmin {
		return Decision{}
	}
	switch account.Status {
	case models.StatusApproved:
		return Decision{}
	case models.StatusPending:
		return deny(ReasonPendingApproval)
	default:
		return deny(ReasonNotApproved)
	}
}

// RequireAdmin allows only administrator accounts.
func RequireAdmin(account *models.User) Decision {
	if account == nil || account.ID == 0 {
		return deny(ReasonUnauthenticated)
	}
	if !account.IsAdmin {
		return deny(ReasonNotAdmin)
	}
	return Decision{}
}

// RequireIdentity allows any signed-in account, approved or not.
func RequireIdentity(account *models.User) Decision {
	if account == nil || account.ID == 0 {
		return deny(ReasonUnauthenticated)
	}
	return Decision{}
}
