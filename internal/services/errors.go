package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/yungbote/mentorbridge/internal/checkout"
	"github.com/yungbote/mentorbridge/internal/clients/backend"
	"github.com/yungbote/mentorbridge/internal/data/stores"
	"github.com/yungbote/mentorbridge/internal/domain/assessment"
	"github.com/yungbote/mentorbridge/internal/platform/apierr"
	"github.com/yungbote/mentorbridge/internal/wizard"
)

var (
	ErrUnauthenticated = errors.New("sign in required")
	ErrStudentRequired = errors.New("only students can purchase")
	ErrNotApproved     = errors.New("this offering is not open for purchase")
	ErrPhoneRequired   = errors.New("a contact phone number is required")
	ErrNoExperts       = errors.New("no matching experts were returned")
	ErrWizardNotFound  = errors.New("wizard not found")
)

// apiError classifies err into the taxonomy handlers answer with.
func apiError(err error) error {
	if err == nil {
		return nil
	}
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}

	switch {
	case errors.Is(err, stores.ErrBusy):
		return apierr.Conflict("busy", err)
	case errors.Is(err, ErrWizardNotFound), errors.Is(err, stores.ErrNotFound):
		return apierr.NotFound("not_found", err)
	case errors.Is(err, ErrUnauthenticated):
		return apierr.Unauthenticated(err)
	case errors.Is(err, ErrStudentRequired):
		return apierr.Forbidden("student_required", err)
	case errors.Is(err, ErrNotApproved):
		return apierr.Conflict("not_approved", err)
	case errors.Is(err, ErrPhoneRequired):
		return apierr.Conflict("phone_required", err)

	case errors.Is(err, wizard.ErrNotVerified):
		return apierr.Validation("email_not_verified", err)
	case errors.Is(err, wizard.ErrStepIncomplete):
		return apierr.Validation("step_incomplete", err)
	case errors.Is(err, wizard.ErrAnswerOutOfStep):
		return apierr.Validation("answer_out_of_step", err)
	case errors.Is(err, wizard.ErrNoTransition):
		return apierr.Validation("no_transition", err)
	case errors.Is(err, wizard.ErrInvalidEmail):
		return apierr.Validation("invalid_email", err)
	case errors.Is(err, wizard.ErrInvalidOTP):
		return apierr.Validation("invalid_otp", err)
	case errors.Is(err, wizard.ErrResendTooSoon):
		return apierr.New(http.StatusTooManyRequests, "otp_resend_too_soon", err)
	case errors.Is(err, wizard.ErrInvalidAnswer):
		return apierr.Validation("invalid_answer", err)

	case errors.Is(err, assessment.ErrUnmappedJourney):
		return apierr.Integrity("unmapped_career_journey", err)
	case errors.Is(err, ErrNoExperts):
		return apierr.Integrity("no_experts", err)

	case errors.Is(err, checkout.ErrOrderRejected):
		return apierr.Transport("order_rejected", err)
	case errors.Is(err, checkout.ErrScriptLoad):
		return apierr.Transport("checkout_unavailable", err)
	case errors.Is(err, checkout.ErrUnknownOrder):
		return apierr.NotFound("unknown_order", err)
	case errors.Is(err, checkout.ErrAlreadyDelivered):
		return apierr.Conflict("already_delivered", err)

	case errors.Is(err, context.DeadlineExceeded):
		return apierr.Transport("backend_timeout", err)
	}

	if status := backend.StatusCode(err); status != 0 {
		switch {
		case status == http.StatusUnauthorized:
			return apierr.Unauthenticated(err)
		case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
			return apierr.Validation("backend_rejected", err)
		case status == http.StatusNotFound:
			return apierr.NotFound("not_found", err)
		default:
			return apierr.Transport("backend_error", err)
		}
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return apierr.Transport("backend_unreachable", err)
	}
	return err
}
