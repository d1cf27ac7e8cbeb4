package wizard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yungbote/mentorbridge/internal/domain/assessment"
)

var (
	ErrStepIncomplete  = errors.New("step incomplete")
	ErrNotVerified     = errors.New("email must be verified before continuing")
	ErrAnswerOutOfStep = errors.New("answer does not belong to the current step")
	ErrInvalidAnswer   = errors.New("invalid answer")
	ErrNoTransition    = errors.New("no transition from this step")
	ErrResendTooSoon   = errors.New("otp resend not available yet")
	ErrInvalidOTP      = errors.New("otp must be 6 digits")
	ErrInvalidEmail    = errors.New("email address is not valid")
)

// IncompleteError lists the required fields still missing on a step.
type IncompleteError struct {
	Step   Step
	Fields []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("step %s incomplete: missing %s", e.Step, strings.Join(e.Fields, ", "))
}

func (e *IncompleteError) Unwrap() error { return ErrStepIncomplete }

// ResendTooSoonError carries what is left of the resend countdown.
type ResendTooSoonError struct {
	SecondsLeft int
}

func (e *ResendTooSoonError) Error() string {
	return fmt.Sprintf("%s: %ds left", ErrResendTooSoon, e.SecondsLeft)
}

func (e *ResendTooSoonError) Unwrap() error { return ErrResendTooSoon }

var validate = validator.New()

func validEmail(s string) bool {
	return validate.Var(strings.TrimSpace(s), "required,email") == nil
}

func validURL(s string) bool {
	return validate.Var(strings.TrimSpace(s), "required,url") == nil
}

// normalizePhone keeps the digits and a single leading '+'.
func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validPhone(s string) bool {
	digits := strings.TrimPrefix(normalizePhone(s), "+")
	return validate.Var(digits, "required,numeric,min=10,max=13") == nil
}

func validOTP(code string) bool {
	return validate.Var(code, "required,numeric,len=6") == nil
}

// Complete reports whether w's current step has every required answer.
func Complete(w *Wizard, cat *Catalog) error {
	return stepComplete(w.Step, w, cat)
}

func stepComplete(step Step, w *Wizard, cat *Catalog) error {
	f := w.Form
	var missing []string
	switch step {
	case StepRole:
		if !f.Role.Valid() {
			missing = append(missing, "role")
		}
	case StepDetails:
		switch {
		case f.Role.AsksDegree() && strings.TrimSpace(f.Degree) == "":
			missing = append(missing, "degree")
		case f.Role.AsksProfileLink() && !validURL(f.ProfileLink):
			missing = append(missing, "profileLink")
		case f.Role.AsksStream() && !cat.HasStream(f.Stream):
			missing = append(missing, "stream")
		}
	case StepContact:
		if strings.TrimSpace(f.FullName) == "" {
			missing = append(missing, "fullName")
		}
		if !validPhone(f.PhoneNumber) {
			missing = append(missing, "phoneNumber")
		}
		if !validEmail(f.Email) {
			missing = append(missing, "email")
		}
		if strings.TrimSpace(f.CityOfResidence) == "" {
			missing = append(missing, "cityOfResidence")
		}
		if len(missing) == 0 && !w.Authenticated() {
			return ErrNotVerified
		}
	case StepJourney:
		if f.Confusion < 1 || f.Confusion > 10 {
			missing = append(missing, "confusion")
		}
		if !assessment.ValidJourney(f.CareerJourney) {
			missing = append(missing, "careerJourney")
		}
	case StepLearning:
		if !cat.HasLearningStyle(f.LearningStyle) {
			missing = append(missing, "learningStyle")
		} else if f.LearningStyle == assessment.LearningStyleOther && strings.TrimSpace(f.LearningStyleOther) == "" {
			missing = append(missing, "learningStyleOther")
		}
	case StepExpertise:
		if !cat.HasExpertise(f.ExpertisePreference) {
			missing = append(missing, "expertisePreference")
		}
	}
	if len(missing) > 0 {
		return &IncompleteError{Step: step, Fields: missing}
	}
	return nil
}
