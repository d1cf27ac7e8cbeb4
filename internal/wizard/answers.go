package wizard

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/mentorbridge/internal/domain/assessment"
)

// Answers is a partial update from the browser; nil fields are left alone.
// Expertise is not here: picking it is a transition, see Machine.Pick.
type Answers struct {
	Role               *string `json:"role,omitempty"`
	Degree             *string `json:"degree,omitempty"`
	Stream             *string `json:"stream,omitempty"`
	ProfileLink        *string `json:"profileLink,omitempty"`
	FullName           *string `json:"fullName,omitempty"`
	PhoneNumber        *string `json:"phoneNumber,omitempty"`
	Email              *string `json:"email,omitempty"`
	CityOfResidence    *string `json:"cityOfResidence,omitempty"`
	Confusion          *int    `json:"confusion,omitempty"`
	CareerJourney      *string `json:"careerJourney,omitempty"`
	LearningStyle      *string `json:"learningStyle,omitempty"`
	LearningStyleOther *string `json:"learningStyleOther,omitempty"`
}

func (a Answers) fields() map[string]Step {
	out := map[string]Step{}
	set := func(ok bool, name string, step Step) {
		if ok {
			out[name] = step
		}
	}
	set(a.Role != nil, "role", StepRole)
	set(a.Degree != nil, "degree", StepDetails)
	set(a.Stream != nil, "stream", StepDetails)
	set(a.ProfileLink != nil, "profileLink", StepDetails)
	set(a.FullName != nil, "fullName", StepContact)
	set(a.PhoneNumber != nil, "phoneNumber", StepContact)
	set(a.Email != nil, "email", StepContact)
	set(a.CityOfResidence != nil, "cityOfResidence", StepContact)
	set(a.Confusion != nil, "confusion", StepJourney)
	set(a.CareerJourney != nil, "careerJourney", StepJourney)
	set(a.LearningStyle != nil, "learningStyle", StepLearning)
	set(a.LearningStyleOther != nil, "learningStyleOther", StepLearning)
	return out
}

// Apply writes answers for the wizard's current step only. Earlier answers are
// never erased except when the step that asks them is re-entered.
func Apply(w *Wizard, a Answers, cat *Catalog, now time.Time) error {
	fields := a.fields()
	if len(fields) == 0 {
		return fmt.Errorf("%w: no answers", ErrInvalidAnswer)
	}
	for name, step := range fields {
		if step != w.Step {
			return fmt.Errorf("%w: %s is asked at step %s, wizard is at %s", ErrAnswerOutOfStep, name, step, w.Step)
		}
	}

	f := w.Form
	if a.Role != nil {
		role := assessment.Role(strings.TrimSpace(*a.Role))
		if !role.Valid() {
			return fmt.Errorf("%w: unknown role %q", ErrInvalidAnswer, *a.Role)
		}
		f.Role = role
		if !role.AsksDegree() {
			f.Degree = ""
		}
		if !role.AsksStream() {
			f.Stream = ""
		}
		if !role.AsksProfileLink() {
			f.ProfileLink = ""
		}
	}
	if a.Degree != nil {
		if !f.Role.AsksDegree() {
			return fmt.Errorf("%w: degree is not asked for role %q", ErrInvalidAnswer, f.Role)
		}
		f.Degree = strings.TrimSpace(*a.Degree)
	}
	if a.Stream != nil {
		if !f.Role.AsksStream() {
			return fmt.Errorf("%w: stream is not asked for role %q", ErrInvalidAnswer, f.Role)
		}
		s := strings.TrimSpace(*a.Stream)
		if s != "" && !cat.HasStream(s) {
			return fmt.Errorf("%w: unknown stream %q", ErrInvalidAnswer, s)
		}
		f.Stream = s
	}
	if a.ProfileLink != nil {
		if !f.Role.AsksProfileLink() {
			return fmt.Errorf("%w: profile link is not asked for role %q", ErrInvalidAnswer, f.Role)
		}
		f.ProfileLink = strings.TrimSpace(*a.ProfileLink)
	}
	if a.FullName != nil {
		f.FullName = strings.TrimSpace(*a.FullName)
	}
	if a.PhoneNumber != nil {
		f.PhoneNumber = normalizePhone(*a.PhoneNumber)
	}
	if a.Email != nil {
		f.Email = strings.ToLower(strings.TrimSpace(*a.Email))
	}
	if a.CityOfResidence != nil {
		f.CityOfResidence = strings.TrimSpace(*a.CityOfResidence)
	}
	if a.Confusion != nil {
		if *a.Confusion < 1 || *a.Confusion > 10 {
			return fmt.Errorf("%w: confusion must be between 1 and 10", ErrInvalidAnswer)
		}
		f.Confusion = *a.Confusion
	}
	if a.CareerJourney != nil {
		if !assessment.ValidJourney(*a.CareerJourney) {
			return fmt.Errorf("%w: unknown career journey %q", ErrInvalidAnswer, *a.CareerJourney)
		}
		f.CareerJourney = *a.CareerJourney
	}
	if a.LearningStyle != nil {
		style := strings.TrimSpace(*a.LearningStyle)
		if !cat.HasLearningStyle(style) {
			return fmt.Errorf("%w: unknown learning style %q", ErrInvalidAnswer, style)
		}
		f.LearningStyle = style
		if style != assessment.LearningStyleOther {
			f.LearningStyleOther = ""
		}
	}
	if a.LearningStyleOther != nil {
		if f.LearningStyle != assessment.LearningStyleOther {
			return fmt.Errorf("%w: free text requires learning style %q", ErrInvalidAnswer, assessment.LearningStyleOther)
		}
		f.LearningStyleOther = strings.TrimSpace(*a.LearningStyleOther)
	}

	if f.Email != w.Form.Email {
		w.OTP.forgetAddress()
	}
	w.Form = f
	w.touch(now)
	return nil
}
