package wizard

import (
	"fmt"

	"github.com/yungbote/mentorbridge/internal/domain/assessment"
)

// BuildSubmission renders the accumulated form into the matching request.
// The career journey literal is replaced by its short code in every encoding;
// an unmapped literal fails with assessment.ErrUnmappedJourney.
func BuildSubmission(f assessment.Form, cat *Catalog) (*assessment.Submission, error) {
	code, err := assessment.JourneyCode(f.CareerJourney)
	if err != nil {
		return nil, err
	}
	if !cat.HasExpertise(f.ExpertisePreference) {
		return nil, fmt.Errorf("%w: unknown expertise %q", ErrInvalidAnswer, f.ExpertisePreference)
	}

	q := func(field string, answer any) assessment.Question {
		p := cat.Prompt(field)
		return assessment.Question{Question: p.Prompt, Answer: answer, Context: p.Context}
	}

	questions := map[string]assessment.Question{
		"role":                q("role", f.Role),
		"confusion":           q("confusion", f.Confusion),
		"careerJourney":       q("careerJourney", code),
		"learningStyle":       q("learningStyle", learningAnswer(f)),
		"expertisePreference": q("expertisePreference", f.ExpertisePreference),
	}
	switch {
	case f.Role.AsksDegree():
		questions["degree"] = q("degree", f.Degree)
	case f.Role.AsksStream():
		questions["stream"] = q("stream", f.Stream)
	case f.Role.AsksProfileLink():
		questions["profileLink"] = q("profileLink", f.ProfileLink)
	}

	raw := f
	raw.CareerJourney = code

	return &assessment.Submission{
		AssessmentQuestions: questions,
		PersonalInfo: assessment.PersonalInfo{
			FullName:        f.FullName,
			Email:           f.Email,
			PhoneNumber:     f.PhoneNumber,
			CityOfResidence: f.CityOfResidence,
			Role:            f.Role,
			Degree:          f.Degree,
			Stream:          f.Stream,
			ProfileLink:     f.ProfileLink,
		},
		RawFormData: raw,
	}, nil
}

func learningAnswer(f assessment.Form) string {
	if f.LearningStyle == assessment.LearningStyleOther && f.LearningStyleOther != "" {
		return f.LearningStyleOther
	}
	return f.LearningStyle
}
