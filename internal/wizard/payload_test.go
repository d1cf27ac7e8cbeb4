package wizard

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yungbote/mentorbridge/internal/domain/assessment"
)

func completeForm() assessment.Form {
	return assessment.Form{
		Role:                assessment.RoleGraduate,
		Degree:              "B.Tech",
		FullName:            "Asha Rao",
		PhoneNumber:         "9876543210",
		Email:               "asha@example.com",
		CityOfResidence:     "Pune",
		Confusion:           4,
		CareerJourney:       assessment.JourneySwitch,
		LearningStyle:       assessment.LearningStyleOther,
		LearningStyleOther:  "weekend bootcamps",
		ExpertisePreference: "Data Science",
	}
}

func TestBuildSubmissionEncodings(t *testing.T) {
	cat, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	sub, err := BuildSubmission(completeForm(), cat)
	if err != nil {
		t.Fatalf("BuildSubmission: %v", err)
	}

	wantInfo := assessment.PersonalInfo{
		FullName:        "Asha Rao",
		Email:           "asha@example.com",
		PhoneNumber:     "9876543210",
		CityOfResidence: "Pune",
		Role:            assessment.RoleGraduate,
		Degree:          "B.Tech",
	}
	if diff := cmp.Diff(wantInfo, sub.PersonalInfo); diff != "" {
		t.Fatalf("personalInfo mismatch (-want +got):\n%s", diff)
	}

	wantRaw := completeForm()
	wantRaw.CareerJourney = "switch"
	if diff := cmp.Diff(wantRaw, sub.RawFormData); diff != "" {
		t.Fatalf("rawFormData mismatch (-want +got):\n%s", diff)
	}

	gotAnswers := map[string]any{}
	for k, q := range sub.AssessmentQuestions {
		if q.Question == "" {
			t.Fatalf("question %s has no prompt", k)
		}
		gotAnswers[k] = q.Answer
	}
	wantAnswers := map[string]any{
		"role":                assessment.RoleGraduate,
		"degree":              "B.Tech",
		"confusion":           4,
		"careerJourney":       "switch",
		"learningStyle":       "weekend bootcamps",
		"expertisePreference": "Data Science",
	}
	if diff := cmp.Diff(wantAnswers, gotAnswers); diff != "" {
		t.Fatalf("assessmentQuestions mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSubmissionRejectsUnmappedJourney(t *testing.T) {
	cat, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	f := completeForm()
	f.CareerJourney = "Something the UI never offered"
	if _, err := BuildSubmission(f, cat); !errors.Is(err, assessment.ErrUnmappedJourney) {
		t.Fatalf("got %v, want ErrUnmappedJourney", err)
	}
}
