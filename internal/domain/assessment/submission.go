package assessment

// Question is one entry of the structured Q&A encoding.
type Question struct {
	Question string `json:"question"`
	Answer   any    `json:"answer"`
	Context  string `json:"context,omitempty"`
}

// PersonalInfo is the flattened contact/identity encoding.
type PersonalInfo struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phoneNumber"`
	CityOfResidence string `json:"cityOfResidence"`
	Role            Role   `json:"role"`
	Degree          string `json:"degree,omitempty"`
	Stream          string `json:"stream,omitempty"`
	ProfileLink     string `json:"profileLink,omitempty"`
}

// Submission bundles the three encodings the matching endpoint accepts.
// AssessmentQuestions is canonical; PersonalInfo and RawFormData are kept
// for backend compatibility.
type Submission struct {
	AssessmentQuestions map[string]Question `json:"assessmentQuestions"`
	PersonalInfo        PersonalInfo        `json:"personalInfo"`
	RawFormData         Form                `json:"rawFormData"`
}
