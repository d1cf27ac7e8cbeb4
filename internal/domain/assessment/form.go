package assessment

// Role is the literal answer to "Which of these describes you best?".
type Role string

const (
	RoleGraduate     Role = "I am a graduate"
	RoleProfessional Role = "I am a working professional"
	RoleMasters      Role = "I am pursuing my Master's"
	RoleSenior       Role = "I am in Class 11th or 12th"
	RoleJunior       Role = "I am in Class 9th or 10th"
)

var Roles = []Role{RoleGraduate, RoleProfessional, RoleMasters, RoleSenior, RoleJunior}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// SkipsDetails is true for roles with no role-dependent detail question.
func (r Role) SkipsDetails() bool { return r == RoleJunior }

func (r Role) AsksDegree() bool { return r == RoleGraduate || r == RoleMasters }

func (r Role) AsksProfileLink() bool { return r == RoleProfessional }

func (r Role) AsksStream() bool { return r == RoleSenior }

const LearningStyleOther = "other"

// Form accumulates answers across wizard steps.
type Form struct {
	Role                Role   `json:"role,omitempty"`
	Degree              string `json:"degree,omitempty"`
	Stream              string `json:"stream,omitempty"`
	ProfileLink         string `json:"profileLink,omitempty"`
	FullName            string `json:"fullName,omitempty"`
	PhoneNumber         string `json:"phoneNumber,omitempty"`
	Email               string `json:"email,omitempty"`
	CityOfResidence     string `json:"cityOfResidence,omitempty"`
	Confusion           int    `json:"confusion,omitempty"`
	CareerJourney       string `json:"careerJourney,omitempty"`
	LearningStyle       string `json:"learningStyle,omitempty"`
	LearningStyleOther  string `json:"learningStyleOther,omitempty"`
	ExpertisePreference string `json:"expertisePreference,omitempty"`
}
