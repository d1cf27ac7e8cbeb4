package wizard

// Step numbers match the order the questions are presented in.
type Step int

const (
	StepRole Step = iota + 1
	StepDetails
	StepContact
	StepJourney
	StepLearning
	// StepGuidance is reserved and never entered.
	StepGuidance
	StepExpertise
	StepResults
)

var stepNames = map[Step]string{
	StepRole:      "role",
	StepDetails:   "details",
	StepContact:   "contact",
	StepJourney:   "journey",
	StepLearning:  "learning",
	StepGuidance:  "guidance",
	StepExpertise: "expertise",
	StepResults:   "results",
}

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Step) Valid() bool {
	_, ok := stepNames[s]
	return ok
}

func stepFromState(name string) (Step, bool) {
	for s, n := range stepNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}
