package assessment

import (
	"errors"
	"fmt"
)

// Career journey literals shown at the confusion step.
const (
	JourneyRoadmap  = "I know what I want, I just need a clear roadmap"
	JourneyOptions  = "I have a few options in mind but can't decide"
	JourneyGuidance = "Honestly, I feel stuck..."
	JourneySwitch   = "I want to switch to a different field"
)

var Journeys = []string{JourneyRoadmap, JourneyOptions, JourneyGuidance, JourneySwitch}

var journeyCodes = map[string]string{
	JourneyRoadmap:  "roadmap",
	JourneyOptions:  "options",
	JourneyGuidance: "guidance",
	JourneySwitch:   "switch",
}

var ErrUnmappedJourney = errors.New("career journey has no code")

// JourneyCode translates a displayed literal into its stable short code.
func JourneyCode(literal string) (string, error) {
	code, ok := journeyCodes[literal]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnmappedJourney, literal)
	}
	return code, nil
}

func ValidJourney(literal string) bool {
	_, ok := journeyCodes[literal]
	return ok
}
