package wizard

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/mentorbridge/internal/domain/assessment"
)

//go:embed catalog.yaml
var catalogYAML []byte

type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

type Prompt struct {
	Prompt  string `yaml:"prompt" json:"prompt"`
	Context string `yaml:"context" json:"context"`
}

// Catalog holds the fixed option lists the wizard validates against.
type Catalog struct {
	Roles          []assessment.Role `yaml:"-" json:"roles"`
	Journeys       []string          `yaml:"-" json:"careerJourneys"`
	Streams        []string          `yaml:"streams" json:"streams"`
	LearningStyles []Option          `yaml:"learningStyles" json:"learningStyles"`
	Expertise      []string          `yaml:"expertise" json:"expertise"`
	Questions      map[string]Prompt `yaml:"questions" json:"questions"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// DefaultCatalog parses the embedded catalog once.
func DefaultCatalog() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = ParseCatalog(catalogYAML)
	})
	return defaultCatalog, defaultErr
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse wizard catalog: %w", err)
	}
	if len(c.Expertise) == 0 {
		return nil, fmt.Errorf("wizard catalog: empty expertise list")
	}
	hasOther := false
	for _, o := range c.LearningStyles {
		if o.Value == assessment.LearningStyleOther {
			hasOther = true
		}
	}
	if !hasOther {
		return nil, fmt.Errorf("wizard catalog: learning styles must include %q", assessment.LearningStyleOther)
	}
	c.Roles = assessment.Roles
	c.Journeys = assessment.Journeys
	return &c, nil
}

func (c *Catalog) HasStream(s string) bool { return contains(c.Streams, s) }

func (c *Catalog) HasExpertise(s string) bool { return contains(c.Expertise, s) }

func (c *Catalog) HasLearningStyle(s string) bool {
	for _, o := range c.LearningStyles {
		if o.Value == s {
			return true
		}
	}
	return false
}

func (c *Catalog) Prompt(field string) Prompt {
	if p, ok := c.Questions[field]; ok {
		return p
	}
	return Prompt{Prompt: field}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
