package atomizer

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sentienthealth/roma/pkg/models"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

// Policy is the replaceable keyword table that routes free-text task
// descriptions to stages and flags obviously-atomic phrasing. It is data,
// not logic: swap the YAML to change routing behavior.
type Policy struct {
	// AtomicHints are phrases that mark a task as directly executable.
	AtomicHints []string `yaml:"atomic_hints"`
	// Stages maps each stage to the keywords that select it. Checked in
	// declaration order; first match wins.
	Stages []StageKeywords `yaml:"stages"`
	// DefaultStage receives tasks no keyword matched.
	DefaultStage models.StageKind `yaml:"default_stage"`
}

// StageKeywords binds one stage to its routing keywords.
type StageKeywords struct {
	Stage    models.StageKind `yaml:"stage"`
	Keywords []string         `yaml:"keywords"`
}

// DefaultPolicy parses the embedded policy table.
func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicyYAML)
	if err != nil {
		// The embedded table is validated by tests; an unparseable one is
		// a build defect, not a runtime condition.
		panic(fmt.Sprintf("atomizer: embedded policy: %v", err))
	}
	return p
}

// ParsePolicy loads a policy table from YAML and validates its stage names.
func ParsePolicy(data []byte) (*Policy, error) {
	p := &Policy{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("unmarshal policy: %w", err)
	}
	for _, s := range p.Stages {
		if !s.Stage.Valid() {
			return nil, fmt.Errorf("policy names unknown stage %q", s.Stage)
		}
	}
	if p.DefaultStage == "" {
		p.DefaultStage = models.StageIngest
	}
	if !p.DefaultStage.Valid() {
		return nil, fmt.Errorf("policy names unknown default stage %q", p.DefaultStage)
	}
	return p, nil
}

// Route returns the stage whose keywords match the description, and whether
// any keyword matched at all.
func (p *Policy) Route(description string) (models.StageKind, bool) {
	desc := strings.ToLower(description)
	for _, s := range p.Stages {
		for _, kw := range s.Keywords {
			if strings.Contains(desc, kw) {
				return s.Stage, true
			}
		}
	}
	return p.DefaultStage, false
}

// AtomicHint returns true if the description carries an atomic phrasing hint.
func (p *Policy) AtomicHint(description string) bool {
	desc := strings.ToLower(description)
	for _, h := range p.AtomicHints {
		if strings.Contains(desc, h) {
			return true
		}
	}
	return false
}
