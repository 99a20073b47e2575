package jenkins

import (
	"fmt"
	"strings"

	"github.com/rflorenc/jenkins-mcp-server/internal/models"
)

// Rule maps a _class suffix to an item kind.
type Rule struct {
	Suffix string          `yaml:"suffix"`
	Kind   models.ItemKind `yaml:"kind"`
}

// DefaultRules is the stock classification table. Order matters: the first
// matching suffix wins, so "MultiBranchProject" must precede "Job".
var DefaultRules = []Rule{
	{Suffix: "Folder", Kind: models.KindFolder},
	{Suffix: "MultiBranchProject", Kind: models.KindMultiBranchProject},
	{Suffix: "FreeStyleProject", Kind: models.KindFreeStyleProject},
	{Suffix: "Job", Kind: models.KindJob},
}

// Classifier assigns item kinds by _class suffix. It is immutable once built.
type Classifier struct {
	rules []Rule
}

// NewClassifier validates rules and returns a classifier over a private copy.
// An empty rule list yields the default table.
func NewClassifier(rules []Rule) (*Classifier, error) {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	for i, r := range rules {
		if r.Suffix == "" {
			return nil, fmt.Errorf("classification rule %d: empty suffix", i)
		}
		switch r.Kind {
		case models.KindFolder, models.KindMultiBranchProject, models.KindFreeStyleProject,
			models.KindJob, models.KindUnknown:
		default:
			return nil, fmt.Errorf("classification rule %d: unknown kind %q", i, r.Kind)
		}
	}
	return &Classifier{rules: append([]Rule(nil), rules...)}, nil
}

// DefaultClassifier returns a classifier over DefaultRules.
func DefaultClassifier() *Classifier {
	return &Classifier{rules: append([]Rule(nil), DefaultRules...)}
}

// KindOf returns the kind of the first rule whose suffix ends class.
func (c *Classifier) KindOf(class string) models.ItemKind {
	for _, r := range c.rules {
		if strings.HasSuffix(class, r.Suffix) {
			return r.Kind
		}
	}
	return models.KindUnknown
}
