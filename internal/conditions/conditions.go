// Package conditions evaluates declarative image and package conditions
// against a resolved image build and its package metadata.
package conditions

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/obsimg/obsimg/internal/logger"
	"github.com/obsimg/obsimg/internal/metadata"
	"github.com/obsimg/obsimg/internal/rpm"
)

// Condition is one declarative requirement. Without PackageName it applies to
// the image version/release, with PackageName to that package's metadata.
// Status is nil until an evaluation pass sets it.
type Condition struct {
	PackageName string `json:"package_name,omitempty"`
	Version     string `json:"version,omitempty"`
	Release     string `json:"release,omitempty"`
	Condition   string `json:"condition,omitempty"`
	Status      *bool  `json:"status,omitempty"`
}

func (c *Condition) operator() string {
	if c.Condition == "" {
		return ">="
	}
	return c.Condition
}

// Image is the resolved build the conditions are checked against.
type Image struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Release string `json:"release"`
}

// Report is the outcome of one evaluation pass.
type Report struct {
	Image      Image        `json:"image"`
	Conditions []*Condition `json:"conditions"`
	Met        bool         `json:"conditions_met"`
}

// ConditionsNotMetError is the retryable evaluation failure: one or more
// condition statuses are not true, or a denylist violation fired.
type ConditionsNotMetError struct {
	Reason string
}

func (e *ConditionsNotMetError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "image conditions not met"
}

func (e *ConditionsNotMetError) Kind() string { return "ConditionsNotMetError" }

// Evaluator checks a fixed set of conditions and denylists on every pass.
type Evaluator struct {
	Conditions     []*Condition
	DeniedLicenses []string
	DeniedPackages []string
}

func New(conds []*Condition, deniedLicenses, deniedPackages []string) *Evaluator {
	return &Evaluator{
		Conditions:     conds,
		DeniedLicenses: deniedLicenses,
		DeniedPackages: deniedPackages,
	}
}

// HasChecks reports whether any condition or denylist is declared. Without
// checks, missing metadata is not an error.
func (e *Evaluator) HasChecks() bool {
	return len(e.Conditions) > 0 || len(e.DeniedLicenses) > 0 || len(e.DeniedPackages) > 0
}

// Evaluate runs one pass. Statuses are reset up front and set exactly once
// per condition. Denylists are checked every cycle independent of the
// per-condition loop; a violation fails the evaluation even when every
// explicit condition passes. The returned report is valid whenever err is
// nil or a ConditionsNotMetError.
func (e *Evaluator) Evaluate(img Image, packages metadata.Packages) (*Report, error) {
	for _, c := range e.Conditions {
		c.Status = nil
	}

	for _, c := range e.Conditions {
		var ok bool
		var err error
		if c.PackageName != "" {
			ok, err = e.checkPackage(c, packages)
		} else {
			ok, err = checkVersionAndRelease(c, img.Version, img.Release, img.Name)
		}
		if err != nil {
			// Invalid comparator is a configuration error, not a failed
			// condition.
			return nil, err
		}
		c.Status = &ok
	}

	report := &Report{Image: img, Conditions: e.Conditions}

	if err := e.checkLicenses(packages); err != nil {
		return report, err
	}
	if err := e.checkDeniedPackages(packages); err != nil {
		return report, err
	}

	for _, c := range e.Conditions {
		if c.Status == nil || !*c.Status {
			return report, &ConditionsNotMetError{}
		}
	}

	report.Met = true
	return report, nil
}

func (e *Evaluator) checkPackage(c *Condition, packages metadata.Packages) (bool, error) {
	pkg, ok := packages[c.PackageName]
	if !ok {
		logger.Info("Package %s not in image", c.PackageName)
		return false, nil
	}
	return checkVersionAndRelease(c, pkg.Version, pkg.Release, c.PackageName)
}

// checkVersionAndRelease compares the current version/release against the
// condition under its operator. When both fields are declared the two sides
// are combined as version.release and compared once.
func checkVersionAndRelease(c *Condition, version, release, name string) (bool, error) {
	op := c.operator()

	if c.Version != "" && c.Release != "" {
		current := strings.Join([]string{version, release}, ".")
		expected := strings.Join([]string{c.Version, c.Release}, ".")
		ok, err := rpm.Satisfies(current, expected, op)
		if err != nil {
			return false, err
		}
		if !ok {
			logger.Info("Version condition failed: %s %s %s %s", name, current, op, expected)
		}
		return ok, nil
	}

	if c.Version != "" {
		ok, err := rpm.Satisfies(version, c.Version, op)
		if err != nil {
			return false, err
		}
		if !ok {
			logger.Info("Version condition failed: %s %s %s %s", name, version, op, c.Version)
		}
		return ok, nil
	}

	if c.Release != "" {
		ok, err := rpm.Satisfies(release, c.Release, op)
		if err != nil {
			return false, err
		}
		if !ok {
			logger.Info("Release condition failed: %s %s %s %s", name, release, op, c.Release)
		}
		return ok, nil
	}

	return true, nil
}

func (e *Evaluator) checkLicenses(packages metadata.Packages) error {
	if len(e.DeniedLicenses) == 0 {
		return nil
	}

	denied := make(map[string]struct{}, len(e.DeniedLicenses))
	for _, l := range e.DeniedLicenses {
		denied[l] = struct{}{}
	}

	for name, pkg := range packages {
		if _, hit := denied[pkg.License]; hit {
			return &ConditionsNotMetError{
				Reason: fmt.Sprintf(
					"package %s carries dis-allowed license %s; list all with"+
						" \"obsimg packages list --filter-license\"",
					name, pkg.License,
				),
			}
		}
	}
	return nil
}

func (e *Evaluator) checkDeniedPackages(packages metadata.Packages) error {
	for _, pattern := range e.DeniedPackages {
		if len(FilterByName(packages, pattern)) > 0 {
			return &ConditionsNotMetError{
				Reason: fmt.Sprintf(
					"package(s) matching %s found in image; list all with"+
						" \"obsimg packages list --filter-package\"",
					pattern,
				),
			}
		}
	}
	return nil
}

// FilterByLicenses returns the packages whose license is in licenses.
func FilterByLicenses(packages metadata.Packages, licenses []string) metadata.Packages {
	wanted := make(map[string]struct{}, len(licenses))
	for _, l := range licenses {
		wanted[l] = struct{}{}
	}

	out := make(metadata.Packages)
	for name, pkg := range packages {
		if _, ok := wanted[pkg.License]; ok {
			out[name] = pkg
		}
	}
	return out
}

// FilterByName returns the packages whose name matches the glob pattern.
// A pattern without wildcards is an exact name match.
func FilterByName(packages metadata.Packages, pattern string) metadata.Packages {
	out := make(metadata.Packages)
	for name, pkg := range packages {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			out[name] = pkg
		}
	}
	return out
}

// Load parses a JSON condition array as passed on the command line.
func Load(raw string) ([]*Condition, error) {
	var conds []*Condition
	if err := json.Unmarshal([]byte(raw), &conds); err != nil {
		return nil, fmt.Errorf("conditions must be a JSON array of condition objects: %w", err)
	}
	return conds, nil
}

// LoadFile parses a JSON condition array from a file.
func LoadFile(filePath string) ([]*Condition, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read conditions file: %w", err)
	}
	return Load(string(data))
}
