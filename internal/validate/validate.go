// Package validate checks a loaded profile against the container catalog and
// reports what the resolver would pick for every location.
package validate

import (
	"context"
	"errors"
	"fmt"

	"placecraft/internal/container"
	"placecraft/internal/placement"
	"placecraft/internal/profile"
	"placecraft/internal/resolver"
	"placecraft/internal/tags"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeDuplicatePlacement = "duplicate_placement"
	codeLoadFailed         = "load_failed"
	codeUnknownContainer   = "unknown_container"
	codeForcedContainer    = "forced_container"
	codeNoLocations        = "no_locations"
	codeNoItems            = "no_items"
	codeRealizeFailed      = "realize_failed"
)

type Issue struct {
	Severity  Severity `json:"severity"`
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Placement string   `json:"placement,omitempty"`
	Location  string   `json:"location,omitempty"`
}

// Resolution is the resolver's answer for one placement and location.
type Resolution struct {
	Placement string        `json:"placement"`
	Location  string        `json:"location,omitempty"`
	Container string        `json:"container"`
	Step      resolver.Step `json:"step"`
	Warnings  []string      `json:"warnings,omitempty"`
}

type Report struct {
	Issues      []Issue      `json:"issues"`
	Resolutions []Resolution `json:"resolutions"`
}

func (r *Report) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Run validates prof. loadErrs are the per-file errors from loading it; they
// are reported as issues since a rejected document never reaches the profile.
func Run(ctx context.Context, prof *profile.Profile, registry *container.Registry, loadErrs []error) (*Report, error) {
	if prof == nil {
		return nil, fmt.Errorf("profile is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("container registry is required")
	}

	report := &Report{Issues: make([]Issue, 0), Resolutions: make([]Resolution, 0)}
	for _, err := range loadErrs {
		code := codeLoadFailed
		if errors.Is(err, profile.ErrDuplicatePlacement) {
			code = codeDuplicatePlacement
		}
		report.Issues = append(report.Issues, Issue{Severity: SeverityError, Code: code, Message: err.Error()})
	}

	res := resolver.New(registry)
	for _, p := range prof.Placements() {
		report.Issues = append(report.Issues, checkPlacement(p, registry)...)

		locs := p.Locations()
		if len(locs) == 0 {
			report.check(ctx, res, p, nil)
			continue
		}
		for _, loc := range locs {
			report.Issues = append(report.Issues, checkLocation(p, loc, registry)...)
			report.check(ctx, res, p, loc)
		}
	}

	return report, nil
}

// check records the resolution for p at loc and whether it can be realized.
func (r *Report) check(ctx context.Context, res *resolver.Resolver, p *placement.Placement, loc placement.Location) {
	realized, err := res.Realize(ctx, p, loc)
	d := realized.Decision
	if err != nil {
		r.Issues = append(r.Issues, Issue{
			Severity:  SeverityError,
			Code:      codeRealizeFailed,
			Message:   err.Error(),
			Placement: p.Name(),
			Location:  name(loc),
		})
		d = res.Decide(p, loc)
	}

	r.Resolutions = append(r.Resolutions, Resolution{
		Placement: p.Name(),
		Location:  name(loc),
		Container: d.Container,
		Step:      d.Step,
		Warnings:  d.Warnings,
	})

	if d.Step == resolver.StepForcedOriginal && len(d.Warnings) > 0 {
		r.Issues = append(r.Issues, Issue{
			Severity:  SeverityWarn,
			Code:      codeForcedContainer,
			Message:   fmt.Sprintf("forced container %s fails eligibility checks", d.Container),
			Placement: p.Name(),
			Location:  name(loc),
		})
	}
}

func checkPlacement(p *placement.Placement, registry *container.Registry) []Issue {
	var issues []Issue
	if len(p.Items()) == 0 {
		issues = append(issues, Issue{
			Severity:  SeverityWarn,
			Code:      codeNoItems,
			Message:   "placement has no items",
			Placement: p.Name(),
		})
	}
	if len(p.Locations()) == 0 {
		issues = append(issues, Issue{
			Severity:  SeverityWarn,
			Code:      codeNoLocations,
			Message:   "placement has no locations",
			Placement: p.Name(),
		})
	}

	for _, item := range p.Items() {
		preferred := item.PreferredContainer()
		if preferred == "" {
			continue
		}
		if _, ok := registry.Lookup(preferred); !ok {
			issues = append(issues, unknown(p, nil, fmt.Sprintf("item %s prefers unknown container %s", item.Name(), preferred)))
		}
	}
	issues = append(issues, checkUnsupported(p, nil, p.Tags(), registry)...)
	return issues
}

func checkLocation(p *placement.Placement, loc placement.Location, registry *container.Registry) []Issue {
	var issues []Issue
	for original := range tags.GetAll[*container.OriginalContainerTag](loc.Tags()) {
		if _, ok := registry.Lookup(original.Container); !ok {
			issues = append(issues, unknown(p, loc, fmt.Sprintf("original container %s is not in the catalog", original.Container)))
		}
	}
	if lister, ok := loc.(interface{ Supported() []string }); ok {
		for _, c := range lister.Supported() {
			if c == placement.SupportsAll {
				continue
			}
			if _, ok := registry.Lookup(c); !ok {
				issues = append(issues, unknown(p, loc, fmt.Sprintf("location supports unknown container %s", c)))
			}
		}
	}
	issues = append(issues, checkUnsupported(p, loc, loc.Tags(), registry)...)
	return issues
}

func checkUnsupported(p *placement.Placement, loc placement.Location, src tags.Source, registry *container.Registry) []Issue {
	var issues []Issue
	for tag := range tags.GetAll[*container.UnsupportedContainerTag](src) {
		for _, c := range tag.Containers {
			if _, ok := registry.Lookup(c); !ok {
				issue := unknown(p, loc, fmt.Sprintf("unsupported_container names unknown container %s", c))
				issue.Severity = SeverityWarn
				issues = append(issues, issue)
			}
		}
	}
	return issues
}

func unknown(p *placement.Placement, loc placement.Location, msg string) Issue {
	return Issue{
		Severity:  SeverityError,
		Code:      codeUnknownContainer,
		Message:   msg,
		Placement: p.Name(),
		Location:  name(loc),
	}
}

func name(loc placement.Location) string {
	if loc == nil {
		return ""
	}
	return loc.Name()
}
