package likemod

import "strings"

// Requirement describes a gate condition consumable by [Check].
//
// Built-in implementations include:
//   - [Feature]
//   - [FeatureGroup]
//   - [KernelReleaseRequirement]
type Requirement interface {
	isRequirement()
}

// FeatureGroup is a reusable set of [Requirement] items.
type FeatureGroup []Requirement

// KernelReleaseRequirement requires the running kernel release to match
// the release a module image was built for, as recorded in its vermagic.
type KernelReleaseRequirement struct {
	Release string
}

// RequireKernelRelease creates a requirement for a kernel release.
func RequireKernelRelease(release string) KernelReleaseRequirement {
	return KernelReleaseRequirement{Release: strings.TrimSpace(release)}
}

func (Feature) isRequirement()                  {}
func (FeatureGroup) isRequirement()             {}
func (KernelReleaseRequirement) isRequirement() {}

type requirementSet struct {
	features []Feature
	releases []string

	seenFeatures map[Feature]struct{}
	seenReleases map[string]struct{}
}

func normalizeRequirements(required []Requirement) requirementSet {
	rs := requirementSet{
		seenFeatures: map[Feature]struct{}{},
		seenReleases: map[string]struct{}{},
	}
	for _, req := range required {
		rs.add(req)
	}
	return rs
}

func (rs *requirementSet) add(req Requirement) {
	switch r := req.(type) {
	case Feature:
		if _, ok := rs.seenFeatures[r]; ok {
			return
		}
		rs.seenFeatures[r] = struct{}{}
		rs.features = append(rs.features, r)
	case FeatureGroup:
		for _, nested := range r {
			if nested == nil {
				continue
			}
			rs.add(nested)
		}
	case KernelReleaseRequirement:
		if r.Release == "" {
			return
		}
		if _, ok := rs.seenReleases[r.Release]; ok {
			return
		}
		rs.seenReleases[r.Release] = struct{}{}
		rs.releases = append(rs.releases, r.Release)
	}
}

// LoadRequirements is the set of features every module load needs.
var LoadRequirements = FeatureGroup{
	FeatureModules,
	FeatureFinitModule,
	FeatureModulesEnabled,
	FeatureCapSysModule,
}

// UnloadRequirements is the set of features every module unload needs.
// Forced unloads additionally need [FeatureForceUnload].
var UnloadRequirements = FeatureGroup{
	FeatureModules,
	FeatureModuleUnload,
	FeatureModulesEnabled,
	FeatureCapSysModule,
}
