package backup

// FeatureName identifies one optional part of a capture.
type FeatureName string

// Supported capture features.
const (
	FeatureConfig     FeatureName = "config"
	FeatureHooks      FeatureName = "hooks"
	FeatureBranches   FeatureName = "branches"
	FeatureCached     FeatureName = "cached"
	FeatureChanges    FeatureName = "changes"
	FeatureUntracked  FeatureName = "untracked"
	FeatureIgnored    FeatureName = "ignored"
	FeatureStashed    FeatureName = "stashed"
	FeatureSubmodules FeatureName = "submodules"
)

// FeatureNames returns every feature in capture order.
func FeatureNames() []FeatureName {
	return []FeatureName{
		FeatureConfig,
		FeatureHooks,
		FeatureBranches,
		FeatureCached,
		FeatureChanges,
		FeatureUntracked,
		FeatureIgnored,
		FeatureStashed,
		FeatureSubmodules,
	}
}

// Features selects the parts of a capture.
type Features struct {
	Config     bool `mapstructure:"config"`
	Hooks      bool `mapstructure:"hooks"`
	Branches   bool `mapstructure:"branches"`
	Cached     bool `mapstructure:"cached"`
	Changes    bool `mapstructure:"changes"`
	Untracked  bool `mapstructure:"untracked"`
	Ignored    bool `mapstructure:"ignored"`
	Stashed    bool `mapstructure:"stashed"`
	Submodules bool `mapstructure:"submodules"`
}

// DefaultFeatures enables everything except untracked and ignored archives and submodule recursion.
func DefaultFeatures() Features {
	return Features{
		Config:   true,
		Hooks:    true,
		Branches: true,
		Cached:   true,
		Changes:  true,
		Stashed:  true,
	}
}

// AllFeatures enables every feature.
func AllFeatures() Features {
	features := Features{}
	for _, name := range FeatureNames() {
		features = features.WithFeature(name, true)
	}
	return features
}

// Enabled reports whether the named feature is on. Unknown names are off.
func (features Features) Enabled(name FeatureName) bool {
	switch name {
	case FeatureConfig:
		return features.Config
	case FeatureHooks:
		return features.Hooks
	case FeatureBranches:
		return features.Branches
	case FeatureCached:
		return features.Cached
	case FeatureChanges:
		return features.Changes
	case FeatureUntracked:
		return features.Untracked
	case FeatureIgnored:
		return features.Ignored
	case FeatureStashed:
		return features.Stashed
	case FeatureSubmodules:
		return features.Submodules
	default:
		return false
	}
}

// WithFeature returns a copy with the named feature set. Unknown names leave the copy unchanged.
func (features Features) WithFeature(name FeatureName, enabled bool) Features {
	switch name {
	case FeatureConfig:
		features.Config = enabled
	case FeatureHooks:
		features.Hooks = enabled
	case FeatureBranches:
		features.Branches = enabled
	case FeatureCached:
		features.Cached = enabled
	case FeatureChanges:
		features.Changes = enabled
	case FeatureUntracked:
		features.Untracked = enabled
	case FeatureIgnored:
		features.Ignored = enabled
	case FeatureStashed:
		features.Stashed = enabled
	case FeatureSubmodules:
		features.Submodules = enabled
	}
	return features
}

// Options configures a Service. It is resolved once and never mutated.
type Options struct {
	Features         Features
	BaselineFilePath string
}
