package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/temirov/gitbackup/internal/backup"
	flagutils "github.com/temirov/gitbackup/internal/utils/flags"
)

const (
	repositoryFlagNameConstant            = "repository"
	repositoryFlagUsageConstant           = "Repository to back up."
	baselineFileFlagNameConstant          = "baseline-file"
	baselineFileFlagUsageConstant         = "YAML file recording what an unchanged repository contains; generated on first use."
	summaryFlagNameConstant               = "summary"
	summaryFlagUsageConstant              = "Print a table of the captured artifacts."
	allFlagNameConstant                   = "all"
	allFlagUsageConstant                  = "Capture everything, overriding every other feature flag."
	skipFlagPrefixConstant                = "skip-"
	featureFlagUsageTemplateConstant      = "Capture %s."
	skipFlagUsageTemplateConstant         = "Do not capture %s."
	archiveExtensionConstant              = ".tar"
	workingDirectoryErrorTemplateConstant = "unable to determine working directory: %w"
	pathResolutionErrorTemplateConstant   = "unable to resolve %s path %q: %w"
	repositoryPathDescriptionConstant     = "repository"
	destinationPathDescriptionConstant    = "archive"
	baselineFilePathDescriptionConstant   = "baseline file"
	featureDescriptionConfigConstant      = "the repository configuration"
	featureDescriptionHooksConstant       = "the hooks directory"
	featureDescriptionBranchesConstant    = "patches of local branch commits missing upstream"
	featureDescriptionCachedConstant      = "staged changes"
	featureDescriptionChangesConstant     = "unstaged changes"
	featureDescriptionUntrackedConstant   = "an archive of untracked files"
	featureDescriptionIgnoredConstant     = "an archive of ignored files"
	featureDescriptionStashedConstant     = "stash patches"
	featureDescriptionSubmodulesConstant  = "initialized submodules recursively"
	featureDescriptionFallbackConstant    = "this feature"
)

var featureDescriptions = map[backup.FeatureName]string{
	backup.FeatureConfig:     featureDescriptionConfigConstant,
	backup.FeatureHooks:      featureDescriptionHooksConstant,
	backup.FeatureBranches:   featureDescriptionBranchesConstant,
	backup.FeatureCached:     featureDescriptionCachedConstant,
	backup.FeatureChanges:    featureDescriptionChangesConstant,
	backup.FeatureUntracked:  featureDescriptionUntrackedConstant,
	backup.FeatureIgnored:    featureDescriptionIgnoredConstant,
	backup.FeatureStashed:    featureDescriptionStashedConstant,
	backup.FeatureSubmodules: featureDescriptionSubmodulesConstant,
}

// backupRequest is everything a single run needs, resolved once from flags and configuration.
type backupRequest struct {
	RepositoryPath  string
	DestinationPath string
	Summary         bool
	Options         backup.Options
}

type backupFlagValues struct {
	repository   string
	baselineFile string
	summary      bool
	all          bool
	enabled      map[backup.FeatureName]*bool
	skipped      map[backup.FeatureName]*bool
}

// registerBackupFlags binds the backup flags to the returned values, which parsing updates in place.
func registerBackupFlags(flagSet *pflag.FlagSet) *backupFlagValues {
	values := &backupFlagValues{
		enabled: make(map[backup.FeatureName]*bool),
		skipped: make(map[backup.FeatureName]*bool),
	}

	flagSet.StringVar(&values.repository, repositoryFlagNameConstant, defaultRepositoryPathConstant, repositoryFlagUsageConstant)
	flagSet.StringVar(&values.baselineFile, baselineFileFlagNameConstant, "", baselineFileFlagUsageConstant)
	flagutils.AddToggleFlag(flagSet, &values.summary, summaryFlagNameConstant, "", false, summaryFlagUsageConstant)
	flagSet.BoolVar(&values.all, allFlagNameConstant, false, allFlagUsageConstant)

	defaultFeatures := backup.DefaultFeatures()
	for _, featureName := range backup.FeatureNames() {
		description := featureDescription(featureName)

		enabledValue := new(bool)
		flagutils.AddToggleFlag(flagSet, enabledValue, string(featureName), "", defaultFeatures.Enabled(featureName), fmt.Sprintf(featureFlagUsageTemplateConstant, description))
		values.enabled[featureName] = enabledValue

		skippedValue := new(bool)
		flagSet.BoolVar(skippedValue, skipFlagPrefixConstant+string(featureName), false, fmt.Sprintf(skipFlagUsageTemplateConstant, description))
		values.skipped[featureName] = skippedValue
	}

	return values
}

func featureDescription(featureName backup.FeatureName) string {
	if description, known := featureDescriptions[featureName]; known {
		return description
	}
	return featureDescriptionFallbackConstant
}

// resolveFeatures applies flags over configured features: an explicit --<feature> replaces the
// configured value, --skip-<feature> disables it regardless, and --all enables everything.
func resolveFeatures(configured backup.Features, flagSet *pflag.FlagSet, values *backupFlagValues) backup.Features {
	if values.all {
		return backup.AllFeatures()
	}

	resolved := configured
	for _, featureName := range backup.FeatureNames() {
		if enabledValue, registered := values.enabled[featureName]; registered && flagSet.Changed(string(featureName)) {
			resolved = resolved.WithFeature(featureName, *enabledValue)
		}
		if skippedValue, registered := values.skipped[featureName]; registered && *skippedValue {
			resolved = resolved.WithFeature(featureName, false)
		}
	}
	return resolved
}

func (application *Application) resolveBackupRequest(command *cobra.Command, arguments []string) (backupRequest, error) {
	flagSet := command.Flags()
	configuration := application.configuration.Backup

	repositoryPath := configuration.Repository
	if flagSet.Changed(repositoryFlagNameConstant) {
		repositoryPath = application.backupFlags.repository
	}
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		repositoryPath = defaultRepositoryPathConstant
	}
	resolvedRepositoryPath, repositoryError := application.homeExpander.Resolve(repositoryPath)
	if repositoryError != nil {
		return backupRequest{}, fmt.Errorf(pathResolutionErrorTemplateConstant, repositoryPathDescriptionConstant, repositoryPath, repositoryError)
	}

	baselineFilePath := configuration.BaselineFile
	if flagSet.Changed(baselineFileFlagNameConstant) {
		baselineFilePath = application.backupFlags.baselineFile
	}
	resolvedBaselineFilePath := ""
	if len(strings.TrimSpace(baselineFilePath)) > 0 {
		resolved, baselineError := application.homeExpander.Resolve(baselineFilePath)
		if baselineError != nil {
			return backupRequest{}, fmt.Errorf(pathResolutionErrorTemplateConstant, baselineFilePathDescriptionConstant, baselineFilePath, baselineError)
		}
		resolvedBaselineFilePath = resolved
	}

	summary := configuration.Summary
	if flagSet.Changed(summaryFlagNameConstant) {
		summary = application.backupFlags.summary
	}

	destinationPath, destinationError := application.destinationPath(arguments)
	if destinationError != nil {
		return backupRequest{}, destinationError
	}

	return backupRequest{
		RepositoryPath:  resolvedRepositoryPath,
		DestinationPath: destinationPath,
		Summary:         summary,
		Options: backup.Options{
			Features:         resolveFeatures(configuration.Features, flagSet, application.backupFlags),
			BaselineFilePath: resolvedBaselineFilePath,
		},
	}, nil
}

// destinationPath returns the positional archive path, defaulting to <working directory name>.tar.
func (application *Application) destinationPath(arguments []string) (string, error) {
	candidatePath := ""
	if len(arguments) > 0 {
		candidatePath = arguments[0]
	}

	if len(strings.TrimSpace(candidatePath)) == 0 {
		workingDirectory, workingDirectoryError := application.workingDirectoryProvider()
		if workingDirectoryError != nil {
			return "", fmt.Errorf(workingDirectoryErrorTemplateConstant, workingDirectoryError)
		}
		candidatePath = filepath.Join(workingDirectory, filepath.Base(workingDirectory)+archiveExtensionConstant)
	}

	resolvedPath, resolutionError := application.homeExpander.Resolve(candidatePath)
	if resolutionError != nil {
		return "", fmt.Errorf(pathResolutionErrorTemplateConstant, destinationPathDescriptionConstant, candidatePath, resolutionError)
	}
	return resolvedPath, nil
}
