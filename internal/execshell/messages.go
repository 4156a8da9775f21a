package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	outputDirectoryFlagConstant             = "--output-directory"
	archiveFileFlagConstant                 = "-cf"
	cachedFlagConstant                      = "--cached"
	ignoredFlagConstant                     = "-X"
)

const (
	gitFormatPatchSubcommandNameConstant = "format-patch"
	gitDiffSubcommandNameConstant        = "diff"
	gitStashSubcommandNameConstant       = "stash"
	gitCleanSubcommandNameConstant       = "clean"
	gitMergeBaseSubcommandNameConstant   = "merge-base"
	gitGarbageCollectSubcommandConstant  = "gc"
	gitSubmoduleSubcommandNameConstant   = "submodule"
)

const (
	gitFormatPatchStartTemplateConstant            = "Exporting patches %s into %s"
	gitFormatPatchSuccessTemplateConstant          = "Exported patches %s into %s"
	gitFormatPatchFailureTemplateConstant          = "Failed to export patches %s into %s (exit code %d%s)"
	gitFormatPatchExecutionFailureTemplateConstant = "Unable to export patches %s into %s: %s"
	gitDiffStartTemplateConstant                   = "Collecting %s in %s"
	gitDiffSuccessTemplateConstant                 = "Collected %s in %s"
	gitDiffFailureTemplateConstant                 = "Failed to collect %s in %s (exit code %d%s)"
	gitDiffExecutionFailureTemplateConstant        = "Unable to collect %s in %s: %s"
	gitDiffStagedLabelConstant                     = "staged changes"
	gitDiffUnstagedLabelConstant                   = "unstaged changes"
	gitStashStartTemplateConstant                  = "Reading stashes in %s"
	gitStashSuccessTemplateConstant                = "Read stashes in %s"
	gitStashFailureTemplateConstant                = "Failed to read stashes in %s (exit code %d%s)"
	gitStashExecutionFailureTemplateConstant       = "Unable to read stashes in %s: %s"
	gitCleanStartTemplateConstant                  = "Listing %s files in %s"
	gitCleanSuccessTemplateConstant                = "Listed %s files in %s"
	gitCleanFailureTemplateConstant                = "Failed to list %s files in %s (exit code %d%s)"
	gitCleanExecutionFailureTemplateConstant       = "Unable to list %s files in %s: %s"
	gitCleanUntrackedLabelConstant                 = "untracked"
	gitCleanIgnoredLabelConstant                   = "ignored"
	gitMergeBaseStartTemplateConstant              = "Finding merge base of %s in %s"
	gitMergeBaseSuccessTemplateConstant            = "Found merge base of %s in %s"
	gitMergeBaseFailureTemplateConstant            = "No merge base of %s in %s (exit code %d%s)"
	gitMergeBaseExecutionFailureTemplateConstant   = "Unable to find merge base of %s in %s: %s"
	gitGarbageCollectStartTemplateConstant         = "Compacting history in %s"
	gitGarbageCollectSuccessTemplateConstant       = "Compacted history in %s"
	gitGarbageCollectFailureTemplateConstant       = "Failed to compact history in %s (exit code %d%s)"
	gitGarbageCollectExecFailureTemplateConstant   = "Unable to compact history in %s: %s"
	gitSubmoduleStartTemplateConstant              = "Listing submodules in %s"
	gitSubmoduleSuccessTemplateConstant            = "Listed submodules in %s"
	gitSubmoduleFailureTemplateConstant            = "Failed to list submodules in %s (exit code %d%s)"
	gitSubmoduleExecutionFailureTemplateConstant   = "Unable to list submodules in %s: %s"
	tarStartTemplateConstant                       = "Archiving into %s"
	tarSuccessTemplateConstant                     = "Archived into %s"
	tarFailureTemplateConstant                     = "Failed to archive into %s (exit code %d%s)"
	tarExecutionFailureTemplateConstant            = "Unable to archive into %s: %s"
)

var milestoneGitSubcommands = map[string]struct{}{
	gitFormatPatchSubcommandNameConstant: {},
	gitDiffSubcommandNameConstant:        {},
	gitStashSubcommandNameConstant:       {},
	gitCleanSubcommandNameConstant:       {},
	gitGarbageCollectSubcommandConstant:  {},
	gitSubmoduleSubcommandNameConstant:   {},
}

// stageTemplates groups the four lifecycle templates of one command family.
type stageTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

var (
	formatPatchTemplates = stageTemplates{
		start:            gitFormatPatchStartTemplateConstant,
		success:          gitFormatPatchSuccessTemplateConstant,
		failure:          gitFormatPatchFailureTemplateConstant,
		executionFailure: gitFormatPatchExecutionFailureTemplateConstant,
	}
	diffTemplates = stageTemplates{
		start:            gitDiffStartTemplateConstant,
		success:          gitDiffSuccessTemplateConstant,
		failure:          gitDiffFailureTemplateConstant,
		executionFailure: gitDiffExecutionFailureTemplateConstant,
	}
	stashTemplates = stageTemplates{
		start:            gitStashStartTemplateConstant,
		success:          gitStashSuccessTemplateConstant,
		failure:          gitStashFailureTemplateConstant,
		executionFailure: gitStashExecutionFailureTemplateConstant,
	}
	cleanTemplates = stageTemplates{
		start:            gitCleanStartTemplateConstant,
		success:          gitCleanSuccessTemplateConstant,
		failure:          gitCleanFailureTemplateConstant,
		executionFailure: gitCleanExecutionFailureTemplateConstant,
	}
	mergeBaseTemplates = stageTemplates{
		start:            gitMergeBaseStartTemplateConstant,
		success:          gitMergeBaseSuccessTemplateConstant,
		failure:          gitMergeBaseFailureTemplateConstant,
		executionFailure: gitMergeBaseExecutionFailureTemplateConstant,
	}
	garbageCollectTemplates = stageTemplates{
		start:            gitGarbageCollectStartTemplateConstant,
		success:          gitGarbageCollectSuccessTemplateConstant,
		failure:          gitGarbageCollectFailureTemplateConstant,
		executionFailure: gitGarbageCollectExecFailureTemplateConstant,
	}
	submoduleTemplates = stageTemplates{
		start:            gitSubmoduleStartTemplateConstant,
		success:          gitSubmoduleSuccessTemplateConstant,
		failure:          gitSubmoduleFailureTemplateConstant,
		executionFailure: gitSubmoduleExecutionFailureTemplateConstant,
	}
	tarTemplates = stageTemplates{
		start:            tarStartTemplateConstant,
		success:          tarSuccessTemplateConstant,
		failure:          tarFailureTemplateConstant,
		executionFailure: tarExecutionFailureTemplateConstant,
	}
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

// IsMilestone reports whether the command produces or lists capture content, as opposed to a query.
func (formatter CommandMessageFormatter) IsMilestone(command ShellCommand) bool {
	arguments := command.Details.Arguments
	switch command.Name {
	case CommandTar:
		return len(findFlagValue(arguments, archiveFileFlagConstant)) > 0
	case CommandGit:
		if len(arguments) == 0 {
			return false
		}
		_, milestone := milestoneGitSubcommands[strings.TrimSpace(arguments[0])]
		return milestone
	default:
		return false
	}
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	switch command.Name {
	case CommandGit:
		return formatter.describeGitMessage(command, result, failure, stage)
	case CommandTar:
		archivePath := findFlagValue(command.Details.Arguments, archiveFileFlagConstant)
		if len(archivePath) == 0 {
			return formatter.buildGenericMessage(command, result, failure, stage)
		}
		return formatter.render(tarTemplates, []any{archivePath}, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	switch strings.TrimSpace(arguments[0]) {
	case gitFormatPatchSubcommandNameConstant:
		revisionRange := formatter.ensureValue(lastArgument(arguments))
		outputDirectory := formatter.ensureValue(findFlagValue(arguments, outputDirectoryFlagConstant))
		return formatter.render(formatPatchTemplates, []any{revisionRange, outputDirectory}, result, failure, stage)
	case gitDiffSubcommandNameConstant:
		label := gitDiffUnstagedLabelConstant
		if containsArgument(arguments, cachedFlagConstant) {
			label = gitDiffStagedLabelConstant
		}
		return formatter.render(diffTemplates, []any{label, workingDirectory}, result, failure, stage)
	case gitStashSubcommandNameConstant:
		return formatter.render(stashTemplates, []any{workingDirectory}, result, failure, stage)
	case gitCleanSubcommandNameConstant:
		label := gitCleanUntrackedLabelConstant
		if containsArgument(arguments, ignoredFlagConstant) {
			label = gitCleanIgnoredLabelConstant
		}
		return formatter.render(cleanTemplates, []any{label, workingDirectory}, result, failure, stage)
	case gitMergeBaseSubcommandNameConstant:
		references := formatter.ensureValue(strings.Join(arguments[1:], commandArgumentsJoinSeparatorConstant))
		return formatter.render(mergeBaseTemplates, []any{references, workingDirectory}, result, failure, stage)
	case gitGarbageCollectSubcommandConstant:
		return formatter.render(garbageCollectTemplates, []any{workingDirectory}, result, failure, stage)
	case gitSubmoduleSubcommandNameConstant:
		return formatter.render(submoduleTemplates, []any{workingDirectory}, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) render(templates stageTemplates, values []any, result ExecutionResult, failure error, stage messageStage) string {
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, values...)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, values...)
	case messageStageFailure:
		failureValues := append(append([]any{}, values...), result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		return fmt.Sprintf(templates.failure, failureValues...)
	case messageStageExecutionFailure:
		failureValues := append(append([]any{}, values...), formatter.describeFailure(failure))
		return fmt.Sprintf(templates.executionFailure, failureValues...)
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := describeCommand(command)
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}

func findFlagValue(arguments []string, flag string) string {
	for index := 0; index < len(arguments)-1; index++ {
		if arguments[index] == flag {
			return arguments[index+1]
		}
	}
	return emptyStringConstant
}

func lastArgument(arguments []string) string {
	if len(arguments) == 0 {
		return emptyStringConstant
	}
	return arguments[len(arguments)-1]
}
