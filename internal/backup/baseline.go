package backup

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/gitbackup/internal/manifest"
)

const (
	scratchRepositoryPrefixConstant      = "git-backup-baseline"
	baselineScratchErrorTemplateConstant = "failed to prepare scratch repository: %w"
	baselineLoadedMessageConstant        = "Loaded recorded baseline"
	baselineRecordedMessageConstant      = "Recorded generated baseline"
	baselineGeneratedMessageConstant     = "Generated baseline from a fresh repository"
	baselinePathFieldConstant            = "baseline_file"
	baselineEntryCountFieldConstant      = "entries"
)

// RepositoryInitializer creates empty repositories.
type RepositoryInitializer interface {
	Init(executionContext context.Context, repositoryPath string) error
}

// BaselineSource yields the baseline of a pristine repository. A recorded YAML baseline is preferred;
// otherwise the baseline is generated from a scratch `git init` and recorded when a path is configured.
type BaselineSource struct {
	logger           *zap.Logger
	initializer      RepositoryInitializer
	fileSystem       afero.Fs
	baselineFilePath string
	cached           *manifest.Baseline
}

// NewBaselineSource constructs a BaselineSource.
func NewBaselineSource(logger *zap.Logger, initializer RepositoryInitializer, fileSystem afero.Fs, baselineFilePath string) *BaselineSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	return &BaselineSource{
		logger:           logger,
		initializer:      initializer,
		fileSystem:       fileSystem,
		baselineFilePath: baselineFilePath,
	}
}

// Baseline returns the baseline, resolving it on first use.
func (source *BaselineSource) Baseline(executionContext context.Context) (manifest.Baseline, error) {
	if source.cached != nil {
		return *source.cached, nil
	}

	if len(source.baselineFilePath) > 0 {
		recorded, found, loadError := manifest.LoadBaseline(source.fileSystem, source.baselineFilePath)
		if loadError != nil {
			return manifest.Baseline{}, loadError
		}
		if found {
			source.logger.Debug(baselineLoadedMessageConstant, zap.String(baselinePathFieldConstant, source.baselineFilePath), zap.Int(baselineEntryCountFieldConstant, len(recorded.Entries)))
			source.cached = &recorded
			return recorded, nil
		}
	}

	generated, generateError := source.generate(executionContext)
	if generateError != nil {
		return manifest.Baseline{}, generateError
	}
	source.logger.Debug(baselineGeneratedMessageConstant, zap.Int(baselineEntryCountFieldConstant, len(generated.Entries)))

	if len(source.baselineFilePath) > 0 {
		if saveError := manifest.SaveBaseline(source.fileSystem, source.baselineFilePath, generated); saveError != nil {
			return manifest.Baseline{}, saveError
		}
		source.logger.Info(baselineRecordedMessageConstant, zap.String(baselinePathFieldConstant, source.baselineFilePath))
	}

	source.cached = &generated
	return generated, nil
}

func (source *BaselineSource) generate(executionContext context.Context) (manifest.Baseline, error) {
	if source.initializer == nil {
		return manifest.NewBaseline(manifest.Manifest{}), nil
	}

	scratchDirectory, scratchError := afero.TempDir(source.fileSystem, "", scratchRepositoryPrefixConstant)
	if scratchError != nil {
		return manifest.Baseline{}, fmt.Errorf(baselineScratchErrorTemplateConstant, scratchError)
	}
	defer source.fileSystem.RemoveAll(scratchDirectory)

	if initError := source.initializer.Init(executionContext, scratchDirectory); initError != nil {
		return manifest.Baseline{}, initError
	}

	hooksDirectory := filepath.Join(scratchDirectory, filepath.FromSlash(manifest.HooksDirectoryConstant))
	hooksPresent, existsError := afero.DirExists(source.fileSystem, hooksDirectory)
	if existsError != nil {
		return manifest.Baseline{}, fmt.Errorf(baselineScratchErrorTemplateConstant, existsError)
	}
	if !hooksPresent {
		return manifest.NewBaseline(manifest.Manifest{}), nil
	}

	hooks, manifestError := manifest.Generate(source.fileSystem, hooksDirectory)
	if manifestError != nil {
		return manifest.Baseline{}, manifestError
	}
	return manifest.NewBaseline(hooks), nil
}
