package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/gitbackup/internal/backup"
	"github.com/temirov/gitbackup/internal/execshell"
	"github.com/temirov/gitbackup/internal/filesystem"
	"github.com/temirov/gitbackup/internal/utils"
	flagutils "github.com/temirov/gitbackup/internal/utils/flags"
	pathutils "github.com/temirov/gitbackup/internal/utils/path"
)

const (
	applicationNameConstant                 = "git-backup"
	applicationUseConstant                  = applicationNameConstant + " [file.tar]"
	applicationShortDescriptionConstant     = "Snapshot the local state of a git repository into a tar archive"
	applicationLongDescriptionConstant      = "git-backup records what a clone cannot restore: configuration, hooks, unpushed branch commits, staged and unstaged changes, stashes and optionally untracked and ignored files. Repositories without a remote are copied whole and compacted."
	maximumPositionalArgumentsConstant      = 1
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	backupConfigurationKeyConstant          = "backup"
	backupRepositoryConfigKeyConstant       = backupConfigurationKeyConstant + ".repository"
	backupBaselineFileConfigKeyConstant     = backupConfigurationKeyConstant + ".baseline_file"
	backupSummaryConfigKeyConstant          = backupConfigurationKeyConstant + ".summary"
	backupFeaturesConfigKeyPrefixConstant   = backupConfigurationKeyConstant + ".features."
	environmentPrefixConstant               = "GITBACKUP"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	defaultConfigurationSearchPathConstant  = "."
	userConfigurationDirectoryNameConstant  = applicationNameConstant
	defaultRepositoryPathConstant           = "."
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Backup BackupConfiguration            `mapstructure:"backup"`
}

// ApplicationCommonConfiguration stores logging configuration.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// BackupConfiguration holds the configurable defaults of a backup run.
type BackupConfiguration struct {
	Repository   string          `mapstructure:"repository"`
	BaselineFile string          `mapstructure:"baseline_file"`
	Summary      bool            `mapstructure:"summary"`
	Features     backup.Features `mapstructure:"features"`
}

// WorkingDirectoryProvider reports the directory the command was started from.
type WorkingDirectoryProvider func() (string, error)

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand              *cobra.Command
	configurationLoader      *utils.ConfigurationLoader
	loggerFactory            *utils.LoggerFactory
	logger                   *zap.Logger
	configuration            ApplicationConfiguration
	configurationMetadata    utils.LoadedConfiguration
	configurationFilePath    string
	logLevelFlagValue        string
	logFormatFlagValue       string
	backupFlags              *backupFlagValues
	commandRunner            execshell.CommandRunner
	fileSystem               *filesystem.FileSystem
	homeExpander             *pathutils.HomeExpander
	workingDirectoryProvider WorkingDirectoryProvider
	temporaryDirectoryBase   string
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		configurationSearchPaths(),
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader:      configurationLoader,
		loggerFactory:            utils.NewLoggerFactory(),
		logger:                   zap.NewNop(),
		commandRunner:            execshell.NewOSCommandRunner(),
		fileSystem:               filesystem.NewOSFileSystem(),
		homeExpander:             pathutils.NewHomeExpander(),
		workingDirectoryProvider: os.Getwd,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationUseConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Args:          cobra.MaximumNArgs(maximumPositionalArgumentsConstant),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.SetFlagErrorFunc(func(command *cobra.Command, flagError error) error {
		command.PrintErrln(command.UsageString())
		return flagError
	})

	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	flagutils.AddChoiceFlag(
		cobraCommand.PersistentFlags(),
		&application.logLevelFlagValue,
		logLevelFlagNameConstant,
		string(utils.LogLevelInfo),
		logLevelChoices(),
		logLevelFlagUsageConstant,
	)
	flagutils.AddChoiceFlag(
		cobraCommand.PersistentFlags(),
		&application.logFormatFlagValue,
		logFormatFlagNameConstant,
		string(utils.LogFormatConsole),
		logFormatChoices(),
		logFormatFlagUsageConstant,
	)
	application.backupFlags = registerBackupFlags(cobraCommand.Flags())

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the root command until it finishes or an interrupt arrives, then flushes the logger.
func (application *Application) Execute() error {
	signalContext, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	executionError := application.rootCommand.ExecuteContext(signalContext)
	if syncError := utils.SyncLogger(application.logger); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultConfigurationValues(), &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if flagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if flagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLoggerWithOutput(
		utils.LogLevel(strings.ToLower(strings.TrimSpace(application.configuration.Common.LogLevel))),
		utils.LogFormat(strings.ToLower(strings.TrimSpace(application.configuration.Common.LogFormat))),
		zapcore.Lock(zapcore.AddSync(command.ErrOrStderr())),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	return nil
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func defaultConfigurationValues() map[string]any {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:     string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant:    string(utils.LogFormatConsole),
		backupRepositoryConfigKeyConstant:   defaultRepositoryPathConstant,
		backupBaselineFileConfigKeyConstant: "",
		backupSummaryConfigKeyConstant:      false,
	}

	defaultFeatures := backup.DefaultFeatures()
	for _, featureName := range backup.FeatureNames() {
		defaultValues[backupFeaturesConfigKeyPrefixConstant+string(featureName)] = defaultFeatures.Enabled(featureName)
	}

	return defaultValues
}

func configurationSearchPaths() []string {
	searchPaths := []string{defaultConfigurationSearchPathConstant}
	if userConfigurationDirectory, userConfigurationError := os.UserConfigDir(); userConfigurationError == nil {
		searchPaths = append(searchPaths, filepath.Join(userConfigurationDirectory, userConfigurationDirectoryNameConstant))
	}
	return searchPaths
}

func logLevelChoices() []string {
	return []string{
		string(utils.LogLevelDebug),
		string(utils.LogLevelInfo),
		string(utils.LogLevelWarn),
		string(utils.LogLevelError),
	}
}

func logFormatChoices() []string {
	return []string{
		string(utils.LogFormatStructured),
		string(utils.LogFormatConsole),
	}
}

func flagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.Flags(),
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
