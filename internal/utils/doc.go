// Package utils exposes the configuration and logging helpers of the command-line entrypoint.
//
// ConfigurationLoader layers embedded defaults, configuration files and
// environment variables through Viper and decodes yes/no toggles. LoggerFactory
// builds zap loggers in structured or console form.
package utils
