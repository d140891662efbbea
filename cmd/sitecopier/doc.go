// Command sitecopier inventories a website and packages it as a ZIP archive.
//
// Architecture overview:
//   - root.go loads configuration through viper and builds the zap logger shared by every
//     subcommand.
//   - serve runs the HTTP API from internal/server until SIGINT or SIGTERM.
//   - scan, analyze, and archive build the same services through internal/app and run one
//     operation against them, reading and writing JSON or YAML files.
package main
