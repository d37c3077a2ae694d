package engine

type ApplicationConfig struct {
	// Path of the TOML configuration file. A missing file means defaults.
	ConfigPath string
	// The application name used in windowing. Overrides the configured name when set.
	Name string
	// Watch the configuration file and apply changes while running.
	WatchConfig bool
}
