package config

const (
	defaultSocketPath    = "~/.local/share/fsal/fsal.sock"
	defaultDatabasePath  = "~/.local/share/fsal/fsal.db"
	defaultBusyTimeoutMS = 5000
	defaultLogLevel      = "info"
	defaultLogFormat     = "console"
	defaultLogOutput     = "~/.local/share/fsal/fsal.log"
	defaultLogMaxSizeMiB = 10
	defaultLogBackups    = 4
	defaultONDDSocket    = "/var/run/ondd.ctrl"
	defaultBundlesDir    = "downloads/bundles"
	defaultWalkWorkers   = 4
	defaultEventBacklog  = 10000
)

var defaultBundleExts = []string{"zip"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		FSAL: FSAL{
			Socket: defaultSocketPath,
		},
		Database: Database{
			Path:          defaultDatabasePath,
			BusyTimeoutMS: defaultBusyTimeoutMS,
		},
		Logging: Logging{
			Level:      defaultLogLevel,
			Format:     defaultLogFormat,
			Output:     defaultLogOutput,
			MaxSizeMiB: defaultLogMaxSizeMiB,
			Backups:    defaultLogBackups,
		},
		ONDD: ONDD{
			Enabled: false,
			Socket:  defaultONDDSocket,
		},
		Bundles: Bundles{
			BundlesDir:  defaultBundlesDir,
			BundlesExts: append([]string(nil), defaultBundleExts...),
			Watch:       true,
		},
		Index: Index{
			WalkWorkers:    defaultWalkWorkers,
			EventBacklog:   defaultEventBacklog,
			RefreshOnStart: true,
		},
	}
}
