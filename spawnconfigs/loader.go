package spawnconfigs

import (
	_ "embed"
	"os"
	"path/filepath"

	"github.com/reusee/spawnvm/cmds"
	"github.com/reusee/spawnvm/configs"
	"github.com/reusee/spawnvm/logs"
)

//go:embed schema.cue
var schema string

var configFiles = cmds.Collect[string]("-config")

var filenames = []string{
	"spawnvm.cue",
	".spawnvm.cue",
}

// ConfigsLoader reads explicit -config files first, then the working
// directory, the user config dir and /etc. Earlier files take precedence.
func (Module) ConfigsLoader(
	logger logs.Logger,
) configs.Loader {
	paths := append([]string(nil), *configFiles...)

	var dirs []string
	if dir, err := os.Getwd(); err == nil {
		dirs = append(dirs, dir)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, dir)
	}
	dirs = append(dirs, "/etc")

	for _, dir := range dirs {
		for _, filename := range filenames {
			path := filepath.Join(dir, filename)
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
			}
		}
	}

	if len(paths) > 0 {
		logger.Info("config file",
			"paths", paths,
		)
	}
	return configs.NewLoader(paths, schema)
}
