package spawnconfigs

import (
	"github.com/reusee/dscope"
	"github.com/reusee/spawnvm/configs"
	"github.com/reusee/spawnvm/logs"
)

type Module struct {
	dscope.Module
	Configs configs.Module
	Logs    logs.Module
}
