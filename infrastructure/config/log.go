package config

import (
	"github.com/spvd/spvd/infrastructure/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.CNFG)
