package netadapter

import (
	"github.com/spvd/spvd/infrastructure/logger"
	"github.com/spvd/spvd/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.NTAR)
var spawn = panics.GoroutineWrapperFunc(log)
