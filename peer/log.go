package peer

import (
	"github.com/spvd/spvd/infrastructure/logger"
	"github.com/spvd/spvd/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.PEER)
var spawn = panics.GoroutineWrapperFunc(log)
