package profiling

import (
	"net/http"

	// Registers the pprof handlers on http.DefaultServeMux.
	_ "net/http/pprof"

	"github.com/spvd/spvd/infrastructure/logger"
	"github.com/spvd/spvd/util/panics"
)

// Start serves the pprof handlers on listenAddr in the background. The
// server lives until the process exits.
func Start(listenAddr string, log *logger.Logger) {
	spawn := panics.GoroutineWrapperFunc(log)
	spawn("profiling.Start", func() {
		log.Infof("Profile server listening on %s", listenAddr)
		profileRedirect := http.RedirectHandler("/debug/pprof", http.StatusSeeOther)
		http.Handle("/", profileRedirect)
		err := http.ListenAndServe(listenAddr, nil)
		if err != nil {
			log.Errorf("Profile server stopped: %s", err)
		}
	})
}
