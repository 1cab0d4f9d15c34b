// Package metrics exposes the runtime statistics dashboard.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/arl/statsviz"
)

// DashboardPath is where statsviz mounts its UI
const DashboardPath = "/debug/statsviz/"

// Register mounts the statsviz dashboard on mux
func Register(mux *http.ServeMux) error {
	if err := statsviz.Register(mux); err != nil {
		return fmt.Errorf("failed to register statsviz: %w", err)
	}
	return nil
}

// Serve runs a dedicated dashboard server on addr until it fails
func Serve(addr string) error {
	mux := http.NewServeMux()
	if err := Register(mux); err != nil {
		return err
	}
	return http.ListenAndServe(addr, mux)
}
