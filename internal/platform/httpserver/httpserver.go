package httpserver

import (
	"net/http"
	"time"

	"crboard/internal/platform/config"
)

// New builds the listening server. Imports upload whole spreadsheets, so the
// body read deadline follows the request timeout rather than a fixed value.
func New(cfg config.Server, handler http.Handler) *http.Server {
	readTimeout := cfg.RequestTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      readTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
