package httpserver

import (
	"net/http"
	"time"
)

// New builds an *http.Server with timeouts suitable for a small API engine.
// Keeping construction here lets main stay declarative.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
