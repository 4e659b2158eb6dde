// Package monitor wires HTTP handlers into a ServeMux for the operator feed
// via routing helpers.
package monitor

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with the monitor
// routes: health check and the feed endpoint.
func SetupRoutes(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.Handle("/feed", FeedHandler(hub))
	return mux
}
