package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes.
func SetupRoutes(handler *Handler, wsHandler *WSHandler, jwtSecret string) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	auth := AuthMiddleware(jwtSecret)

	// Event stream
	r.Handle("/ws", auth(wsHandler)).Methods("GET")

	// Positions and analytics
	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth)
	api.HandleFunc("/positions", handler.ListPositions).Methods("GET")
	api.HandleFunc("/positions", handler.AddPosition).Methods("POST")
	api.HandleFunc("/positions/{id:[0-9]+}", handler.UpdatePosition).Methods("PUT")
	api.HandleFunc("/positions/{id:[0-9]+}/close", handler.ClosePosition).Methods("PUT")
	api.HandleFunc("/positions/{id:[0-9]+}", handler.DeletePosition).Methods("DELETE")
	api.HandleFunc("/quotes", handler.GetQuotes).Methods("GET")
	api.HandleFunc("/analytics/summary", handler.GetSummary).Methods("GET")
	api.HandleFunc("/analytics/history", handler.GetHistory).Methods("GET")

	return r
}
