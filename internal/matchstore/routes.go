package matchstore

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/turumi/turumi-match/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, hub *Hub, authMiddleware *auth.Middleware) {
	// Public
	router.HandleFunc("/user", handler.Register).Methods(http.MethodPost)
	router.HandleFunc("/auth/register", handler.Register).Methods(http.MethodPost)
	router.HandleFunc("/auth/login", handler.Login).Methods(http.MethodPost)
	router.HandleFunc("/auth/refresh", handler.Refresh).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/auth/logout", handler.Logout).Methods(http.MethodPost)

	api := router.PathPrefix("/").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Matches
	api.HandleFunc("/match", handler.ListMatches).Methods(http.MethodGet)
	api.HandleFunc("/match", handler.CreateMatch).Methods(http.MethodPost)
	api.HandleFunc("/match", handler.ConfirmMatch).Methods(http.MethodPut)

	// Users
	api.HandleFunc("/user/recommendations", handler.Recommendations).Methods(http.MethodGet)
	api.HandleFunc("/user/{id:[0-9]+}", handler.GetUser).Methods(http.MethodGet)
	api.HandleFunc("/user/{id:[0-9]+}", handler.UpdateUser).Methods(http.MethodPut)

	// Housing
	api.HandleFunc("/housing", handler.CreateHousing).Methods(http.MethodPost)
	api.HandleFunc("/housing", handler.ListHousing).Methods(http.MethodGet)
	api.HandleFunc("/housing/{id:[0-9]+}", handler.GetHousing).Methods(http.MethodGet)

	// Realtime
	api.HandleFunc("/ws", hub.ServeWS).Methods(http.MethodGet)
}
