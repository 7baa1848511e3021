package server

import (
	"net/http"
)

// Middleware decorates a handler. Recovery, metrics and request logging are the ones the server installs.
type Middleware func(http.Handler) http.Handler

// Handler serves a fixed set of route patterns, like the OAuth callback.
type Handler interface {
	http.Handler
	Routes() []string
}

// Router is what [Server] registers its routes on.
type Router interface {
	http.Handler
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	HandleFunc(method, path string, fn http.HandlerFunc)
	Handler(handler Handler)
}

var (
	_ Router  = (*BasicRouter)(nil)
	_ Handler = (*CallbackHandler)(nil)
)
