// Package handler is the typed HTTP layer: handlers take a Context and a
// bound request struct and return a Response that knows how to render
// itself. Wrap converts a typed handler into an http.HandlerFunc, running
// the request binders first and routing every failure through a single
// ErrorHandler, so transport concerns never leak into service code.
package handler
