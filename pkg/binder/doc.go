// Package binder populates request structs from HTTP requests by struct tag:
// `form:` for urlencoded and multipart bodies, `query:` for the query string,
// `path:` for router path parameters, and encoding/json for JSON bodies.
// Binders compose inside handler.Wrap; a binder that does not apply to a
// request reports ErrBinderNotApplicable so the chain moves on.
package binder
