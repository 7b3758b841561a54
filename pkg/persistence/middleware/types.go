// Package middleware wraps a ports.SessionStore with cross-cutting
// persistence behavior: PII masking and at-rest encryption. Middlewares
// compose; the engine never knows they are there.
package middleware

import "github.com/chatwalk/chatwalk/pkg/ports"

// Middleware allows wrapping a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// Chain applies middlewares outermost-first: Chain(store, a, b) yields
// a(b(store)).
func Chain(store ports.SessionStore, mws ...Middleware) ports.SessionStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
