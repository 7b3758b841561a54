// Package domain contains the core types of the chatwalk engine: the
// immutable flow graph, the session state that travels through the
// session store, and the reply types returned to the chat client.
//
// Nothing in this package performs I/O. The runtime (internal/runtime)
// interprets these types; the adapters (pkg/adapters) move them across
// process boundaries.
package domain
