// Package chatwalk is a conversational-flow runtime: it walks a
// declarative bot graph turn by turn, emitting messages and pausing
// whenever a block needs the visitor's reply. All suspension state
// (cursor, variables, turn counter) is externalized to a session store,
// so a turn is always "reload and re-enter the loop", never a suspended
// call stack.
package chatwalk
