/*
Package session serializes turn execution per session.

The store's compare-and-swap already guarantees that no two turns commit
state derived from the same cursor; the guard here keeps doomed
concurrent turns from running at all, locally via reference-counted
mutexes and, across replicas, through an optional distributed locker.
*/
package session
