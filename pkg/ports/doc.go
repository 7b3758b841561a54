/*
Package ports defines the driven ports (interfaces) for the chatwalk engine.

These interfaces decouple the interpreter from external implementations:
session persistence, bot registries, distributed locking, and the outbound
capabilities (webhooks, scripts, payment confirmation) that logic and input
blocks invoke.

# Key Interfaces

  - SessionStore: load/commit of session state with optimistic concurrency.
  - BotLoader: resolves a bot ID to its published graph snapshot.
  - DistributedLocker: serializes turns on a session across replicas.
  - WebhookCaller / ScriptRunner / PaymentConfirmer: narrow capability
    interfaces; the engine never reaches the network directly.
*/
package ports
