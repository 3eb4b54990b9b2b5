/*
Package ports defines the driven ports (interfaces) of the Parley engine.

These interfaces decouple the orchestration core from workflow storage, language model
backends, presentation and event transport, so each can be swapped or faked in tests.

# Key Interfaces

  - GraphLoader / WorkflowCatalog: load, list and save workflow graphs.
  - Completer: streams a completion for a prompt.
  - Presenter: renders a node into an opaque payload.
  - EventSink / EventBus: deliver turn events to one caller or to every subscriber.
  - SessionStore: the in-memory conversation registry.
*/
package ports
