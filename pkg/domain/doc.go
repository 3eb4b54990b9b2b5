/*
Package domain contains the core models of the Parley conversation engine.

It describes the workflow graph a conversation walks through, the per-conversation
session record, and the events an orchestrated turn emits. This package is kept pure
and free of I/O so every adapter and the runtime can share it.

# Key Entities

  - Graph: an immutable-per-load set of Nodes with a start node.
  - Node: a question shown to the user, with ordered Answers (labeled edges).
  - Session: one conversation's position in its Graph plus its transcript.
  - Event: what the host should deliver to the user (a node, a stream chunk, a notice).
*/
package domain
