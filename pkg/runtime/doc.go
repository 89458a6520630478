/*
Package runtime instantiates CRDT types into live instances.

A mutation never touches state directly: the mutator produces messages, the
runtime rewrites nested instances into references and hands the messages to
the message handler, and the handler delivers them back to the receiver of
every replica, this one included. Only then is the message folded into state
and change events fired.

Counters (g-counter, pn-counter) merge additively. The runtime does not
suppress duplicates, so they are only correct on top of a message handler
that delivers each message exactly once.
*/
package runtime
