// Package relay implements the signaling relay: every member connected to one
// relay instance is one session, and each well-formed message from a member
// is forwarded verbatim to every other open member.
//
// Delivery is best effort. Nothing is queued for members that are not open,
// nothing is retried, and nothing is kept after forwarding.
package relay
