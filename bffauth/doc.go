/*
Package bffauth implements the mutual authentication protocol between the BFF
gateway and the upstream admin API.

Every forwarded request carries three headers:

  - X-BFF-Id: identifier of the signing party
  - X-BFF-Timestamp: whole seconds since epoch, as a decimal string
  - X-BFF-Signature: lowercase hex HMAC-SHA256 over the signature payload

The signature payload is exactly "{timestamp}:{method}:{path}:{bodyHash}" with
the method uppercased, the path stripped of its leading slash and carrying no
query string, and bodyHash the lowercase hex SHA-256 of the canonical JSON body
(empty string when there is no body). Bodies are transmitted in their canonical
encoding (package canonical), since that is the only encoding the signature
covers.

The Signer produces the header set on the gateway; the Validator re-derives and
checks it on the upstream, as an ordered pipeline of named stages (header
presence, identity, timestamp freshness, signature). The first failing stage
short-circuits. Rejections are logged with full context but surfaced to the
caller as a generic error to avoid acting as an oracle.

Replay: the timestamp window (±300s) is the only replay defense. A captured,
still-fresh request can be replayed within the window; there is deliberately no
nonce tracking, since duplicate-request rejection would change behavior callers
may depend on.
*/
package bffauth
