/*
Package proxy implements the gateway's forwarding pipeline.

Each inbound request moves through a fixed sequence: parse the route into
segments, run the path guard, sign the canonicalized request, attach the
caller's bearer credential, forward to the upstream with a bounded timeout,
relay the response, and rotate the credential cookie when the upstream issued
a fresh token. An error at any step terminates the request; nothing is
retried.

Failure semantics:

  - Path guard violations and signing failures never reach the network and
    surface as a generic 500, so external callers cannot probe protocol
    internals.
  - A missing bearer credential on a non-public route is refused locally with
    401. This is a fast-fail optimization only; the upstream validator remains
    the security boundary.
  - A forward that exceeds the configured timeout is cancelled and reported as
    504, distinct from 502 for an unreachable upstream.
  - Upstream responses, including errors, are relayed with their own status
    and body. Set-Cookie values are re-appended individually so multiple
    cookies are never collapsed into one header.

The credential cookie is written only after a fully read and parsed upstream
response, so a cancelled forward can never leave it half-updated.
*/
package proxy
