/*
Package canonical implements the version-pinned canonical JSON encoding shared
by the signing gateway and the validating upstream service.

Both processes must hash byte-identical encodings of the same logical value, so
the algorithm is specified here rather than delegated to encoding/json
defaults:

  - Object keys are sorted in ascending code-point order at every nesting
    level. Array order is preserved.
  - Output is compact: no inserted whitespace, no trailing newline.
  - Strings escape only the double quote, the backslash, and control
    characters below U+0020 (with the \n, \r, \t shorthands). No HTML escaping,
    no escaping of non-ASCII runes.
  - Integer-valued numbers serialize without a decimal point. Other numbers use
    the shortest representation that round-trips through an IEEE 754 double,
    switching to exponent notation below 1e-6 and at or above 1e21.

Canonicalization is idempotent: re-encoding canonical output yields the same
bytes. Any change to these rules is a wire-protocol break and must bump
Version.
*/
package canonical
