// Package servicetools wraps calls to remote systems (LDAP directories, SOAP
// web services) with response caching, structured logging and timing.
//
// A Service owns one Backend. Every Invoke:
//
//  1. lets the backend rewrite the arguments (ArgsPreparer),
//  2. fingerprints (namespace, method, args) into a cache key,
//  3. returns the stored Response on a hit,
//  4. otherwise calls the backend and stores its Response for the TTL of the
//     method (Expires).
//
// Components:
//   - Provider: byte store with TTL (memory, Ristretto, BigCache, Redis,
//     Memcached, sturdyc, or a composite chain of those).
//   - Codec[Envelope]: (de)serializes stored responses. Msgpack by default.
//   - Timer: optional prometheus/otel measurement of every call.
//
// Keys:
//
//	<ns>:<method>:<xxhash64 of the rendered method and args>
//
// Remote failures (LDAP result codes, SOAP faults, transport errors) are
// returned as failed Responses and cached like successes. Errors returned by
// Invoke mean the service cannot operate: it was never configured, or the
// backend was asked for an operation it does not support.
package servicetools
