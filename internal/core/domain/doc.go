// Package domain contains the core types of the grounded-answer pipeline.
//
// The domain is deliberately free of infrastructure concerns: no HTTP, no
// SQL, no provider SDKs. Everything here is plain data plus the small
// amount of behaviour that belongs to the data itself (identity, equality,
// filename derivation).
//
// # Import Rules
//
//   - Can Import: standard library only
//   - Cannot Import: ports, services, adapters, connectors
package domain
