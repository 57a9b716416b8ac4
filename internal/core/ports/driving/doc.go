// Package driving defines the interfaces through which the outside world
// calls INTO the core (primary ports). The CLI and any future chat-front
// adapters depend on these interfaces; core services implement them.
package driving
