// Package authclient resolves "who is the caller, and which business are
// they scoped to" at application boot and after every credential operation.
//
// State machine:
//   - Machine is the single source of truth for authentication status. It
//     verifies stored sessions against the hosted gateway under a timeout
//     race, subscribes to the gateway's change-event stream before settling,
//     and gates every async write behind a generation counter so a stale
//     initialization can never overwrite newer state.
//   - Statuses: initializing, unauthenticated, authenticating, authenticated,
//     signing_out. User is populated iff authenticated; an error rides only
//     on unauthenticated.
//
// Business context:
//   - BusinessContext caches the user's active business and talks to a
//     BusinessResolver for persistence, auto selection, and access checks.
//     BusinessWatcher publishes the loading/error/value triple views bind to.
//
// Guarding:
//   - EvaluateRoute is a pure function from (auth snapshot, resolve state,
//     path) to allow/pending/redirect; RouteGuard adapts it into go-router
//     middleware with the return-path cookie dance.
//
// Providers:
//   - provider/hosted speaks the hosted service's REST API; provider/local
//     is a bun-backed gateway for development and tests. resolver/bunresolver
//     persists business associations in SQL.
package authclient
