// Package auth implements the kubeconsole authentication core: local
// password login, Google OAuth2 and SAML 2.0 single sign-on, first-use
// account provisioning, and signed session token issuance.
//
// # Overview
//
// Every login method funnels into the same place: a provider establishes a
// trusted identity, resolves it to a local Account, and hands the account to
// the session Issuer, which signs time-bounded claims and records the login.
//
// # Account lifecycle
//
// Accounts are created in exactly two ways:
//
//  1. Bootstrap signup: the very first account in an empty system, created
//     through POST /api/v1/auth/signup with no validation token. It becomes
//     the administrator.
//  2. Invitation: an account pre-created elsewhere with an invite token and
//     no validated email. It becomes active when the invitee completes
//     password signup with the token, or when a Google/SAML login resolves
//     to its email.
//
// External providers never create accounts. A Google or SAML identity with
// no matching account is rejected.
//
// # Related packages
//
//   - pkg/storage: account, namespace and settings persistence
//   - pkg/middleware: session token verification for the rest of the console
package auth
