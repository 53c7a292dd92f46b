// Package accounts provides a user account service: registration with
// bcrypt credentials, stateful JWT sessions, email verification, and
// avatar management, exposed as a Fiber JSON API backed by Bun.
//
// Sessions:
//   - Login signs a JWT and stores it as the account's single active
//     session. The tokenware guard accepts a bearer token only while it
//     is both cryptographically valid and still the stored session, so
//     logout and re-login invalidate earlier tokens immediately.
//
// Verification:
//   - Registration mints an opaque verification token and emails it as a
//     link. Consuming the link marks the account verified and retires
//     the token; repeat requests for a verified account are rejected.
//     Email delivery is best-effort and never blocks the request path.
//
// Avatars:
//   - Uploaded images are normalized to a square JPEG thumbnail and
//     served from a static prefix, with the public URL stored on the
//     account.
package accounts
