// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing participants and dialogue, and to
// script the engine's collaborators deterministically. It is not intended for
// production usage.
package testutil
