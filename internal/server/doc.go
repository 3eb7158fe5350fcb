// Package server implements the HTTP side of File Drop: the password gate,
// the listing page and the upload, download and delete handlers. It also
// carries the request logging, metrics and health endpoints used by the
// production binary and by tests.
package server
