// Package api implements an in-memory emulator of the ProvStore documents API:
// upload (POST), download in a format (GET {id}.{format}), metadata
// (GET {id}) and deletion (DELETE {id}). The emulator only serves a document
// in the format it was uploaded in.
package api
