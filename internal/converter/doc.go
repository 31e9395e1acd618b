// Package converter defines the document converter contract exercised by the
// interop suite and implements it on top of the ProvStore REST API: upload the
// document, download it in the target format, then delete it.
package converter
