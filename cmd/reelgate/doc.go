// Command reelgate runs the reviewed video pipeline and manages its storage.
//
// serve starts the HTTP service; migrate copies local videos into the
// configured remote backend; videos, backend, config, and notify are
// operator utilities that work without a running service.
package main
