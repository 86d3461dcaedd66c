// Package filtering runs one suppression filter job end to end: load both
// lists, filter, render the summary and hand the output files to a
// download store.
//
// Each run is synchronous and keeps nothing once it returns. The service
// depends on the interfaces in source.go and never imports net/http.
package filtering
