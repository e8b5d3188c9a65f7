// Package monitoring is the diagnostic log of a conversion job. Progress
// lines (job start, beam center, artifacts written, migrations) go through
// Logf. Warnf carries the conditions a job survives: missing frame indices,
// rejected duplicate PETS keywords, a configured fallback beam center, SMV
// header fields dropped to fit 512 bytes and the skipped beam-center plot.
package monitoring

import "log"

// Logf receives every diagnostic line. It writes through log.Printf until
// SetLogger replaces it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger redirects Logf to f. A nil f mutes the log, as the package
// tests of the conversion pipeline do.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs a condition the job continues past, prefixed "warning: ".
func Warnf(format string, v ...interface{}) {
	Logf("warning: "+format, v...)
}
