// Package omega scores a prompt/response pair for structural stability.
//
// The score is a closed-form function of the two strings' lengths and of
// whether the response carries one of the marker words. A pair is verified
// when its stability reaches Threshold (ξ = 0.842); the certification
// circuit breaker refuses to persist anything below it.
//
// Lengths are counted in UTF-16 code units so that scores agree with
// records certified by earlier JavaScript deployments.
package omega
