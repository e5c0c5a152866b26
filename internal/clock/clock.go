// Package clock isolates time acquisition so run timestamps can be frozen in
// tests.
package clock

import "time"

// NowFunc supplies the current time; tests override it for determinism.
var NowFunc = time.Now

// Now returns the current time via NowFunc.
func Now() time.Time { return NowFunc() }
