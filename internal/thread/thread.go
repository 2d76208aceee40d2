// Package thread runs code on the main OS thread. SDL windows and GL contexts
// must be created and driven from it on macOS, and from one thread everywhere.
// See: https://github.com/golang/go/wiki/LockOSThread
package thread

import "github.com/faiface/mainthread"

// Main runs f in a new goroutine while the calling goroutine, which must be
// the program's main goroutine, serves Call. It returns when f returns.
func Main(f func()) { mainthread.Run(f) }

// Call runs f on the main thread and waits for it.
func Call(f func()) { mainthread.Call(f) }

// CallErr runs f on the main thread and returns its error.
func CallErr(f func() error) error { return mainthread.CallErr(f) }
