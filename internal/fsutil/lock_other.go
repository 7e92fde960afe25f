//go:build !unix

package fsutil

import "os"

// No advisory locking; the in-process mutexes still serialise a single process.
func lockFile(*os.File) error   { return nil }
func unlockFile(*os.File) error { return nil }
