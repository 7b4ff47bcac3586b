// go:linkname compatibility for github.com/grailbio/hts/sam on Go 1.21.
//
// hts/sam's randomized free pool declares
//
//	//go:linkname fastrand sync.fastrand
//
// and relies on the runtime pushing that symbol into package sync, which
// the runtime stopped doing in Go 1.21 (sync only receives fastrandn now).
// runtime.fastrand itself still exists in Go 1.21, so this file restores
// the old alias: it pulls runtime.fastrand and re-exports it under the
// sync.fastrand symbol name, exactly the wiring Go <= 1.20 provided.
// Go <= 1.20 defines sync.fastrand itself and Go >= 1.22 removes
// runtime.fastrand, so the shim is constrained to Go 1.21 only.

//go:build go1.21 && !go1.22

package bamprovider

import _ "unsafe" // for go:linkname

//go:linkname runtime_fastrand runtime.fastrand
func runtime_fastrand() uint32

//go:linkname sync_fastrand sync.fastrand
func sync_fastrand() uint32 { return runtime_fastrand() }
