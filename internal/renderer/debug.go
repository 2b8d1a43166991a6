package renderer

import "github.com/Bigfoot71/r3d-sub000/internal/logger"

// Debug enables contract assertions and wireframe-style diagnostics. Contract
// violations panic only when this is set; release builds log and continue.
var Debug bool

func debugAssert(cond bool, msg string) {
	if cond {
		return
	}
	if Debug {
		panic("renderer: " + msg)
	}
	logger.Log.Error("Contract violation: " + msg)
}
