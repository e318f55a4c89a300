//go:build rtkernel_release

package primitives

// Contract checks compile out in release builds.
const assertEnabled = false
