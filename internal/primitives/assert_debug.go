//go:build !rtkernel_release

package primitives

const assertEnabled = true
