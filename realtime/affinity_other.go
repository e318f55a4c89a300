//go:build !linux

package realtime

import "errors"

func setAffinity(int) error {
	return errors.New("realtime: cpu pinning is only supported on linux")
}
