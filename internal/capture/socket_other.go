//go:build !linux

package capture

import "errors"

const SocketEngine = "socket"

func init() {
	Register(SocketEngine, func(Options) (Handle, error) {
		return nil, errors.New("raw socket capture is only supported on linux")
	})
}
