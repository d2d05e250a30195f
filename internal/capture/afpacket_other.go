//go:build !linux

package capture

import "errors"

const AFPacketEngine = "afpacket"

func init() {
	Register(AFPacketEngine, func(Options) (Handle, error) {
		return nil, errors.New("afpacket capture is only supported on linux")
	})
}
