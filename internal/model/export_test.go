package model

// SetNvidiaDevicePathForTest swaps the probed device node and returns a
// restore func.
func SetNvidiaDevicePathForTest(p string) func() {
	old := nvidiaDevicePath
	nvidiaDevicePath = p
	return func() { nvidiaDevicePath = old }
}
