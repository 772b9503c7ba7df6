//go:build !linux

package threadrt

// probeNativeAddrBackend reports no native wait/wake facility; the emulated
// bucket backend is used. Defined so runtime.go's capability probe compiles
// on all platforms.
func probeNativeAddrBackend(fallback *bucketBackend) addrBackend {
	return nil
}
