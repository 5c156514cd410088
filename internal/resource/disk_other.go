//go:build !unix

package resource

func readDiskUsage() float64 {
	return 0
}
