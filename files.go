/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
)

// humanReadableSize formats byte counts for the serve log, in SI units.
func humanReadableSize(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d B", n)
	}

	size := float64(n)
	for _, prefix := range "kMGTPE" {
		size /= 1000
		if size < 1000 {
			return fmt.Sprintf("%.1f %cB", size, prefix)
		}
	}

	return fmt.Sprintf("%.1f EB", size)
}
