//go:build linux

package affinity

import "golang.org/x/sys/unix"

// setAffinity pins the calling thread to exactly the given cores via
// sched_setaffinity.
func setAffinity(cores []int) error {
	var set unix.CPUSet
	set.Zero()
	for _, c := range cores {
		set.Set(c)
	}
	return unix.SchedSetaffinity(0, &set)
}
