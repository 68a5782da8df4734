//go:build unix

package runner

import (
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// killTree kills pid and all of its descendants, deepest first. Build
// tools fork compilers and node processes that would otherwise outlive an
// interrupted build and keep files locked.
//
// The tree is read from the process table and signalled by pid.
// gopsutil's NewProcess, Children and Kill each open a pidfd that stays
// open until the next GC, which a long-lived server would pile up.
func killTree(pid int) {
	for _, c := range descendants(int32(pid)) {
		_ = unix.Kill(int(c), unix.SIGKILL)
	}
	_ = unix.Kill(pid, unix.SIGKILL)
}

// descendants lists every process below root, deepest first.
func descendants(root int32) []int32 {
	pids, err := process.Pids()
	if err != nil {
		return nil
	}
	children := make(map[int32][]int32)
	for _, pid := range pids {
		ppid, err := (&process.Process{Pid: pid}).Ppid()
		if err != nil {
			continue
		}
		children[ppid] = append(children[ppid], pid)
	}

	var out []int32
	var walk func(int32)
	walk = func(p int32) {
		for _, c := range children[p] {
			walk(c)
			out = append(out, c)
		}
	}
	walk(root)
	return out
}
