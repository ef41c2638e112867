// Package prof collects pprof profiles over one emulator run.
//
// Profiling is compiled in only with the "profile" build tag:
//
//	go build -tags profile ./cmd/softscsi
//	softscsi --cpuprofile cpu.prof --memprofile heap.prof script bench.lua
//
// Without the tag, [Start] returns an inactive session and [Session.Stop]
// does nothing, so call sites stay in place at no cost.
//
// A session is started once with the paths of the profiles to collect:
//
//	s, err := prof.Start(prof.Config{CPU: "cpu.prof", Heap: "heap.prof"})
//	if err != nil {
//	    return err
//	}
//	defer s.Stop()
//
// CPU samples stream to their file while the session runs. Snapshot
// profiles (heap, block, mutex) are written when the session stops. Only
// one session may run at a time; a second [Start] fails with [ErrActive].
package prof
