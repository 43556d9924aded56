package core

import (
	"fmt"
	"os"
	"runtime/pprof"
	"sort"
	"strings"
)

// BlockProfiler CPU-profiles a block of script statements. Scripts start
// one through the profiler auto name and stop it when the block ends.
type BlockProfiler struct {
	file *os.File
}

// StartBlockProfiler begins CPU profiling into <basePath>[_k_v...].pprof,
// with the tag pairs sorted by key so the same tags always name the same
// file.
func StartBlockProfiler(basePath string, tags map[string]string) (*BlockProfiler, error) {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(basePath)
	for _, k := range keys {
		b.WriteString("_")
		b.WriteString(k)
		b.WriteString("_")
		b.WriteString(tags[k])
	}
	b.WriteString(".pprof")

	f, err := os.Create(b.String())
	if err != nil {
		return nil, fmt.Errorf("create profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("start cpu profile: %w", err)
	}
	return &BlockProfiler{file: f}, nil
}

// FilePath is where the profile is being written.
func (p *BlockProfiler) FilePath() string { return p.file.Name() }

// Stop ends profiling and closes the profile file.
func (p *BlockProfiler) Stop() error {
	pprof.StopCPUProfile()
	return p.file.Close()
}
