package gpu

import (
	"fmt"
	"strings"

	"github.com/gekko3d/splat/splatrt/rt/core"
)

type pipelineCacheKey struct {
	key    SpecializationKey
	layout string
}

// PipelineCache memoizes Specialize by key and vertex layout. Entries never expire.
// It is not safe for concurrent use.
type PipelineCache struct {
	entries map[pipelineCacheKey]*PipelineConfig
	hits    int
	misses  int
}

func NewPipelineCache() *PipelineCache {
	return &PipelineCache{entries: make(map[pipelineCacheKey]*PipelineConfig)}
}

// Get returns the cached configuration or specializes a new one. Failures are not cached.
func (c *PipelineCache) Get(key SpecializationKey, layout core.VertexLayout) (*PipelineConfig, error) {
	ck := pipelineCacheKey{key: key, layout: layoutSignature(layout)}
	if cfg, ok := c.entries[ck]; ok {
		c.hits++
		return cfg, nil
	}
	c.misses++
	cfg, err := Specialize(key, layout)
	if err != nil {
		return nil, err
	}
	c.entries[ck] = cfg
	return cfg, nil
}

func (c *PipelineCache) Len() int {
	return len(c.entries)
}

// Stats returns cache hits and misses so far.
func (c *PipelineCache) Stats() (hits, misses int) {
	return c.hits, c.misses
}

func layoutSignature(layout core.VertexLayout) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", layout.Stride)
	for _, a := range layout.Attributes {
		fmt.Fprintf(&sb, "|%d:%d:%d", a.Id, a.Format, a.Offset)
	}
	return sb.String()
}
