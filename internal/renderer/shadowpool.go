package renderer

// shadowPool hands out layer indices of a shadow map array. Released layers
// are reused LIFO; when empty the caller grows the backing array and expands
// the pool by the same amount.
type shadowPool struct {
	freeLayers  []int
	totalLayers int
}

// reserve pops a free layer, or returns -1 when the pool needs expansion.
func (p *shadowPool) reserve() int {
	if n := len(p.freeLayers); n > 0 {
		layer := p.freeLayers[n-1]
		p.freeLayers = p.freeLayers[:n-1]
		return layer
	}
	return -1
}

// release returns a layer to the pool. Out-of-range layers are ignored.
func (p *shadowPool) release(layer int) {
	if layer < 0 || layer >= p.totalLayers {
		return
	}
	p.freeLayers = append(p.freeLayers, layer)
}

// expand adds addCount fresh layers to the free list.
func (p *shadowPool) expand(addCount int) {
	for i := p.totalLayers; i < p.totalLayers+addCount; i++ {
		p.freeLayers = append(p.freeLayers, i)
	}
	p.totalLayers += addCount
}
