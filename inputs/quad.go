package inputs

import "github.com/richinsley/goshaderfx/gpu"

// quadVertices is a clip-space triangle strip covering the whole viewport.
var quadVertices = []float32{
	-1.0, 1.0,
	-1.0, -1.0,
	1.0, 1.0,
	1.0, -1.0,
}

// QuadLayout is the full-screen quad bound at one attribute location.
type QuadLayout struct {
	dev    gpu.Device
	vao    uint32
	attrib uint32
}

// NewQuadLayout uploads the quad with its position attribute at attrib.
func NewQuadLayout(dev gpu.Device, attrib uint32) *QuadLayout {
	return &QuadLayout{
		dev:    dev,
		vao:    dev.CreateVertexArray(attrib, quadVertices),
		attrib: attrib,
	}
}

func (q *QuadLayout) Bind()          { q.dev.BindVertexArray(q.vao) }
func (q *QuadLayout) Attrib() uint32 { return q.attrib }
func (q *QuadLayout) VAO() uint32    { return q.vao }

// Destroy releases the vertex array. Safe to call more than once.
func (q *QuadLayout) Destroy() {
	if q.vao == 0 {
		return
	}
	q.dev.DeleteVertexArray(q.vao)
	q.vao = 0
}

// QuadCache hands out one QuadLayout per attribute location so passes that
// agree on the binding share geometry.
type QuadCache struct {
	dev     gpu.Device
	layouts map[uint32]*QuadLayout
}

func NewQuadCache(dev gpu.Device) *QuadCache {
	return &QuadCache{dev: dev, layouts: make(map[uint32]*QuadLayout)}
}

// Get returns the layout for attrib, creating it on first use.
func (c *QuadCache) Get(attrib uint32) *QuadLayout {
	if q, ok := c.layouts[attrib]; ok {
		return q
	}
	q := NewQuadLayout(c.dev, attrib)
	c.layouts[attrib] = q
	return q
}

// Len reports how many distinct layouts were built.
func (c *QuadCache) Len() int { return len(c.layouts) }

// Destroy releases every layout in the cache.
func (c *QuadCache) Destroy() {
	for k, q := range c.layouts {
		q.Destroy()
		delete(c.layouts, k)
	}
}
