package source

import "github.com/richinsley/goshaderfx/gpu"

var bars = [][3]byte{
	{192, 192, 192},
	{192, 192, 0},
	{0, 192, 192},
	{0, 192, 0},
	{192, 0, 192},
	{192, 0, 0},
	{0, 0, 192},
}

// Pattern is a generated test card: colour bars over the top two thirds, a
// grey ramp below, a 16 pixel grid, and a marker that sweeps one column per
// frame so motion is visible.
type Pattern struct {
	dev     gpu.Device
	texture uint32
	width   int
	height  int
	base    []byte
	pix     []byte
	frame   int
}

func NewPattern(dev gpu.Device, width, height int) *Pattern {
	p := &Pattern{dev: dev, width: width, height: height}
	p.base = p.render()
	p.pix = make([]byte, len(p.base))
	copy(p.pix, p.base)
	p.texture = dev.CreateTexture(width, height, gpu.RGBA8, p.pix)
	return p
}

func (p *Pattern) render() []byte {
	pix := make([]byte, p.width*p.height*4)
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			var c [3]byte
			if y < p.height*2/3 {
				c = bars[x*len(bars)/p.width]
			} else {
				v := byte(x * 255 / max(p.width-1, 1))
				c = [3]byte{v, v, v}
			}
			if x%16 == 0 || y%16 == 0 {
				c = [3]byte{255, 255, 255}
			}
			i := (y*p.width + x) * 4
			pix[i], pix[i+1], pix[i+2], pix[i+3] = c[0], c[1], c[2], 255
		}
	}
	return pix
}

func (p *Pattern) Texture() uint32  { return p.texture }
func (p *Pattern) Size() (int, int) { return p.width, p.height }

// Column returns the x position of the sweeping marker.
func (p *Pattern) Column() int { return p.frame % p.width }

func (p *Pattern) Update() bool {
	prev := p.Column()
	p.frame++
	col := p.Column()
	for y := 0; y < p.height; y++ {
		i := (y*p.width + prev) * 4
		copy(p.pix[i:i+4], p.base[i:i+4])
		j := (y*p.width + col) * 4
		p.pix[j], p.pix[j+1], p.pix[j+2], p.pix[j+3] = 255, 255, 255, 255
	}
	p.dev.UpdateTexture(p.texture, p.width, p.height, gpu.RGBA8, p.pix)
	return true
}

func (p *Pattern) Close() error {
	if p.texture != 0 {
		p.dev.DeleteTexture(p.texture)
		p.texture = 0
	}
	return nil
}
