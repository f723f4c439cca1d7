// Package panel is the keyboard driven settings panel. It lists the tunable
// parameters of the active effect and edits them through a Controller.
package panel

import (
	"fmt"
	"log"
	"strings"

	"github.com/richinsley/goshaderfx/effects"
	"github.com/richinsley/goshaderfx/graphics"
)

// Controller is the part of the render driver the panel drives.
type Controller interface {
	Active() effects.ID
	Select(id effects.ID) error
	Param(name string) (float64, bool)
	SetParam(name string, v float64) (float64, error)
	ResetParams() error
	OnChange(fn func())
}

// Control is one row of the panel.
type Control struct {
	effects.Param
	Value float64
}

// Panel holds the rows for the active effect. All methods run on the
// thread that delivers key events.
type Panel struct {
	ctl      Controller
	save     func() error
	title    func(string)
	open     bool
	effect   effects.ID
	controls []Control
	focus    int
}

// New creates a closed panel. save persists pending edits and title, if
// not nil, receives a one line summary whenever the panel changes.
func New(ctl Controller, save func() error, title func(string)) *Panel {
	p := &Panel{ctl: ctl, save: save, title: title, focus: -1}
	ctl.OnChange(func() {
		if p.open {
			p.populate()
			p.show()
		}
	})
	return p
}

// Attach routes the window's key events to the panel.
func (p *Panel) Attach(surface graphics.Context) {
	surface.OnKey(p.HandleKey)
}

func (p *Panel) IsOpen() bool { return p.open }

// Controls returns a copy of the current rows.
func (p *Panel) Controls() []Control {
	return append([]Control(nil), p.controls...)
}

// Focused returns the focused row, if any.
func (p *Panel) Focused() (Control, bool) {
	if p.focus < 0 || p.focus >= len(p.controls) {
		return Control{}, false
	}
	return p.controls[p.focus], true
}

// Open rebuilds the rows from the parameter registry for the active effect
// and shows the panel.
func (p *Panel) Open() {
	p.open = true
	p.populate()
	p.show()
}

func (p *Panel) Close() {
	p.open = false
	p.setTitle("")
}

func (p *Panel) populate() {
	prev := ""
	if c, ok := p.Focused(); ok && p.effect == p.ctl.Active() {
		prev = c.Name
	}
	p.effect = p.ctl.Active()
	p.controls = p.controls[:0]
	p.focus = -1
	for _, prm := range effects.Params(p.effect) {
		c := Control{Param: prm}
		if !prm.Heading {
			c.Value, _ = p.ctl.Param(prm.Name)
			if p.focus < 0 || prm.Name == prev {
				p.focus = len(p.controls)
			}
		}
		p.controls = append(p.controls, c)
	}
}

func (p *Panel) show() {
	var b strings.Builder
	fmt.Fprintf(&b, "Panel: %s", effects.Label(p.effect))
	for i, c := range p.controls {
		switch {
		case c.Heading:
			fmt.Fprintf(&b, "\n  [%s]", c.Label)
		case i == p.focus:
			fmt.Fprintf(&b, "\n  > %s = %g", c.Label, c.Value)
		default:
			fmt.Fprintf(&b, "\n    %s = %g", c.Label, c.Value)
		}
	}
	log.Println(b.String())

	summary := effects.Label(p.effect)
	if c, ok := p.Focused(); ok {
		summary = fmt.Sprintf("%s | %s: %g", summary, c.Label, c.Value)
	}
	p.setTitle(summary)
}

func (p *Panel) setTitle(s string) {
	if p.title == nil {
		return
	}
	if s == "" {
		p.title("goshaderfx")
		return
	}
	p.title("goshaderfx - " + s)
}

// HandleKey applies one key press. Effect cycling works with the panel
// closed; everything else needs it open.
func (p *Panel) HandleKey(key graphics.Key, mods graphics.Mod) {
	switch key {
	case graphics.KeyF1:
		if p.open {
			p.Close()
		} else {
			p.Open()
		}
		return
	case graphics.KeyTab:
		step := 1
		if mods&graphics.ModShift != 0 {
			step = -1
		}
		p.cycle(step)
		return
	}
	if !p.open {
		return
	}

	switch key {
	case graphics.KeyUp:
		p.move(-1)
	case graphics.KeyDown:
		p.move(1)
	case graphics.KeyLeft:
		p.adjust(-1)
	case graphics.KeyRight:
		p.adjust(1)
	case graphics.KeyR:
		if err := p.ctl.ResetParams(); err != nil {
			log.Printf("Panel: reset failed: %v", err)
		}
		p.populate()
	case graphics.KeyS:
		if p.save != nil {
			if err := p.save(); err != nil {
				log.Printf("Panel: save failed: %v", err)
			}
		}
		return
	default:
		return
	}
	p.show()
}

func (p *Panel) cycle(step int) {
	ids := effects.IDs()
	cur := 0
	for i, id := range ids {
		if id == p.ctl.Active() {
			cur = i
		}
	}
	next := ids[(cur+step+len(ids))%len(ids)]
	if err := p.ctl.Select(next); err != nil {
		log.Printf("Panel: failed to select %q: %v", next, err)
	}
	if p.open {
		p.populate()
		p.show()
	}
}

// move shifts focus to the next non-heading row in dir, wrapping around.
func (p *Panel) move(dir int) {
	n := len(p.controls)
	if p.focus < 0 || n == 0 {
		return
	}
	for i, idx := 0, p.focus; i < n; i++ {
		idx = (idx + dir + n) % n
		if !p.controls[idx].Heading {
			p.focus = idx
			return
		}
	}
}

func (p *Panel) adjust(dir int) {
	c, ok := p.Focused()
	if !ok {
		return
	}
	v, err := p.ctl.SetParam(c.Name, c.Value+float64(dir)*c.Step)
	if err != nil {
		log.Printf("Panel: %v", err)
		return
	}
	p.controls[p.focus].Value = v
}
