// Package effects implements the image-effects chain (spec §4.12): a
// sequence of post-process effects, each declaring a source and
// destination texture type in {HDR, SDR}, resolved against three offscreen
// ping-pong attachments (pong-HDR, ping-SDR, pong-SDR) plus ping-HDR, which
// is not a separate allocation but an alias of the render target itself.
package effects

import "github.com/ashenforge/rendercore/rerr"

// TextureType is the color space/range an effect reads or writes.
type TextureType int

const (
	TypeHDR TextureType = iota
	TypeSDR
)

func (t TextureType) String() string {
	if t == TypeSDR {
		return "SDR"
	}
	return "HDR"
}

// Color identifies which half of a type's ping-pong pair a binding refers
// to.
type Color int

const (
	ColorPing Color = iota
	ColorPong
)

func (c Color) String() string {
	if c == ColorPong {
		return "pong"
	}
	return "ping"
}

func opposite(c Color) Color {
	if c == ColorPong {
		return ColorPing
	}
	return ColorPong
}

// Slot names one of the chain's four addressable attachments.
type Slot struct {
	Type  TextureType
	Color Color
}

// EffectDesc is one chain entry's declared source and destination type.
type EffectDesc struct {
	Name   string
	Source TextureType
	Dest   TextureType
}

// Binding is the resolved source/destination slot for one chain entry.
// DestIsSwapchain is true only for the chain's last entry, whose
// destination is the swapchain image rather than an offscreen slot.
type Binding struct {
	Effect          EffectDesc
	SourceSlot      Slot
	DestSlot        Slot
	DestIsSwapchain bool
}

// ResolveChain computes every effect's source/destination slot. ping-HDR
// starts as the chain's only populated slot (the aliased render target);
// each non-final effect's destination is the opposite color of its own
// source within its destination type, and every read of a type must be
// preceded by some earlier write to that type (or be the initial HDR
// render target). The final effect's destination is always the swapchain,
// regardless of its declared Dest type.
func ResolveChain(chain []EffectDesc) ([]Binding, error) {
	if len(chain) == 0 {
		return nil, rerr.Newf(rerr.BadInput, "effects.ResolveChain", "chain must declare at least one effect")
	}
	if chain[0].Source != TypeHDR {
		return nil, rerr.Newf(rerr.BadInput, "effects.ResolveChain",
			"first effect %q reads %v; the chain always starts from the HDR render target", chain[0].Name, chain[0].Source)
	}

	active := map[TextureType]Color{TypeHDR: ColorPing}
	written := map[TextureType]bool{TypeHDR: true}

	bindings := make([]Binding, len(chain))
	for i, e := range chain {
		if !written[e.Source] {
			return nil, rerr.Newf(rerr.BadInput, "effects.ResolveChain",
				"effect %d (%q) reads %v before any prior effect writes it", i, e.Name, e.Source)
		}

		srcColor := active[e.Source]
		last := i == len(chain)-1
		b := Binding{
			Effect:          e,
			SourceSlot:      Slot{Type: e.Source, Color: srcColor},
			DestIsSwapchain: last,
		}
		if !last {
			destColor := opposite(srcColor)
			b.DestSlot = Slot{Type: e.Dest, Color: destColor}
			active[e.Dest] = destColor
			written[e.Dest] = true
		}
		bindings[i] = b
	}
	return bindings, nil
}
