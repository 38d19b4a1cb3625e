// Package renderer displays the draws issued by the command processor in an
// Ebitengine window.
package renderer

import (
	"errors"
	"fmt"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/zeozeozeo/gopm4/emulator"
)

const (
	SCREEN_WIDTH  = 640
	SCREEN_HEIGHT = 360
	BAR_WIDTH     = 6
	BAR_GAP       = 2
	TEXT_HEIGHT   = 64 // Space reserved for the debug text
)

// Returned by RunGame once the viewer is stopped
var ErrStopped = errors.New("viewer stopped")

var emptyImage = ebiten.NewImage(3, 3)

func init() {
	emptyImage.Fill(color.White)
}

// Viewer plots one bar per recorded draw, its height given by the index
// count. Implements emulator.Rasterizer and ebiten.Game
type Viewer struct {
	DrawData *emulator.DrawData

	stopOnce sync.Once
	stopped  chan struct{}
}

// Returns a new viewer keeping the last draws that fit in the window
func NewViewer() *Viewer {
	return &Viewer{
		DrawData: emulator.NewDrawData(SCREEN_WIDTH / (BAR_WIDTH + BAR_GAP)),
		stopped:  make(chan struct{}),
	}
}

// Called from the processing loop for every indexed draw
func (viewer *Viewer) DrawIndex(regs *emulator.Registers) {
	viewer.DrawData.DrawIndex(regs)
}

// Makes the next Update end the game loop
func (viewer *Viewer) Stop() {
	viewer.stopOnce.Do(func() {
		close(viewer.stopped)
	})
}

// Opens the window and runs the game loop until it is closed or Stop is
// called. Must be called from the main goroutine
func (viewer *Viewer) Run() error {
	ebiten.SetWindowSize(SCREEN_WIDTH*2, SCREEN_HEIGHT*2)
	ebiten.SetWindowTitle("gopm4")
	ebiten.SetWindowResizable(true)

	err := ebiten.RunGame(viewer)
	if errors.Is(err, ErrStopped) {
		return nil
	}
	return err
}

func (viewer *Viewer) Update() error {
	select {
	case <-viewer.stopped:
		return ErrStopped
	default:
		return nil
	}
}

func (viewer *Viewer) Draw(screen *ebiten.Image) {
	calls := viewer.DrawData.Snapshot()

	// the tallest draw fills the plot area
	var peak uint32
	for _, call := range calls {
		if call.State.NumIndices > peak {
			peak = call.State.NumIndices
		}
	}

	vertices := make([]ebiten.Vertex, 0, len(calls)*4)
	indices := make([]uint16, 0, len(calls)*6)
	plotHeight := float32(SCREEN_HEIGHT - TEXT_HEIGHT)

	for idx, call := range calls {
		height := float32(1)
		if peak > 0 {
			height = plotHeight * float32(call.State.NumIndices) / float32(peak)
		}
		x0 := float32(idx * (BAR_WIDTH + BAR_GAP))
		x1 := x0 + BAR_WIDTH
		y1 := float32(SCREEN_HEIGHT)
		y0 := y1 - height

		clr := barColor(call.State)
		base := uint16(len(vertices))
		for _, pos := range [4][2]float32{{x0, y0}, {x1, y0}, {x0, y1}, {x1, y1}} {
			vertices = append(vertices, ebiten.Vertex{
				DstX:   pos[0],
				DstY:   pos[1],
				SrcX:   1,
				SrcY:   1,
				ColorR: float32(clr.R) / 255,
				ColorG: float32(clr.G) / 255,
				ColorB: float32(clr.B) / 255,
				ColorA: 1, // should always be 1
			})
		}
		indices = append(indices, base, base+1, base+2, base+1, base+3, base+2)
	}

	if len(vertices) > 0 {
		screen.DrawTriangles(vertices, indices, emptyImage, &ebiten.DrawTrianglesOptions{})
	}

	text := fmt.Sprintf("draws: %d  tps: %0.1f\n", viewer.DrawData.Total(), ebiten.ActualTPS())
	if len(calls) > 0 {
		text += calls[len(calls)-1].State.String()
	}
	ebitenutil.DebugPrint(screen, text)
}

func (viewer *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return SCREEN_WIDTH, SCREEN_HEIGHT
}

// 16 bit index buffers are drawn in blue, 32 bit ones in orange
func barColor(state emulator.DrawState) color.RGBA {
	if emulator.IndexType(state.IndexBufferType&3) == emulator.INDEX_TYPE_32BIT {
		return color.RGBA{0xf0, 0x90, 0x30, 0xff}
	}
	return color.RGBA{0x40, 0x90, 0xf0, 0xff}
}
