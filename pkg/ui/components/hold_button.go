package components

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const holdTick = 50 * time.Millisecond

// HoldButton confirms only after being held down for Hold. Releasing or
// leaving the button early resets the progress.
type HoldButton struct {
	widget.BaseWidget
	Text      string
	Hold      time.Duration
	OnConfirm func()

	mu        sync.Mutex
	holding   bool
	hovered   bool
	progress  float64
	ticker    *time.Ticker
	confirmed bool
}

// NewHoldButton creates a new HoldButton
func NewHoldButton(text string, hold time.Duration, onConfirm func()) *HoldButton {
	if hold < holdTick {
		hold = holdTick
	}
	b := &HoldButton{
		Text:      text,
		Hold:      hold,
		OnConfirm: onConfirm,
	}
	b.ExtendBaseWidget(b)
	return b
}

// CreateRenderer implements fyne.Widget
func (b *HoldButton) CreateRenderer() fyne.WidgetRenderer {
	text := canvas.NewText(b.Text, theme.Color(theme.ColorNameForeground))
	text.Alignment = fyne.TextAlignCenter
	text.TextSize = theme.TextSubHeadingSize()

	bg := canvas.NewRectangle(theme.Color(theme.ColorNameButton))
	progressBar := canvas.NewRectangle(theme.Color(theme.ColorNamePrimary))

	return &holdButtonRenderer{
		button:      b,
		text:        text,
		bg:          bg,
		progressBar: progressBar,
	}
}

// Progress reports how far the current hold has got, from 0 to 1
func (b *HoldButton) Progress() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.progress
}

// Reset clears a confirmed state so the button can be used again
func (b *HoldButton) Reset() {
	b.mu.Lock()
	b.confirmed = false
	b.mu.Unlock()
	b.release()
}

// Tapped implements fyne.Tappable
func (b *HoldButton) Tapped(*fyne.PointEvent) {}

// TappedSecondary implements fyne.SecondaryTappable
func (b *HoldButton) TappedSecondary(*fyne.PointEvent) {}

// MouseIn implements desktop.Hoverable
func (b *HoldButton) MouseIn(*desktop.MouseEvent) {
	b.mu.Lock()
	b.hovered = true
	b.mu.Unlock()
	b.Refresh()
}

// MouseMoved implements desktop.Hoverable
func (b *HoldButton) MouseMoved(*desktop.MouseEvent) {}

// MouseOut implements desktop.Hoverable
func (b *HoldButton) MouseOut() {
	b.mu.Lock()
	b.hovered = false
	b.mu.Unlock()
	b.release()
}

// MouseDown implements desktop.Mouseable
func (b *HoldButton) MouseDown(*desktop.MouseEvent) {
	b.press()
}

// MouseUp implements desktop.Mouseable
func (b *HoldButton) MouseUp(*desktop.MouseEvent) {
	b.release()
}

func (b *HoldButton) press() {
	b.mu.Lock()
	if b.holding || b.confirmed {
		b.mu.Unlock()
		return
	}
	b.holding = true
	b.progress = 0
	ticker := time.NewTicker(holdTick)
	b.ticker = ticker
	b.mu.Unlock()

	b.Refresh()
	go b.track(ticker)
}

func (b *HoldButton) track(ticker *time.Ticker) {
	increment := float64(holdTick) / float64(b.Hold)
	for range ticker.C {
		b.mu.Lock()
		if !b.holding || b.ticker != ticker {
			b.mu.Unlock()
			return
		}
		b.progress += increment
		done := b.progress >= 1
		if done {
			b.progress = 1
			b.holding = false
			b.confirmed = true
			ticker.Stop()
		}
		b.mu.Unlock()

		fyne.Do(b.Refresh)
		if done {
			if b.OnConfirm != nil {
				b.OnConfirm()
			}
			return
		}
	}
}

func (b *HoldButton) release() {
	b.mu.Lock()
	b.holding = false
	if b.ticker != nil {
		b.ticker.Stop()
		b.ticker = nil
	}
	if !b.confirmed {
		b.progress = 0
	}
	b.mu.Unlock()
	b.Refresh()
}

type holdButtonRenderer struct {
	button      *HoldButton
	text        *canvas.Text
	bg          *canvas.Rectangle
	progressBar *canvas.Rectangle
}

func (r *holdButtonRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.text.Resize(size)

	// Progress bar fills from left to right
	r.progressBar.Resize(fyne.NewSize(size.Width*float32(r.button.Progress()), size.Height))
	r.progressBar.Move(fyne.NewPos(0, 0))
}

func (r *holdButtonRenderer) MinSize() fyne.Size {
	textSize := r.text.MinSize()
	minWidth := textSize.Width + theme.Padding()*4
	minHeight := textSize.Height + theme.Padding()*2

	// Set minimum button size for better usability
	if minWidth < 300 {
		minWidth = 300
	}
	if minHeight < 80 {
		minHeight = 80
	}

	return fyne.NewSize(minWidth, minHeight)
}

func (r *holdButtonRenderer) Refresh() {
	r.button.mu.Lock()
	hovered := r.button.hovered
	r.button.mu.Unlock()

	r.text.Text = r.button.Text
	r.text.Color = theme.Color(theme.ColorNameForeground)

	if hovered {
		r.bg.FillColor = theme.Color(theme.ColorNameHover)
	} else {
		r.bg.FillColor = theme.Color(theme.ColorNameButton)
	}

	size := r.bg.Size()
	r.progressBar.Resize(fyne.NewSize(size.Width*float32(r.button.Progress()), size.Height))

	r.bg.Refresh()
	r.progressBar.Refresh()
	r.text.Refresh()
}

func (r *holdButtonRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.bg, r.progressBar, r.text}
}

func (r *holdButtonRenderer) Destroy() {}

func (r *holdButtonRenderer) BackgroundColor() color.Color {
	return theme.Color(theme.ColorNameButton)
}
