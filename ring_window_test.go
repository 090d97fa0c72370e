package main

import (
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/test"
	"github.com/borgmon/wakeup/pkg/models"
	"github.com/borgmon/wakeup/pkg/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// texts collects the canvas texts of a container tree
func texts(obj fyne.CanvasObject) []*canvas.Text {
	switch o := obj.(type) {
	case *canvas.Text:
		return []*canvas.Text{o}
	case *fyne.Container:
		var out []*canvas.Text
		for _, child := range o.Objects {
			out = append(out, texts(child)...)
		}
		return out
	}
	return nil
}

func TestRingWindowClockFollowsZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	zone := platform.NewZone(time.UTC)
	fixed := time.Date(2024, 1, 3, 12, 30, 0, 0, time.UTC)
	now := func() time.Time { return fixed.In(zone.Location()) }

	rw := NewRingWindow(test.NewApp(), time.Second, nil, now, func(models.RingParams) {}, func(int) {})
	params := models.RingParams{AlarmID: 1, Label: "Gym", SnoozeMinutes: 10}

	got := texts(rw.buildUI(params, time.Second))
	require.NotEmpty(t, got)
	assert.Equal(t, "12:30", got[0].Text)
	assert.Equal(t, "Gym", got[1].Text)

	zone.Set(ny)
	got = texts(rw.buildUI(params, time.Second))
	assert.Equal(t, "07:30", got[0].Text, "the clock shows the new zone")
}
