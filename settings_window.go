package main

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/borgmon/wakeup/pkg/models"
	"github.com/borgmon/wakeup/pkg/sounds"
	"github.com/borgmon/wakeup/pkg/ui/components"
	"go.uber.org/zap"
)

type SettingsWindow struct {
	window fyne.Window
	w      *WakeUp
	config *models.Config
	onSave func(*models.Config)

	// General
	autoStartCheck *widget.Check
	logLevelSelect *widget.Select

	// Ringing
	exactCheck      *widget.Check
	fullScreenCheck *widget.Check
	fadeSelect      *widget.Select
	holdTimeSelect  *widget.Select
	snoozeSelect    *widget.Select
	wakeLockSelect  *widget.Select
	soundsList      *components.ListManager

	// UI state
	hasUnsavedChanges bool
	saveStatusLabel   *widget.Label
	saveButton        *widget.Button
}

func NewSettingsWindow(w *WakeUp, config *models.Config, onSave func(*models.Config)) *SettingsWindow {
	sw := &SettingsWindow{
		w:      w,
		config: config,
		onSave: onSave,
	}
	sw.window = w.app.NewWindow("Wake Up - Settings")
	sw.buildUI()
	return sw
}

func (sw *SettingsWindow) Show() {
	sw.window.Show()
}

func (sw *SettingsWindow) buildUI() {
	tabs := container.NewAppTabs(
		container.NewTabItem("General", sw.buildGeneralTab()),
		container.NewTabItem("Ringing", sw.buildRingingTab()),
		container.NewTabItem("Sounds", sw.buildSoundsTab()),
	)
	// Filling in the widgets fired their change callbacks
	sw.hasUnsavedChanges = false

	sw.saveStatusLabel = widget.NewLabel("")
	sw.saveStatusLabel.Importance = widget.SuccessImportance

	sw.saveButton = widget.NewButton("Save", sw.save)
	sw.saveButton.Importance = widget.HighImportance
	sw.saveButton.Disable() // Initially disabled until changes are made

	previewButton := widget.NewButton("Preview Ring", func() {
		sw.w.preview(models.DefaultSound)
	})
	closeButton := widget.NewButton("Close", sw.handleClose)

	buttonRow := container.NewBorder(
		nil,
		nil,
		container.NewHBox(sw.saveButton, sw.saveStatusLabel),
		container.NewHBox(previewButton, closeButton),
		container.NewHBox(),
	)

	sw.window.SetContent(container.NewBorder(nil, container.NewPadded(buttonRow), nil, nil, tabs))
	sw.window.Resize(fyne.NewSize(720, 560))
	sw.window.CenterOnScreen()

	sw.window.Canvas().SetOnTypedKey(func(key *fyne.KeyEvent) {
		if key.Name == fyne.KeyEscape {
			sw.handleClose()
		}
	})
	sw.window.SetCloseIntercept(sw.handleClose)
}

func (sw *SettingsWindow) buildGeneralTab() fyne.CanvasObject {
	sw.autoStartCheck = widget.NewCheck("Auto Start on System Boot", func(bool) { sw.markChanged() })
	sw.autoStartCheck.SetChecked(sw.config.AutoStart)

	sw.logLevelSelect = widget.NewSelect([]string{"debug", "info", "warn", "error"}, func(string) { sw.markChanged() })
	sw.logLevelSelect.SetSelected(sw.config.LogLevel)

	storageURIEntry := widget.NewEntry()
	storageURIEntry.SetText(sw.w.app.Storage().RootURI().String())
	storageURIEntry.Disable()

	openStorageButton := widget.NewButton("Open in File Manager", func() {
		openInFileManager(sw.w.app.Storage().RootURI().Path(), sw.w.logger)
	})

	autoStartHelp := widget.NewLabel("Launch Wake Up automatically when your system starts")
	storageHelp := widget.NewLabel("Alarms, settings and the ring history are stored here")
	storageHelp.Wrapping = fyne.TextWrapWord

	form := container.New(layout.NewFormLayout(),
		container.NewVBox(widget.NewLabel("Auto Start:"), autoStartHelp),
		sw.autoStartCheck,

		widget.NewLabel("Log Level:"),
		sw.logLevelSelect,

		container.NewVBox(widget.NewLabel("Storage Location:"), storageHelp),
		container.NewBorder(nil, container.NewPadded(openStorageButton), nil, nil, storageURIEntry),
	)

	return container.NewPadded(container.NewVScroll(container.NewVBox(
		widget.NewLabel("General Settings"),
		widget.NewSeparator(),
		form,
	)))
}

func (sw *SettingsWindow) buildRingingTab() fyne.CanvasObject {
	sw.exactCheck = widget.NewCheck("Exact alarm timing", func(bool) { sw.markChanged() })
	sw.exactCheck.SetChecked(sw.config.ExactAlarms)
	exactHelp := widget.NewLabel("When off, alarms may ring up to a minute late")

	sw.fullScreenCheck = widget.NewCheck("Full-screen ring window", func(bool) { sw.markChanged() })
	sw.fullScreenCheck.SetChecked(sw.config.FullScreenAllowed)
	fullScreenHelp := widget.NewLabel("When off, a notification is shown instead")

	sw.fadeSelect = widget.NewSelect(numberOptions(0, 60, "%d sec"), func(string) { sw.markChanged() })
	sw.fadeSelect.SetSelected(fmt.Sprintf("%d sec", sw.config.FadeSeconds))

	sw.holdTimeSelect = widget.NewSelect(numberOptions(1, 10, "%d sec"), func(string) { sw.markChanged() })
	sw.holdTimeSelect.SetSelected(fmt.Sprintf("%d sec", clampInt(sw.config.HoldTimeSeconds, 1, 10)))

	sw.snoozeSelect = widget.NewSelect(numberOptions(1, 30, "%d min"), func(string) { sw.markChanged() })
	sw.snoozeSelect.SetSelected(fmt.Sprintf("%d min", sw.config.DefaultSnoozeMinutes))

	sw.wakeLockSelect = widget.NewSelect(numberOptions(1, 60, "%d min"), func(string) { sw.markChanged() })
	sw.wakeLockSelect.SetSelected(fmt.Sprintf("%d min", sw.config.WakeLockMinutes))

	form := container.New(layout.NewFormLayout(),
		container.NewVBox(widget.NewLabel("Timing:"), exactHelp),
		sw.exactCheck,
		container.NewVBox(widget.NewLabel("Presentation:"), fullScreenHelp),
		sw.fullScreenCheck,
		widget.NewLabel("Fade-in:"),
		sw.fadeSelect,
		widget.NewLabel("Hold to confirm:"),
		sw.holdTimeSelect,
		widget.NewLabel("Snooze for new alarms:"),
		sw.snoozeSelect,
		widget.NewLabel("Keep awake at most:"),
		sw.wakeLockSelect,
	)

	return container.NewPadded(container.NewVScroll(container.NewVBox(
		widget.NewLabel("Ringing Settings"),
		widget.NewSeparator(),
		form,
	)))
}

func (sw *SettingsWindow) buildSoundsTab() fyne.CanvasObject {
	var list *components.ListManager
	list, listContainer := components.NewListManager(customItems(sw.w.sounds.All()), components.ListManagerConfig{
		OnAdd: func() {
			open := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
				if err != nil {
					dialog.ShowError(err, sw.window)
					return
				}
				if reader == nil {
					return
				}
				reader.Close()

				path := reader.URI().Path()
				title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				if err := sw.w.sounds.Add(path, title); err != nil {
					dialog.ShowError(fmt.Errorf("%s", models.ErrorDescription(err)), sw.window)
					return
				}
				list.SetData(customItems(sw.w.sounds.All()))
			}, sw.window)
			open.SetFilter(storage.NewExtensionFileFilter([]string{".wav"}))
			open.Show()
		},
		OnRemove: func(item components.Item) {
			sw.w.sounds.Remove(item.ID)
		},
	})
	sw.soundsList = list

	help := widget.NewLabel("Custom sounds are WAV files. Alarms using a removed sound ring with the default sound.")
	help.Wrapping = fyne.TextWrapWord

	return container.NewPadded(container.NewVBox(
		widget.NewLabel("Custom Sounds"),
		widget.NewSeparator(),
		help,
		listContainer,
	))
}

func customItems(all []sounds.Sound) []components.Item {
	items := []components.Item{}
	for _, s := range all {
		if s.Kind == sounds.File {
			items = append(items, components.Item{ID: s.ID, Title: s.Title})
		}
	}
	return items
}

func (sw *SettingsWindow) save() {
	sw.saveButton.Disable()
	newConfig := sw.getConfigFromUI()

	sw.onSave(newConfig)
	sw.config = newConfig
	sw.hasUnsavedChanges = false
	sw.updateSaveButtonState()

	sw.saveStatusLabel.SetText("Settings saved successfully")
	sw.saveStatusLabel.Importance = widget.SuccessImportance
	sw.saveStatusLabel.Refresh()

	// Clear success message after 3 seconds
	time.AfterFunc(3*time.Second, func() {
		fyne.Do(func() {
			if sw.saveStatusLabel.Text == "Settings saved successfully" {
				sw.saveStatusLabel.SetText("")
			}
		})
	})
}

func (sw *SettingsWindow) getConfigFromUI() *models.Config {
	c := *sw.config
	c.AutoStart = sw.autoStartCheck.Checked
	c.LogLevel = sw.logLevelSelect.Selected
	c.ExactAlarms = sw.exactCheck.Checked
	c.FullScreenAllowed = sw.fullScreenCheck.Checked
	fmt.Sscanf(sw.fadeSelect.Selected, "%d sec", &c.FadeSeconds)
	fmt.Sscanf(sw.holdTimeSelect.Selected, "%d sec", &c.HoldTimeSeconds)
	fmt.Sscanf(sw.snoozeSelect.Selected, "%d min", &c.DefaultSnoozeMinutes)
	fmt.Sscanf(sw.wakeLockSelect.Selected, "%d min", &c.WakeLockMinutes)
	// Custom sounds are saved as soon as they change
	c.CustomSounds = sw.w.configStore.Load().CustomSounds
	return &c
}

// markChanged marks the config as having unsaved changes
func (sw *SettingsWindow) markChanged() {
	sw.hasUnsavedChanges = true
	sw.updateSaveButtonState()
}

func (sw *SettingsWindow) updateSaveButtonState() {
	if sw.saveButton == nil {
		return
	}
	if sw.hasUnsavedChanges {
		sw.saveButton.Enable()
	} else {
		sw.saveButton.Disable()
	}
}

// handleClose asks before dropping unsaved changes
func (sw *SettingsWindow) handleClose() {
	if !sw.hasActualChanges() {
		sw.window.Close()
		return
	}
	dialog.ShowConfirm("Unsaved Changes",
		"You have unsaved changes. Are you sure you want to close?",
		func(confirmed bool) {
			if confirmed {
				sw.window.Close()
			}
		}, sw.window)
}

func (sw *SettingsWindow) hasActualChanges() bool {
	current := sw.getConfigFromUI()
	saved := *sw.config
	saved.CustomSounds = current.CustomSounds
	return !reflect.DeepEqual(*current, saved)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func openInFileManager(path string, logger *zap.Logger) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", path)
	case "linux":
		cmd = exec.Command("xdg-open", path)
	default:
		logger.Warn("Unsupported OS for file manager", zap.String("os", runtime.GOOS))
		return
	}

	if err := cmd.Start(); err != nil {
		logger.Warn("Error opening file manager", zap.String("path", path), zap.Error(err))
	}
}
