package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/borgmon/wakeup/pkg/alarms"
	"github.com/borgmon/wakeup/pkg/calendar"
	"github.com/borgmon/wakeup/pkg/models"
	"github.com/borgmon/wakeup/pkg/ringing"
	"github.com/borgmon/wakeup/pkg/trigger"
	"go.uber.org/zap"
)

const (
	allGroups = "All groups"
	anyDay    = "Any day"
)

var alarmColumns = []string{"On", "Time", "Label", "Group", "Days", "Next"}

// AlarmsWindow lists the alarms and edits them through the alarm manager
type AlarmsWindow struct {
	window fyne.Window
	w      *WakeUp

	table       *widget.Table
	data        []models.Alarm
	selectedRow int
	groupSelect *widget.Select
	daySelect   *widget.Select
	groupsLabel *widget.Label
}

func NewAlarmsWindow(w *WakeUp) *AlarmsWindow {
	aw := &AlarmsWindow{
		w:           w,
		selectedRow: -1,
	}
	aw.window = w.app.NewWindow("Wake Up - Alarms")
	aw.buildUI()
	return aw
}

func (aw *AlarmsWindow) Show() {
	aw.window.Show()
}

func (aw *AlarmsWindow) buildUI() {
	aw.table = widget.NewTable(
		func() (int, int) {
			return len(aw.data), len(alarmColumns)
		},
		func() fyne.CanvasObject {
			label := widget.NewLabel("Template")
			label.Truncation = fyne.TextTruncateEllipsis
			return label
		},
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			label := obj.(*widget.Label)
			if id.Row >= len(aw.data) {
				label.SetText("")
				return
			}
			a := aw.data[id.Row].Normalize()
			label.SetText(alarmCell(a, id.Col, aw.w.zone.Now()))

			// Gray out disabled alarms
			if a.Enabled {
				label.Importance = widget.MediumImportance
			} else {
				label.Importance = widget.LowImportance
			}
			label.Refresh()
		},
	)
	aw.table.ShowHeaderRow = true
	aw.table.CreateHeader = func() fyne.CanvasObject {
		label := widget.NewLabel("Header")
		label.TextStyle.Bold = true
		return label
	}
	aw.table.UpdateHeader = func(id widget.TableCellID, obj fyne.CanvasObject) {
		obj.(*widget.Label).SetText(alarmColumns[id.Col])
	}
	aw.table.OnSelected = func(id widget.TableCellID) {
		aw.selectedRow = id.Row
	}
	for col, width := range []float32{50, 70, 220, 140, 180, 160} {
		aw.table.SetColumnWidth(col, width)
	}

	aw.groupSelect = widget.NewSelect([]string{allGroups}, nil)
	aw.groupSelect.SetSelected(allGroups)

	days := []string{anyDay}
	for _, d := range models.AllWeekdays {
		days = append(days, string(d))
	}
	aw.daySelect = widget.NewSelect(days, nil)
	aw.daySelect.SetSelected(anyDay)

	aw.groupSelect.OnChanged = func(string) { aw.refresh() }
	aw.daySelect.OnChanged = func(string) { aw.refresh() }

	aw.groupsLabel = widget.NewLabel("")
	aw.groupsLabel.Wrapping = fyne.TextWrapWord

	filters := container.NewHBox(
		widget.NewLabel("Group:"), aw.groupSelect,
		widget.NewLabel("Day:"), aw.daySelect,
		widget.NewButtonWithIcon("Group On", theme.ConfirmIcon(), func() { aw.toggleGroup(true) }),
		widget.NewButtonWithIcon("Group Off", theme.CancelIcon(), func() { aw.toggleGroup(false) }),
	)

	actions := container.NewHBox(
		widget.NewButtonWithIcon("Add", theme.ContentAddIcon(), func() { aw.showAlarmDialog(nil) }),
		widget.NewButtonWithIcon("Edit", theme.DocumentCreateIcon(), func() {
			if a, ok := aw.selected(); ok {
				aw.showAlarmDialog(&a)
			}
		}),
		widget.NewButtonWithIcon("Toggle", theme.MediaPlayIcon(), func() {
			if a, ok := aw.selected(); ok {
				aw.report(aw.w.alarms.Toggle(a.ID, !a.Enabled))
			}
		}),
		widget.NewButtonWithIcon("Delete", theme.DeleteIcon(), aw.confirmDelete),
	)

	transfer := container.NewHBox(
		widget.NewButtonWithIcon("Import", theme.FolderOpenIcon(), aw.importSchedule),
		widget.NewButtonWithIcon("Export", theme.DocumentSaveIcon(), aw.exportSchedule),
	)

	top := container.NewVBox(filters, aw.groupsLabel, widget.NewSeparator())
	bottom := container.NewBorder(nil, nil, actions, transfer)

	aw.window.SetContent(container.NewBorder(top, container.NewPadded(bottom), nil, nil, aw.table))
	aw.window.Resize(fyne.NewSize(900, 600))
	aw.window.CenterOnScreen()

	aw.w.alarms.OnChange(func() {
		fyne.Do(func() {
			// Callbacks of closed windows stay registered
			if aw.w.alarmsWindow == aw {
				aw.refresh()
			}
		})
	})
	aw.refresh()
}

func alarmCell(a models.Alarm, col int, now time.Time) string {
	switch col {
	case 0:
		if a.Enabled {
			return "On"
		}
		return "Off"
	case 1:
		return a.TimeString()
	case 2:
		return a.Label
	case 3:
		return a.GroupName
	case 4:
		if a.Days.IsEmpty() {
			return "Every day"
		}
		return strings.ReplaceAll(a.Days.String(), ",", ", ")
	case 5:
		if !a.Enabled {
			return ""
		}
		return trigger.Next(a, now).Format("Mon Jan 2, 15:04")
	}
	return ""
}

func (aw *AlarmsWindow) filter() alarms.Filter {
	var f alarms.Filter
	if g := aw.groupSelect.Selected; g != "" && g != allGroups {
		f.Group = g
	}
	if d, ok := models.ParseWeekday(aw.daySelect.Selected); ok {
		f.Day = &d
	}
	return f
}

func (aw *AlarmsWindow) refresh() {
	groups := aw.w.alarms.Groups()

	options := []string{allGroups}
	summary := make([]string, 0, len(groups))
	for _, g := range groups {
		options = append(options, g.Name)
		summary = append(summary, fmt.Sprintf("%s: %d/%d on", g.Name, g.Enabled, g.Total))
	}
	aw.groupSelect.Options = options
	aw.groupSelect.Refresh()
	aw.groupsLabel.SetText(strings.Join(summary, "   "))

	aw.data = aw.w.alarms.Filter(aw.filter())
	aw.selectedRow = -1
	aw.table.UnselectAll()
	aw.table.Refresh()
}

func (aw *AlarmsWindow) selected() (models.Alarm, bool) {
	if aw.selectedRow < 0 || aw.selectedRow >= len(aw.data) {
		dialog.ShowInformation("No Selection", "Please select an alarm from the table.", aw.window)
		return models.Alarm{}, false
	}
	return aw.data[aw.selectedRow], true
}

func (aw *AlarmsWindow) report(err error) {
	if err != nil {
		dialog.ShowError(fmt.Errorf("%s", models.ErrorDescription(err)), aw.window)
	}
}

func (aw *AlarmsWindow) toggleGroup(enabled bool) {
	g := aw.groupSelect.Selected
	if g == "" || g == allGroups {
		dialog.ShowInformation("No Group", "Please pick a group in the group filter first.", aw.window)
		return
	}
	_, err := aw.w.alarms.ToggleGroup(g, enabled)
	aw.report(err)
}

func (aw *AlarmsWindow) confirmDelete() {
	a, ok := aw.selected()
	if !ok {
		return
	}
	dialog.ShowConfirm("Delete Alarm",
		fmt.Sprintf("Delete the %s alarm \"%s\"?", a.TimeString(), a.Normalize().Label),
		func(confirmed bool) {
			if confirmed {
				aw.report(aw.w.alarms.Delete(a.ID))
			}
		}, aw.window)
}

func numberOptions(from, to int, format string) []string {
	out := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf(format, i))
	}
	return out
}

// showAlarmDialog creates an alarm, or edits existing when it is not nil
func (aw *AlarmsWindow) showAlarmDialog(existing *models.Alarm) {
	a := models.Alarm{
		Hour:          7,
		Enabled:       true,
		SnoozeMinutes: aw.w.currentConfig().DefaultSnoozeMinutes,
		Vibrate:       true,
	}.Normalize()
	if existing != nil {
		a = existing.Normalize()
	}

	hourSelect := widget.NewSelect(numberOptions(0, 23, "%02d"), nil)
	hourSelect.SetSelected(fmt.Sprintf("%02d", a.Hour))
	minuteSelect := widget.NewSelect(numberOptions(0, 59, "%02d"), nil)
	minuteSelect.SetSelected(fmt.Sprintf("%02d", a.Minute))

	labelEntry := widget.NewEntry()
	labelEntry.SetText(a.Label)
	groupEntry := widget.NewSelectEntry(aw.groupSelect.Options[1:])
	groupEntry.SetText(a.GroupName)

	dayOptions := make([]string, 0, len(models.AllWeekdays))
	for _, d := range models.AllWeekdays {
		dayOptions = append(dayOptions, string(d))
	}
	daysCheck := widget.NewCheckGroup(dayOptions, nil)
	daysCheck.Horizontal = true
	for _, d := range a.Days.Days() {
		daysCheck.Selected = append(daysCheck.Selected, string(d))
	}

	soundIDs := []string{models.NoSound}
	soundTitles := []string{"None (silent)"}
	for _, s := range aw.w.sounds.All() {
		soundIDs = append(soundIDs, s.ID)
		soundTitles = append(soundTitles, s.Title)
	}
	soundSelect := widget.NewSelect(soundTitles, nil)
	for i, id := range soundIDs {
		if id == a.Sound {
			soundSelect.SetSelectedIndex(i)
		}
	}
	if soundSelect.SelectedIndex() < 0 {
		soundSelect.SetSelectedIndex(1)
	}
	previewButton := widget.NewButtonWithIcon("", theme.MediaPlayIcon(), func() {
		if i := soundSelect.SelectedIndex(); i >= 0 {
			aw.w.preview(soundIDs[i])
		}
	})

	snoozeSelect := widget.NewSelect(numberOptions(1, 30, "%d min"), nil)
	snoozeSelect.SetSelected(fmt.Sprintf("%d min", a.SnoozeMinutes))

	vibrateCheck := widget.NewCheck("Vibrate", nil)
	vibrateCheck.SetChecked(a.Vibrate)
	patternSelect := widget.NewSelect(ringing.PatternIDs, nil)
	patternSelect.SetSelected(a.VibrationPattern)

	enabledCheck := widget.NewCheck("Enabled", nil)
	enabledCheck.SetChecked(a.Enabled)

	items := []*widget.FormItem{
		widget.NewFormItem("Time", container.NewHBox(hourSelect, widget.NewLabel(":"), minuteSelect)),
		widget.NewFormItem("Label", labelEntry),
		widget.NewFormItem("Group", groupEntry),
		widget.NewFormItem("Repeat", daysCheck),
		widget.NewFormItem("Sound", container.NewBorder(nil, nil, nil, previewButton, soundSelect)),
		widget.NewFormItem("Snooze", snoozeSelect),
		widget.NewFormItem("Vibration", container.NewHBox(vibrateCheck, patternSelect)),
		widget.NewFormItem("", enabledCheck),
	}

	title, confirm := "Add Alarm", "Create"
	if existing != nil {
		title, confirm = "Edit Alarm", "Save"
	}

	dlg := dialog.NewForm(title, confirm, "Cancel", items, func(confirmed bool) {
		if !confirmed {
			return
		}

		a.Hour, _ = strconv.Atoi(hourSelect.Selected)
		a.Minute, _ = strconv.Atoi(minuteSelect.Selected)
		a.Label = labelEntry.Text
		a.GroupName = groupEntry.Text
		a.Days = 0
		for _, s := range daysCheck.Selected {
			if d, ok := models.ParseWeekday(s); ok {
				a.Days = a.Days.With(d)
			}
		}
		if i := soundSelect.SelectedIndex(); i >= 0 {
			a.Sound = soundIDs[i]
		}
		fmt.Sscanf(snoozeSelect.Selected, "%d min", &a.SnoozeMinutes)
		a.Vibrate = vibrateCheck.Checked
		a.VibrationPattern = patternSelect.Selected
		a.Enabled = enabledCheck.Checked

		if existing == nil {
			_, err := aw.w.alarms.Create(a)
			aw.report(err)
			return
		}
		aw.report(aw.w.alarms.Update(a))
	}, aw.window)
	dlg.Resize(fyne.NewSize(560, 480))
	dlg.Show()
}

func (aw *AlarmsWindow) exportSchedule() {
	save := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			aw.report(err)
			return
		}
		if writer == nil {
			return
		}
		defer writer.Close()

		if err := calendar.WriteICS(writer, aw.w.alarms.List(), aw.w.zone.Now()); err != nil {
			aw.w.logger.Error("Failed to export schedule", zap.Error(err))
			aw.report(err)
			return
		}
		aw.w.logger.Info("Schedule exported", zap.String("uri", writer.URI().String()))
	}, aw.window)
	save.SetFileName("wakeup-alarms.ics")
	save.SetFilter(storage.NewExtensionFileFilter([]string{".ics"}))
	save.Show()
}

func (aw *AlarmsWindow) importSchedule() {
	open := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			aw.report(err)
			return
		}
		if reader == nil {
			return
		}
		defer reader.Close()

		imported, err := calendar.Import(reader, aw.w.zone.Location(), aw.w.logger.Named("import"))
		if err != nil {
			aw.report(err)
			return
		}
		created := 0
		for _, a := range imported {
			if _, err := aw.w.alarms.Create(a); err != nil {
				aw.w.logger.Warn("Skipping imported alarm", zap.Error(err))
				continue
			}
			created++
		}
		dialog.ShowInformation("Import", fmt.Sprintf("Imported %d alarms.", created), aw.window)
	}, aw.window)
	open.SetFilter(storage.NewExtensionFileFilter([]string{".ics"}))
	open.Show()
}
