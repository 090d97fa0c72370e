package components

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// Item is one row of a ListManager
type Item struct {
	ID    string
	Title string
}

// ListManager shows a list of items with add and remove buttons. Adding is
// delegated to OnAdd, which is expected to call SetData once it is done.
type ListManager struct {
	list        *widget.List
	data        []Item
	selectedIdx int
	onAdd       func()
	onRemove    func(Item)
	onChange    func()
}

// ListManagerConfig configures the list manager
type ListManagerConfig struct {
	OnAdd    func()     // Called when the add button is pressed
	OnRemove func(Item) // Called before an item is removed
	OnChange func()     // Called when list changes
}

// NewListManager creates a new list manager component
func NewListManager(data []Item, config ListManagerConfig) (*ListManager, *fyne.Container) {
	lm := &ListManager{
		data:        data,
		selectedIdx: -1,
		onAdd:       config.OnAdd,
		onRemove:    config.OnRemove,
		onChange:    config.OnChange,
	}

	lm.list = widget.NewList(
		func() int {
			return len(lm.data)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("template")
		},
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i < len(lm.data) {
				o.(*widget.Label).SetText(lm.data[i].Title)
			}
		})

	lm.list.OnSelected = func(id widget.ListItemID) {
		lm.selectedIdx = id
	}

	plusButton := widget.NewButtonWithIcon("", theme.ContentAddIcon(), func() {
		if lm.onAdd != nil {
			lm.onAdd()
		}
	})
	minusButton := widget.NewButtonWithIcon("", theme.ContentRemoveIcon(), lm.RemoveSelected)

	listScroll := container.NewScroll(lm.list)
	listScroll.SetMinSize(fyne.NewSize(0, 150))

	listWithBorder := container.NewBorder(
		widget.NewSeparator(),
		widget.NewSeparator(),
		widget.NewSeparator(),
		widget.NewSeparator(),
		listScroll,
	)

	return lm, container.NewVBox(listWithBorder, container.NewHBox(plusButton, minusButton))
}

// Data returns the current items
func (lm *ListManager) Data() []Item {
	return lm.data
}

// SetData updates the data and refreshes
func (lm *ListManager) SetData(data []Item) {
	lm.data = data
	lm.list.UnselectAll()
	lm.selectedIdx = -1
	lm.list.Refresh()
	if lm.onChange != nil {
		lm.onChange()
	}
}

// Select marks the item at index i as selected
func (lm *ListManager) Select(i int) {
	lm.list.Select(i)
}

// RemoveSelected removes the currently selected item
func (lm *ListManager) RemoveSelected() {
	if lm.selectedIdx < 0 || lm.selectedIdx >= len(lm.data) {
		return
	}
	item := lm.data[lm.selectedIdx]
	if lm.onRemove != nil {
		lm.onRemove(item)
	}
	lm.data = append(lm.data[:lm.selectedIdx], lm.data[lm.selectedIdx+1:]...)
	lm.list.UnselectAll()
	lm.selectedIdx = -1
	lm.list.Refresh()
	if lm.onChange != nil {
		lm.onChange()
	}
}
