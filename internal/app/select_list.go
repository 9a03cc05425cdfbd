package app

import (
	"slices"
	"sync"

	"fyne.io/fyne/v2/widget"

	"syphon-bridge/internal/selector"
)

// SelectList renders a selector.OptionList with a fyne Select. The widget's
// own placeholder text stands for the "no server" entry.
//
// Programmatic changes write the widget fields directly instead of going
// through SetSelected, so OnChanged only ever reports user picks. The widget
// matches on text, so entries sharing a text are told apart by a UUID suffix.
type SelectList struct {
	Widget *widget.Select

	mu          sync.Mutex
	placeholder string
	entries     []selector.Entry
	texts       []string
	value       string
	onChanged   func(string)
}

func NewSelectList() *SelectList {
	l := &SelectList{}
	l.Widget = widget.NewSelect(nil, l.changed)
	return l
}

func (l *SelectList) SetPlaceholder(text string) {
	l.mu.Lock()
	l.placeholder = text
	l.Widget.PlaceHolder = text
	l.mu.Unlock()
	l.Widget.Refresh()
}

func (l *SelectList) HasPlaceholder() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.placeholder != ""
}

func (l *SelectList) SetOptions(entries []selector.Entry) {
	l.mu.Lock()
	l.entries = slices.Clone(entries)
	l.render("")
	l.mu.Unlock()
	l.Widget.Refresh()
}

func (l *SelectList) AddOption(e selector.Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.render(l.value)
	l.mu.Unlock()
	l.Widget.Refresh()
}

func (l *SelectList) RemoveOption(value string) {
	l.mu.Lock()
	l.entries = slices.DeleteFunc(l.entries, func(e selector.Entry) bool { return e.Value == value })
	selected := l.value
	if selected == value {
		selected = ""
	}
	l.render(selected)
	l.mu.Unlock()
	l.Widget.Refresh()
}

func (l *SelectList) UpdateOption(e selector.Entry) {
	l.mu.Lock()
	for i := range l.entries {
		if l.entries[i].Value == e.Value {
			l.entries[i].Text = e.Text
		}
	}
	l.render(l.value)
	l.mu.Unlock()
	l.Widget.Refresh()
}

func (l *SelectList) Select(value string) {
	l.mu.Lock()
	l.show(value)
	l.mu.Unlock()
	l.Widget.Refresh()
}

func (l *SelectList) OnChanged(fn func(string)) {
	l.mu.Lock()
	l.onChanged = fn
	l.mu.Unlock()
}

// Value returns the UUID of the selected entry, or "" for none.
func (l *SelectList) Value() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// render rebuilds the widget options and restores the selection to value.
// Callers hold mu.
func (l *SelectList) render(value string) {
	l.texts = labels(l.entries)
	l.Widget.Options = slices.Clone(l.texts)
	l.show(value)
}

// show selects value in the widget without firing OnChanged. Callers hold mu.
func (l *SelectList) show(value string) {
	i := slices.IndexFunc(l.entries, func(e selector.Entry) bool { return e.Value == value })
	if value == "" || i < 0 {
		l.value = ""
		l.Widget.Selected = ""
		return
	}
	l.value = value
	l.Widget.Selected = l.texts[i]
}

func (l *SelectList) changed(text string) {
	l.mu.Lock()
	i := slices.Index(l.texts, text)
	if i < 0 {
		l.mu.Unlock()
		return
	}
	l.value = l.entries[i].Value
	value, fn := l.value, l.onChanged
	l.mu.Unlock()
	if fn != nil {
		fn(value)
	}
}

// labels returns the widget text of each entry, unique across the list.
func labels(entries []selector.Entry) []string {
	counts := make(map[string]int, len(entries))
	for _, e := range entries {
		counts[e.Text]++
	}
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
		if counts[e.Text] > 1 {
			texts[i] = e.Text + " (" + e.Value + ")"
		}
	}
	return texts
}
