package selector

import "sync"

// Entry is one entry of an option list. Value is the server UUID.
type Entry struct {
	Value string
	Text  string
}

// OptionList is the UI surface a Selector renders into. An optional
// placeholder entry always sits before the server options.
//
// Select("") means "no server": the placeholder when the list has one,
// otherwise no entry at all. Programmatic changes must not trigger the
// OnChanged callback.
type OptionList interface {
	SetPlaceholder(text string)
	HasPlaceholder() bool
	SetOptions(opts []Entry)
	AddOption(opt Entry)
	RemoveOption(value string)
	UpdateOption(opt Entry)
	Select(value string)
	OnChanged(fn func(value string))
}

// MemoryList is a headless OptionList.
type MemoryList struct {
	mu          sync.Mutex
	placeholder string
	options     []Entry
	selected    string
	hasSelected bool
	onChanged   func(string)
}

func NewMemoryList() *MemoryList { return &MemoryList{} }

func (l *MemoryList) SetPlaceholder(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.placeholder = text
}

func (l *MemoryList) HasPlaceholder() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.placeholder != ""
}

func (l *MemoryList) SetOptions(opts []Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.options = append([]Entry(nil), opts...)
	if l.hasSelected && l.selected != "" && l.index(l.selected) < 0 {
		l.hasSelected = false
	}
}

func (l *MemoryList) AddOption(opt Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.options = append(l.options, opt)
}

func (l *MemoryList) RemoveOption(value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.index(value); i >= 0 {
		l.options = append(l.options[:i], l.options[i+1:]...)
		if l.selected == value {
			l.hasSelected = false
		}
	}
}

func (l *MemoryList) UpdateOption(opt Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.index(opt.Value); i >= 0 {
		l.options[i].Text = opt.Text
	}
}

func (l *MemoryList) Select(value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if value != "" && l.index(value) < 0 {
		return
	}
	l.selected = value
	l.hasSelected = value != "" || l.placeholder != ""
}

func (l *MemoryList) OnChanged(fn func(string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChanged = fn
}

// Pick selects value as a user would and fires the OnChanged callback.
func (l *MemoryList) Pick(value string) {
	l.mu.Lock()
	l.selected = value
	l.hasSelected = true
	fn := l.onChanged
	l.mu.Unlock()
	if fn != nil {
		fn(value)
	}
}

// Options returns the server options without the placeholder.
func (l *MemoryList) Options() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.options...)
}

func (l *MemoryList) Placeholder() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.placeholder
}

// SelectedValue returns the selected server UUID, "" for the placeholder or
// no selection.
func (l *MemoryList) SelectedValue() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasSelected {
		return ""
	}
	return l.selected
}

// SelectedIndex returns the position of the selected entry counting the
// placeholder, or -1.
func (l *MemoryList) SelectedIndex() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasSelected {
		return -1
	}
	offset := 0
	if l.placeholder != "" {
		offset = 1
	}
	if l.selected == "" {
		if offset == 1 {
			return 0
		}
		return -1
	}
	if i := l.index(l.selected); i >= 0 {
		return i + offset
	}
	return -1
}

// HasCallback reports whether an OnChanged callback is installed.
func (l *MemoryList) HasCallback() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.onChanged != nil
}

func (l *MemoryList) index(value string) int {
	for i, o := range l.options {
		if o.Value == value {
			return i
		}
	}
	return -1
}
