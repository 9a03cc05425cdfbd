package app

import (
	"fmt"
	"slices"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"syphon-bridge/internal/listeners"
	"syphon-bridge/internal/producer"
	"syphon-bridge/pkg/signal"
	"syphon-bridge/pkg/syphon"
)

// RunDirectoryUI shows the producer window: the live server set of the
// running directory and the URL consumers connect to.
func RunDirectoryUI(w fyne.Window, p *producer.Producer) {
	w.SetTitle("Directory")

	var (
		mu      sync.Mutex
		servers []syphon.Description
	)
	snapshot := func() []syphon.Description {
		mu.Lock()
		defer mu.Unlock()
		return slices.Clone(servers)
	}

	list := widget.NewList(
		func() int { return len(snapshot()) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			all := snapshot()
			if id >= len(all) {
				return
			}
			d := all[id]
			obj.(*widget.Label).SetText(fmt.Sprintf("%s  [%s]", syphon.FormatName(d), d.UUID))
		},
	)

	urlEntry := widget.NewEntry()
	urlEntry.SetText(p.URL())
	urlEntry.Disable()
	statusLabel := widget.NewLabel("Status: listening")
	countLabel := widget.NewLabel("Servers: 0")

	// Every notification carries the full set, so each handler just replaces it.
	replace := func(n signal.Notification) {
		mu.Lock()
		servers = slices.Clone(n.Servers)
		count := len(servers)
		mu.Unlock()
		countLabel.SetText(fmt.Sprintf("Servers: %d", count))
		list.Refresh()
	}

	ids := map[syphon.Channel]listeners.ID{
		syphon.ChannelAnnounce: p.Registry.On(syphon.ChannelAnnounce, replace),
		syphon.ChannelRetire:   p.Registry.On(syphon.ChannelRetire, replace),
		syphon.ChannelUpdate:   p.Registry.On(syphon.ChannelUpdate, replace),
		syphon.ChannelInfo: p.Registry.On(syphon.ChannelInfo, func(n signal.Notification) {
			statusLabel.SetText("Status: " + n.Info)
		}),
		syphon.ChannelError: p.Registry.On(syphon.ChannelError, func(n signal.Notification) {
			statusLabel.SetText("Error: " + n.Error)
		}),
	}
	replace(signal.Notification{Servers: p.Registry.Servers()})

	w.SetOnClosed(func() {
		for ch, id := range ids {
			p.Registry.Off(ch, id)
		}
	})
	w.SetContent(container.NewBorder(
		container.NewVBox(
			widget.NewLabel("Consumers connect to"),
			urlEntry,
			statusLabel,
			countLabel,
		),
		nil, nil, nil,
		list,
	))
}
