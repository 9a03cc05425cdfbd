package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"syphon-bridge/internal/config"
	"syphon-bridge/internal/proxy"
	"syphon-bridge/internal/selector"
	"syphon-bridge/pkg/client"
	"syphon-bridge/pkg/signal"
	"syphon-bridge/pkg/syphon"
)

// viewerSession is one connection of the selector window to a directory.
type viewerSession struct {
	client   *client.Client
	dir      *proxy.Directory
	selector *selector.Selector
	subs     []proxy.Subscription
}

func (s *viewerSession) close() {
	s.selector.Detach()
	s.dir.Info.Unsubscribe(s.subs[0])
	s.dir.Error.Unsubscribe(s.subs[1])
	_ = s.client.Close()
}

// RunSelectorUI shows the consumer window: a server list kept in sync with a
// remote directory, bound to one of two preview canvases.
func RunSelectorUI(w fyne.Window, cfg config.ConsumerConfig, logger *zap.Logger) {
	w.SetTitle("Server selector")
	logger = logger.Named("selector-ui")

	urlEntry := widget.NewEntry()
	urlEntry.SetText(cfg.URL)
	urlEntry.SetPlaceHolder("ws://host:port/ws")

	statusLabel := widget.NewLabel("Status: disconnected")
	detailLabel := widget.NewLabel("")
	countLabel := widget.NewLabel("Servers: 0")

	sinks := Sinks{
		"main":    NewCanvasSink("main", logger),
		"preview": NewCanvasSink("preview", logger),
	}
	list := NewSelectList()
	list.Widget.Disable()

	var (
		mu      sync.Mutex
		session *viewerSession
	)
	current := func() *viewerSession {
		mu.Lock()
		defer mu.Unlock()
		return session
	}

	canvasSelect := widget.NewSelect([]string{"main", "preview"}, func(id string) {
		s := current()
		if s == nil {
			return
		}
		if err := s.selector.SetAttribute(selector.AttrCanvas, id); err != nil {
			detailLabel.SetText("Canvas: " + err.Error())
		}
	})

	setCount := func(s *selector.Selector) {
		countLabel.SetText(fmt.Sprintf("Servers: %d", len(s.Servers())))
	}

	var connectBtn, refreshBtn, disconnectBtn *widget.Button
	connected := func(on bool) {
		if on {
			connectBtn.Disable()
			refreshBtn.Enable()
			disconnectBtn.Enable()
			list.Widget.Enable()
			return
		}
		connectBtn.Enable()
		refreshBtn.Disable()
		disconnectBtn.Disable()
		list.Widget.Disable()
	}

	disconnect := func() {
		mu.Lock()
		s := session
		session = nil
		mu.Unlock()
		if s == nil {
			return
		}
		s.close()
		list.SetOptions(nil)
		countLabel.SetText("Servers: 0")
		statusLabel.SetText("Status: disconnected")
		connected(false)
	}

	connectBtn = widget.NewButton("Connect", func() {
		url := strings.TrimSpace(urlEntry.Text)
		statusLabel.SetText("Status: connecting")
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout)
			defer cancel()

			c, err := client.Dial(ctx, url, client.WithLogger(logger))
			if err != nil {
				statusLabel.SetText("Status: error")
				detailLabel.SetText(err.Error())
				return
			}
			dir := proxy.NewDirectory(c)
			sel := selector.New(dir, list,
				selector.WithPlaceholder(cfg.Placeholder),
				selector.WithSinkResolver(sinks.Resolve),
				selector.WithFetchTimeout(cfg.FetchTimeout),
				selector.WithLogger(logger),
			)
			info, _ := dir.Info.Subscribe(func(n signal.Notification) { detailLabel.SetText(n.Info) })
			failure, _ := dir.Error.Subscribe(func(n signal.Notification) { detailLabel.SetText("Directory error: " + n.Error) })
			sel.On(selector.SignalAnnounce, func(syphon.Description) { setCount(sel) })
			sel.On(selector.SignalRetire, func(syphon.Description) { setCount(sel) })

			if err := sel.Attach(ctx); err != nil {
				dir.Info.Unsubscribe(info)
				dir.Error.Unsubscribe(failure)
				_ = c.Close()
				statusLabel.SetText("Status: error")
				detailLabel.SetText(err.Error())
				return
			}
			if canvasSelect.Selected != "" {
				_ = sel.SetAttribute(selector.AttrCanvas, canvasSelect.Selected)
			}

			mu.Lock()
			session = &viewerSession{client: c, dir: dir, selector: sel, subs: []proxy.Subscription{info, failure}}
			mu.Unlock()
			setCount(sel)
			statusLabel.SetText("Status: connected to " + url)
			connected(true)

			go func() {
				<-c.Done()
				if s := current(); s != nil && s.client == c {
					statusLabel.SetText("Status: connection lost")
					disconnect()
				}
			}()
		}()
	})

	refreshBtn = widget.NewButton("Refresh", func() {
		s := current()
		if s == nil {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout)
			defer cancel()
			if err := s.selector.Refresh(ctx); err != nil {
				detailLabel.SetText("Refresh failed: " + err.Error())
				return
			}
			setCount(s.selector)
		}()
	})

	disconnectBtn = widget.NewButton("Disconnect", disconnect)
	connected(false)

	w.SetOnClosed(disconnect)
	w.SetContent(container.NewBorder(
		container.NewVBox(
			widget.NewLabel("Directory"),
			urlEntry,
			container.NewGridWithColumns(3, connectBtn, refreshBtn, disconnectBtn),
			statusLabel,
			detailLabel,
			container.NewGridWithColumns(2, list.Widget, canvasSelect),
			countLabel,
		),
		nil, nil, nil,
		container.NewAppTabs(
			container.NewTabItem("Main", sinks["main"].Content()),
			container.NewTabItem("Preview", sinks["preview"].Content()),
		),
	))
}
