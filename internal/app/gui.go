package app

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"syphon-bridge/internal/config"
	"syphon-bridge/internal/producer"
)

// RunMainGUI opens the launcher window. When p is non-nil the directory
// window is offered too; the selector window is always available.
func RunMainGUI(cfg *config.Config, p *producer.Producer, logger *zap.Logger) {
	a := app.NewWithID("io.syphon-bridge")
	w := a.NewWindow("Syphon bridge")
	w.Resize(fyne.NewSize(1000, 600))

	selectorBtn := widget.NewButton("Select a server", func() {
		win := a.NewWindow("Server selector")
		win.Resize(fyne.NewSize(960, 640))
		RunSelectorUI(win, cfg.Consumer, logger)
		win.Show()
	})
	directoryBtn := widget.NewButton("Show directory", func() {
		win := a.NewWindow("Directory")
		win.Resize(fyne.NewSize(640, 480))
		RunDirectoryUI(win, p)
		win.Show()
	})
	if p == nil {
		directoryBtn.Disable()
	}

	w.SetContent(container.NewVBox(
		widget.NewLabel("Choose a window:"),
		directoryBtn,
		selectorBtn,
	))
	w.SetMaster()
	w.ShowAndRun()
}
