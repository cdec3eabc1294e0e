package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"
)

type Tray struct {
	logger *slog.Logger

	statusItem *systray.MenuItem
	assetItem  *systray.MenuItem
	offsetItem *systray.MenuItem

	mu sync.Mutex

	onStopPreview func()
	onQuit        func()
}

type TrayConfig struct {
	Logger        *slog.Logger
	OnStopPreview func()
	OnQuit        func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		logger:        cfg.Logger,
		onStopPreview: cfg.OnStopPreview,
		onQuit:        cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("DriftFix")
	systray.SetTooltip("DriftFix Agent")

	t.mu.Lock()
	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.assetItem = systray.AddMenuItem("No file selected", "Current media file")
	t.assetItem.Disable()

	t.offsetItem = systray.AddMenuItem("Offset: 0 ms", "Current sync offset")
	t.offsetItem.Disable()
	t.mu.Unlock()

	systray.AddSeparator()

	stopItem := systray.AddMenuItem("Stop Preview", "Stop the running preview")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit DriftFix Agent")

	go func() {
		for {
			select {
			case <-stopItem.ClickedCh:
				if t.onStopPreview != nil {
					t.onStopPreview()
				}
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

// The Update methods tolerate calls before onReady has built the menu;
// updates arriving in that window are dropped.

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.statusItem == nil {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

func (t *Tray) UpdateAsset(displayName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.assetItem == nil {
		return
	}
	if displayName == "" {
		t.assetItem.SetTitle("No file selected")
		return
	}
	t.assetItem.SetTitle(displayName)
}

func (t *Tray) UpdateOffset(offsetMs float64, source string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.offsetItem == nil {
		return
	}
	if source == "none" {
		t.offsetItem.SetTitle("Offset: 0 ms")
		return
	}
	t.offsetItem.SetTitle(fmt.Sprintf("Offset: %.0f ms (%s)", offsetMs, source))
}

func (t *Tray) Quit() {
	systray.Quit()
}
