package main

import (
	"embed"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"
	"github.com/wailsapp/wails/v3/pkg/icons"

	"go.aimuz.me/cliptrans/config"
	"go.aimuz.me/cliptrans/internal/app"
)

//go:embed all:frontend/dist
var assets embed.FS

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// setupLogger logs to stderr and to <config dir>/logs/app.log.
// The returned closer may be nil.
func setupLogger() io.Closer {
	level := slog.LevelInfo
	if os.Getenv("CLIPTRANS_DEBUG") != "" {
		level = slog.LevelDebug
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer
	)
	if dir, err := config.Dir(); err == nil {
		logDir := filepath.Join(dir, "logs")
		if err := os.MkdirAll(logDir, 0755); err == nil {
			f, err := os.OpenFile(filepath.Join(logDir, "app.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				w = io.MultiWriter(os.Stderr, f)
				closer = f
			}
		}
	}

	slog.SetDefault(slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    closer != nil || !isatty.IsTerminal(os.Stderr.Fd()),
	})))
	return closer
}

func main() {
	// A missing .env is fine; it only supplies CLIPTRANS_* overrides.
	_ = godotenv.Load()

	if c := setupLogger(); c != nil {
		defer c.Close()
	}
	slog.Info("starting app", "version", version, "commit", commit, "date", date)

	appService := app.New(version)

	wailsApp := application.New(application.Options{
		Name:        "ClipTrans",
		Description: "Clipboard translate-and-speak popup",
		Services: []application.Service{
			application.NewService(appService),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(assets),
		},
		Mac: application.MacOptions{
			// Tray-only app: no dock icon, keep running without windows.
			ActivationPolicy: application.ActivationPolicyAccessory,
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	popupWindow := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Name:          "popup",
		Title:         "ClipTrans",
		Width:         420,
		Height:        180,
		URL:           "/#/popup",
		Frameless:     true,
		AlwaysOnTop:   true,
		Hidden:        true,
		DisableResize: true,
	})

	settingsWindow := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Name:   "settings",
		Title:  "ClipTrans 設定",
		Width:  560,
		Height: 680,
		URL:    "/#/settings",
		Hidden: true,
		Mac: application.MacWindow{
			TitleBar:                application.MacTitleBarHiddenInsetUnified,
			InvisibleTitleBarHeight: 38,
		},
	})

	// Intercept window close: hide instead of destroy so tray can reopen
	for _, w := range []*application.WebviewWindow{popupWindow, settingsWindow} {
		w.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
			e.Cancel()
			w.Hide()
		})
	}

	appService.Init(wailsApp, app.Windows{Popup: popupWindow, Settings: settingsWindow})

	systemTray := wailsApp.SystemTray.New()
	if runtime.GOOS == "darwin" {
		systemTray.SetTemplateIcon(icons.SystrayMacTemplate)
	} else {
		systemTray.SetIcon(icons.SystrayLight)
	}
	systemTray.SetTooltip("ClipTrans")

	trayMenu := wailsApp.NewMenu()
	enabledItem := trayMenu.AddCheckbox("啟用", appService.IsEnabled())
	enabledItem.OnClick(func(ctx *application.Context) {
		appService.SetEnabled(ctx.ClickedMenuItem().Checked())
	})
	appService.OnEnabledChanged(func(enabled bool) {
		enabledItem.SetChecked(enabled)
	})

	trayMenu.Add("設定…").OnClick(func(ctx *application.Context) {
		appService.ShowSettings()
	})
	trayMenu.Add("測試彈窗").OnClick(func(ctx *application.Context) {
		appService.TestPopup()
	})
	trayMenu.AddSeparator()
	trayMenu.Add("結束").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(ctx *application.Context) {
			appService.Shutdown()
			wailsApp.Quit()
		})

	systemTray.SetMenu(trayMenu)

	appService.Start()

	if err := wailsApp.Run(); err != nil {
		slog.Error("run app", "error", err)
	}
	appService.Shutdown()
}
