package main

import (
	"embed"

	"ghostlock/internal/logging"

	"github.com/joho/godotenv"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	// Optional overrides for development (API base URLs, keys)
	godotenv.Load()

	log, sink := logging.New(nil)
	defer log.Sync()

	app := NewApp(log, sink)

	err := wails.Run(&options.App{
		Title:         "GhostLock",
		Width:         460,
		Height:        720,
		StartHidden:   false,
		Frameless:     true,
		AlwaysOnTop:   false,
		DisableResize: false,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 15, G: 15, B: 20, A: 255},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind: []interface{}{
			app,
		},
		Windows: &windows.Options{
			DisableWindowIcon: true,
		},
	})

	if err != nil {
		println("Error:", err.Error())
	}
}
