package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThatOtherAndrew/Turntable/internal/animator"
	"github.com/ThatOtherAndrew/Turntable/internal/app"
	"github.com/ThatOtherAndrew/Turntable/internal/config"
	"github.com/ThatOtherAndrew/Turntable/internal/loader"
	"github.com/ThatOtherAndrew/Turntable/internal/logging"
	"github.com/ThatOtherAndrew/Turntable/internal/opengl"
	"github.com/ThatOtherAndrew/Turntable/internal/stage"
	"github.com/ThatOtherAndrew/Turntable/internal/watch"
	"github.com/ThatOtherAndrew/Turntable/pkg/glfwhost"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spf13/cobra"
)

var (
	noStart     bool
	watchAssets bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the window and start spinning",
	RunE:  Run,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&noStart, "no-start", false, "load models but wait for space before animating")
	runCmd.Flags().BoolVar(&watchAssets, "watch", false, "reload assets when their files change")
}

func fetcherFor(s *config.Settings) loader.Fetcher {
	if s.AssetBaseURL != "" {
		return loader.HTTPFetcher{BaseURL: s.AssetBaseURL}
	}
	return loader.FileFetcher{Root: s.AssetDir}
}

// Run must stay on the main thread: GLFW and the GL context live there.
func Run(cmd *cobra.Command, args []string) error {
	settings, _, err := loadSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if noStart {
		settings.AutoStart = false
	}
	if watchAssets {
		settings.Watch = true
	}
	log := logging.Logger()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	window, err := glfwhost.NewWindow(glfwhost.Config{
		Canvas: settings.Canvas,
		Title:  settings.Title,
		Width:  settings.Width,
		Height: settings.Height,
		VSync:  settings.VSync,
	})
	if err != nil {
		return err
	}
	defer window.Destroy()

	session, err := app.Init(ctx, app.Deps{
		Host:      window,
		Devices:   opengl.Factory(settings.ClearColor),
		Scheduler: window,
		Fetcher:   fetcherFor(settings),
		Decoder:   loader.GLTFDecoder{MaxTextureSize: settings.MaxTextureSize},
	}, app.Options{
		Canvas:          settings.Canvas,
		Assets:          settings.Assets,
		AutoStart:       settings.AutoStart,
		Rate:            settings.AngularRate,
		Rates:           settings.Rates,
		MaxFrameDelta:   settings.FrameDelta(),
		LoadConcurrency: settings.LoadConcurrency,
		Camera: stage.Camera{
			FOV:      settings.FOV,
			Distance: settings.CameraDistance,
			Near:     0.1,
			Far:      100,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer session.Stage().Close()
	defer session.Close()

	go func() {
		h, err := session.Wait(ctx)
		if err != nil {
			return
		}
		log.Info("ready",
			"models", h.Registry().Names(),
			"failed", len(h.Failures()),
			"animator", h.Animator().Status())
	}()

	window.OnKey(func(key glfw.Key) {
		switch key {
		case glfw.KeyEscape, glfw.KeyQ:
			window.Close()
		case glfw.KeySpace:
			toggle(session.Animator())
		case glfw.KeyR:
			if err := session.Stage().Recover(); err != nil {
				log.Error("context recovery failed", "err", err)
			}
		}
	})

	if settings.Watch {
		startWatcher(ctx, settings, session)
	}

	window.Run(ctx)
	return nil
}

func toggle(a *animator.Animator) {
	switch a.Status() {
	case animator.Idle:
		a.Start()
	case animator.Running:
		a.Stop()
	case animator.Stopped:
		a.Restart()
	}
}

func startWatcher(ctx context.Context, settings *config.Settings, session *app.Session) {
	if settings.AssetBaseURL != "" {
		logging.Logger().Warn("asset watching needs a local asset_dir, ignoring")
		return
	}
	w := watch.New(settings.AssetDir, settings.Assets, session.Reload)
	go func() {
		if err := w.Run(ctx); err != nil {
			logging.Logger().Warn("asset watcher stopped", "err", err)
		}
	}()
}
