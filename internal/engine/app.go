package engine

import (
	"fmt"
	"runtime"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/xlab/closer"
	"go.uber.org/zap"

	"github.com/Bigfoot71/r3d-sub000/internal/logger"
	"github.com/Bigfoot71/r3d-sub000/internal/renderer"
)

func init() {
	// GLFW event handling and the GL context are bound to the main thread.
	runtime.LockOSThread()
}

// Config selects the window and the renderer's internal resolution. A zero
// internal resolution follows the window size.
type Config struct {
	Title  string
	Width  int
	Height int

	// RenderWidth/RenderHeight fix the internal resolution independently of
	// the window; the final blit letterboxes.
	RenderWidth  int
	RenderHeight int

	Resizable bool
	VSync     bool

	Renderer renderer.Config
}

// FrameFunc runs once per frame between Begin and End. Submit draws through
// the renderer; dt is the elapsed seconds since the previous frame.
type FrameFunc func(r *renderer.Renderer, dt float32)

// App owns the window, the GL context, and the renderer, and drives the
// frame loop.
type App struct {
	window   *glfw.Window
	renderer *renderer.Renderer
	camera   renderer.Camera

	fixedInternal bool
}

// New creates the window with a 4.1 core context and builds the renderer.
// Must run on the main goroutine.
func New(cfg Config) (*App, error) {
	logger.Init()

	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 1280, 720
	}
	if cfg.Title == "" {
		cfg.Title = "r3d"
	}

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("init glfw: %w", err)
	}
	closer.Bind(glfw.Terminate)

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	if cfg.Resizable {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Resizable, glfw.False)
	}

	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	window.MakeContextCurrent()

	if cfg.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("init opengl: %w", err)
	}
	logger.Log.Info("OpenGL context ready",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))))

	rcfg := cfg.Renderer
	fixed := cfg.RenderWidth > 0 && cfg.RenderHeight > 0
	if fixed {
		rcfg.Width, rcfg.Height = cfg.RenderWidth, cfg.RenderHeight
	} else {
		// Framebuffer size accounts for HiDPI scaling.
		rcfg.Width, rcfg.Height = window.GetFramebufferSize()
	}

	r, err := renderer.NewRenderer(rcfg)
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	closer.Bind(r.Unload)

	app := &App{
		window:        window,
		renderer:      r,
		camera:        renderer.NewDefaultCamera(),
		fixedInternal: fixed,
	}

	fbW, fbH := window.GetFramebufferSize()
	r.SetWindowSize(fbW, fbH)
	window.SetFramebufferSizeCallback(func(_ *glfw.Window, w, h int) {
		if w <= 0 || h <= 0 {
			return
		}
		app.renderer.SetWindowSize(w, h)
		if !app.fixedInternal {
			app.renderer.Resize(w, h)
		}
	})

	return app, nil
}

// Renderer exposes the frame pipeline for setup outside the frame loop.
func (a *App) Renderer() *renderer.Renderer { return a.renderer }

// Window exposes the GLFW window for input handling.
func (a *App) Window() *glfw.Window { return a.window }

// Camera returns a pointer to the camera snapshot used by Run.
func (a *App) Camera() *renderer.Camera { return &a.camera }

// Run drives the frame loop until the window closes or the process receives
// a termination signal, then runs every bound cleanup and exits. frame must
// not call Begin or End itself.
func (a *App) Run(frame FrameFunc) {
	defer closer.Close()

	lastTime := glfw.GetTime()
	for !a.window.ShouldClose() {
		now := glfw.GetTime()
		dt := float32(now - lastTime)
		lastTime = now

		a.renderer.Begin(a.camera, dt)
		frame(a.renderer, dt)
		a.renderer.End()

		a.window.SwapBuffers()
		glfw.PollEvents()
	}
}
