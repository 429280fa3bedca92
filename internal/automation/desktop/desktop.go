// Package desktop controls the local machine: launching applications and
// driving the mouse and keyboard.
package desktop

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/go-vgo/robotgo"

	"github.com/mcravo/ava/internal/automation"
)

// input abstracts the mouse and keyboard driver so tests don't move the real
// cursor.
type input interface {
	MoveMouse(x, y int)
	Click()
	ClickAt(x, y int)
	TypeText(text string)
	PressKey(key string) error
	ScreenSize() (w, h int)
	MousePosition() (x, y int)
}

// launcher abstracts application startup.
type launcher interface {
	LookPath(name string) (string, error)
	Start(path string) error
}

// Module implements automation.Module for desktop control.
type Module struct {
	input    input
	launcher launcher
}

func New() *Module {
	return &Module{input: robotgoInput{}, launcher: execLauncher{}}
}

func (m *Module) Description() string {
	return "control the desktop: launch applications, move the mouse, click, type text and press keys"
}

func (m *Module) Actions() map[string]automation.Action {
	return map[string]automation.Action{
		"open_application": {
			Handler:     automation.Typed(m.openApplication),
			Description: "Opens an application by its full path or common name.",
			Example:     `{"action":"open_application","path":"firefox"}`,
		},
		"move_mouse": {
			Handler:     automation.Typed(m.moveMouse),
			Description: "Moves the mouse cursor to specific X and Y coordinates.",
			Example:     `{"action":"move_mouse","x":100,"y":200}`,
		},
		"click": {
			Handler:     automation.Typed(m.click),
			Description: "Performs a mouse click at the current cursor position or specified coordinates.",
			Example:     `{"action":"click"}`,
		},
		"type_text": {
			Handler:     automation.Typed(m.typeText),
			Description: "Types the specified text using the keyboard.",
			Example:     `{"action":"type_text","text":"Hello World"}`,
		},
		"press_key": {
			Handler:     automation.Typed(m.pressKey),
			Description: "Presses a specific keyboard key (e.g., 'enter', 'esc', 'tab').",
			Example:     `{"action":"press_key","key":"enter"}`,
		},
		"screen_size": {
			Handler:     m.screenSize,
			Description: "Reports the width and height of the primary screen in pixels.",
			Example:     `{"action":"screen_size"}`,
		},
		"mouse_position": {
			Handler:     m.mousePosition,
			Description: "Reports the current X and Y coordinates of the mouse cursor.",
			Example:     `{"action":"mouse_position"}`,
		},
	}
}

type openRequest struct {
	Path string `mapstructure:"path"`
}

func (r openRequest) Validate() error {
	if r.Path == "" {
		return errors.New("path is required")
	}
	return nil
}

func (m *Module) openApplication(ctx context.Context, req openRequest) (automation.Result, error) {
	target := req.Path
	if found, err := m.launcher.LookPath(req.Path); err == nil {
		target = found
	}
	if err := m.launcher.Start(target); err != nil {
		return automation.Result{}, fmt.Errorf("launching application %q: %w", req.Path, err)
	}
	return automation.OKResource(fmt.Sprintf("Launched application: %s", target), target), nil
}

type moveMouseRequest struct {
	X *int `mapstructure:"x"`
	Y *int `mapstructure:"y"`
}

func (r moveMouseRequest) Validate() error {
	if r.X == nil || r.Y == nil {
		return errors.New("x and y coordinates are required")
	}
	return nil
}

func (m *Module) moveMouse(ctx context.Context, req moveMouseRequest) (automation.Result, error) {
	m.input.MoveMouse(*req.X, *req.Y)
	return automation.OK(fmt.Sprintf("Mouse moved to (%d, %d)", *req.X, *req.Y)), nil
}

type clickRequest struct {
	X *int `mapstructure:"x"`
	Y *int `mapstructure:"y"`
}

func (m *Module) click(ctx context.Context, req clickRequest) (automation.Result, error) {
	if req.X != nil && req.Y != nil {
		m.input.ClickAt(*req.X, *req.Y)
	} else {
		m.input.Click()
	}
	return automation.OK("Mouse click executed"), nil
}

type typeTextRequest struct {
	Text string `mapstructure:"text"`
}

func (r typeTextRequest) Validate() error {
	if r.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

func (m *Module) typeText(ctx context.Context, req typeTextRequest) (automation.Result, error) {
	m.input.TypeText(req.Text)
	return automation.OK(fmt.Sprintf("Typed text: %s", req.Text)), nil
}

type pressKeyRequest struct {
	Key string `mapstructure:"key"`
}

func (r pressKeyRequest) Validate() error {
	if r.Key == "" {
		return errors.New("key is required")
	}
	return nil
}

func (m *Module) pressKey(ctx context.Context, req pressKeyRequest) (automation.Result, error) {
	if err := m.input.PressKey(req.Key); err != nil {
		return automation.Result{}, fmt.Errorf("pressing key %q: %w", req.Key, err)
	}
	return automation.OK(fmt.Sprintf("Key pressed: %s", req.Key)), nil
}

func (m *Module) screenSize(ctx context.Context, args map[string]any) (automation.Result, error) {
	w, h := m.input.ScreenSize()
	return automation.OK(fmt.Sprintf("Screen size: %dx%d", w, h)), nil
}

func (m *Module) mousePosition(ctx context.Context, args map[string]any) (automation.Result, error) {
	x, y := m.input.MousePosition()
	return automation.OK(fmt.Sprintf("Mouse position: (%d, %d)", x, y)), nil
}

// robotgoInput drives the real mouse and keyboard.
type robotgoInput struct{}

func (robotgoInput) MoveMouse(x, y int) { robotgo.Move(x, y) }
func (robotgoInput) Click()             { robotgo.Click() }

func (robotgoInput) ClickAt(x, y int) {
	robotgo.Move(x, y)
	robotgo.Click()
}

func (robotgoInput) TypeText(text string) { robotgo.TypeStr(text) }

func (robotgoInput) PressKey(key string) error { return robotgo.KeyTap(key) }

func (robotgoInput) ScreenSize() (int, int) { return robotgo.GetScreenSize() }

func (robotgoInput) MousePosition() (int, int) { return robotgo.Location() }

// execLauncher starts applications as detached processes.
type execLauncher struct{}

func (execLauncher) LookPath(name string) (string, error) { return exec.LookPath(name) }

func (execLauncher) Start(path string) error {
	cmd := exec.Command(path)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the process in the background so it doesn't linger as a zombie.
	go func() { _ = cmd.Wait() }()
	return nil
}
