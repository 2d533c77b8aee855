package download

import (
	"fmt"
	"os/exec"
	"runtime"
)

// SystemOpener opens files with the platform's default handler.
type SystemOpener struct{}

// Open starts the handler for path and returns once it is launched.
func (SystemOpener) Open(path string) error {
	cmd := openCommand(runtime.GOOS, path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func openCommand(goos, path string) *exec.Cmd {
	switch goos {
	case "darwin":
		return exec.Command("open", path)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		return exec.Command("xdg-open", path)
	}
}
