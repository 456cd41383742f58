//go:build !windows

package hotkey

import "errors"

func (m *Manager) startPlatform() error {
	return errors.New("global hotkeys not supported on this platform")
}

func (m *Manager) stopPlatform() {}
