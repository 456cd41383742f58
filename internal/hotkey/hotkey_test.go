package hotkey

import (
	"testing"
	"time"
)

func expectFired(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("Expected %s to fire the callback", what)
	}
}

func expectSilent(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("Expected no callback for %s", what)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestHotkeyFiresOnFullCombo tests that the callback fires once every key of
// the combo is held.
func TestHotkeyFiresOnFullCombo(t *testing.T) {
	m := NewManager()
	fired := make(chan struct{}, 1)
	if err := m.Register("Ctrl+B", func() { fired <- struct{}{} }); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	m.UpdateState("CTRL", true)
	expectSilent(t, fired, "modifier alone")

	m.UpdateState("B", true)
	expectFired(t, fired, "Ctrl+B")
}

// TestHotkeyCaseInsensitive tests that registration and key events match
// regardless of case.
func TestHotkeyCaseInsensitive(t *testing.T) {
	m := NewManager()
	fired := make(chan struct{}, 1)
	if err := m.Register("ctrl+b", func() { fired <- struct{}{} }); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	m.UpdateState("Ctrl", true)
	m.UpdateState("b", true)
	expectFired(t, fired, "ctrl+b")
}

// TestHotkeyIgnoresPartialCombo tests that the plain key without its
// modifier does not fire.
func TestHotkeyIgnoresPartialCombo(t *testing.T) {
	m := NewManager()
	fired := make(chan struct{}, 1)
	m.Register("Ctrl+B", func() { fired <- struct{}{} })

	m.UpdateState("B", true)
	expectSilent(t, fired, "B without Ctrl")
}

// TestKeyReleaseResetsState tests that releasing a modifier clears it from
// the held set.
func TestKeyReleaseResetsState(t *testing.T) {
	m := NewManager()
	fired := make(chan struct{}, 1)
	m.Register("Ctrl+B", func() { fired <- struct{}{} })

	m.UpdateState("CTRL", true)
	m.UpdateState("CTRL", false)
	m.UpdateState("B", true)
	expectSilent(t, fired, "B after Ctrl release")
}

// TestClearRemovesHotkeys tests that Clear stops all matching.
func TestClearRemovesHotkeys(t *testing.T) {
	m := NewManager()
	fired := make(chan struct{}, 1)
	m.Register("Ctrl+B", func() { fired <- struct{}{} })
	m.Clear()

	m.UpdateState("CTRL", true)
	m.UpdateState("B", true)
	expectSilent(t, fired, "cleared hotkey")
}

// TestRegisterEmptyHotkey tests that an empty hotkey string registers
// nothing.
func TestRegisterEmptyHotkey(t *testing.T) {
	m := NewManager()
	if err := m.Register("", func() {}); err != nil {
		t.Errorf("Expected empty hotkey to be a no-op, got %v", err)
	}
	if len(m.hotkeys) != 0 {
		t.Errorf("Expected no registered hotkeys, got %d", len(m.hotkeys))
	}
}
