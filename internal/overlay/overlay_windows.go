//go:build windows

package overlay

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	gdi32    = windows.NewLazySystemDLL("gdi32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procRegisterClassEx     = user32.NewProc("RegisterClassExW")
	procCreateWindowEx      = user32.NewProc("CreateWindowExW")
	procDefWindowProc       = user32.NewProc("DefWindowProcW")
	procDestroyWindow       = user32.NewProc("DestroyWindow")
	procPostMessage         = user32.NewProc("PostMessageW")
	procPostQuitMessage     = user32.NewProc("PostQuitMessage")
	procGetMessage          = user32.NewProc("GetMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessage     = user32.NewProc("DispatchMessageW")
	procShowWindow          = user32.NewProc("ShowWindow")
	procUpdateLayeredWindow = user32.NewProc("UpdateLayeredWindow")
	procSetTimer            = user32.NewProc("SetTimer")
	procKillTimer           = user32.NewProc("KillTimer")
	procInvalidateRect      = user32.NewProc("InvalidateRect")
	procBeginPaint          = user32.NewProc("BeginPaint")
	procEndPaint            = user32.NewProc("EndPaint")
	procFillRect            = user32.NewProc("FillRect")
	procGetDC               = user32.NewProc("GetDC")
	procReleaseDC           = user32.NewProc("ReleaseDC")

	procCreateCompatibleDC = gdi32.NewProc("CreateCompatibleDC")
	procCreateDIBSection   = gdi32.NewProc("CreateDIBSection")
	procSelectObject       = gdi32.NewProc("SelectObject")
	procDeleteObject       = gdi32.NewProc("DeleteObject")
	procDeleteDC           = gdi32.NewProc("DeleteDC")
	procCreateSolidBrush   = gdi32.NewProc("CreateSolidBrush")
	procCreatePen          = gdi32.NewProc("CreatePen")
	procEllipse            = gdi32.NewProc("Ellipse")

	procGetModuleHandle = kernel32.NewProc("GetModuleHandleW")
)

const (
	WS_POPUP = 0x80000000

	WS_EX_TOPMOST     = 0x00000008
	WS_EX_TRANSPARENT = 0x00000020
	WS_EX_TOOLWINDOW  = 0x00000080
	WS_EX_LAYERED     = 0x00080000
	WS_EX_NOACTIVATE  = 0x08000000

	SW_SHOWNOACTIVATE = 4

	WM_DESTROY = 0x0002
	WM_PAINT   = 0x000F
	WM_CLOSE   = 0x0010
	WM_TIMER   = 0x0113

	ULW_ALPHA      = 0x00000002
	AC_SRC_OVER    = 0x00
	AC_SRC_ALPHA   = 0x01
	BI_RGB         = 0
	DIB_RGB_COLORS = 0
	PS_SOLID       = 0

	ERROR_CLASS_ALREADY_EXISTS = 1410

	repaintIntervalMs = 50
)

type POINT struct{ X, Y int32 }

type SIZE struct{ Cx, Cy int32 }

type RECT struct{ Left, Top, Right, Bottom int32 }

type MSG struct {
	Hwnd    syscall.Handle
	Message uint32
	Wparam  uintptr
	Lparam  uintptr
	Time    uint32
	Pt      POINT
}

type WNDCLASSEX struct {
	CbSize        uint32
	Style         uint32
	LpfnWndProc   uintptr
	CbClsExtra    int32
	CbWndExtra    int32
	HInstance     uintptr
	HIcon         uintptr
	HCursor       uintptr
	HbrBackground uintptr
	LpszMenuName  *uint16
	LpszClassName *uint16
	HIconSm       uintptr
}

type BLENDFUNCTION struct {
	BlendOp             byte
	BlendFlags          byte
	SourceConstantAlpha byte
	AlphaFormat         byte
}

type BITMAPINFOHEADER struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

type PAINTSTRUCT struct {
	Hdc         uintptr
	FErase      int32
	RcPaint     RECT
	FRestore    int32
	FIncUpdate  int32
	RgbReserved [32]byte
}

// One overlay window per process; the window procedure needs a way back to it.
var (
	activeMu      sync.Mutex
	activeSurface *winSurface

	wndProcOnce sync.Once
	wndProcPtr  uintptr

	classOnce sync.Once
	classErr  error
)

const overlayClassName = "SlideTapOverlay"

type winSurface struct {
	set     *dotSet
	opts    Options
	layered bool
	hwnd    uintptr
	done    chan struct{}
	closing sync.Once
}

func newLayered(opts Options) (Surface, error) {
	return newWindow(opts, true)
}

func newSimple(opts Options) (Surface, error) {
	return newWindow(opts, false)
}

func newWindow(opts Options, layered bool) (Surface, error) {
	activeMu.Lock()
	if activeSurface != nil {
		activeMu.Unlock()
		return nil, fmt.Errorf("%w: overlay already active", ErrWindowCreate)
	}
	activeMu.Unlock()

	s := &winSurface{
		set:     newDotSet(opts.RadiusPx, opts.Fade),
		opts:    opts,
		layered: layered,
		done:    make(chan struct{}),
	}

	// The window and its message loop live on one locked OS thread.
	errCh := make(chan error, 1)
	go s.windowLoop(errCh)
	if err := <-errCh; err != nil {
		return nil, err
	}

	kind := "simple"
	if layered {
		kind = "layered"
	}
	b := opts.Bounds
	log.Printf("Overlay: %s window created: %dx%d at (%d, %d)", kind, b.Dx(), b.Dy(), b.Min.X, b.Min.Y)
	return s, nil
}

// AddDot schedules a dot at screen coordinates.
func (s *winSurface) AddDot(x, y int) {
	s.set.Add(x-s.opts.Bounds.Min.X, y-s.opts.Bounds.Min.Y)
}

// Clear removes all dots immediately.
func (s *winSurface) Clear() {
	s.set.Clear()
}

// Close destroys the window and waits for the message loop to exit.
func (s *winSurface) Close() {
	s.closing.Do(func() {
		procPostMessage.Call(s.hwnd, WM_CLOSE, 0, 0)
		<-s.done
	})
}

func (s *winSurface) windowLoop(errCh chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := registerClass(); err != nil {
		errCh <- err
		return
	}

	exStyle := uintptr(WS_EX_TOPMOST | WS_EX_TOOLWINDOW | WS_EX_NOACTIVATE)
	if s.layered {
		// Fully transparent and click-through: input goes to whatever is
		// underneath, per-pixel alpha comes from UpdateLayeredWindow.
		exStyle |= WS_EX_LAYERED | WS_EX_TRANSPARENT
	}

	className, _ := syscall.UTF16PtrFromString(overlayClassName)
	b := s.opts.Bounds
	hInst, _, _ := procGetModuleHandle.Call(0)

	hwnd, _, createErr := procCreateWindowEx.Call(
		exStyle,
		uintptr(unsafe.Pointer(className)),
		0,
		WS_POPUP,
		uintptr(b.Min.X), uintptr(b.Min.Y),
		uintptr(b.Dx()), uintptr(b.Dy()),
		0, 0, hInst, 0,
	)
	if hwnd == 0 {
		errCh <- fmt.Errorf("%w: %v", ErrWindowCreate, createErr)
		return
	}
	s.hwnd = hwnd

	activeMu.Lock()
	activeSurface = s
	activeMu.Unlock()

	procShowWindow.Call(hwnd, SW_SHOWNOACTIVATE)
	if s.layered {
		s.paintLayered()
	}
	procSetTimer.Call(hwnd, 1, repaintIntervalMs, 0)

	errCh <- nil

	var msg MSG
	for {
		ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if int32(ret) <= 0 {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessage.Call(uintptr(unsafe.Pointer(&msg)))
	}

	activeMu.Lock()
	activeSurface = nil
	activeMu.Unlock()
	close(s.done)
}

func registerClass() error {
	classOnce.Do(func() {
		wndProcOnce.Do(func() {
			wndProcPtr = syscall.NewCallback(overlayWndProc)
		})

		className, _ := syscall.UTF16PtrFromString(overlayClassName)
		hInst, _, _ := procGetModuleHandle.Call(0)
		wc := WNDCLASSEX{
			CbSize:        uint32(unsafe.Sizeof(WNDCLASSEX{})),
			LpfnWndProc:   wndProcPtr,
			HInstance:     hInst,
			LpszClassName: className,
		}
		atom, _, err := procRegisterClassEx.Call(uintptr(unsafe.Pointer(&wc)))
		if atom == 0 {
			if errno, ok := err.(syscall.Errno); !ok || errno != ERROR_CLASS_ALREADY_EXISTS {
				classErr = fmt.Errorf("%w: register class: %v", ErrWindowCreate, err)
			}
		}
	})
	return classErr
}

func overlayWndProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	activeMu.Lock()
	s := activeSurface
	activeMu.Unlock()

	if s == nil || hwnd != s.hwnd {
		ret, _, _ := procDefWindowProc.Call(hwnd, uintptr(msg), wParam, lParam)
		return ret
	}

	switch msg {
	case WM_TIMER:
		if s.layered {
			s.paintLayered()
		} else {
			procInvalidateRect.Call(hwnd, 0, 1)
		}
		return 0
	case WM_PAINT:
		if !s.layered {
			s.paintSimple()
			return 0
		}
	case WM_CLOSE:
		procDestroyWindow.Call(hwnd)
		return 0
	case WM_DESTROY:
		procKillTimer.Call(hwnd, 1)
		procPostQuitMessage.Call(0)
		return 0
	}

	ret, _, _ := procDefWindowProc.Call(hwnd, uintptr(msg), wParam, lParam)
	return ret
}

// paintLayered renders the dot set into a premultiplied ARGB buffer and
// pushes it through UpdateLayeredWindow.
func (s *winSurface) paintLayered() {
	w, h := s.opts.Bounds.Dx(), s.opts.Bounds.Dy()
	if w <= 0 || h <= 0 {
		return
	}

	pix := make([]byte, w*h*4)
	if s.opts.DebugBg {
		// Barely-there gray so the operator can confirm the overlay exists.
		fillPremultiplied(pix, 40, 40, 40, 30)
	}
	for _, d := range s.set.Snapshot() {
		alpha := d.Alpha(s.set.now())
		drawCircle(pix, w, h, d.X, d.Y, d.Radius,
			s.opts.ColorR, s.opts.ColorG, s.opts.ColorB, alpha)
	}

	screenDC, _, _ := procGetDC.Call(0)
	defer procReleaseDC.Call(0, screenDC)
	memDC, _, _ := procCreateCompatibleDC.Call(screenDC)
	defer procDeleteDC.Call(memDC)

	bih := BITMAPINFOHEADER{
		Size:        uint32(unsafe.Sizeof(BITMAPINFOHEADER{})),
		Width:       int32(w),
		Height:      -int32(h), // top-down
		Planes:      1,
		BitCount:    32,
		Compression: BI_RGB,
	}
	var bits unsafe.Pointer
	hbm, _, _ := procCreateDIBSection.Call(screenDC,
		uintptr(unsafe.Pointer(&bih)), DIB_RGB_COLORS,
		uintptr(unsafe.Pointer(&bits)), 0, 0)
	if hbm == 0 || bits == nil {
		return
	}
	defer procDeleteObject.Call(hbm)

	copy(unsafe.Slice((*byte)(bits), len(pix)), pix)

	old, _, _ := procSelectObject.Call(memDC, hbm)
	defer procSelectObject.Call(memDC, old)

	ptDst := POINT{X: int32(s.opts.Bounds.Min.X), Y: int32(s.opts.Bounds.Min.Y)}
	size := SIZE{Cx: int32(w), Cy: int32(h)}
	ptSrc := POINT{}
	blend := BLENDFUNCTION{
		BlendOp:             AC_SRC_OVER,
		SourceConstantAlpha: 255,
		AlphaFormat:         AC_SRC_ALPHA,
	}
	procUpdateLayeredWindow.Call(s.hwnd, screenDC,
		uintptr(unsafe.Pointer(&ptDst)), uintptr(unsafe.Pointer(&size)),
		memDC, uintptr(unsafe.Pointer(&ptSrc)), 0,
		uintptr(unsafe.Pointer(&blend)), ULW_ALPHA)
}

// paintSimple draws on an opaque window with plain GDI. Fading blends the
// dot color toward the background since there is no per-pixel alpha here.
func (s *winSurface) paintSimple() {
	var ps PAINTSTRUCT
	hdc, _, _ := procBeginPaint.Call(s.hwnd, uintptr(unsafe.Pointer(&ps)))
	if hdc == 0 {
		return
	}
	defer procEndPaint.Call(s.hwnd, uintptr(unsafe.Pointer(&ps)))

	var bgR, bgG, bgB uint8
	if s.opts.DebugBg {
		bgR, bgG, bgB = 40, 40, 40
	}
	bgBrush, _, _ := procCreateSolidBrush.Call(colorref(bgR, bgG, bgB))
	procFillRect.Call(hdc, uintptr(unsafe.Pointer(&ps.RcPaint)), bgBrush)
	procDeleteObject.Call(bgBrush)

	for _, d := range s.set.Snapshot() {
		alpha := d.Alpha(s.set.now())
		r := blendChannel(s.opts.ColorR, bgR, alpha)
		g := blendChannel(s.opts.ColorG, bgG, alpha)
		b := blendChannel(s.opts.ColorB, bgB, alpha)

		brush, _, _ := procCreateSolidBrush.Call(colorref(r, g, b))
		pen, _, _ := procCreatePen.Call(PS_SOLID, 1, colorref(r, g, b))
		oldBrush, _, _ := procSelectObject.Call(hdc, brush)
		oldPen, _, _ := procSelectObject.Call(hdc, pen)

		procEllipse.Call(hdc,
			uintptr(d.X-d.Radius), uintptr(d.Y-d.Radius),
			uintptr(d.X+d.Radius), uintptr(d.Y+d.Radius))

		procSelectObject.Call(hdc, oldBrush)
		procSelectObject.Call(hdc, oldPen)
		procDeleteObject.Call(brush)
		procDeleteObject.Call(pen)
	}
}

func colorref(r, g, b uint8) uintptr {
	return uintptr(uint32(r) | uint32(g)<<8 | uint32(b)<<16)
}

func blendChannel(fg, bg uint8, alpha float64) uint8 {
	return uint8(float64(fg)*alpha + float64(bg)*(1-alpha))
}

// fillPremultiplied fills a BGRA buffer with one premultiplied color.
func fillPremultiplied(pix []byte, r, g, b, a uint8) {
	af := float64(a) / 255
	pb := byte(float64(b) * af)
	pg := byte(float64(g) * af)
	pr := byte(float64(r) * af)
	for i := 0; i < len(pix); i += 4 {
		pix[i] = pb
		pix[i+1] = pg
		pix[i+2] = pr
		pix[i+3] = a
	}
}

// drawCircle rasterizes a filled circle with the given opacity into a
// premultiplied BGRA buffer.
func drawCircle(pix []byte, w, h, cx, cy, radius int, r, g, b uint8, alpha float64) {
	if alpha <= 0 {
		return
	}
	a := byte(alpha * 255)
	pb := byte(float64(b) * alpha)
	pg := byte(float64(g) * alpha)
	pr := byte(float64(r) * alpha)
	r2 := radius * radius

	for dy := -radius; dy <= radius; dy++ {
		y := cy + dy
		if y < 0 || y >= h {
			continue
		}
		for dx := -radius; dx <= radius; dx++ {
			x := cx + dx
			if x < 0 || x >= w {
				continue
			}
			if dx*dx+dy*dy > r2 {
				continue
			}
			i := (y*w + x) * 4
			if pix[i+3] < a {
				pix[i] = pb
				pix[i+1] = pg
				pix[i+2] = pr
				pix[i+3] = a
			}
		}
	}
}
