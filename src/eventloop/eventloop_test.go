package eventloop

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"yv-capture/src/capture"
	"yv-capture/src/config"
	"yv-capture/src/panel"
	"yv-capture/src/session"
	"yv-capture/src/singleinstance"
)

type fakePanel struct {
	mu    sync.Mutex
	calls []string
	err   error
	seen  chan string
}

func newFakePanel() *fakePanel { return &fakePanel{seen: make(chan string, 8)} }

func (f *fakePanel) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	f.seen <- call
}

func (f *fakePanel) Capture(ctx context.Context, target capture.Target) (panel.View, error) {
	f.record("capture " + string(target))
	return panel.View{Status: "Capture " + string(target) + ": drag a rectangle on the page"}, f.err
}

func (f *fakePanel) Clear(ctx context.Context) (panel.View, error) {
	f.record("clear")
	return panel.View{Status: panel.StatusCleared}, f.err
}

func (f *fakePanel) View(ctx context.Context) (panel.View, error) {
	f.record("view")
	return panel.View{
		Status:  panel.StatusHighRes,
		Preview: "https://example.com/a.png",
		Path:    panel.PathHighRes,
		Pending: []session.Pending{{ID: "s1", Target: capture.TargetBottom}},
		Applied: []capture.Target{capture.TargetTop},
	}, f.err
}

type fakeConn struct {
	req    singleinstance.Request
	mu     sync.Mutex
	ok     bool
	body   string
	closed chan struct{}
}

func newFakeConn(req singleinstance.Request) *fakeConn {
	return &fakeConn{req: req, closed: make(chan struct{})}
}

func (c *fakeConn) Request() singleinstance.Request { return c.req }
func (c *fakeConn) RespondSuccess(body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ok, c.body = true, body
	return nil
}
func (c *fakeConn) RespondError(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ok, c.body = false, msg
	return nil
}
func (c *fakeConn) Close() error {
	close(c.closed)
	return nil
}

type fakeServer struct {
	conns chan singleinstance.Conn
}

func (s *fakeServer) Start(ctx context.Context) error { return nil }
func (s *fakeServer) Port() int                       { return 0 }
func (s *fakeServer) Close() error                    { return nil }
func (s *fakeServer) Next(ctx context.Context) (singleinstance.Conn, error) {
	select {
	case c := <-s.conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func waitCall(t *testing.T, p *fakePanel, want string) {
	t.Helper()
	select {
	case got := <-p.seen:
		if got != want {
			t.Fatalf("panel call = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func waitClosed(t *testing.T, c *fakeConn) {
	t.Helper()
	select {
	case <-c.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not closed")
	}
}

func TestTriggersReachPanel(t *testing.T) {
	p := newFakePanel()
	l := New(p, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	l.CaptureFunc()(capture.TargetBottom)
	waitCall(t, p, "capture bottom")
	l.ClearFunc()()
	waitCall(t, p, "clear")
}

func TestBindingsUseConfiguredCombos(t *testing.T) {
	p := newFakePanel()
	l := New(p, nil)
	cfg := &config.Config{HotkeyTop: "Ctrl+Alt+T", HotkeyBottom: "Ctrl+Alt+B", HotkeyClear: "Ctrl+Alt+X"}
	b := l.Bindings(cfg)
	if len(b) != 3 {
		t.Fatalf("expected 3 bindings, got %d", len(b))
	}
	if b[0].Combo != "Ctrl+Alt+T" || b[1].Combo != "Ctrl+Alt+B" || b[2].Combo != "Ctrl+Alt+X" {
		t.Fatalf("unexpected combos: %+v", b)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)
	b[0].Action()
	waitCall(t, p, "capture top")
}

func TestDelegatedCommands(t *testing.T) {
	p := newFakePanel()
	srv := &fakeServer{conns: make(chan singleinstance.Conn)}
	l := New(p, srv)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	capConn := newFakeConn(singleinstance.Request{Command: singleinstance.CmdCapture, Target: capture.TargetTop})
	srv.conns <- capConn
	waitClosed(t, capConn)
	if !capConn.ok || !strings.HasPrefix(capConn.body, "Capture top") {
		t.Fatalf("capture reply ok=%v body=%q", capConn.ok, capConn.body)
	}

	statusConn := newFakeConn(singleinstance.Request{Command: singleinstance.CmdStatus})
	srv.conns <- statusConn
	waitClosed(t, statusConn)
	for _, want := range []string{"status: High-res link", "path: high-res", "pending: bottom(s1)", "applied: top"} {
		if !strings.Contains(statusConn.body, want) {
			t.Errorf("status body missing %q:\n%s", want, statusConn.body)
		}
	}
}

func TestDelegatedErrorIsReported(t *testing.T) {
	p := newFakePanel()
	p.err = panel.ErrStopped
	srv := &fakeServer{conns: make(chan singleinstance.Conn)}
	l := New(p, srv)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	conn := newFakeConn(singleinstance.Request{Command: singleinstance.CmdClear})
	srv.conns <- conn
	waitClosed(t, conn)
	if conn.ok || conn.body != panel.ErrStopped.Error() {
		t.Fatalf("reply ok=%v body=%q", conn.ok, conn.body)
	}
}

func TestRunFailsWhenServerCannotStart(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback unavailable: %v", err)
	}
	defer lis.Close()
	port := lis.Addr().(*net.TCPAddr).Port
	if port < 1024 {
		t.Skip("ephemeral port below clamp range")
	}
	t.Setenv("SINGLEINSTANCE_PORT_START", strconv.Itoa(port))
	t.Setenv("SINGLEINSTANCE_PORT_END", strconv.Itoa(port))

	l := New(newFakePanel(), singleinstance.NewServer())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Run(ctx); err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected bind error, got %v", err)
	}
}

func TestDescribeEmptyView(t *testing.T) {
	got := Describe(panel.View{Status: panel.StatusIdle})
	for _, want := range []string{"status: Idle", "preview: " + panel.PlaceholderText, "path: none", "pending: none", "applied: none"} {
		if !strings.Contains(got, want) {
			t.Errorf("Describe missing %q:\n%s", want, got)
		}
	}
}
