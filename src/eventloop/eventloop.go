package eventloop

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"yv-capture/src/capture"
	"yv-capture/src/config"
	"yv-capture/src/hotkey"
	"yv-capture/src/panel"
	"yv-capture/src/singleinstance"
)

// commandTimeout bounds one panel round trip.
const commandTimeout = 5 * time.Second

// Panel is the part of the panel the loop drives.
type Panel interface {
	Capture(ctx context.Context, target capture.Target) (panel.View, error)
	Clear(ctx context.Context) (panel.View, error)
	View(ctx context.Context) (panel.View, error)
}

// Loop is the single-threaded coordinator for hotkey, tray and delegated
// commands. Every command ends up as one panel call.
type Loop struct {
	panel    Panel
	srv      singleinstance.Server
	triggers chan singleinstance.Request
}

// New creates a loop. srv may be nil, in which case only local triggers
// (hotkeys, tray) are served.
func New(p Panel, srv singleinstance.Server) *Loop {
	return &Loop{
		panel:    p,
		srv:      srv,
		triggers: make(chan singleinstance.Request, 4),
	}
}

// Trigger posts a command from a hotkey or the tray. It never blocks; when
// the loop is behind, the trigger is dropped.
func (l *Loop) Trigger(req singleinstance.Request) {
	select {
	case l.triggers <- req:
	default:
		log.Printf("EventLoop: dropping %s, loop busy", strings.TrimSpace(req.Line()))
	}
}

// CaptureFunc and ClearFunc adapt Trigger to tray callbacks.
func (l *Loop) CaptureFunc() func(capture.Target) {
	return func(t capture.Target) {
		l.Trigger(singleinstance.Request{Command: singleinstance.CmdCapture, Target: t})
	}
}

func (l *Loop) ClearFunc() func() {
	return func() { l.Trigger(singleinstance.Request{Command: singleinstance.CmdClear}) }
}

// Bindings maps the configured hotkeys onto loop triggers.
func (l *Loop) Bindings(cfg *config.Config) []hotkey.Binding {
	if cfg == nil {
		return nil
	}
	start := l.CaptureFunc()
	return []hotkey.Binding{
		{Combo: cfg.HotkeyTop, Action: func() { start(capture.TargetTop) }},
		{Combo: cfg.HotkeyBottom, Action: func() { start(capture.TargetBottom) }},
		{Combo: cfg.HotkeyClear, Action: l.ClearFunc()},
	}
}

// Run serves triggers and delegated connections until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	var conns chan singleinstance.Conn
	if l.srv != nil {
		if err := l.srv.Start(ctx); err != nil {
			return err
		}
		defer l.srv.Close()
		if p := l.srv.Port(); p > 0 {
			log.Printf("Resident listening on 127.0.0.1:%d", p)
		}
		// Accept loop in background so a slow client never blocks triggers
		conns = make(chan singleinstance.Conn, 4)
		go func() {
			defer close(conns)
			for {
				conn, err := l.srv.Next(ctx)
				if err != nil {
					return
				}
				select {
				case conns <- conn:
				case <-ctx.Done():
					conn.Close()
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-l.triggers:
			body, err := l.execute(ctx, req)
			if err != nil {
				log.Printf("EventLoop: %s failed: %v", req.Command, err)
				continue
			}
			log.Printf("EventLoop: %s -> %s", req.Command, firstLine(body))
		case conn, ok := <-conns:
			if !ok {
				return nil
			}
			l.handleConn(ctx, conn)
		}
	}
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	defer conn.Close()
	req := conn.Request()
	body, err := l.execute(ctx, req)
	if err != nil {
		log.Printf("EventLoop: delegated %s failed: %v", req.Command, err)
		_ = conn.RespondError(err.Error())
		return
	}
	if err := conn.RespondSuccess(body); err != nil {
		log.Printf("EventLoop: failed to respond to client: %v", err)
	}
}

func (l *Loop) execute(ctx context.Context, req singleinstance.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var (
		v   panel.View
		err error
	)
	switch req.Command {
	case singleinstance.CmdCapture:
		v, err = l.panel.Capture(ctx, req.Target)
	case singleinstance.CmdClear:
		v, err = l.panel.Clear(ctx)
	case singleinstance.CmdStatus:
		v, err = l.panel.View(ctx)
		if err == nil {
			return Describe(v), nil
		}
	default:
		return "", fmt.Errorf("unknown command %q", req.Command)
	}
	if err != nil {
		return "", err
	}
	return v.Status + "\n", nil
}

// Describe renders a view for STATUS replies.
func Describe(v panel.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "status: %s\n", v.Status)
	fmt.Fprintf(&b, "preview: %s\n", v.PreviewText())
	fmt.Fprintf(&b, "path: %s\n", v.Path)
	pending := make([]string, 0, len(v.Pending))
	for _, p := range v.Pending {
		pending = append(pending, fmt.Sprintf("%s(%s)", p.Target, p.ID))
	}
	fmt.Fprintf(&b, "pending: %s\n", joinOrNone(pending))
	applied := make([]string, 0, len(v.Applied))
	for _, t := range v.Applied {
		applied = append(applied, string(t))
	}
	fmt.Fprintf(&b, "applied: %s\n", joinOrNone(applied))
	return b.String()
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
