package main

import (
	"errors"
	"testing"
	"time"
)

func TestNewRootCmdDefaults(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 50 {
		t.Fatalf("Expected default n=50, got %d", opts.n)
	}
	if opts.command != "STATUS" {
		t.Fatalf("Expected default command=STATUS, got %q", opts.command)
	}
	if opts.deadline != 5*time.Second {
		t.Fatalf("Expected default deadline=5s, got %v", opts.deadline)
	}
}

func TestNewRootCmdCustomFlags(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--n", "3", "--command", "CAPTURE top", "--deadline", "7s"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 3 {
		t.Fatalf("Expected n=3, got %d", opts.n)
	}
	if opts.command != "CAPTURE top" {
		t.Fatalf("Expected command=CAPTURE top, got %q", opts.command)
	}
	if opts.deadline != 7*time.Second {
		t.Fatalf("Expected deadline=7s, got %v", opts.deadline)
	}
}

func TestTally(t *testing.T) {
	var tl tally
	tl.add(true, nil)
	tl.add(true, errors.New("Busy, please retry"))
	tl.add(true, errors.New("boom"))
	tl.add(false, nil)
	if tl.ok != 1 || tl.busy != 1 || tl.err != 1 || tl.missing != 1 {
		t.Fatalf("unexpected tally %+v", tl)
	}
}
