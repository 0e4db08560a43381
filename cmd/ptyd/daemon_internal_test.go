package main

import (
	"reflect"
	"testing"
)

func TestParseInternalDaemonArgs(t *testing.T) {
	raw := []string{
		"--internal-daemon=mysession",
		"--internal-cols=132",
		"--internal-rows=50",
		"--",
		"/bin/bash",
		"-l",
	}

	cols, rows, cmdArgs := parseInternalDaemonArgs(raw)
	if cols != 132 || rows != 50 {
		t.Errorf("got cols=%d rows=%d, want 132/50", cols, rows)
	}
	want := []string{"/bin/bash", "-l"}
	if !reflect.DeepEqual(cmdArgs, want) {
		t.Errorf("got %v, want %v", cmdArgs, want)
	}
}

func TestParseInternalDaemonArgsDefaultsWithoutSizeFlags(t *testing.T) {
	raw := []string{"--", "/bin/sh"}
	cols, rows, cmdArgs := parseInternalDaemonArgs(raw)
	if cols != 80 || rows != 24 {
		t.Errorf("got cols=%d rows=%d, want defaults 80/24", cols, rows)
	}
	if len(cmdArgs) != 1 || cmdArgs[0] != "/bin/sh" {
		t.Errorf("got %v", cmdArgs)
	}
}

func TestParseInternalDaemonArgsNoCommandReturnsEmpty(t *testing.T) {
	_, _, cmdArgs := parseInternalDaemonArgs([]string{"--internal-cols=80"})
	if cmdArgs != nil {
		t.Errorf("expected nil cmdArgs without a trailing '--', got %v", cmdArgs)
	}
}
