package loghandler

import (
	"bytes"
	"log/slog"
	"regexp"
	"strings"
	"testing"
)

var stamp = regexp.MustCompile(`^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2} `)

func TestCompactFormat(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, slog.LevelInfo))

	log.Info("room created", "tag", "rooms", "room", "r1", "players", 3)

	line := buf.String()
	if !stamp.MatchString(line) {
		t.Fatalf("missing timestamp: %q", line)
	}
	if !strings.HasSuffix(line, "[rooms] room created room=r1 players=3\n") {
		t.Errorf("unexpected line %q", line)
	}
}

func TestLevelShownForWarnAndAbove(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, slog.LevelDebug))

	log.Warn("slow client")
	log.Error("write failed")
	log.Debug("tick")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "WARN slow client") || !strings.Contains(lines[1], "ERROR write failed") {
		t.Errorf("missing level: %q", lines[:2])
	}
	if strings.Contains(lines[2], "DEBUG") {
		t.Errorf("debug should not print level: %q", lines[2])
	}
}

func TestBelowLevelDropped(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, slog.LevelInfo))
	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected nothing, got %q", buf.String())
	}
}

func TestWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, slog.LevelInfo)).With("tag", "relay", "room", "r1")

	log.WithGroup("seat").Info("joined", "player", "alice")

	if !strings.HasSuffix(buf.String(), "[relay] joined room=r1 seat.player=alice\n") {
		t.Errorf("unexpected line %q", buf.String())
	}
}
