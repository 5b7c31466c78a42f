package notify

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/nugget/warden-agent/internal/config"
)

func TestConsoleNotice(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	NewConsole(logger).Notice("Fallback Models", "Fallback models selected: m1, m2")

	out := buf.String()
	if !strings.Contains(out, "Fallback models selected") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "Fallback Models") {
		t.Errorf("title missing: %q", out)
	}
}

func TestMultiFansOut(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi{
		NewConsole(slog.New(slog.NewTextHandler(&a, nil))),
		NewConsole(slog.New(slog.NewTextHandler(&b, nil))),
	}

	m.Notice("T", "hello")

	if !strings.Contains(a.String(), "hello") || !strings.Contains(b.String(), "hello") {
		t.Errorf("fan-out missed a sink: a=%q b=%q", a.String(), b.String())
	}
}

func TestMQTTTopics(t *testing.T) {
	p := NewMQTT(config.MQTTConfig{DeviceName: "warden"}, nil)

	if got := p.availabilityTopic(); got != "warden/warden/availability" {
		t.Errorf("availability topic = %q", got)
	}
	if got := p.noticeTopic(); got != "warden/warden/notice" {
		t.Errorf("notice topic = %q", got)
	}
}

func TestMQTTNoticeBeforeStart(t *testing.T) {
	p := NewMQTT(config.MQTTConfig{DeviceName: "warden"}, nil)
	// Must not panic without a connection.
	p.Notice("T", "body")
}
