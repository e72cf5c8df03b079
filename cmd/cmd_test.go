package cmd

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"civicdesk/internal/bootstrap/config"
)

func TestWriteConfigYAML(t *testing.T) {
	cfg, err := config.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	if err := writeConfigYAML(cmd, cfg); err != nil {
		t.Fatalf("writeConfigYAML() error = %v", err)
	}

	for _, want := range []string{
		"reject_undo_window: 5s",
		"dsn: data/civicdesk.sqlite",
		"base_url: http://127.0.0.1:8000",
	} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestServeListenerStopsOnContextCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveListener(ctx, server, listener, time.Second) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("body = %q, want ok", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serveListener() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serveListener did not return after cancel")
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"serve-classifier"},
		{"init-db"},
		{"console", "operator"},
		{"config", "show"},
	} {
		found, _, err := rootCmd.Find(path)
		if err != nil || found == rootCmd {
			t.Fatalf("rootCmd.Find(%v) = %v, %v; want subcommand", path, found, err)
		}
	}
}
