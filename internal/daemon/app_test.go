// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/oggconv/internal/config"
	"github.com/ManuGH/oggconv/internal/jobs"
)

const waitFor = 3 * time.Second

type instantProcess struct {
	lines chan string
}

func (p *instantProcess) Lines() <-chan string { return p.lines }
func (p *instantProcess) Wait() (int, error)   { return 0, nil }
func (p *instantProcess) Kill() error          { return nil }

// recordingRunner writes the output file and exits cleanly right away.
type recordingRunner struct {
	mu   sync.Mutex
	args [][]string
}

func (r *recordingRunner) Start(_ context.Context, _ string, args []string) (jobs.Process, error) {
	r.mu.Lock()
	r.args = append(r.args, args)
	r.mu.Unlock()
	if err := os.WriteFile(args[len(args)-1], []byte("ogg"), 0o600); err != nil {
		return nil, err
	}
	lines := make(chan string)
	close(lines)
	return &instantProcess{lines: lines}, nil
}

func (r *recordingRunner) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.args) == 0 {
		return ""
	}
	return strings.Join(r.args[len(r.args)-1], " ")
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func startApp(t *testing.T, configBody string) (*App, *config.Holder, *recordingRunner, string, string, func() error) {
	t.Helper()
	t.Setenv("OGGCONV_DATA_DIR", t.TempDir())
	for _, k := range []string{"PORT", "OGGCONV_LISTEN_ADDR", "OGGCONV_FFMPEG_DEFAULT_QUALITY", "OGGCONV_TRACING_ENABLED"} {
		t.Setenv(k, "")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, configBody)

	loader := config.NewLoader(path, "test")
	cfg, err := loader.Load()
	require.NoError(t, err)
	holder := config.NewHolder(cfg, loader)

	runner := &recordingRunner{}
	app, err := New(context.Background(), holder, WithProcessRunner(runner), WithReloadSignal(nil))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln) }()

	var (
		once    sync.Once
		stopErr error
	)
	stop := func() error {
		once.Do(func() {
			cancel()
			select {
			case stopErr = <-done:
			case <-time.After(waitFor):
				stopErr = fmt.Errorf("Serve did not return")
			}
		})
		return stopErr
	}
	t.Cleanup(func() { _ = stop() })
	return app, holder, runner, "http://" + ln.Addr().String(), path, stop
}

func dial(t *testing.T, base string) (*websocket.Conn, string) {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(base, "http")+"/ws", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	var welcome struct {
		Type string `json:"type"`
		Data string `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, "welcome", welcome.Type)
	return conn, welcome.Data
}

func waitDone(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	for {
		var ev struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
		require.NoError(t, conn.ReadJSON(&ev))
		switch ev.Type {
		case "done":
			var p struct {
				DownloadURL string `json:"downloadUrl"`
			}
			require.NoError(t, json.Unmarshal(ev.Data, &p))
			return p.DownloadURL
		case "error":
			t.Fatalf("conversion failed: %s", ev.Data)
		}
	}
}

func convert(t *testing.T, base, clientID string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("clientId", clientID))
	fw, err := mw.CreateFormFile("audioFile", "track.mp3")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("audio"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(base+"/convert", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestNewRequiresHolder(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingConfig)
}

func TestServeConvertsAndShutsDown(t *testing.T) {
	_, _, runner, base, _, stop := startApp(t, "publicBaseURL: https://files.example\n")

	conn, id := dial(t, base)
	convert(t, base, id)
	url := waitDone(t, conn)
	assert.True(t, strings.HasPrefix(url, "https://files.example/download/"), url)
	assert.Contains(t, runner.last(), "-q:a 4")

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, stop())
}

func TestReloadAppliesDefaultQuality(t *testing.T) {
	_, holder, runner, base, path, _ := startApp(t, "ffmpeg:\n  defaultQuality: 4\n")

	writeConfig(t, path, "ffmpeg:\n  defaultQuality: 7\n")
	require.NoError(t, holder.Reload())

	conn, id := dial(t, base)
	convert(t, base, id)
	waitDone(t, conn)
	assert.Contains(t, runner.last(), "-q:a 7")
}

func TestRunFailsOnBadAddress(t *testing.T) {
	_, holder, _, _, _, _ := startApp(t, "")
	// Occupied port.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	cfg := holder.Get()
	cfg.ListenAddr = ln.Addr().String()
	app, err := New(context.Background(), config.NewHolder(cfg, config.NewLoader("", "")), WithProcessRunner(&recordingRunner{}), WithReloadSignal(nil))
	require.NoError(t, err)

	err = app.Run(context.Background())
	assert.ErrorIs(t, err, ErrServerStartFailed)
}
