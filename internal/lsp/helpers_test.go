package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chtl/internal/compiler"
	"chtl/internal/config"
)

// fakeCompiler reports one error on the first word of any line containing
// "bad" and succeeds otherwise.
type fakeCompiler struct {
	mu        sync.Mutex
	validated []string
	compiled  map[string][]string
}

func (f *fakeCompiler) Run(_ context.Context, content string, _ []string) (compiler.Result, error) {
	f.mu.Lock()
	f.validated = append(f.validated, content)
	f.mu.Unlock()
	for i, line := range strings.Split(content, "\n") {
		if col := strings.Index(line, "bad"); col >= 0 {
			out := fmt.Sprintf(`{"errors":[{"type":"error","message":"bad input","line":%d,"column":%d,"code":"E1"}]}`, i+1, col+1)
			return compiler.Result{Output: out, ExitCode: 1}, nil
		}
	}
	return compiler.Result{Success: true, Output: `{"errors":[]}`}, nil
}

func (f *fakeCompiler) RunFile(_ context.Context, path string, args []string) (compiler.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.compiled == nil {
		f.compiled = make(map[string][]string)
	}
	f.compiled[path] = args
	if strings.Contains(path, "broken") {
		return compiler.Result{Output: "Error: cannot compile", ExitCode: 2}, nil
	}
	return compiler.Result{Success: true}, nil
}

func (f *fakeCompiler) Fingerprint() string { return "fake" }

func (f *fakeCompiler) validations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.validated...)
}

type fakeToolchain struct {
	comp *fakeCompiler
	err  error
}

func (f fakeToolchain) Resolve(config.Config) (Compiler, string, error) {
	return f.comp, "/mods", f.err
}

type testClient struct {
	t      *testing.T
	in     *io.PipeWriter
	msgs   chan rpcMessage
	done   chan error
	nextID int

	exitOnce sync.Once
	exitErr  error
	exited   bool
}

func startServer(t *testing.T, toolchain Toolchain) *testClient {
	t.Helper()
	clientToServer, serverIn := io.Pipe()
	serverOut, serverToClient := io.Pipe()
	opts := ServerOptions{
		Config:      config.Default(),
		ConfigFixed: true,
		Toolchain:   toolchain,
	}
	server := NewServer(clientToServer, serverToClient, opts)
	c := &testClient{
		t:    t,
		in:   serverIn,
		msgs: make(chan rpcMessage, 256),
		done: make(chan error, 1),
	}
	go func() {
		c.done <- server.Run(context.Background())
		serverToClient.Close()
	}()
	go func() {
		reader := bufio.NewReader(serverOut)
		for {
			payload, err := readMessage(reader)
			if err != nil {
				close(c.msgs)
				return
			}
			var msg rpcMessage
			if json.Unmarshal(payload, &msg) == nil {
				c.msgs <- msg
			}
		}
	}()
	t.Cleanup(func() {
		serverIn.Close()
		if exited, _ := c.wait(5 * time.Second); !exited {
			t.Error("server did not stop")
		}
	})
	return c
}

// wait returns the error Run returned, waiting at most d for it.
func (c *testClient) wait(d time.Duration) (bool, error) {
	c.exitOnce.Do(func() {
		select {
		case c.exitErr = <-c.done:
			c.exited = true
		case <-time.After(d):
		}
	})
	return c.exited, c.exitErr
}

func (c *testClient) write(msg map[string]any) {
	c.t.Helper()
	msg["jsonrpc"] = "2.0"
	payload, err := json.Marshal(msg)
	require.NoError(c.t, err)
	require.NoError(c.t, writeMessage(c.in, payload))
}

func (c *testClient) notify(method string, params any) {
	c.t.Helper()
	c.write(map[string]any{"method": method, "params": params})
}

func (c *testClient) request(method string, params any) int {
	c.t.Helper()
	c.nextID++
	c.write(map[string]any{"id": c.nextID, "method": method, "params": params})
	return c.nextID
}

func (c *testClient) respond(id json.RawMessage, result any) {
	c.t.Helper()
	c.write(map[string]any{"id": id, "result": result})
}

// expect returns the first message matching pred, skipping others.
func (c *testClient) expect(what string, pred func(*rpcMessage) bool) rpcMessage {
	c.t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case msg, ok := <-c.msgs:
			if !ok {
				c.t.Fatalf("connection closed while waiting for %s", what)
			}
			if pred(&msg) {
				return msg
			}
		case <-timeout:
			c.t.Fatalf("timed out waiting for %s", what)
		}
	}
}

// expectNone fails if a message matching pred arrives within d.
func (c *testClient) expectNone(what string, d time.Duration, pred func(*rpcMessage) bool) {
	c.t.Helper()
	timeout := time.After(d)
	for {
		select {
		case msg, ok := <-c.msgs:
			if !ok {
				return
			}
			if pred(&msg) {
				c.t.Fatalf("unexpected %s: %s", what, msg.Params)
			}
		case <-timeout:
			return
		}
	}
}

func (c *testClient) response(id int) rpcMessage {
	c.t.Helper()
	want := fmt.Sprint(id)
	return c.expect("response "+want, func(m *rpcMessage) bool {
		return m.Method == "" && string(m.ID) == want
	})
}

func (c *testClient) publish(uri string) publishDiagnosticsParams {
	c.t.Helper()
	msg := c.expect("diagnostics for "+uri, func(m *rpcMessage) bool {
		return m.Method == "textDocument/publishDiagnostics" && strings.Contains(string(m.Params), `"uri":"`+uri+`"`)
	})
	var params publishDiagnosticsParams
	require.NoError(c.t, json.Unmarshal(msg.Params, &params))
	return params
}

func (c *testClient) initialize(rootURI string, options any) {
	c.t.Helper()
	id := c.request("initialize", map[string]any{
		"rootUri":               rootURI,
		"initializationOptions": options,
	})
	resp := c.response(id)
	require.Nil(c.t, resp.Error)
	c.notify("initialized", map[string]any{})
}

func isPublishFor(uri string) func(*rpcMessage) bool {
	return func(m *rpcMessage) bool {
		return m.Method == "textDocument/publishDiagnostics" && strings.Contains(string(m.Params), `"uri":"`+uri+`"`)
	}
}
