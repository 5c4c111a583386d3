package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"blockext/internal/pipeline"
)

type response struct {
	ID     interface{}     `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

type toolResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func serve(t *testing.T, requests ...string) []response {
	t.Helper()
	c, err := pipeline.New(pipeline.Options{Lint: true, Validate: true})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}

	var out bytes.Buffer
	in := strings.NewReader(strings.Join(requests, "\n"))
	if err := NewServer(c, "test").Run(context.Background(), in, &out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var resps []response
	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var r response
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("decode response %q: %v", scanner.Text(), err)
		}
		resps = append(resps, r)
	}
	return resps
}

func call(id int, tool string, args map[string]string) string {
	data, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params":  map[string]interface{}{"name": tool, "arguments": args},
	})
	return string(data)
}

func decodeTool(t *testing.T, r response, into interface{}) toolResponse {
	t.Helper()
	if r.Error != nil {
		t.Fatalf("unexpected rpc error %+v", r.Error)
	}
	var tr toolResponse
	if err := json.Unmarshal(r.Result, &tr); err != nil {
		t.Fatalf("decode tool result: %v", err)
	}
	if len(tr.Content) != 1 || tr.Content[0].Type != "text" {
		t.Fatalf("tool content=%+v", tr.Content)
	}
	if into != nil {
		if err := json.Unmarshal([]byte(tr.Content[0].Text), into); err != nil {
			t.Fatalf("decode tool text %q: %v", tr.Content[0].Text, err)
		}
	}
	return tr
}

func TestInitializeAndToolsList(t *testing.T) {
	resps := serve(t,
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	)
	if len(resps) != 2 {
		t.Fatalf("responses=%d, want 2", len(resps))
	}

	var init struct {
		ServerInfo map[string]string `json:"serverInfo"`
	}
	if err := json.Unmarshal(resps[0].Result, &init); err != nil {
		t.Fatalf("decode initialize: %v", err)
	}
	if init.ServerInfo["name"] != "blockext" || init.ServerInfo["version"] != "test" {
		t.Fatalf("serverInfo=%v", init.ServerInfo)
	}

	var list struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resps[1].Result, &list); err != nil {
		t.Fatalf("decode tools/list: %v", err)
	}
	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	if strings.Join(names, ",") != "check_extension,build_extension,parse_annotation" {
		t.Fatalf("tools=%v", names)
	}
}

func TestProtocolErrors(t *testing.T) {
	resps := serve(t,
		`{not json`,
		`{"jsonrpc":"2.0","id":7,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":8,"method":"tools/call","params":"nope"}`,
		`{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"format_disk","arguments":{}}}`,
		call(10, "build_extension", map[string]string{"text": "x"}),
	)

	want := []int{-32700, -32601, -32602, -32602, -32602}
	if len(resps) != len(want) {
		t.Fatalf("responses=%d, want %d", len(resps), len(want))
	}
	for i, code := range want {
		if resps[i].Error == nil || resps[i].Error.Code != code {
			t.Fatalf("response %d error=%+v, want code %d", i, resps[i].Error, code)
		}
	}
}

func TestNotificationsGetNoResponse(t *testing.T) {
	resps := serve(t,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/list"}`,
	)
	if len(resps) != 1 {
		t.Fatalf("responses=%d, want only the request with an id", len(resps))
	}
	if id, ok := resps[0].ID.(float64); !ok || id != 3 {
		t.Fatalf("response id=%v, want 3", resps[0].ID)
	}
}

func TestRunStopsOnCancelWhileReading(t *testing.T) {
	c, err := pipeline.New(pipeline.Options{})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}

	in, feed := io.Pipe()
	defer feed.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewServer(c, "test").Run(ctx, in, io.Discard)
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run err=%v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestBuildExtension(t *testing.T) {
	src := "//@reporter(add five [val:NUMBER])\nfunction addFiveReporter(val) {\n  return val + 5;\n}\n"
	resps := serve(t,
		call(1, "build_extension", map[string]string{"source": src}),
		call(2, "build_extension", map[string]string{"source": "//@init\n\nfunction s() {}\n"}),
	)
	if len(resps) != 2 {
		t.Fatalf("responses=%d, want 2", len(resps))
	}

	var built struct {
		Output string `json:"output"`
	}
	if tr := decodeTool(t, resps[0], &built); tr.IsError {
		t.Fatalf("build reported an error")
	}
	if !strings.Contains(built.Output, "addFiveReporter(args) {") {
		t.Fatalf("output=%s", built.Output)
	}

	var failed struct {
		Diagnostics []pipeline.Diagnostic `json:"diagnostics"`
	}
	if tr := decodeTool(t, resps[1], &failed); !tr.IsError {
		t.Fatalf("detached annotation should be reported as a tool error")
	}
	if len(failed.Diagnostics) != 1 || failed.Diagnostics[0].Code != "CorrelationError" {
		t.Fatalf("diagnostics=%+v", failed.Diagnostics)
	}
}

func TestCheckExtension(t *testing.T) {
	resps := serve(t,
		call(1, "check_extension", map[string]string{"source": "//@menu(unused)\n[1];\n"}),
		call(2, "check_extension", map[string]string{"source": "//@reporter(x [a:TYPE])\nfunction x(a) {}\n"}),
	)

	var clean struct {
		OK          bool                  `json:"ok"`
		Diagnostics []pipeline.Diagnostic `json:"diagnostics"`
	}
	decodeTool(t, resps[0], &clean)
	if !clean.OK || len(clean.Diagnostics) != 1 || clean.Diagnostics[0].Code != "unused-menu" {
		t.Fatalf("check=%+v", clean)
	}

	var broken struct {
		OK          bool                  `json:"ok"`
		Diagnostics []pipeline.Diagnostic `json:"diagnostics"`
	}
	decodeTool(t, resps[1], &broken)
	if broken.OK || len(broken.Diagnostics) != 1 || broken.Diagnostics[0].Code != "UnknownArgumentType" {
		t.Fatalf("check=%+v", broken)
	}
	if got := broken.Diagnostics[0].Location.Start.Column; got != 17 {
		t.Fatalf("column=%d, want 17", got)
	}
}

func TestParseAnnotation(t *testing.T) {
	resps := serve(t,
		call(1, "parse_annotation", map[string]string{"annotation": "@command(name of command [foo:MENU:bar])"}),
		call(2, "parse_annotation", map[string]string{"annotation": "@init(foo)"}),
	)

	var node struct {
		Kind string `json:"kind"`
		Text string `json:"text"`
		Args []struct {
			Name string `json:"name"`
			Spec struct {
				Type    string `json:"type"`
				Default string `json:"default"`
			} `json:"spec"`
		} `json:"args"`
	}
	decodeTool(t, resps[0], &node)
	if node.Kind != "block" || node.Text != "name of command [foo]" {
		t.Fatalf("node=%+v", node)
	}
	if len(node.Args) != 1 || node.Args[0].Spec.Type != "MENU" || node.Args[0].Spec.Default != "bar" {
		t.Fatalf("args=%+v", node.Args)
	}

	var failed struct {
		Rendered string `json:"rendered"`
	}
	if tr := decodeTool(t, resps[1], &failed); !tr.IsError {
		t.Fatalf("bad annotation should be a tool error")
	}
	if !strings.HasSuffix(failed.Rendered, "\n@init(foo)\n     ^~~~") {
		t.Fatalf("rendered=%q", failed.Rendered)
	}
}
