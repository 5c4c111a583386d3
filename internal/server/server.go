// Package server exposes the compiler as newline-delimited JSON-RPC tools
// over stdio, for editors that want inline diagnostics.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"blockext/internal/annotation"
	"blockext/internal/models"
	"blockext/internal/pipeline"
)

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// toolError is a failure reported inside a successful tools/call result,
// so the client can show it next to the source.
type toolError struct {
	payload interface{}
}

func (e *toolError) Error() string { return "tool reported an error" }

type Server struct {
	compiler *pipeline.Compiler
	version  string
}

func NewServer(c *pipeline.Compiler, version string) *Server {
	return &Server{compiler: c, version: version}
}

// Run serves requests from r until EOF or ctx is done. Reads happen on a
// separate goroutine, which exits once r yields or is closed.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	writer := bufio.NewWriter(w)
	lines := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		reader := bufio.NewReader(r)
		for {
			line, err := reader.ReadBytes('\n')
			if len(line) > 0 {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line := <-lines:
			s.handleLine(ctx, writer, line)
		case err := <-readErr:
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (s *Server) handleLine(ctx context.Context, writer *bufio.Writer, line []byte) {
	var req JSONRPCRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.writeError(writer, nil, codeParseError, "Parse error")
		return
	}
	s.handleRequest(ctx, writer, &req)
}

func (s *Server) handleRequest(ctx context.Context, writer *bufio.Writer, req *JSONRPCRequest) {
	slog.Debug("rpc request", slog.String("method", req.Method))

	// Notifications carry no id and get no response.
	if req.ID == nil {
		return
	}

	switch req.Method {
	case "initialize":
		s.handleInitialize(writer, req)
	case "tools/list":
		s.handleToolsList(writer, req)
	case "tools/call":
		s.handleToolsCall(ctx, writer, req)
	default:
		s.writeError(writer, req.ID, codeMethodNotFound, "Method not found")
	}
}

func (s *Server) handleInitialize(writer *bufio.Writer, req *JSONRPCRequest) {
	result := map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"serverInfo": map[string]string{
			"name":    "blockext",
			"version": s.version,
		},
		"capabilities": map[string]interface{}{
			"tools": map[string]bool{},
		},
	}
	s.writeResponse(writer, req.ID, result)
}

func sourceSchema(field, description string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			field: map[string]string{"type": "string", "description": description},
		},
		"required": []string{field},
	}
}

func (s *Server) handleToolsList(writer *bufio.Writer, req *JSONRPCRequest) {
	tools := []map[string]interface{}{
		{
			"name":        "check_extension",
			"description": "Report annotation errors and lint findings for an extension source file",
			"inputSchema": sourceSchema("source", "JavaScript source with annotation comments"),
		},
		{
			"name":        "build_extension",
			"description": "Compile an annotated extension source file into a Scratch extension class",
			"inputSchema": sourceSchema("source", "JavaScript source with annotation comments"),
		},
		{
			"name":        "parse_annotation",
			"description": "Parse a single annotation such as @reporter(add [a:NUMBER])",
			"inputSchema": sourceSchema("annotation", "Annotation text without the comment marker"),
		},
	}
	s.writeResponse(writer, req.ID, map[string]interface{}{"tools": tools})
}

func (s *Server) handleToolsCall(ctx context.Context, writer *bufio.Writer, req *JSONRPCRequest) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(writer, req.ID, codeInvalidParams, "Invalid params")
		return
	}

	var result interface{}
	var err error

	switch params.Name {
	case "check_extension":
		result, err = s.handleCheck(ctx, params.Arguments)
	case "build_extension":
		result, err = s.handleBuild(ctx, params.Arguments)
	case "parse_annotation":
		result, err = s.handleParseAnnotation(params.Arguments)
	default:
		s.writeError(writer, req.ID, codeInvalidParams, "Unknown tool")
		return
	}

	var invalid *invalidArgs
	var reported *toolError
	switch {
	case errors.As(err, &invalid):
		s.writeError(writer, req.ID, codeInvalidParams, invalid.Error())
		return
	case errors.As(err, &reported):
		s.writeResponse(writer, req.ID, toolResult(reported.payload, true))
		return
	case err != nil:
		s.writeError(writer, req.ID, codeInternalError, err.Error())
		return
	}

	s.writeResponse(writer, req.ID, toolResult(result, false))
}

type invalidArgs struct {
	msg string
}

func (e *invalidArgs) Error() string { return e.msg }

func decodeArg(args json.RawMessage, field string) (string, error) {
	var input map[string]interface{}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", &invalidArgs{msg: "Invalid params"}
	}
	v, ok := input[field].(string)
	if !ok {
		return "", &invalidArgs{msg: fmt.Sprintf("Missing string argument %q", field)}
	}
	return v, nil
}

func (s *Server) handleCheck(ctx context.Context, args json.RawMessage) (interface{}, error) {
	source, err := decodeArg(args, "source")
	if err != nil {
		return nil, err
	}

	diags, err := s.compiler.Check(ctx, []byte(source))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"ok":          !pipeline.HasErrors(diags),
		"diagnostics": diags,
	}, nil
}

func (s *Server) handleBuild(ctx context.Context, args json.RawMessage) (interface{}, error) {
	source, err := decodeArg(args, "source")
	if err != nil {
		return nil, err
	}

	res, err := s.compiler.Compile(ctx, []byte(source))
	if err != nil {
		var located *models.Error
		if errors.As(err, &located) {
			return nil, &toolError{payload: map[string]interface{}{
				"diagnostics": []pipeline.Diagnostic{pipeline.FromError(located)},
			}}
		}
		return nil, err
	}

	return map[string]interface{}{
		"output":     res.Output,
		"descriptor": res.Descriptor,
	}, nil
}

func (s *Server) handleParseAnnotation(args json.RawMessage) (interface{}, error) {
	text, err := decodeArg(args, "annotation")
	if err != nil {
		return nil, err
	}

	node, err := annotation.Parse(text)
	if err != nil {
		var perr *annotation.ParseError
		if errors.As(err, &perr) {
			return nil, &toolError{payload: map[string]interface{}{
				"error":    perr,
				"rendered": annotation.RenderError(text, perr),
			}}
		}
		return nil, err
	}
	return annotation.ToNode(node), nil
}

func toolResult(result interface{}, isError bool) map[string]interface{} {
	out := map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": formatResult(result),
			},
		},
	}
	if isError {
		out["isError"] = true
	}
	return out
}

func (s *Server) writeResponse(writer *bufio.Writer, id interface{}, result interface{}) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	s.write(writer, resp)
}

func (s *Server) writeError(writer *bufio.Writer, id interface{}, code int, message string) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
	}
	s.write(writer, resp)
}

func (s *Server) write(writer *bufio.Writer, resp JSONRPCResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
		return
	}
	writer.Write(data)
	writer.WriteByte('\n')
	writer.Flush()
}

func formatResult(result interface{}) string {
	data, _ := json.MarshalIndent(result, "", "  ")
	return string(data)
}
