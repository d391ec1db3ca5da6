package expr

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// Environment builds and compiles CEL programs that inspect a captured
// response before it is written back to the store.
type Environment struct {
	env *cel.Env
}

// NewEnvironment declares the CEL variables exposed to TTL override programs:
//
//	status   response status code
//	ttl      nominal ttl in seconds for the route
//	method   request method
//	path     request path
//	key      cache key
//	headers  response headers, lower-cased names, first value
//	request  request headers, lower-cased names, first value
func NewEnvironment() (*Environment, error) {
	env, err := cel.NewEnv(
		cel.Variable("status", cel.IntType),
		cel.Variable("ttl", cel.IntType),
		cel.Variable("method", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("key", cel.StringType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("request", cel.MapType(cel.StringType, cel.StringType)),
		cel.Function("lookup",
			cel.Overload("lookup_map_string",
				[]*cel.Type{cel.MapType(cel.StringType, cel.StringType), cel.StringType},
				cel.DynType,
				cel.BinaryBinding(lookupMapValue),
			),
		),
		cel.HomogeneousAggregateLiterals(),
	)
	if err != nil {
		return nil, fmt.Errorf("expr: build environment: %w", err)
	}
	return &Environment{env: env}, nil
}

// Program wraps a compiled CEL program yielding a ttl in seconds.
type Program struct {
	source  string
	program cel.Program
}

// CompileTTL prepares a program that must yield an integer number of seconds.
func (e *Environment) CompileTTL(expression string) (Program, error) {
	return e.compile(expression, cel.IntType)
}

// Source returns the original CEL expression for logging.
func (p Program) Source() string { return p.source }

// EvalTTL executes the program and returns the ttl in seconds. Negative
// results are clamped to zero, which disables storage.
func (p Program) EvalTTL(in Input) (int, error) {
	val, err := p.eval(in)
	if err != nil {
		return 0, err
	}
	var seconds int64
	switch v := val.Value().(type) {
	case int64:
		seconds = v
	case uint64:
		seconds = int64(v)
	default:
		return 0, fmt.Errorf("expr: %q yielded non-int result %s", p.source, val.Type().TypeName())
	}
	if seconds < 0 {
		seconds = 0
	}
	return int(seconds), nil
}

func (p Program) eval(in Input) (ref.Val, error) {
	if p.program == nil {
		return nil, fmt.Errorf("expr: program not initialized")
	}
	val, _, err := p.program.Eval(in.activation())
	if err != nil {
		return nil, fmt.Errorf("expr: eval %q: %w", p.source, err)
	}
	return val, nil
}

func (e *Environment) compile(expression string, want *cel.Type) (Program, error) {
	expr := strings.TrimSpace(expression)
	if expr == "" {
		return Program{}, fmt.Errorf("expr: expression required")
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return Program{}, fmt.Errorf("expr: compile %q: %w", expr, issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(want) && !t.IsExactType(cel.DynType) {
		return Program{}, fmt.Errorf("expr: %q must return %s, got %s", expr, cel.FormatCELType(want), cel.FormatCELType(t))
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return Program{}, fmt.Errorf("expr: program %q: %w", expr, err)
	}
	return Program{source: expr, program: program}, nil
}

// Input is the response-side state a program sees.
type Input struct {
	StatusCode    int
	TTL           int
	Method        string
	Path          string
	Key           string
	Header        http.Header
	RequestHeader http.Header
}

func (in Input) activation() map[string]any {
	return map[string]any{
		"status":  int64(in.StatusCode),
		"ttl":     int64(in.TTL),
		"method":  in.Method,
		"path":    in.Path,
		"key":     in.Key,
		"headers": flattenHeader(in.Header),
		"request": flattenHeader(in.RequestHeader),
	}
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) == 0 {
			continue
		}
		out[strings.ToLower(name)] = values[0]
	}
	return out
}

func lookupMapValue(mapVal ref.Val, key ref.Val) ref.Val {
	mapper, ok := mapVal.(traits.Mapper)
	if !ok {
		return types.NewErr("expr: lookup only supports string-key maps")
	}
	value, found := mapper.Find(key)
	if !found || value == nil {
		return types.NullValue
	}
	return value
}
