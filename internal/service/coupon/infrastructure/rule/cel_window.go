// internal/service/coupon/infrastructure/rule/cel_window.go
package rule

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// DefaultWindowExpression 每天 17:00 到 18:00 开放
const DefaultWindowExpression = "hour >= 17 && hour < 18"

// CELWindow 是 port.PromotionWindow 的 CEL 实现。
// 表达式可以使用 now(timestamp)、hour、minute、weekday(0 表示周日) 四个变量，
// 时间按配置的时区换算。
type CELWindow struct {
	expr     string
	program  cel.Program
	location *time.Location
}

// NewCELWindow 编译表达式，表达式不合法或结果不是 bool 时返回错误
func NewCELWindow(expr string, loc *time.Location) (*CELWindow, error) {
	if expr == "" {
		expr = DefaultWindowExpression
	}
	if loc == nil {
		loc = time.UTC
	}

	env, err := cel.NewEnv(
		cel.Variable("now", cel.TimestampType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("minute", cel.IntType),
		cel.Variable("weekday", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("invalid promotion window expression %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("promotion window expression %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build cel program: %w", err)
	}
	return &CELWindow{expr: expr, program: program, location: loc}, nil
}

// IsOpen 实现 port.PromotionWindow
func (w *CELWindow) IsOpen(at time.Time) (bool, error) {
	local := at.In(w.location)
	out, _, err := w.program.Eval(map[string]any{
		"now":     local,
		"hour":    int64(local.Hour()),
		"minute":  int64(local.Minute()),
		"weekday": int64(local.Weekday()),
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate promotion window %q: %w", w.expr, err)
	}
	open, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("promotion window %q returned %T", w.expr, out.Value())
	}
	return open, nil
}

func (w *CELWindow) Expression() string {
	return w.expr
}
