package celengine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
	"go.uber.org/zap"
)

var programCache = sync.Map{}

// BuildCelEnvFromAttributes declares one variable per attribute, typed from its Go value.
func BuildCelEnvFromAttributes(attrs map[string]interface{}) (*cel.Env, error) {
	var variables []cel.EnvOption

	for key, val := range attrs {
		switch val.(type) {
		case string:
			variables = append(variables, cel.Variable(key, cel.StringType))
		case int, int32, int64:
			variables = append(variables, cel.Variable(key, cel.IntType))
		case float32, float64:
			variables = append(variables, cel.Variable(key, cel.DoubleType))
		case bool:
			variables = append(variables, cel.Variable(key, cel.BoolType))
		case []interface{}:
			variables = append(variables, cel.Variable(key, cel.ListType(cel.DynType)))
		case map[string]interface{}:
			variables = append(variables, cel.Variable(key, cel.MapType(cel.StringType, cel.DynType)))
		default:
			zap.L().Debug("unhandled cel attribute type", zap.String("key", key), zap.String("type", fmt.Sprintf("%T", val)))
			variables = append(variables, cel.Variable(key, cel.DynType))
		}
	}

	return cel.NewEnv(variables...)
}

func ValidateExpression(env *cel.Env, expr string) error {
	_, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return issues.Err()
	}
	return nil
}

// program compiles expr for the shape of attrs and caches the result.
func program(expr string, attrs map[string]interface{}) (cel.Program, error) {
	key := cacheKey(expr, attrs)
	if v, ok := programCache.Load(key); ok {
		return v.(cel.Program), nil
	}

	env, err := BuildCelEnvFromAttributes(attrs)
	if err != nil {
		return nil, err
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}

	programCache.Store(key, prg)
	return prg, nil
}

func cacheKey(expr string, attrs map[string]interface{}) string {
	keys := make([]string, 0, len(attrs))
	for k, v := range attrs {
		keys = append(keys, fmt.Sprintf("%s:%T", k, v))
	}
	sort.Strings(keys)
	return expr + "|" + strings.Join(keys, ",")
}

func eval(expr string, attrs map[string]interface{}) (ref.Val, error) {
	prg, err := program(expr, attrs)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.Eval(attrs)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func Evaluate(expr string, attrs map[string]interface{}) (bool, error) {
	out, err := eval(expr, attrs)
	if err != nil {
		return false, err
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expected bool from expression, got %T (%v)", out.Value(), out.Value())
	}
	return b, nil
}

func EvaluateInt(expr string, attrs map[string]interface{}) (int64, error) {
	out, err := eval(expr, attrs)
	if err != nil {
		return 0, err
	}

	n, ok := out.Value().(int64)
	if !ok {
		return 0, fmt.Errorf("expected int from expression, got %T (%v)", out.Value(), out.Value())
	}
	return n, nil
}
