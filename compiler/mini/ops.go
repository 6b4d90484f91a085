package mini

import (
	"fmt"
	"math"
	"strings"

	"github.com/wippyai/docbridge/compiler"
	"github.com/wippyai/docbridge/syntax"
)

func mismatch(op string, a, b compiler.Value) error {
	return fmt.Errorf("cannot %s %s %s %s", op, compiler.TypeName(a), preposition(op), compiler.TypeName(b))
}

func preposition(op string) string {
	switch op {
	case "add":
		return "to"
	case "subtract":
		return "from"
	case "multiply":
		return "with"
	case "divide":
		return "by"
	}
	return "with"
}

func unaryOp(op syntax.Kind, v compiler.Value) (compiler.Value, error) {
	switch op {
	case syntax.Minus:
		switch v := v.(type) {
		case int64:
			return -v, nil
		case float64:
			return -v, nil
		case compiler.Length:
			return -v, nil
		}
		return nil, fmt.Errorf("cannot apply unary '-' to %s", compiler.TypeName(v))
	case syntax.Plus:
		switch v.(type) {
		case int64, float64, compiler.Length:
			return v, nil
		}
		return nil, fmt.Errorf("cannot apply unary '+' to %s", compiler.TypeName(v))
	case syntax.Not:
		if b, ok := v.(bool); ok {
			return !b, nil
		}
		return nil, fmt.Errorf("cannot apply 'not' to %s", compiler.TypeName(v))
	}
	return nil, fmt.Errorf("unknown unary operator %s", op)
}

func toFloat(v compiler.Value) (float64, bool) {
	switch v := v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func binaryOp(op syntax.Kind, a, b compiler.Value) (compiler.Value, error) {
	switch op {
	case syntax.Plus:
		return add(a, b)
	case syntax.Minus:
		return arith("subtract", a, b, func(x, y int64) (int64, bool) {
			r := x - y
			return r, (x >= 0) == (y < 0) || (r >= 0) == (x >= 0)
		}, func(x, y float64) float64 { return x - y })
	case syntax.Star:
		return mul(a, b)
	case syntax.Slash:
		return div(a, b)
	case syntax.EqEq:
		return equal(a, b), nil
	case syntax.ExclEq:
		return !equal(a, b), nil
	case syntax.Lt, syntax.LtEq, syntax.Gt, syntax.GtEq:
		c, err := compare(a, b)
		if err != nil {
			return nil, err
		}
		switch op {
		case syntax.Lt:
			return c < 0, nil
		case syntax.LtEq:
			return c <= 0, nil
		case syntax.Gt:
			return c > 0, nil
		}
		return c >= 0, nil
	case syntax.And, syntax.Or:
		x, ok1 := a.(bool)
		y, ok2 := b.(bool)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("expected boolean, found %s", compiler.TypeName(b))
		}
		if op == syntax.And {
			return x && y, nil
		}
		return x || y, nil
	case syntax.In:
		return contains(b, a)
	}
	return nil, fmt.Errorf("unknown operator %s", op)
}

func add(a, b compiler.Value) (compiler.Value, error) {
	switch x := a.(type) {
	case nil:
		return b, nil
	case string:
		if y, ok := b.(string); ok {
			return x + y, nil
		}
	case []compiler.Value:
		if y, ok := b.([]compiler.Value); ok {
			return append(append([]compiler.Value{}, x...), y...), nil
		}
	case *compiler.Dict:
		if y, ok := b.(*compiler.Dict); ok {
			out := x.Clone()
			y.Each(out.Set)
			return out, nil
		}
	case *compiler.Element:
		switch b.(type) {
		case *compiler.Element, string:
			return compiler.Sequence(x, toContent(b)), nil
		}
	case compiler.Length:
		if y, ok := b.(compiler.Length); ok {
			return x + y, nil
		}
	}
	if b == nil {
		return a, nil
	}
	if _, ok := b.(*compiler.Element); ok {
		if _, ok := a.(string); ok {
			return compiler.Sequence(toContent(a), b.(*compiler.Element)), nil
		}
	}
	return arith("add", a, b, func(x, y int64) (int64, bool) {
		r := x + y
		return r, (x >= 0) != (y >= 0) || (r >= 0) == (x >= 0)
	}, func(x, y float64) float64 { return x + y })
}

func arith(name string, a, b compiler.Value, ints func(x, y int64) (int64, bool), floats func(x, y float64) float64) (compiler.Value, error) {
	if x, ok := a.(int64); ok {
		if y, ok := b.(int64); ok {
			r, fine := ints(x, y)
			if !fine {
				return nil, fmt.Errorf("value is too large")
			}
			return r, nil
		}
	}
	if x, ok := a.(compiler.Length); ok {
		if y, ok := b.(compiler.Length); ok {
			return compiler.Length(floats(float64(x), float64(y))), nil
		}
	}
	x, ok1 := toFloat(a)
	y, ok2 := toFloat(b)
	if !ok1 || !ok2 {
		return nil, mismatch(name, a, b)
	}
	return floats(x, y), nil
}

func mul(a, b compiler.Value) (compiler.Value, error) {
	switch x := a.(type) {
	case compiler.Length:
		if y, ok := toFloat(b); ok {
			return compiler.Length(float64(x) * y), nil
		}
	case string:
		if n, ok := b.(int64); ok && n >= 0 {
			return strings.Repeat(x, int(n)), nil
		}
	case []compiler.Value:
		if n, ok := b.(int64); ok && n >= 0 {
			var out []compiler.Value
			for i := int64(0); i < n; i++ {
				out = append(out, x...)
			}
			if out == nil {
				out = []compiler.Value{}
			}
			return out, nil
		}
	}
	if _, ok := b.(compiler.Length); ok {
		return mul(b, a)
	}
	return arith("multiply", a, b, func(x, y int64) (int64, bool) {
		if x == 0 || y == 0 {
			return 0, true
		}
		r := x * y
		return r, r/y == x && !(x == -1 && y == math.MinInt64) && !(y == -1 && x == math.MinInt64)
	}, func(x, y float64) float64 { return x * y })
}

func div(a, b compiler.Value) (compiler.Value, error) {
	if y, ok := toFloat(b); ok && y == 0 {
		return nil, fmt.Errorf("cannot divide by zero")
	}
	if x, ok := a.(compiler.Length); ok {
		if y, ok := toFloat(b); ok {
			return compiler.Length(float64(x) / y), nil
		}
		if y, ok := b.(compiler.Length); ok {
			if y == 0 {
				return nil, fmt.Errorf("cannot divide by zero")
			}
			return float64(x) / float64(y), nil
		}
	}
	if x, ok := a.(int64); ok {
		if y, ok := b.(int64); ok && x%y == 0 {
			return x / y, nil
		}
	}
	x, ok1 := toFloat(a)
	y, ok2 := toFloat(b)
	if !ok1 || !ok2 {
		return nil, mismatch("divide", a, b)
	}
	return x / y, nil
}

func equal(a, b compiler.Value) bool {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return x == y
		}
		return false
	}
	switch x := a.(type) {
	case []compiler.Value:
		y, ok := b.([]compiler.Value)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *compiler.Dict:
		y, ok := b.(*compiler.Dict)
		if !ok || x.Len() != y.Len() {
			return false
		}
		same := true
		x.Each(func(k string, v compiler.Value) {
			w, ok := y.Get(k)
			if !ok || !equal(v, w) {
				same = false
			}
		})
		return same
	case *compiler.Element:
		y, ok := b.(*compiler.Element)
		return ok && x.Func == y.Func && x.Label == y.Label && equal(x.Fields, y.Fields)
	case compiler.Datetime:
		y, ok := b.(compiler.Datetime)
		return ok && x.Equal(y.Time)
	}
	return a == b
}

func compare(a, b compiler.Value) (int, error) {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			}
			return 0, nil
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case compiler.Length:
		if y, ok := b.(compiler.Length); ok {
			return compare(float64(x), float64(y))
		}
	case compiler.Datetime:
		if y, ok := b.(compiler.Datetime); ok {
			return x.Compare(y.Time), nil
		}
	}
	return 0, fmt.Errorf("cannot compare %s with %s", compiler.TypeName(a), compiler.TypeName(b))
}

func contains(container, item compiler.Value) (compiler.Value, error) {
	switch c := container.(type) {
	case []compiler.Value:
		for _, x := range c {
			if equal(x, item) {
				return true, nil
			}
		}
		return false, nil
	case string:
		if s, ok := item.(string); ok {
			return strings.Contains(c, s), nil
		}
	case *compiler.Dict:
		if s, ok := item.(string); ok {
			_, has := c.Get(s)
			return has, nil
		}
	}
	return nil, fmt.Errorf("cannot apply 'in' to %s and %s", compiler.TypeName(item), compiler.TypeName(container))
}

// join combines the values of consecutive statements.
func join(a, b compiler.Value) (compiler.Value, error) {
	switch {
	case a == nil:
		return b, nil
	case b == nil:
		return a, nil
	}
	switch x := a.(type) {
	case string:
		switch y := b.(type) {
		case string:
			return x + y, nil
		case *compiler.Element:
			return compiler.Sequence(compiler.Text(x), y), nil
		}
	case *compiler.Element:
		switch b.(type) {
		case *compiler.Element, string:
			return compiler.Sequence(x, toContent(b)), nil
		}
	case []compiler.Value:
		if y, ok := b.([]compiler.Value); ok {
			return append(append([]compiler.Value{}, x...), y...), nil
		}
	case *compiler.Dict:
		if y, ok := b.(*compiler.Dict); ok {
			out := x.Clone()
			y.Each(out.Set)
			return out, nil
		}
	}
	return nil, fmt.Errorf("cannot join %s with %s", compiler.TypeName(a), compiler.TypeName(b))
}
