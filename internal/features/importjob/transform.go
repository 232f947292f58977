package importjob

import (
	"context"
	"fmt"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

// Transforms are small expressions applied to a column's raw cell before
// type coercion, with the cell bound as `value`. They are compiled once
// when the mapping is validated; a runtime failure is a row error, not a
// job failure.
type compiledTransform struct {
	compiled *tengo.Compiled
}

// CompileTransforms compiles every expression in the mapping. A compile
// error here is a configuration error and keeps the job PENDING.
func CompileTransforms(transforms map[string]string) (map[string]*compiledTransform, error) {
	out := make(map[string]*compiledTransform, len(transforms))

	for column, expr := range transforms {
		script := tengo.NewScript([]byte(fmt.Sprintf("out := (%s)", expr)))
		script.SetImports(stdlib.GetModuleMap("text", "math", "times", "fmt"))
		if err := script.Add("value", ""); err != nil {
			return nil, fmt.Errorf("invalid transform for column %s: %w", column, err)
		}

		compiled, err := script.Compile()
		if err != nil {
			return nil, fmt.Errorf("invalid transform for column %s: %w", column, err)
		}

		out[column] = &compiledTransform{compiled: compiled}
	}

	return out, nil
}

// Apply runs the transform against one cell under the caller's deadline.
func (t *compiledTransform) Apply(ctx context.Context, raw string) (string, error) {
	c := t.compiled.Clone()
	if err := c.Set("value", raw); err != nil {
		return "", err
	}
	if err := c.RunContext(ctx); err != nil {
		return "", fmt.Errorf("transform failed: %w", err)
	}
	return c.Get("out").String(), nil
}
