package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

var orderingParam = "ordering"

const dateLayout = "2006-01-02"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// parseDate parses an HTML date input ("2006-01-02") or an RFC 3339 timestamp.
// A blank value gives a zero time.
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: field, Error: "enter a valid date (YYYY-MM-DD)"})
}

// bracketParams collects form params named like `prefix[key]` into {key: value}.
func bracketParams(ctx echo.Context, prefix string) (map[string]string, error) {
	params, err := ctx.FormParams()
	if err != nil {
		return nil, errors.Wrap(err, "reading form params")
	}
	out := make(map[string]string)
	for name, vals := range params {
		if !strings.HasPrefix(name, prefix+"[") || !strings.HasSuffix(name, "]") || len(vals) == 0 {
			continue
		}
		key := strings.TrimSuffix(strings.TrimPrefix(name, prefix+"["), "]")
		if key != "" {
			out[key] = vals[0]
		}
	}
	return out, nil
}
