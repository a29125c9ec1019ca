package sqlite

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/mesh-intelligence/tablesync/pkg/types"
)

var filterKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// buildListQuery translates params into SQL. Filters compare top-level
// fields exactly; keys are applied in sorted order so equal params produce
// equal queries.
func buildListQuery(table string, params types.ListParams) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT body FROM documents WHERE table_name = ?`)
	args := []any{table}

	keys := make([]string, 0, len(params.Filters))
	for k := range params.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !filterKeyPattern.MatchString(key) {
			return "", nil, fmt.Errorf("%w: key %q", types.ErrInvalidFilter, key)
		}
		path := "$." + key
		switch v := params.Filters[key].(type) {
		case nil:
			sb.WriteString(` AND json_type(body, ?) = 'null'`)
			args = append(args, path)
		case bool:
			sb.WriteString(` AND json_type(body, ?) = ?`)
			args = append(args, path, fmt.Sprint(v))
		case string:
			sb.WriteString(` AND json_type(body, ?) = 'text' AND json_extract(body, ?) = ?`)
			args = append(args, path, path, v)
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, float32, float64:
			sb.WriteString(` AND json_type(body, ?) IN ('integer', 'real') AND json_extract(body, ?) = ?`)
			args = append(args, path, path, v)
		case uint64:
			// database/sql rejects uint64 arguments with the high bit set.
			var arg any = float64(v)
			if v <= math.MaxInt64 {
				arg = int64(v)
			}
			sb.WriteString(` AND json_type(body, ?) IN ('integer', 'real') AND json_extract(body, ?) = ?`)
			args = append(args, path, path, arg)
		default:
			return "", nil, fmt.Errorf("%w: value for %q must be a scalar, got %T", types.ErrInvalidFilter, key, v)
		}
	}

	sb.WriteString(` ORDER BY seq`)
	if pg := params.Pagination; pg != nil {
		if pg.Offset < 0 || pg.Limit < 0 {
			return "", nil, fmt.Errorf("%w: negative pagination", types.ErrInvalidFilter)
		}
		limit := pg.Limit
		if limit == 0 {
			limit = -1
		}
		sb.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, limit, pg.Offset)
	}
	return sb.String(), args, nil
}
