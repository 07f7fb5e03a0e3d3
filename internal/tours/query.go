package tours

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// listColumns whitelists the JSON field names clients may filter or sort
// on, mapped to their SQL columns. Anything else is rejected so query
// input never reaches the statement as an identifier.
var listColumns = map[string]string{
	"name":           "name",
	"price":          "price",
	"country":        "country",
	"duration":       "duration",
	"startPoint":     "start_point",
	"numOfAdults":    "num_adults",
	"numOfChildren":  "num_children",
	"ratingAverage":  "rating_average",
	"ratingQuantity": "rating_quantity",
}

var filterOps = map[string]string{
	"eq":  "=",
	"gt":  ">",
	"gte": ">=",
	"lt":  "<",
	"lte": "<=",
}

const (
	defaultLimit = 100
	maxLimit     = 100
)

type Filter struct {
	Column string
	Op     string
	Value  interface{}
}

type SortKey struct {
	Column string
	Desc   bool
}

// ListQuery is the parsed filter/sort/paginate state for a tour listing.
type ListQuery struct {
	Filters []Filter
	Sort    []SortKey
	Fields  []string
	Page    int
	Limit   int
}

// ParseListQuery reads the query-string conventions of the API
// (price[gte]=500, sort=-ratingAverage,price, fields=name,price,
// page=2&limit=10) into a ListQuery.
func ParseListQuery(values url.Values) (ListQuery, error) {
	q := ListQuery{Page: 1, Limit: defaultLimit}

	for key, vals := range values {
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		val := vals[0]

		switch key {
		case "sort":
			for _, part := range strings.Split(val, ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				desc := strings.HasPrefix(part, "-")
				name := strings.TrimPrefix(part, "-")
				col, ok := listColumns[name]
				if !ok {
					return ListQuery{}, fmt.Errorf("cannot sort by %q", name)
				}
				q.Sort = append(q.Sort, SortKey{Column: col, Desc: desc})
			}
		case "fields":
			for _, part := range strings.Split(val, ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				if _, ok := listColumns[part]; !ok && part != "summary" && part != "description" {
					return ListQuery{}, fmt.Errorf("unknown field %q", part)
				}
				q.Fields = append(q.Fields, part)
			}
		case "page":
			page, err := strconv.Atoi(val)
			if err != nil || page < 1 {
				return ListQuery{}, fmt.Errorf("invalid page %q", val)
			}
			q.Page = page
		case "limit":
			limit, err := strconv.Atoi(val)
			if err != nil || limit < 1 {
				return ListQuery{}, fmt.Errorf("invalid limit %q", val)
			}
			if limit > maxLimit {
				limit = maxLimit
			}
			q.Limit = limit
		default:
			field, op := splitFilterKey(key)
			col, ok := listColumns[field]
			if !ok {
				return ListQuery{}, fmt.Errorf("cannot filter by %q", field)
			}
			sqlOp, ok := filterOps[op]
			if !ok {
				return ListQuery{}, fmt.Errorf("unknown operator %q", op)
			}
			// Numeric literals go through as numbers so Postgres does not
			// try a text comparison against a numeric column.
			var value interface{} = val
			if n, err := strconv.ParseFloat(val, 64); err == nil {
				value = n
			}
			q.Filters = append(q.Filters, Filter{Column: col, Op: sqlOp, Value: value})
		}
	}

	return q, nil
}

// splitFilterKey turns "price[gte]" into ("price", "gte"); a bare key is
// an equality filter.
func splitFilterKey(key string) (field, op string) {
	open := strings.IndexByte(key, '[')
	if open < 0 || !strings.HasSuffix(key, "]") {
		return key, "eq"
	}
	return key[:open], key[open+1 : len(key)-1]
}

// sql renders the WHERE/ORDER BY/LIMIT tail with positional placeholders.
func (q ListQuery) sql() (string, []interface{}) {
	var (
		b    strings.Builder
		args []interface{}
	)

	if len(q.Filters) > 0 {
		b.WriteString(" WHERE ")
		for i, f := range q.Filters {
			if i > 0 {
				b.WriteString(" AND ")
			}
			args = append(args, f.Value)
			fmt.Fprintf(&b, "%s %s $%d", f.Column, f.Op, len(args))
		}
	}

	if len(q.Sort) > 0 {
		b.WriteString(" ORDER BY ")
		for i, s := range q.Sort {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(s.Column)
			if s.Desc {
				b.WriteString(" DESC")
			}
		}
	} else {
		b.WriteString(" ORDER BY created_at DESC")
	}

	args = append(args, q.Limit)
	fmt.Fprintf(&b, " LIMIT $%d", len(args))
	args = append(args, (q.Page-1)*q.Limit)
	fmt.Fprintf(&b, " OFFSET $%d", len(args))

	return b.String(), args
}
