package output

import "context"

type formatKey struct{}
type queryKey struct{}
type limitKey struct{}
type sortKey struct{}

type sortSpec struct {
	field string
	desc  bool
}

// WithFormat attaches the output format to ctx.
func WithFormat(ctx context.Context, format Format) context.Context {
	return context.WithValue(ctx, formatKey{}, format)
}

// FormatFromContext returns the output format, FormatText when unset.
func FormatFromContext(ctx context.Context) Format {
	if v, ok := ctx.Value(formatKey{}).(Format); ok {
		return v
	}
	return FormatText
}

// WithQuery attaches a jq query to ctx.
func WithQuery(ctx context.Context, query string) context.Context {
	return context.WithValue(ctx, queryKey{}, query)
}

// QueryFromContext returns the jq query, if any.
func QueryFromContext(ctx context.Context) string {
	if q, ok := ctx.Value(queryKey{}).(string); ok {
		return q
	}
	return ""
}

// WithLimit caps the number of list items printed. 0 means unlimited.
func WithLimit(ctx context.Context, limit int) context.Context {
	return context.WithValue(ctx, limitKey{}, limit)
}

// LimitFromContext returns the list limit.
func LimitFromContext(ctx context.Context) int {
	if l, ok := ctx.Value(limitKey{}).(int); ok {
		return l
	}
	return 0
}

// WithSort sorts printed lists by a field.
func WithSort(ctx context.Context, field string, desc bool) context.Context {
	return context.WithValue(ctx, sortKey{}, sortSpec{field: field, desc: desc})
}

// SortFromContext returns the sort field and direction.
func SortFromContext(ctx context.Context) (field string, desc bool) {
	s, _ := ctx.Value(sortKey{}).(sortSpec)
	return s.field, s.desc
}
