package pagination

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Normalize приводит limit/offset к допустимым значениям.
func Normalize(limit, offset int) (int, int) {
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
