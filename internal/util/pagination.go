package util

import "strconv"

const DefaultPageSize = 10

// Page clamps pageNum/pageSize and returns the offset/limit pair for a
// count-then-fetch query.
func Page(pageNum, pageSize int) (offset, limit int) {
	if pageNum < 1 {
		pageNum = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = DefaultPageSize
	}
	return (pageNum - 1) * pageSize, pageSize
}

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
