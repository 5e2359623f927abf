package util

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Paginate 将页码换算为 limit/offset，非法参数回落到默认值
func Paginate(page, pageSize int) (limit, offset int64) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return int64(pageSize), int64((page - 1) * pageSize)
}
