package common

// Paging — нормализованные параметры страницы. Page начинается с 1.
type Paging struct {
	Page  int
	Limit int
}

// NewPaging приводит page/limit к допустимым значениям:
// page < 1 → 1, limit <= 0 → defaultLimit, limit > maxLimit → maxLimit.
func NewPaging(page, limit, defaultLimit, maxLimit int) Paging {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return Paging{Page: page, Limit: limit}
}

// Offset — смещение для SQL OFFSET.
func (p Paging) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Window возвращает границы среза [from, to) для total элементов.
func (p Paging) Window(total int) (int, int) {
	from := p.Offset()
	if from > total {
		from = total
	}
	to := from + p.Limit
	if to > total {
		to = total
	}
	return from, to
}
