package main

// pageCursor holds the pagination state for one bounded view. It is owned by
// the component that owns the backing collection and is always accessed under
// that component's lock.
type pageCursor struct {
	pageSize int
	page     int
}

// PageInfo describes the window a paginated response covers.
type PageInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
	Total      int `json:"total"`
}

func newPageCursor(pageSize int) pageCursor {
	if pageSize <= 0 {
		pageSize = defaultLedgerPageSize
	}
	return pageCursor{pageSize: pageSize, page: 1}
}

func (c *pageCursor) totalPages(total int) int {
	if total <= 0 {
		return 1
	}
	pages := (total + c.pageSize - 1) / c.pageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}

// clamp pulls the current page back into [1, totalPages] after the backing
// collection or the page size changed. The page size choice is never reset.
func (c *pageCursor) clamp(total int) {
	pages := c.totalPages(total)
	if c.page > pages {
		c.page = pages
	}
	if c.page < 1 {
		c.page = 1
	}
}

// setPageSize changes the window size and re-clamps the current page.
func (c *pageCursor) setPageSize(size, total int) {
	if size <= 0 {
		return
	}
	c.pageSize = size
	c.clamp(total)
}

// setPage moves to the requested page, clamped into range.
func (c *pageCursor) setPage(page, total int) {
	c.page = page
	c.clamp(total)
}

// window returns the [lo, hi) slice bounds for the current page along with
// the page metadata.
func (c *pageCursor) window(total int) (lo, hi int, info PageInfo) {
	c.clamp(total)
	lo = (c.page - 1) * c.pageSize
	hi = lo + c.pageSize
	if lo > total {
		lo = total
	}
	if hi > total {
		hi = total
	}
	info = PageInfo{
		Page:       c.page,
		PageSize:   c.pageSize,
		TotalPages: c.totalPages(total),
		Total:      total,
	}
	return lo, hi, info
}
