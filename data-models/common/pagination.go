package common

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// PageInput 列表 API 共用的分頁 query 參數
type PageInput struct {
	PageNum  int `query:"pageNum" default:"1" minimum:"1" doc:"頁碼，從 1 開始"`
	PageSize int `query:"pageSize" default:"10" minimum:"1" maximum:"100" doc:"每頁筆數"`
}

// Page 將 query 參數正規化
func (p PageInput) Page() Page {
	return NewPage(p.PageNum, p.PageSize)
}

// Page 已正規化的分頁位置
type Page struct {
	Num  int
	Size int
}

// NewPage 頁碼小於 1 視為第一頁，筆數限制在 1 到 100 之間
func NewPage(num, size int) Page {
	if num < 1 {
		num = 1
	}
	switch {
	case size < 1:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	return Page{Num: num, Size: size}
}

// Skip MongoDB 查詢的 skip 值
func (p Page) Skip() int64 {
	return int64(p.Num-1) * int64(p.Size)
}

func (p Page) Limit() int64 {
	return int64(p.Size)
}

// PaginationInfo 列表回應附帶的分頁資訊
type PaginationInfo struct {
	CurrentPage int   `json:"currentPage" doc:"目前頁碼"`
	PageSize    int   `json:"pageSize" doc:"每頁筆數"`
	TotalItems  int64 `json:"totalItems" doc:"總筆數"`
	TotalPages  int   `json:"totalPages" doc:"總頁數"`
}

func (p Page) Info(totalItems int64) PaginationInfo {
	return PaginationInfo{
		CurrentPage: p.Num,
		PageSize:    p.Size,
		TotalItems:  totalItems,
		TotalPages:  int((totalItems + p.Limit() - 1) / p.Limit()),
	}
}
