package services

import (
	"strings"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PageQuery is the paging and ordering part of a listing filter.
type PageQuery struct {
	Page     int    `form:"page" json:"page"`
	PageSize int    `form:"page_size" json:"page_size"`
	Sort     string `form:"sort" json:"sort"`
	Order    string `form:"order" json:"order"`
}

type Page[T any] struct {
	Data     []T   `json:"data"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// requestSortColumns whitelists the sortable request columns.
var requestSortColumns = map[string]string{
	"created_at": "requests.created_at",
	"reward":     "requests.reward",
	"start":      "requests.starts_at",
	"end":        "requests.ends_at",
	"name":       "requests.name",
}

func (q PageQuery) normalized() PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	if _, ok := requestSortColumns[q.Sort]; !ok {
		q.Sort = "created_at"
	}
	if strings.ToLower(q.Order) == "asc" {
		q.Order = "asc"
	} else {
		q.Order = "desc"
	}
	return q
}

func (q PageQuery) orderClause() string {
	return requestSortColumns[q.Sort] + " " + q.Order + ", requests.id " + q.Order
}

func (q PageQuery) apply(tx *gorm.DB) *gorm.DB {
	return tx.Order(q.orderClause()).Offset((q.Page - 1) * q.PageSize).Limit(q.PageSize)
}
