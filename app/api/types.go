package api

import (
	"github.com/galnetfeed/galnet-archive/app/calendar"
	"github.com/galnetfeed/galnet-archive/app/database"
	"github.com/galnetfeed/galnet-archive/app/search"
	"github.com/galnetfeed/galnet-archive/app/tasks"
)

type Handler struct {
	repo      database.ArticleRepository
	engine    *search.Engine
	scheduler tasks.TaskSchedulerInterface
}

// ArticleResponse is the wire representation of one article. Dates are
// rendered in the in-fiction calendar; the canonical real-world dates stay
// internal to the store.
type ArticleResponse struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	UID          string `json:"uid"`
	DateReleased string `json:"date_released"`
	DateAdded    string `json:"date_added"`
	Text         string `json:"text"`
}

type SearchResponse struct {
	Articles []ArticleResponse `json:"articles"`
	Returned int               `json:"returned"`
	Total    int               `json:"total"`
}

type CountResponse struct {
	Total int `json:"total"`
}

func toArticleResponse(a database.Article) ArticleResponse {
	return ArticleResponse{
		ID:           a.ID,
		Title:        a.Title,
		UID:          a.UID,
		DateReleased: calendar.ToDisplay(a.DateReleased).Format(calendar.DateLayout),
		DateAdded:    calendar.ToDisplay(a.DateAdded).Format(calendar.DateLayout),
		Text:         a.Text,
	}
}
