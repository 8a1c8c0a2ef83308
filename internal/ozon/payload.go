package ozon

import (
	"strings"

	"github.com/tidwall/gjson"
)

// answeredStatuses are review statuses meaning the seller already replied on the marketplace.
var answeredStatuses = map[string]bool{
	"processed": true,
	"answered":  true,
	"commented": true,
}

// parsePage accepts both {"result":{"reviews":[...]}} and {"reviews":[...]}.
func parsePage(raw []byte) *Page {
	root := gjson.ParseBytes(raw)
	list := root.Get("result.reviews")
	total := root.Get("result.count")
	if !total.Exists() {
		total = root.Get("result.total")
	}
	if !list.Exists() {
		list = root.Get("reviews")
		total = root.Get("total")
	}

	page := &Page{}
	list.ForEach(func(_, item gjson.Result) bool {
		rv, ok := ParseReview(item)
		if !ok {
			page.Skipped++
			return true
		}
		page.Reviews = append(page.Reviews, rv)
		return true
	})
	page.Total = int(total.Int())
	if !total.Exists() {
		page.Total = len(page.Reviews)
	}
	return page
}

// ParseReview resolves field aliases of a single review object. ok is false when the id is missing.
func ParseReview(item gjson.Result) (Review, bool) {
	id := strings.TrimSpace(item.Get("id").String())
	if id == "" {
		return Review{}, false
	}
	rv := Review{
		ExternalID:   id,
		Text:         first(item, "text", "comment", "content"),
		ProductID:    first(item, "product_id", "sku"),
		ProductName:  first(item, "product_name", "sku_name", "title"),
		CustomerName: first(item, "customer_name", "author"),
		Rating:       int(item.Get("rating").Int()),
	}
	if rv.CustomerName == "" {
		rv.CustomerName = "Anonymous"
	}
	rv.Answered = isAnswered(item)
	return rv, true
}

func isAnswered(item gjson.Result) bool {
	for _, key := range []string{"comments_amount", "answers_amount", "comments"} {
		if v := item.Get(key); v.Type == gjson.Number && v.Int() > 0 {
			return true
		}
	}
	return answeredStatuses[strings.ToLower(item.Get("status").String())]
}

// first returns the first non-empty value among keys.
func first(item gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(item.Get(k).String()); v != "" {
			return v
		}
	}
	return ""
}
