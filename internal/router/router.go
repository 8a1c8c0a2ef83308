// Package router mounts every HTTP endpoint on one ServeMux.
package router

import (
	"net/http"

	"github.com/tgwork/backend/internal/auth"
	"github.com/tgwork/backend/internal/catalog"
	"github.com/tgwork/backend/internal/dashboard"
	"github.com/tgwork/backend/internal/handlers"
	"github.com/tgwork/backend/internal/middleware"
	"github.com/tgwork/backend/internal/services"
	"github.com/tgwork/backend/internal/settings"
)

type Deps struct {
	Tokens    middleware.TokenValidator
	Validator middleware.BodyValidator

	Auth     *auth.Handler
	Users    *dashboard.Handler
	Catalog  *catalog.Handler
	Orders   *handlers.OrderHandler
	Reviews  *handlers.ReviewHandler
	Messages *handlers.MessageHandler
	Desk     *handlers.DeskHandler
	Settings *settings.Handler
}

// New serves the marketplace under /api/v1 and the review desk under /api.
// The desk and its settings are admin-only; /api/health is public.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()
	r := &routes{mux: mux, d: d}

	r.public("POST /api/v1/auth/register", d.Auth.Register, services.SchemaRegister)
	r.public("POST /api/v1/auth/login", d.Auth.Login, services.SchemaLogin)
	r.public("POST /api/v1/auth/bot", d.Auth.BotLogin, services.SchemaSecretLogin)
	r.public("POST /api/v1/auth/bootstrap-admin", d.Auth.BootstrapAdmin, services.SchemaSecretLogin)

	// users
	r.user("GET /api/v1/users/me", d.Users.GetMe, "")
	r.user("PATCH /api/v1/users/me", d.Users.UpdateMe, services.SchemaProfileUpdate)
	r.user("GET /api/v1/users/me/transactions", d.Users.Transactions, "")
	r.user("GET /api/v1/users/search", d.Users.SearchUsers, "")
	r.user("GET /api/v1/users/by-telegram/{telegram_id}", d.Users.GetByTelegram, "")
	r.user("GET /api/v1/users/{id}", d.Users.GetUser, "")
	r.user("GET /api/v1/users", d.Users.ListUsers, "")
	r.admin("POST /api/v1/admin/users/{id}/top-up", d.Users.TopUp, services.SchemaTopUp)
	r.admin("POST /api/v1/admin/users/{id}/ban", d.Users.Ban, "")
	r.admin("POST /api/v1/admin/users/{id}/unban", d.Users.Unban, "")

	// services
	r.user("POST /api/v1/services", d.Catalog.Create, services.SchemaServiceCreate)
	r.user("GET /api/v1/services", d.Catalog.List, "")
	r.user("GET /api/v1/services/search", d.Catalog.Search, "")
	r.user("GET /api/v1/services/seller/{seller_id}", d.Catalog.BySeller, "")
	r.user("GET /api/v1/services/{id}", d.Catalog.Get, "")
	r.user("PATCH /api/v1/services/{id}", d.Catalog.Update, services.SchemaServiceUpdate)
	r.user("DELETE /api/v1/services/{id}", d.Catalog.Delete, "")
	r.admin("POST /api/v1/admin/services/{id}/moderate", d.Catalog.Moderate, services.SchemaServiceModerate)

	// orders
	r.user("POST /api/v1/orders", d.Orders.Create, services.SchemaOrderCreate)
	r.user("GET /api/v1/orders", d.Orders.List, "")
	r.user("GET /api/v1/orders/{id}", d.Orders.Get, "")
	r.user("PUT /api/v1/orders/{id}", d.Orders.Update, services.SchemaOrderUpdate)
	r.user("POST /api/v1/orders/{id}/pay", d.Orders.Pay, "")
	r.user("POST /api/v1/orders/{id}/cancel", d.Orders.Cancel, "")
	r.admin("POST /api/v1/admin/orders/{id}/resolve", d.Orders.Resolve, services.SchemaDisputeResolve)

	// chat
	r.user("POST /api/v1/orders/{id}/messages", d.Messages.Send, services.SchemaMessageCreate)
	r.user("GET /api/v1/orders/{id}/messages", d.Messages.List, "")
	r.user("PATCH /api/v1/messages/{id}", d.Messages.Edit, services.SchemaMessageEdit)
	r.user("DELETE /api/v1/messages/{id}", d.Messages.Delete, "")

	// reviews
	r.user("POST /api/v1/reviews", d.Reviews.Create, services.SchemaReviewCreate)
	r.user("GET /api/v1/reviews/top-sellers", d.Reviews.TopSellers, "")
	r.user("GET /api/v1/reviews/order/{order_id}", d.Reviews.ByOrder, "")
	r.user("GET /api/v1/reviews/user/{user_id}", d.Reviews.ForUser, "")
	r.user("GET /api/v1/reviews/by-rating/{rating}", d.Reviews.ByRating, "")

	// review desk
	r.admin("GET /api/reviews", d.Desk.ListReviews, "")
	r.admin("GET /api/reviews/unanswered", d.Desk.Unanswered, "")
	r.admin("GET /api/reviews/stats", d.Desk.Stats, "")
	r.admin("GET /api/reviews/products", d.Desk.Products, "")
	r.admin("POST /api/reviews/sync", d.Desk.Sync, "")
	r.admin("GET /api/reviews/{id}", d.Desk.GetReview, "")
	r.admin("POST /api/reviews/{id}/drafts", d.Desk.Regenerate, "")
	r.admin("POST /api/responses", d.Desk.Submit, services.SchemaFeedbackSubmit)
	r.admin("GET /api/responses/history/recent", d.Desk.Recent, "")
	r.admin("GET /api/responses/status/{status}", d.Desk.ByStatus, "")
	r.admin("GET /api/responses/drafts/{review_id}", d.Desk.ListDrafts, "")
	r.admin("POST /api/responses/drafts/{id}/select", d.Desk.SelectDraft, "")
	r.admin("GET /api/responses/{id}", d.Desk.GetResponse, "")

	// settings
	s := d.Settings
	r.admin("GET /api/settings", s.GetAll, "")
	r.admin("GET /api/settings/kv/{key}", s.GetKV, "")
	r.admin("PUT /api/settings/kv/{key}", s.PutKV, services.SchemaSettingsValue)
	r.admin("GET /api/settings/ozon", s.GetOzon, "")
	r.admin("POST /api/settings/ozon", s.SetOzon, services.SchemaSettingsOzon)
	r.admin("GET /api/settings/openai", s.GetOpenAI, "")
	r.admin("POST /api/settings/openai", s.SetOpenAI, services.SchemaSettingsOpenAI)
	r.admin("POST /api/settings/openai/model", s.SetModel, services.SchemaSettingsModel)
	r.admin("POST /api/settings/ai/toggle", s.ToggleAI, services.SchemaSettingsToggle)
	r.admin("POST /api/settings/ai/reset-quota", s.ResetQuota, "")
	r.admin("GET /api/settings/response", s.GetResponse, "")
	r.admin("POST /api/settings/response", s.SetResponse, services.SchemaSettingsResponse)
	r.admin("GET /api/settings/auto-response", s.GetAutoResponse, "")
	r.admin("POST /api/settings/auto-response", s.SetAutoResponse, services.SchemaSettingsToggle)
	r.admin("POST /api/settings/auto-response/test", s.TestAutoResponse, services.SchemaAutoResponseTest)

	r.public("GET /api/health", s.Health, "")
	r.admin("GET /api/health/integrations", s.Integrations, "")
	r.admin("GET /api/health/ai", s.AIHealth, "")
	r.admin("POST /api/health/test-ozon", s.TestOzon, "")

	return mux
}

type routes struct {
	mux *http.ServeMux
	d   Deps
}

// wrap adds body validation. Auth goes outside it, so anonymous callers never reach the schema check.
func (r *routes) wrap(h http.HandlerFunc, schema string) http.Handler {
	var next http.Handler = h
	if schema != "" {
		next = middleware.ValidateBody(r.d.Validator, schema)(next)
	}
	return next
}

func (r *routes) public(pattern string, h http.HandlerFunc, schema string) {
	r.mux.Handle(pattern, r.wrap(h, schema))
}

func (r *routes) user(pattern string, h http.HandlerFunc, schema string) {
	r.mux.Handle(pattern, middleware.JWTAuth(r.d.Tokens)(r.wrap(h, schema)))
}

func (r *routes) admin(pattern string, h http.HandlerFunc, schema string) {
	r.mux.Handle(pattern, middleware.JWTAuth(r.d.Tokens)(middleware.RequireAdmin(r.wrap(h, schema))))
}
