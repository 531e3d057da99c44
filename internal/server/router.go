package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"formulary/internal/handlers"
	applog "formulary/internal/log"
)

func newRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	applog.Debug(context.Background(), "registering http routes")
	r.Get("/healthz", handlers.Health)
	r.Post("/login", handlers.Login)
	r.Post("/logout", handlers.Logout)
	applog.Debug(context.Background(), "route registered", "path", "/healthz")
	applog.Debug(context.Background(), "route registered", "path", "/login")

	r.Route("/api", func(r chi.Router) {
		r.Use(handlers.RequireAuthentication)

		r.Route("/ingredients", func(r chi.Router) {
			r.Get("/", handlers.ListIngredients)
			r.Post("/", handlers.CreateIngredient)
			r.Get("/{id}", handlers.GetIngredient)
			r.Put("/{id}", handlers.OverwriteIngredient)
			r.Delete("/{id}", handlers.DeleteIngredient)
			r.Post("/{id}/stock", handlers.TopUpIngredient)
			r.Put("/{id}/name", handlers.RenameIngredient)
		})

		r.Route("/costs", func(r chi.Router) {
			r.Get("/", handlers.ListCosts)
			r.Post("/", handlers.CreateCost)
			r.Put("/{id}", handlers.UpdateCost)
			r.Delete("/{id}", handlers.DeleteCost)
		})

		r.Post("/formulate", handlers.Formulate)
		r.Post("/formulate/remove", handlers.RemoveLine)
		r.Post("/rescale", handlers.Rescale)
		r.Post("/extras/attach", handlers.AttachExtra)

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", handlers.ListRecipes)
			r.Post("/", handlers.CreateRecipe)
			r.Get("/{id}", handlers.GetRecipe)
			r.Put("/{id}", handlers.ReplaceRecipe)
			r.Delete("/{id}", handlers.DeleteRecipe)
			r.Post("/{id}/duplicate", handlers.DuplicateRecipe)
			r.Get("/{id}/draft", handlers.RecipeDraft)
			r.Get("/{id}/sheet", handlers.RecipeSheet)
		})

		r.Post("/production/plan", handlers.PlanProduction)
		r.Post("/production", handlers.Produce)
	})
	applog.Debug(context.Background(), "route registered", "path", "/api", "protected", true)
	return r
}
