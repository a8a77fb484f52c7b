// QueryLoop is a community Q&A service. Questions enter a moderation queue,
// admins approve or reject them, and approved questions collect answers,
// votes and favorites.
//
// @title QueryLoop API
// @version 1.0
// @description Community Q&A service with moderated questions, voting and favorites.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type 'Bearer YOUR_JWT_TOKEN' to authorize
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/user/queryloop-go/admin"
	"github.com/user/queryloop-go/answers"
	"github.com/user/queryloop-go/apperror"
	"github.com/user/queryloop-go/auth"
	"github.com/user/queryloop-go/config"
	"github.com/user/queryloop-go/db"
	_ "github.com/user/queryloop-go/docs" // Generated Swagger docs
	"github.com/user/queryloop-go/favorites"
	"github.com/user/queryloop-go/questions"
	"github.com/user/queryloop-go/storage"
	"github.com/user/queryloop-go/tags"
	"github.com/user/queryloop-go/users"
	"github.com/user/queryloop-go/votes"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading it: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pool, err := db.NewPool(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to create database pool: %v", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(cfg.DB, "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	fileStore, err := storage.NewLocalStore(cfg.Storage.Root)
	if err != nil {
		log.Fatalf("Failed to initialize file storage: %v", err)
	}

	authService := auth.NewAuthService(pool, *cfg.Auth)
	authHandlers := auth.NewHandlers(authService)

	questionService := questions.NewQuestionService(pool, fileStore)
	questionHandlers := questions.NewHandlers(questionService)

	answerService := answers.NewAnswerService(pool, fileStore, questionService)
	answerHandlers := answers.NewHandlers(answerService)

	voteService := votes.NewVoteService(pool)
	voteHandlers := votes.NewHandlers(voteService)

	favoriteService := favorites.NewFavoriteService(pool)
	favoriteHandlers := favorites.NewHandlers(favoriteService)

	tagService := tags.NewTagService(pool)
	tagHandlers := tags.NewHandlers(tagService)

	userService := users.NewUserService(pool, fileStore)
	userHandlers := users.NewHandlers(userService)

	adminHandlers := admin.NewHandlers(questionService, userService)

	r := chi.NewRouter()

	// Chi requires all middleware to be registered before any routes.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Panic recovery that reports through the application's error shape.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				if rvr := recover(); rvr != nil {
					slog.Error("panic recovered", "panic", rvr, "path", r.URL.Path)
					writeError(ww, apperror.NewInternalError("internal server error", nil))
				}
			}()
			next.ServeHTTP(ww, r)
		})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandlers.HandleRegister())
		r.Post("/login", authHandlers.HandleLogin())
		r.Post("/refresh", authHandlers.HandleRefreshToken())
	})

	r.Route("/users", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.JWTMiddleware(cfg.Auth))
			r.Get("/me", userHandlers.HandleGetMe())
			r.Patch("/me", userHandlers.HandleUpdateMe())
		})
		r.Get("/{username}", userHandlers.HandleGetByUsername())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/questions", func(r chi.Router) {
			// Reads work anonymously but pick up the identity when a
			// valid token is present, for viewer votes and the
			// author's view of their own pending questions.
			r.Group(func(r chi.Router) {
				r.Use(auth.OptionalJWTMiddleware(cfg.Auth))
				r.Get("/", questionHandlers.HandleList())
				r.Get("/{questionID}", questionHandlers.HandleGet())
			})
			r.Group(func(r chi.Router) {
				r.Use(auth.JWTMiddleware(cfg.Auth))
				r.Post("/", questionHandlers.HandleCreate())
				r.Delete("/{questionID}", questionHandlers.HandleDelete())
				r.Post("/{questionID}/attachments", questionHandlers.HandleAddAttachment())
				r.Post("/{questionID}/answers", answerHandlers.HandleCreate())
				r.Post("/{questionID}/favorite", favoriteHandlers.HandleToggle())
			})
		})

		r.Route("/answers", func(r chi.Router) {
			r.Use(auth.JWTMiddleware(cfg.Auth))
			r.Delete("/{answerID}", answerHandlers.HandleDelete())
			r.Post("/{answerID}/attachments", answerHandlers.HandleAddAttachment())
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.JWTMiddleware(cfg.Auth))
			r.Post("/votes", voteHandlers.HandleCast())
		})

		r.Get("/tags", tagHandlers.HandleList())
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(auth.JWTMiddleware(cfg.Auth))
		r.Use(auth.RequireAdmin())

		r.Get("/moderation", adminHandlers.HandleListPending())
		r.Post("/moderation", adminHandlers.HandleModeration())
		r.Post("/questions", adminHandlers.HandleQuestionAction())
		r.Post("/users", adminHandlers.HandleUserAction())
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped gracefully")
}

// writeError is a local helper for the panic recovery middleware.
func writeError(w http.ResponseWriter, appErr *apperror.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode())
	if err := json.NewEncoder(w).Encode(appErr.ToResponse()); err != nil {
		http.Error(w, `{"error":"Failed to encode error response"}`, http.StatusInternalServerError)
	}
}
