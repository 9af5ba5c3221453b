package router

import (
	"context"

	"realtime_chat/internal/chat/app"
	"realtime_chat/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 註冊聊天服務的路由, websocket subscriptions end with ctx
func RegisterRoutes(
	ctx context.Context,
	r *fiber.App,
	httpHandler *app.HTTPHandler,
	chatWebsocket *app.ChatWebsocketHandler,
	limiter *middlewares.LimiterStore,
) {
	// 不需要登入
	r.Get("/", httpHandler.HealthCheck)
	r.Post("/debug", httpHandler.Debug)
	r.Get("/blobs/*", httpHandler.ServeBlob)

	api := r.Group("/", middlewares.JWTMiddleware(), middlewares.RateLimit(limiter))

	api.Post("/users", httpHandler.InsertUser)
	api.Get("/users/exists", httpHandler.UserExists)
	api.Get("/users/search", httpHandler.SearchUsers)

	api.Get("/conversations", httpHandler.ListConversations)
	api.Post("/conversations", httpHandler.CreateConversation)
	api.Get("/conversations/exists", httpHandler.ConversationExists)
	api.Delete("/conversations/:id", httpHandler.DeleteConversation)
	api.Get("/conversations/:id/messages", httpHandler.ListMessages)
	api.Post("/conversations/:id/messages", httpHandler.SendMessage)

	api.Post("/media/profile", httpHandler.UploadProfilePicture)
	api.Post("/media/photos", httpHandler.UploadMessagePhoto)
	api.Post("/media/videos", httpHandler.UploadMessageVideo)
	api.Get("/media/url", httpHandler.DownloadURL)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws", websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(ctx, c)
	}))
}
