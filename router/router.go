package router

import (
	"opencanvas-service/feed"
	"opencanvas-service/handler"
	"opencanvas-service/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the engine around the handlers.
type Options struct {
	CORSOrigins []string
	JWTSecret   []byte
}

func Setup(h *handler.Handler, opts Options) *gin.Engine {
	r := gin.Default()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", handler.VisitorHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !allowsAll(origins),
	}))
	r.Use(middleware.PrometheusMiddleware(h.Service))

	auth := middleware.Auth(opts.JWTSecret)
	optional := middleware.OptionalAuth(opts.JWTSecret)

	// Anonymous feeds
	r.POST("/feed/social/anonymous-user", h.AnonymousFeed(feed.KindSocial))
	r.POST("/feed/articles/anonymous-user", h.AnonymousFeed(feed.KindArticles))

	// Writing
	r.POST("/newpost/written/getId", auth, h.NewPostID)
	r.POST("/savepost/written", auth, h.SavePost)
	r.GET("/p/:postId", optional, h.GetPost)
	r.POST("/u/posts/byids", auth, h.PostsByIDs)
	r.PUT("/post-visibility-change", auth, h.ChangeVisibility)
	r.PUT("/post-featured-change", auth, h.ChangeFeatured)
	r.DELETE("/delete-post", auth, h.DeletePost)

	// Engagement
	r.PUT("/update-post-views/:postId", h.UpdateViews)
	r.PUT("/complete-read/:postId", h.CompleteRead)
	r.PUT("/share-post/:postId", h.SharePost)
	r.PUT("/like-post", auth, h.LikePost)
	r.PUT("/dislike-post", auth, h.DislikePost)

	// Comments
	r.POST("/new-comment", auth, h.NewComment)
	r.PUT("/edit-comment", auth, h.EditComment)
	r.DELETE("/delete-comment", auth, h.DeleteComment)
	r.POST("/reply-to-a-comment", auth, h.ReplyToComment)
	r.GET("/p/comments/:commentId", auth, h.GetComment)
	r.POST("/get-comments-byids", auth, h.CommentsByIDs)

	// Social graph and profiles
	r.PUT("/follow-user", auth, h.FollowUser)
	r.POST("/u/followers/byids", h.UsersByIDs)
	r.GET("/u/:user", h.GetProfile)
	r.GET("/author/:id", h.GetAuthor)
	r.GET("/follower/:id", h.GetAuthor)
	r.GET("/following/:id", h.GetAuthor)

	// Collections
	r.POST("/create/collection", auth, h.CreateCollection)
	r.GET("/u/:user/collections", auth, h.UserCollections)
	r.GET("/c/:collectionId", optional, h.GetCollection)
	r.GET("/c/private/:collectionId", auth, h.GetPrivateCollection)
	r.GET("/collections", h.BrowseCollections)
	r.PUT("/update-collection/:collectionId", auth, h.UpdateCollection)
	r.POST("/add-post/:postId/collection/:collectionId", auth, h.AddToCollection)
	r.DELETE("/remove-post/:postId/collection/:collectionId", auth, h.RemoveFromCollection)
	r.POST("/collection/:collectionId/vote", auth, h.VoteCollection)
	r.DELETE("/delete-collection/:collectionId", auth, h.DeleteCollection)

	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// allowsAll reports whether origins is the wildcard, which the CORS
// middleware refuses to combine with credentials.
func allowsAll(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
