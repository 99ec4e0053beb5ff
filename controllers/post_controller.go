package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/discusshub/discusshub/middleware"
	"github.com/discusshub/discusshub/models"
	"github.com/discusshub/discusshub/utils"
)

// PostController manages posts and their nested comments and replies.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

// CreatePost allows authenticated users to create new posts.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Title    string `json:"title" binding:"required"`
		Content  string `json:"content" binding:"required"`
		Category string `json:"category"`
	}

	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
		return
	}

	content := utils.Sanitize(req.Content)
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = "general"
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	post := models.Post{
		UserID:   userID,
		Title:    title,
		Content:  content,
		Category: category,
	}

	if err := p.db.Create(&post).Error; err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50020, "failed to create post", err)
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")

	hydrated, err := p.loadPostTree(post.ID)
	if err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50021, "failed to load post", err)
		return
	}
	utils.Created(ctx, gin.H{"post": hydrated})
}

// ListPosts returns all posts newest-first with comments and replies inline.
// An optional category (path param or query) narrows the result. Public.
func (p *PostController) ListPosts(ctx *gin.Context) {
	category := strings.TrimSpace(ctx.Param("category"))
	if category == "" {
		category = strings.TrimSpace(ctx.Query("category"))
	}

	cacheKey := fmt.Sprintf("cache:posts:list:cat=%s", category)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	query := p.postTreeQuery().Order("posts.created_at DESC")
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var posts []models.Post
	if err := query.Find(&posts).Error; err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50022, "failed to list posts", err)
		return
	}

	for i := range posts {
		normalizePostTree(&posts[i])
	}

	payload := gin.H{"posts": posts}
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(cacheKey, wrapper, time.Hour)
	utils.Success(ctx, payload)
}

// GetPost returns a single hydrated post. Public.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID, ok := parseID(ctx.Param("postId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid post id")
		return
	}

	cacheKey := "cache:post:detail:" + strconv.Itoa(int(postID))
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	post, err := p.loadPostTree(postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50023, "failed to load post", err)
		return
	}

	payload := gin.H{"post": post}
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(cacheKey, wrapper, time.Hour)
	utils.Success(ctx, payload)
}

// UpdatePost allows the author to update their post.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	postID, ok := parseID(ctx.Param("postId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid post id")
		return
	}

	var req struct {
		Title    string `json:"title" binding:"required"`
		Content  string `json:"content" binding:"required"`
		Category string `json:"category"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
		return
	}

	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40025, "title cannot be empty")
		return
	}

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40403, "post not found")
			return
		}
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50025, "failed to load post", err)
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}
	if post.UserID != userID {
		utils.Error(ctx, http.StatusForbidden, 40301, "you can only update your own posts")
		return
	}

	post.Title = title
	post.Content = utils.Sanitize(req.Content)
	if category := strings.TrimSpace(req.Category); category != "" {
		post.Category = category
	}
	if err := p.db.Save(&post).Error; err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50026, "failed to update post", err)
		return
	}

	p.invalidatePostCaches(post.ID)

	hydrated, err := p.loadPostTree(post.ID)
	if err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50023, "failed to load post", err)
		return
	}
	utils.Success(ctx, gin.H{"post": hydrated})
}

// DeletePost allows the author to delete their post together with every
// comment and reply under it.
func (p *PostController) DeletePost(ctx *gin.Context) {
	postID, ok := parseID(ctx.Param("postId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid post id")
		return
	}

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40404, "post not found")
			return
		}
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50027, "failed to load post", err)
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40112, "unauthorized")
		return
	}
	if post.UserID != userID {
		utils.Error(ctx, http.StatusForbidden, 40302, "you can only delete your own posts")
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Reply{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50028, "failed to delete post", err)
		return
	}

	p.invalidatePostCaches(post.ID)
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// CreateComment appends a comment to a post and returns the hydrated post.
func (p *PostController) CreateComment(ctx *gin.Context) {
	postID, ok := parseID(ctx.Param("postId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid post id")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid request payload")
		return
	}

	content := utils.Sanitize(strings.TrimSpace(req.Content))
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40023, "comment content is required")
		return
	}

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
			return
		}
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50024, "failed to load post", err)
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	comment := models.Comment{
		PostID:  post.ID,
		UserID:  userID,
		Content: content,
	}
	if err := p.db.Create(&comment).Error; err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50025, "failed to create comment", err)
		return
	}

	p.invalidatePostCaches(post.ID)

	hydrated, err := p.loadPostTree(post.ID)
	if err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50023, "failed to load post", err)
		return
	}
	utils.Created(ctx, gin.H{"post": hydrated})
}

// CreateReply appends a reply to a comment and returns the hydrated post.
func (p *PostController) CreateReply(ctx *gin.Context) {
	postID, ok := parseID(ctx.Param("postId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid post id")
		return
	}
	commentID, ok := parseID(ctx.Param("commentId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid comment id")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid request payload")
		return
	}

	content := utils.Sanitize(strings.TrimSpace(req.Content))
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40023, "reply content is required")
		return
	}

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
			return
		}
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50024, "failed to load post", err)
		return
	}

	var comment models.Comment
	if err := p.db.Where("id = ? AND post_id = ?", commentID, post.ID).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40405, "comment not found")
			return
		}
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50029, "failed to load comment", err)
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	reply := models.Reply{
		CommentID: comment.ID,
		PostID:    post.ID,
		UserID:    userID,
		Content:   content,
	}
	if err := p.db.Create(&reply).Error; err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50030, "failed to create reply", err)
		return
	}

	p.invalidatePostCaches(post.ID)

	hydrated, err := p.loadPostTree(post.ID)
	if err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50023, "failed to load post", err)
		return
	}
	utils.Created(ctx, gin.H{"post": hydrated})
}

// DeleteComment removes a comment and all of its replies. Allowed for the
// comment author or the post author.
func (p *PostController) DeleteComment(ctx *gin.Context) {
	postID, ok := parseID(ctx.Param("postId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid post id")
		return
	}
	commentID, ok := parseID(ctx.Param("commentId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid comment id")
		return
	}

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
			return
		}
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50024, "failed to load post", err)
		return
	}

	var comment models.Comment
	if err := p.db.Where("id = ? AND post_id = ?", commentID, post.ID).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40405, "comment not found")
			return
		}
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50029, "failed to load comment", err)
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40120, "unauthorized")
		return
	}

	reason, allowed := commentDeleteGrant(&post, &comment, userID)
	if !allowed {
		utils.Error(ctx, http.StatusForbidden, 40320, "not authorized to delete this comment")
		return
	}
	if utils.Sugar != nil {
		utils.Sugar.Debugf("delete comment %d on post %d granted as %s to user %d", comment.ID, post.ID, reason, userID)
	}

	// The removal is a single conditional statement keyed by both ids so
	// concurrent deletes of the same comment converge: the loser affects
	// zero rows and reports not found instead of mutating a stale list.
	var deleted int64
	err := p.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND post_id = ?", comment.ID, post.ID).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		if deleted == 0 {
			return nil
		}
		return tx.Where("comment_id = ?", comment.ID).Delete(&models.Reply{}).Error
	})
	if err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50031, "failed to delete comment", err)
		return
	}
	if deleted == 0 {
		utils.Error(ctx, http.StatusNotFound, 40405, "comment not found")
		return
	}

	p.invalidatePostCaches(post.ID)

	hydrated, err := p.loadPostTree(post.ID)
	if err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50023, "failed to load post", err)
		return
	}
	utils.Success(ctx, gin.H{"post": hydrated})
}

// DeleteReply removes a single reply. Allowed for the reply author, the
// parent comment author, or the post author.
func (p *PostController) DeleteReply(ctx *gin.Context) {
	postID, ok := parseID(ctx.Param("postId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid post id")
		return
	}
	commentID, ok := parseID(ctx.Param("commentId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid comment id")
		return
	}
	replyID, ok := parseID(ctx.Param("replyId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40032, "invalid reply id")
		return
	}

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
			return
		}
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50024, "failed to load post", err)
		return
	}

	var comment models.Comment
	if err := p.db.Where("id = ? AND post_id = ?", commentID, post.ID).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40405, "comment not found")
			return
		}
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50029, "failed to load comment", err)
		return
	}

	var reply models.Reply
	if err := p.db.Where("id = ? AND comment_id = ? AND post_id = ?", replyID, comment.ID, post.ID).First(&reply).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40406, "reply not found")
			return
		}
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50032, "failed to load reply", err)
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40120, "unauthorized")
		return
	}

	reason, allowed := replyDeleteGrant(&post, &comment, &reply, userID)
	if !allowed {
		utils.Error(ctx, http.StatusForbidden, 40321, "not authorized to delete this reply")
		return
	}
	if utils.Sugar != nil {
		utils.Sugar.Debugf("delete reply %d on comment %d granted as %s to user %d", reply.ID, comment.ID, reason, userID)
	}

	res := p.db.Where("id = ? AND comment_id = ? AND post_id = ?", reply.ID, comment.ID, post.ID).Delete(&models.Reply{})
	if res.Error != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50033, "failed to delete reply", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40406, "reply not found")
		return
	}

	p.invalidatePostCaches(post.ID)

	hydrated, err := p.loadPostTree(post.ID)
	if err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50023, "failed to load post", err)
		return
	}
	utils.Success(ctx, gin.H{"post": hydrated})
}

// commentDeleteGrant is the ordered two-tier permission check for comment
// deletion. It returns the first matching grant reason.
func commentDeleteGrant(post *models.Post, comment *models.Comment, userID uint) (string, bool) {
	switch {
	case comment.UserID == userID:
		return "comment_author", true
	case post.UserID == userID:
		return "post_author", true
	}
	return "", false
}

// replyDeleteGrant is the ordered three-tier permission check for reply
// deletion: reply author, then comment author, then post author.
func replyDeleteGrant(post *models.Post, comment *models.Comment, reply *models.Reply, userID uint) (string, bool) {
	switch {
	case reply.UserID == userID:
		return "reply_author", true
	case comment.UserID == userID:
		return "comment_author", true
	case post.UserID == userID:
		return "post_author", true
	}
	return "", false
}

// postTreeQuery preloads the full author-resolved tree under a post.
func (p *PostController) postTreeQuery() *gorm.DB {
	return p.db.
		Preload("User").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("comments.created_at ASC")
		}).
		Preload("Comments.User").
		Preload("Comments.Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("replies.created_at ASC")
		}).
		Preload("Comments.Replies.User")
}

// loadPostTree returns one post with comments, replies and authors resolved.
func (p *PostController) loadPostTree(id uint) (*models.Post, error) {
	var post models.Post
	if err := p.postTreeQuery().First(&post, id).Error; err != nil {
		return nil, err
	}
	normalizePostTree(&post)
	return &post, nil
}

// normalizePostTree replaces nil slices so empty collections serialize as []
// instead of null.
func normalizePostTree(post *models.Post) {
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	for i := range post.Comments {
		if post.Comments[i].Replies == nil {
			post.Comments[i].Replies = []models.Reply{}
		}
	}
}

func (p *PostController) invalidatePostCaches(postID uint) {
	utils.InvalidateByPrefix("cache:posts:list:")
	utils.InvalidateByPrefix("cache:post:detail:" + strconv.Itoa(int(postID)))
}

// parseID parses a numeric path parameter; false means the id is malformed.
func parseID(raw string) (uint, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}
