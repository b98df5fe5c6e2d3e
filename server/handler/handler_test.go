package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sparklabs/spark-backend/auth"
	"github.com/sparklabs/spark-backend/cache"
	"github.com/sparklabs/spark-backend/file_store"
	"github.com/sparklabs/spark-backend/model"
	"github.com/sparklabs/spark-backend/utils"
)

// recordingMailer captures outbound mails so tests can read codes back out.
type recordingMailer struct {
	sent []recordedMail
}

type recordedMail struct {
	To, Subject, Body string
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.sent = append(m.sent, recordedMail{To: to, Subject: subject, Body: body})
	return nil
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	codes  *cache.MemoryCache
	mailer *recordingMailer
	media  *file_store.MemoryMediaStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	t.Setenv("JWT_SECRET", "handler-test-secret")
	gin.SetMode(gin.TestMode)

	db := utils.CreateTempDB(t)
	codes := cache.NewMemoryCache()
	mailer := &recordingMailer{}
	media := file_store.NewMemoryMediaStore()

	router := gin.New()
	h := NewHandler(db, codes, mailer, media)
	h.RegisterRoutes(router)

	return &testServer{router: router, db: db, codes: codes, mailer: mailer, media: media}
}

func (s *testServer) createUser(t *testing.T, username, password string) *model.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	user := &model.User{
		Id:           uuid.New().String(),
		Name:         username,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
	}
	require.NoError(t, s.db.Create(user).Error)
	return user
}

func (s *testServer) token(t *testing.T, user *model.User) string {
	t.Helper()
	token, err := auth.IssueToken(user.Id, time.Now())
	require.NoError(t, err)
	return token
}

func (s *testServer) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *testServer) createPost(t *testing.T, user *model.User, text string) *model.Post {
	t.Helper()
	post := &model.Post{
		Id:                uuid.New().String(),
		UserId:            user.Id,
		ContentType:       model.ContentTypeText,
		ViewPermission:    model.PermissionPublic,
		CommentPermission: model.PermissionPublic,
		TextContent:       text,
	}
	require.NoError(t, s.db.Create(post).Error)
	return post
}

func TestLikeIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author", "password123")
	viewer := s.createUser(t, "viewer", "password123")
	post := s.createPost(t, author, "hello")
	token := s.token(t, viewer)

	w := s.request(t, http.MethodPost, "/api/posts/"+post.Id+"/like", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["is_liked"])
	assert.Equal(t, float64(1), body["count"])

	// Second like: same state, still 200.
	w = s.request(t, http.MethodPost, "/api/posts/"+post.Id+"/like", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, true, body["is_liked"])
	assert.Equal(t, float64(1), body["count"])

	w = s.request(t, http.MethodDelete, "/api/posts/"+post.Id+"/like", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, false, body["is_liked"])
	assert.Equal(t, float64(0), body["count"])

	// Removing again is a no-op success.
	w = s.request(t, http.MethodDelete, "/api/posts/"+post.Id+"/like", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestActionResponseFlagNames(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author", "password123")
	viewer := s.createUser(t, "viewer", "password123")
	post := s.createPost(t, author, "hello")
	token := s.token(t, viewer)

	// Each kind reports its own conjugated flag name.
	for path, flag := range map[string]string{
		"like":     "is_liked",
		"spark":    "is_sparked",
		"bookmark": "is_bookmarked",
	} {
		w := s.request(t, http.MethodPost, "/api/posts/"+post.Id+"/"+path, token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body[flag], flag)
	}
}

func TestActionRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author", "password123")
	post := s.createPost(t, author, "hello")

	w := s.request(t, http.MethodPost, "/api/posts/"+post.Id+"/like", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestActionOnFollowersPostForbiddenForStranger(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author", "password123")
	stranger := s.createUser(t, "stranger", "password123")

	post := &model.Post{
		Id:                uuid.New().String(),
		UserId:            author.Id,
		ContentType:       model.ContentTypeText,
		ViewPermission:    model.PermissionFollowers,
		CommentPermission: model.PermissionFollowers,
		TextContent:       "followers only",
	}
	require.NoError(t, s.db.Create(post).Error)

	w := s.request(t, http.MethodPost, "/api/posts/"+post.Id+"/like", s.token(t, stranger), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReplySparkCreatesDerivedQuotePost(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author", "password123")
	sparker := s.createUser(t, "sparker", "password123")
	post := s.createPost(t, author, "hello")

	reply := &model.Reply{
		Id:      uuid.New().String(),
		UserId:  author.Id,
		PostId:  post.Id,
		Content: "a reply worth sparking",
	}
	require.NoError(t, s.db.Create(reply).Error)

	w := s.request(t, http.MethodPost, "/api/replies/"+reply.Id+"/spark", s.token(t, sparker), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var derived model.Post
	err := s.db.Where("user_id = ? AND quoted_reply_id = ?", sparker.Id, reply.Id).First(&derived).Error
	require.NoError(t, err)
	assert.Equal(t, model.ContentTypeQuote, derived.ContentType)
	require.NotNil(t, derived.QuotedPostId)
	assert.Equal(t, post.Id, *derived.QuotedPostId)

	// Sparking again must not publish a second quote post.
	w = s.request(t, http.MethodPost, "/api/replies/"+reply.Id+"/spark", s.token(t, sparker), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var n int64
	require.NoError(t, s.db.Model(&model.Post{}).
		Where("user_id = ? AND quoted_reply_id = ?", sparker.Id, reply.Id).
		Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestFollowAndUnfollow(t *testing.T) {
	s := newTestServer(t)
	alice := s.createUser(t, "alice", "password123")
	bob := s.createUser(t, "bob", "password123")
	token := s.token(t, alice)

	w := s.request(t, http.MethodPost, "/api/users/"+bob.Id+"/follow", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Following twice is fine.
	w = s.request(t, http.MethodPost, "/api/users/"+bob.Id+"/follow", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var n int64
	require.NoError(t, s.db.Model(&model.Follow{}).
		Where("follower_id = ? AND following_id = ?", alice.Id, bob.Id).
		Count(&n).Error)
	assert.Equal(t, int64(1), n)

	// Self follow is rejected.
	w = s.request(t, http.MethodPost, "/api/users/"+alice.Id+"/follow", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.request(t, http.MethodDelete, "/api/users/"+bob.Id+"/follow", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, s.db.Model(&model.Follow{}).
		Where("follower_id = ?", alice.Id).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

func TestRegistrationFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.request(t, http.MethodPost, "/api/register/email", "", gin.H{"email": "new@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, s.mailer.sent, 1)
	body := s.mailer.sent[0].Body
	code := body[len(body)-6:]

	w = s.request(t, http.MethodPost, "/api/register/verify", "", gin.H{
		"email":    "new@example.com",
		"code":     code,
		"username": "newbie",
		"name":     "Newbie",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decodeBody(t, w)
	token, _ := resp["token"].(string)
	require.NotEmpty(t, token)

	// The token works against an authenticated endpoint, and the payload
	// keys are snake_case throughout.
	w = s.request(t, http.MethodGet, "/api/user", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	me := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "newbie", me["username"])
	assert.Contains(t, me, "id")
	assert.Contains(t, me, "created_at")
	assert.NotContains(t, me, "Id")
	assert.NotContains(t, me, "PasswordHash")

	// The code is single use.
	w = s.request(t, http.MethodPost, "/api/register/verify", "", gin.H{
		"email":    "new@example.com",
		"code":     code,
		"username": "newbie2",
		"name":     "Newbie",
		"password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterRejectsWrongCode(t *testing.T) {
	s := newTestServer(t)

	w := s.request(t, http.MethodPost, "/api/register/email", "", gin.H{"email": "new@example.com"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.request(t, http.MethodPost, "/api/register/verify", "", gin.H{
		"email":    "new@example.com",
		"code":     "000000",
		"username": "newbie",
		"name":     "Newbie",
		"password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginWithEmailTwoFactor(t *testing.T) {
	s := newTestServer(t)
	user := s.createUser(t, "alice", "password123")
	now := time.Now()
	require.NoError(t, s.db.Model(user).Updates(map[string]interface{}{
		"email_two_factor_enabled": true,
		"two_factor_confirmed_at":  &now,
	}).Error)

	w := s.request(t, http.MethodPost, "/api/login", "", gin.H{
		"email":    user.Email,
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, true, resp["two_factor"])
	assert.Equal(t, "email", resp["method"])
	assert.Nil(t, resp["token"])
	require.Len(t, s.mailer.sent, 1)
	body := s.mailer.sent[0].Body
	code := body[len(body)-6:]

	w = s.request(t, http.MethodPost, "/api/two-factor-challenge", "", gin.H{
		"email": user.Email,
		"code":  code,
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeBody(t, w)
	assert.NotEmpty(t, resp["token"])

	// A replayed challenge code is rejected.
	w = s.request(t, http.MethodPost, "/api/two-factor-challenge", "", gin.H{
		"email": user.Email,
		"code":  code,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	s := newTestServer(t)
	user := s.createUser(t, "alice", "password123")

	w := s.request(t, http.MethodPost, "/api/login", "", gin.H{
		"email":    user.Email,
		"password": "nope nope nope",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	user := s.createUser(t, "alice", "password123")
	token := s.token(t, user)

	w := s.request(t, http.MethodGet, "/api/user", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.request(t, http.MethodPost, "/api/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.request(t, http.MethodGet, "/api/user", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFeedEndpoint(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author", "password123")
	s.createPost(t, author, "public post")

	w := s.request(t, http.MethodGet, "/api/posts?filter=recommend", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	data, ok := resp["data"].([]interface{})
	require.True(t, ok)
	assert.Len(t, data, 1)

	w = s.request(t, http.MethodGet, "/api/posts?filter=recommend&cursor=garbage!", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.request(t, http.MethodGet, "/api/posts?filter=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordPostViewCountsOnce(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author", "password123")
	viewer := s.createUser(t, "viewer", "password123")
	post := s.createPost(t, author, "hello")
	token := s.token(t, viewer)

	w := s.request(t, http.MethodPost, "/api/posts/"+post.Id+"/view", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["counted"])

	w = s.request(t, http.MethodPost, "/api/posts/"+post.Id+"/view", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["counted"])

	var reloaded model.Post
	require.NoError(t, s.db.Where("id = ?", post.Id).First(&reloaded).Error)
	assert.Equal(t, int64(1), reloaded.ViewsCount)
}

func TestCreateAndDeleteReply(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author", "password123")
	replier := s.createUser(t, "replier", "password123")
	post := s.createPost(t, author, "hello")
	token := s.token(t, replier)

	w := s.request(t, http.MethodPost, "/api/posts/"+post.Id+"/replies", token, gin.H{"content": "nice post"})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decodeBody(t, w)
	data := resp["data"].(map[string]interface{})
	replyId := data["id"].(string)
	require.NotEmpty(t, replyId)
	assert.Contains(t, data, "created_at")

	// A nested reply under the first one.
	w = s.request(t, http.MethodPost, "/api/replies/"+replyId+"/replies", token, gin.H{"content": "still here"})
	require.Equal(t, http.StatusCreated, w.Code)

	// Only the author can delete.
	w = s.request(t, http.MethodDelete, "/api/replies/"+replyId, s.token(t, author), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.request(t, http.MethodDelete, "/api/replies/"+replyId, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCommentPermissionGatesReplies(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author", "password123")
	stranger := s.createUser(t, "stranger", "password123")

	post := &model.Post{
		Id:                uuid.New().String(),
		UserId:            author.Id,
		ContentType:       model.ContentTypeText,
		ViewPermission:    model.PermissionPublic,
		CommentPermission: model.PermissionFollowers,
		TextContent:       "reply if you follow me",
	}
	require.NoError(t, s.db.Create(post).Error)

	w := s.request(t, http.MethodPost, "/api/posts/"+post.Id+"/replies", s.token(t, stranger), gin.H{"content": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	require.NoError(t, s.db.Create(&model.Follow{FollowerId: stranger.Id, FollowingId: author.Id}).Error)
	w = s.request(t, http.MethodPost, "/api/posts/"+post.Id+"/replies", s.token(t, stranger), gin.H{"content": "hi"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestGetPostHidesForbidden(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author", "password123")

	post := &model.Post{
		Id:                uuid.New().String(),
		UserId:            author.Id,
		ContentType:       model.ContentTypeText,
		ViewPermission:    model.PermissionMutuals,
		CommentPermission: model.PermissionMutuals,
		TextContent:       "mutuals only",
	}
	require.NoError(t, s.db.Create(post).Error)

	// Anonymous viewer gets 403, not a partial body.
	w := s.request(t, http.MethodGet, "/api/posts/"+post.Id, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.request(t, http.MethodGet, "/api/posts/"+post.Id, s.token(t, author), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.request(t, http.MethodGet, "/api/posts/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
