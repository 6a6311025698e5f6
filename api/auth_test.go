package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"wileywidget/config"
	"wileywidget/middleware"
	"wileywidget/models"
	"wileywidget/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var userColumns = []string{"id", "username", "password", "email", "role", "status", "created_at", "updated_at", "deleted_at"}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	return gormDB, mock, func() {
		sqlDB.Close()
	}
}

func testAuthConfig() *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		JWT:    config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour},
	}
	middleware.InitJWT(cfg)
	return cfg
}

func hashPassword(t *testing.T, pw string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAuthHandler_Login(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()

	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(7, "clerk", hashPassword(t, "password123"), "clerk@wiley.gov", models.RoleFinance, models.UserStatusActive, time.Now(), time.Now(), nil))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/login", NewAuthHandler(cfg, repository.NewUserRepository(db)).Login)

	w := postJSON(router, "/login", `{"username":"clerk","password":"password123"}`)
	assert.Equal(t, 200, w.Code)
	resp := decode(t, w)
	data := resp["data"].(map[string]any)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)

	claims, err := middleware.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, models.RoleFinance, claims.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Login_WrongPassword(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()

	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(7, "clerk", hashPassword(t, "password123"), "", models.RoleViewer, models.UserStatusActive, time.Now(), time.Now(), nil))

	router := gin.New()
	router.POST("/login", NewAuthHandler(cfg, repository.NewUserRepository(db)).Login)

	w := postJSON(router, "/login", `{"username":"clerk","password":"wrong-pass"}`)
	assert.Equal(t, 401, w.Code)
	assert.Equal(t, "用户名或密码错误", decode(t, w)["message"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Login_UnknownUser(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()

	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(sqlmock.NewRows(userColumns))

	router := gin.New()
	router.POST("/login", NewAuthHandler(cfg, repository.NewUserRepository(db)).Login)

	w := postJSON(router, "/login", `{"username":"ghost","password":"password123"}`)
	assert.Equal(t, 401, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Login_Locked(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()

	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(3, "former", hashPassword(t, "password123"), "", models.RoleViewer, models.UserStatusLocked, time.Now(), time.Now(), nil))

	router := gin.New()
	router.POST("/login", NewAuthHandler(cfg, repository.NewUserRepository(db)).Login)

	w := postJSON(router, "/login", `{"username":"former","password":"password123"}`)
	assert.Equal(t, 403, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Register(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()

	// 用户名不存在
	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(sqlmock.NewRows(userColumns))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `users`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	router := gin.New()
	router.POST("/register", NewAuthHandler(cfg, repository.NewUserRepository(db)).Register)

	w := postJSON(router, "/register", `{"username":"newclerk","password":"password123","role":"finance"}`)
	assert.Equal(t, 201, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "创建成功", resp["message"])
	data := resp["data"].(map[string]any)
	assert.Equal(t, "finance", data["role"])
	assert.NotContains(t, data, "password")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Register_UsernameExists(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()

	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "existing", "hash", "", models.RoleViewer, models.UserStatusActive, time.Now(), time.Now(), nil))

	router := gin.New()
	router.POST("/register", NewAuthHandler(cfg, repository.NewUserRepository(db)).Register)

	w := postJSON(router, "/register", `{"username":"existing","password":"password123"}`)
	assert.Equal(t, 409, w.Code)
	assert.Equal(t, "用户名已存在", decode(t, w)["message"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Register_InvalidRole(t *testing.T) {
	db, _, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()

	router := gin.New()
	router.POST("/register", NewAuthHandler(cfg, repository.NewUserRepository(db)).Register)

	w := postJSON(router, "/register", `{"username":"someone","password":"password123","role":"root"}`)
	assert.Equal(t, 400, w.Code)
}
