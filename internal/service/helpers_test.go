package service

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/config"
	"github.com/stemsi/elearning/internal/service/servicetest"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	db         *servicetest.DB
	rdb        *redis.Client
	mr         *miniredis.Miniredis
	cfg        *config.Config
	principals *PrincipalService
	notifier   *Notifier
	auth       *AuthService
	users      *UserService
	roles      *RoleService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	rdb, mr := servicetest.NewRedis(t)
	db := servicetest.NewDB()
	cfg := &config.Config{
		JWTSecret:       "test-secret",
		JWTExpiry:       time.Hour,
		BcryptCost:      bcrypt.MinCost,
		VerificationTTL: time.Hour,
	}
	log := zerolog.Nop()

	principals := NewPrincipalService(db.Users(), 64, time.Minute, log)
	notifier := NewNotifier(rdb, principals, log)
	auth := NewAuthService(cfg, rdb, db.Users(), notifier, log)
	return &testEnv{
		db:         db,
		rdb:        rdb,
		mr:         mr,
		cfg:        cfg,
		principals: principals,
		notifier:   notifier,
		auth:       auth,
		users:      NewUserService(db.Users(), db.Roles(), auth, notifier, log),
		roles:      NewRoleService(db.Roles(), db.Permissions(), notifier, log),
	}
}

func (e *testEnv) hash(t *testing.T, password string) string {
	t.Helper()
	h, err := e.auth.HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}
	return h
}
