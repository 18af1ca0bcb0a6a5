package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"userapi/internal/auth"
	"userapi/internal/cache"
	"userapi/internal/model"
	"userapi/internal/repository"
)

// pausingRepository holds the first Get after it has read the row, until released.
type pausingRepository struct {
	repository.UserRepository
	read    chan struct{}
	release chan struct{}
	paused  bool
}

func (r *pausingRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := r.UserRepository.Get(ctx, id)
	if !r.paused {
		r.paused = true
		close(r.read)
		<-r.release
	}
	return user, err
}

func TestUserService_ProfileReadRacingUpdate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard, TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.User{}))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	base := repository.NewUserRepository(db, time.Second)
	user, err := base.Create(ctx, &model.User{Email: "a@x.com", PasswordHash: "hash", FirstName: "Old"})
	require.NoError(t, err)

	repo := &pausingRepository{UserRepository: base, read: make(chan struct{}), release: make(chan struct{})}
	userCache := cache.NewUserCache(cache.New(client, nil), time.Hour, nil)
	svc := NewUserService(repo, userCache, auth.NewTokenStore(client), nil)

	done := make(chan *model.UserView)
	go func() {
		view, err := svc.Profile(ctx, user.ID)
		assert.NoError(t, err)
		done <- view
	}()

	<-repo.read
	updated, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{FirstName: strPtr("Ann")})
	require.NoError(t, err)
	assert.Equal(t, "Ann", updated.FirstName)
	close(repo.release)

	stale := <-done
	require.NotNil(t, stale)
	assert.Equal(t, "Old", stale.FirstName)

	got, err := svc.Profile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.FirstName)

	cached, ok := userCache.Get(ctx, user.ID)
	require.True(t, ok)
	assert.Equal(t, "Ann", cached.FirstName)
}
