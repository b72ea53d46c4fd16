package voucher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"coupon_rush/internal/model"
	"coupon_rush/pkg/cache"
	rediskey "coupon_rush/pkg/redis"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "voucher.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Voucher{}))

	pool := cache.NewRebuildPool(2, 8)
	t.Cleanup(pool.Close)
	return NewService(db, cache.New(rediskey.NewMemoryStore(), pool), 10*time.Minute)
}

func TestQueryByIDReadThrough(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	v := &model.Voucher{
		ShopID:      1,
		Title:       "50元代金券",
		PayValue:    4000,
		ActualValue: 5000,
		Stock:       100,
		BeginTime:   time.Now(),
		EndTime:     time.Now().Add(time.Hour),
	}
	require.NoError(t, svc.Create(ctx, v))

	got, err := svc.QueryByID(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "50元代金券", got.Title)

	// 不存在的券被空值哨兵吸收
	got, err = svc.QueryByID(ctx, 404)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCreateClearsNullSentinel(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	// 先查一个还不存在的 id，留下空值哨兵
	got, err := svc.QueryByID(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, got)

	v := &model.Voucher{
		ShopID:      1,
		Title:       "新券",
		PayValue:    100,
		ActualValue: 200,
		Stock:       10,
		BeginTime:   time.Now(),
		EndTime:     time.Now().Add(time.Hour),
	}
	require.NoError(t, svc.Create(ctx, v))

	// Create 清掉哨兵，新券立刻可查
	got, err = svc.QueryByID(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "新券", got.Title)
}
