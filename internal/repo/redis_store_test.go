package repo

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/ip-geo-backend/internal/domain"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := OpenRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisStore(rdb)
}

func TestRedisStore_Contract(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		_, s := newMiniRedis(t)
		return s
	})
}

func TestRedisStore_KeyLayout(t *testing.T) {
	ctx := context.Background()
	mr, s := newMiniRedis(t)

	require.NoError(t, s.EnsureSeedUsers(ctx, []SeedUser{{Email: "User1@example.com", Credential: "password1"}}))
	require.True(t, mr.Exists("user:email:user1@example.com"))

	e, err := s.AddHistory(ctx, "u1", "8.8.8.8", domain.GeoRecord{Address: "8.8.8.8"})
	require.NoError(t, err)
	require.True(t, mr.Exists("history:"+e.ID))
	ids, err := mr.List("history:list:u1")
	require.NoError(t, err)
	require.Equal(t, []string{e.ID}, ids)

	require.NoError(t, s.DeleteHistory(ctx, "u1", []string{e.ID}))
	require.False(t, mr.Exists("history:"+e.ID))
	require.False(t, mr.Exists("history:list:u1"))
}

func TestRedisStore_SkipsDanglingIDs(t *testing.T) {
	ctx := context.Background()
	mr, s := newMiniRedis(t)
	e, err := s.AddHistory(ctx, "u1", "8.8.8.8", domain.GeoRecord{Address: "8.8.8.8"})
	require.NoError(t, err)
	_, err = mr.Lpush("history:list:u1", "gone")
	require.NoError(t, err)

	items, err := s.ListHistory(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, e.ID, items[0].ID)
}

func TestRedisStore_ErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	mr, s := newMiniRedis(t)
	mr.SetError("server down")

	_, err := s.AddHistory(ctx, "u1", "8.8.8.8", domain.GeoRecord{})
	require.Error(t, err)
	_, err = s.ListHistory(ctx, "u1", 0)
	require.Error(t, err)
	_, err = s.FindUserByEmail(ctx, "user1@example.com")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestOpenRedis_BadURL(t *testing.T) {
	_, err := OpenRedis(context.Background(), "not-a-url://")
	require.Error(t, err)
}

func TestOpenRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := OpenRedis(context.Background(), "redis://"+addr)
	require.Error(t, err)
}
