package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/zonemap/internal/db"
)

func TestNewStore_RequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for empty addrs")
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	err := s.Ping(context.Background())
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpPing {
		t.Fatalf("expected PING db.Error, got %v", err)
	}
}

func TestWaitForReady(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("PING")).
			Return(mock.ErrorResult(errors.New("connection refused"))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("PING")).
			Return(mock.Result(mock.RedisString("PONG"))),
	)

	s := NewStoreForTest(c)
	if err := s.WaitForReady(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name    string
		result  rueidis.RedisResult
		want    string
		wantErr error
		wantOp  string
	}{
		{name: "hit", result: mock.Result(mock.RedisBlobString("Zona residencial")), want: "Zona residencial"},
		{name: "miss", result: mock.Result(mock.RedisNil()), wantErr: db.ErrKeyNotFound},
		{name: "backend error", result: mock.ErrorResult(errors.New("conn reset")), wantOp: db.OpGet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)
			c.EXPECT().
				Do(gomock.Any(), mock.Match("GET", "zonemap:answer:k")).
				Return(tt.result)

			data, err := NewStoreForTest(c).Get(context.Background(), "zonemap:answer:k")
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
			case tt.wantOp != "":
				var dbErr *db.Error
				if !errors.As(err, &dbErr) || dbErr.Op != tt.wantOp || dbErr.Key != "zonemap:answer:k" {
					t.Errorf("err = %v, want %s db.Error", err, tt.wantOp)
				}
			default:
				if err != nil || string(data) != tt.want {
					t.Errorf("Get() = %q, %v", data, err)
				}
			}
		})
	}
}

func TestSetWithTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "zonemap:answer:abc", "Explanation...", "EX", "3600")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.SetWithTTL(context.Background(), "zonemap:answer:abc", []byte("Explanation..."), time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIncrWithTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	key := "zonemap:quota:openai:daily:2026-03-10"
	c.EXPECT().
		DoMulti(gomock.Any(),
			mock.Match("INCRBY", key, "2"),
			mock.Match("EXPIRE", key, "172800", "NX"),
		).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(6)),
			mock.Result(mock.RedisInt64(0)),
		})

	s := NewStoreForTest(c)
	got, err := s.IncrWithTTL(context.Background(), key, 2, 48*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 6 {
		t.Errorf("IncrWithTTL() = %d, want 6", got)
	}
}

func TestIncrWithTTL_IncrFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.ErrorResult(errors.New("READONLY")),
			mock.ErrorResult(errors.New("READONLY")),
		})

	s := NewStoreForTest(c)
	_, err := s.IncrWithTTL(context.Background(), "k", 1, time.Hour)
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpIncr {
		t.Fatalf("expected INCR db.Error, got %v", err)
	}
}
