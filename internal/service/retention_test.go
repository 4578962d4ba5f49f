package service

import (
	"context"
	"testing"
	"time"

	"polymerbot/internal/config"
)

func TestRetention_DisabledByDefault(t *testing.T) {
	repo := newStubRepo()
	seedRecord(t, repo, "j150", "J150", day(2020, 1, 1), priceOf(14500), "priced", 1)
	svc := &RetentionService{Repo: repo}

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if repo.count() != 1 {
		t.Fatalf("disabled retention pruned records")
	}
}

func TestRetention_PrunesBeyondHorizon(t *testing.T) {
	repo := newStubRepo()
	old := dateOnly(time.Now().UTC()).AddDate(0, 0, -45)
	fresh := dateOnly(time.Now().UTC()).AddDate(0, 0, -5)
	seedRecord(t, repo, "j150", "J150", old, priceOf(14500), "priced", 1)
	seedRecord(t, repo, "j150", "J150", fresh, priceOf(14900), "priced", 2)
	svc := &RetentionService{
		Repo:   repo,
		Config: config.RetentionConfig{Enabled: true, Days: 30},
	}

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	recs := repo.all()
	if len(recs) != 1 || !recs[0].OccurredOn.Equal(fresh) {
		t.Fatalf("records=%+v", recs)
	}
}
