package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/lyric-companion/backend/internal/model"
)

// TestConnectionLifecycleProperty checks that any recorded connection can be
// read back and that finishing it stores exactly the summary given.
func TestConnectionLifecycleProperty(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	reasons := gen.OneConstOf(
		model.CloseReasonClient,
		model.CloseReasonTransport,
		model.CloseReasonProtocol,
		model.CloseReasonShutdown,
	)

	properties.Property("connection records survive create and finish", prop.ForAll(
		func(remoteAddr, userAgent string, framesIn, framesOut int64, reason model.CloseReason) bool {
			id := uuid.NewString()
			start := time.Now().Truncate(time.Second)

			rec := &model.ConnectionRecord{
				ID:          id,
				RemoteAddr:  remoteAddr,
				UserAgent:   userAgent,
				Status:      model.SessionStatusOpen,
				ConnectedAt: start,
			}
			if err := repo.Create(ctx, rec); err != nil {
				t.Logf("create: %v", err)
				return false
			}

			got, err := repo.GetByID(ctx, id)
			if err != nil || got.RemoteAddr != remoteAddr || got.UserAgent != userAgent || got.Status != model.SessionStatusOpen {
				return false
			}

			summary := model.ConnectionSummary{
				CloseReason: reason,
				FramesIn:    framesIn,
				FramesOut:   framesOut,
				ClosedAt:    start.Add(time.Second),
			}
			if err := repo.Finish(ctx, id, summary); err != nil {
				t.Logf("finish: %v", err)
				return false
			}

			got, err = repo.GetByID(ctx, id)
			if err != nil {
				return false
			}
			return got.Status == model.SessionStatusClosed &&
				got.CloseReason == reason &&
				got.FramesIn == framesIn &&
				got.FramesOut == framesOut &&
				got.ClosedAt != nil &&
				got.Duration() == time.Second
		},
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 }),
		gen.AlphaString(),
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(0, 1<<40),
		reasons,
	))

	properties.TestingRun(t)
}
