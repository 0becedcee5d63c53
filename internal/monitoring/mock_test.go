package monitoring

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/publish"
	"github.com/sells-group/leadgen/internal/store"
)

type mockJobs struct {
	jobs []model.JobRecord
	err  error
}

func (m *mockJobs) ListJobs(_ context.Context, _ store.JobFilter) ([]model.JobRecord, error) {
	return m.jobs, m.err
}

type mockQueue struct {
	depth int
	err   error
}

func (m *mockQueue) List() ([]publish.FallbackRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return make([]publish.FallbackRecord, m.depth), nil
}

var errBoom = eris.New("boom")
