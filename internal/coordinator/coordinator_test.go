package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthill1650-eng/Medscan/constants"
	"github.com/anthill1650-eng/Medscan/internal/entity"
	"github.com/anthill1650-eng/Medscan/internal/scanapi"
)

type statusStep struct {
	resp *entity.StatusResponse
	err  error
}

type fakeAPI struct {
	uploadRes   *entity.DocResult
	uploadErr   error
	uploadCalls int

	steps       []statusStep
	statusCalls int
}

func (f *fakeAPI) Upload(ctx context.Context, files []scanapi.UploadFile) (*entity.DocResult, error) {
	f.uploadCalls++
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return f.uploadRes, nil
}

func (f *fakeAPI) Status(ctx context.Context, docID string) (*entity.StatusResponse, error) {
	f.statusCalls++
	i := f.statusCalls - 1
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	step := f.steps[i]
	return step.resp, step.err
}

// fakeClock returns immediately from Pause, honoring cancellation.
type fakeClock struct {
	pauses []time.Duration
}

func (f *fakeClock) Pause(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	f.pauses = append(f.pauses, d)
	return nil
}

func processingStep() statusStep {
	return statusStep{resp: &entity.StatusResponse{DocID: "d1", Status: constants.StatusProcessing}}
}

func doneStep(pages []entity.Page) statusStep {
	return statusStep{resp: &entity.StatusResponse{
		DocID:  "d1",
		Status: constants.StatusDone,
		Result: &entity.DocResult{DocID: "d1", Status: constants.StatusDone, Pages: pages},
	}}
}

func errorStep(detail string) statusStep {
	resp := &entity.StatusResponse{DocID: "d1", Status: constants.StatusError}
	if detail != "" {
		resp.Error = &detail
	}
	return statusStep{resp: resp}
}

func newTestCoordinator(t *testing.T, api *fakeAPI, cfg Config, opts ...Option) (*Coordinator, *fakeClock) {
	t.Helper()
	clock := &fakeClock{}
	opts = append([]Option{WithClock(clock)}, opts...)
	return New(api, cfg, nil, opts...), clock
}

func TestSubmitRequiresAnImage(t *testing.T) {
	api := &fakeAPI{}
	coord, _ := newTestCoordinator(t, api, Config{})

	_, err := coord.Submit(context.Background())

	require.ErrorIs(t, err, ErrNoImage)
	assert.Zero(t, api.uploadCalls, "a precondition failure must not reach the network")
}

func TestSubmitStoresInitialSnapshot(t *testing.T) {
	api := &fakeAPI{
		uploadRes: &entity.DocResult{
			DocID:  "d1",
			Status: constants.StatusQueued,
			Pages:  []entity.Page{{ID: "p1", URI: "/uploads/d1/page_1.jpg", Page: 1}},
		},
	}
	coord, _ := newTestCoordinator(t, api, Config{})

	snap, err := coord.Submit(context.Background(), scanapi.UploadFile{Filename: "a.jpg"})

	require.NoError(t, err)
	assert.Equal(t, "d1", snap.DocID)
	assert.Equal(t, constants.StatusQueued, snap.Status)
	assert.Len(t, snap.Pages, 1)
}

func TestSubmitWrapsUploadFailure(t *testing.T) {
	cause := errors.New("connection refused")
	api := &fakeAPI{uploadErr: cause}
	coord, _ := newTestCoordinator(t, api, Config{})

	_, err := coord.Submit(context.Background(), scanapi.UploadFile{Filename: "a.jpg"})

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.ErrorIs(t, err, cause)
}

func TestTrackFinishesOnDone(t *testing.T) {
	pages := []entity.Page{{ID: "p1", Text: "GLUCOSE 102 H 70-99", Page: 1}}
	api := &fakeAPI{steps: []statusStep{
		processingStep(),
		doneStep(pages),
	}}
	coord, _ := newTestCoordinator(t, api, Config{})

	outcome, err := coord.Track(context.Background(), "d1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome.Kind)
	assert.Equal(t, pages, outcome.Snapshot.Pages)
	assert.Equal(t, 2, api.statusCalls)
}

func TestTrackImmediateDoneIsOneRequest(t *testing.T) {
	api := &fakeAPI{steps: []statusStep{
		doneStep([]entity.Page{{ID: "p1", Page: 1}}),
	}}
	coord, _ := newTestCoordinator(t, api, Config{})

	outcome, err := coord.Track(context.Background(), "d1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome.Kind)
	assert.Equal(t, 1, api.statusCalls)
}

func TestTrackPagesNeverRegressToEmpty(t *testing.T) {
	pages := []entity.Page{{ID: "p1", Text: "A1C 6.1 (H)", Page: 1}}
	api := &fakeAPI{steps: []statusStep{
		{resp: &entity.StatusResponse{
			DocID:  "d1",
			Status: constants.StatusProcessing,
			Result: &entity.DocResult{DocID: "d1", Pages: pages},
		}},
		// Later round carries a terminal status but an empty result payload.
		{resp: &entity.StatusResponse{
			DocID:  "d1",
			Status: constants.StatusDone,
			Result: &entity.DocResult{DocID: "d1"},
		}},
	}}
	coord, _ := newTestCoordinator(t, api, Config{})

	outcome, err := coord.Track(context.Background(), "d1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome.Kind)
	assert.Equal(t, pages, outcome.Snapshot.Pages, "an empty result must not erase pages already seen")
}

func TestTrackJobFailedCarriesDetail(t *testing.T) {
	api := &fakeAPI{steps: []statusStep{
		errorStep("scan unreadable"),
		processingStep(), // must never be reached
	}}
	coord, _ := newTestCoordinator(t, api, Config{})

	outcome, err := coord.Track(context.Background(), "d1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeJobFailed, outcome.Kind)
	assert.Equal(t, "scan unreadable", outcome.ErrorDetail)
	assert.Equal(t, 1, api.statusCalls, "terminal failure must stop polling")
}

func TestTrackJobFailedDefaultsDetail(t *testing.T) {
	api := &fakeAPI{steps: []statusStep{errorStep("")}}
	coord, _ := newTestCoordinator(t, api, Config{})

	outcome, err := coord.Track(context.Background(), "d1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeJobFailed, outcome.Kind)
	assert.Equal(t, "document processing failed", outcome.ErrorDetail)
}

func TestTrackTimesOutAfterBudget(t *testing.T) {
	api := &fakeAPI{steps: []statusStep{processingStep()}}
	coord, clock := newTestCoordinator(t, api, Config{MaxAttempts: 5, PollInterval: 250 * time.Millisecond})

	outcome, err := coord.Track(context.Background(), "d1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome.Kind)
	assert.Equal(t, constants.StatusProcessing, outcome.Snapshot.Status)
	assert.Equal(t, 5, api.statusCalls)
	require.Len(t, clock.pauses, 5)
	assert.Equal(t, 250*time.Millisecond, clock.pauses[0])
}

func TestTrackGetsFreshBudgetAfterTimeout(t *testing.T) {
	api := &fakeAPI{steps: []statusStep{processingStep()}}
	coord, _ := newTestCoordinator(t, api, Config{MaxAttempts: 3})

	outcome, err := coord.Track(context.Background(), "d1")
	require.NoError(t, err)
	require.Equal(t, OutcomeTimedOut, outcome.Kind)

	// A second Track on the same job polls again with a full budget.
	outcome, err = coord.Track(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome.Kind)
	assert.Equal(t, 6, api.statusCalls)
}

func TestTrackTerminalStatusIsAbsorbing(t *testing.T) {
	api := &fakeAPI{steps: []statusStep{doneStep([]entity.Page{{ID: "p1", Page: 1}})}}
	coord, _ := newTestCoordinator(t, api, Config{})

	_, err := coord.Track(context.Background(), "d1")
	require.NoError(t, err)
	require.Equal(t, 1, api.statusCalls)

	outcome, err := coord.Track(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome.Kind)
	assert.Equal(t, 1, api.statusCalls, "a finished job must be answered from the stored snapshot")
}

func TestTrackCancelledBetweenPolls(t *testing.T) {
	api := &fakeAPI{steps: []statusStep{processingStep()}}
	coord, _ := newTestCoordinator(t, api, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := coord.Track(ctx, "d1")

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, api.statusCalls)
}

func TestTrackTransportErrorsChargeBudgetByDefault(t *testing.T) {
	api := &fakeAPI{steps: []statusStep{{err: errors.New("dial tcp: timeout")}}}
	coord, _ := newTestCoordinator(t, api, Config{MaxAttempts: 4})

	outcome, err := coord.Track(context.Background(), "d1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome.Kind)
	assert.Equal(t, 4, api.statusCalls)
}

func TestTrackFreeRetryPolicyRecovers(t *testing.T) {
	api := &fakeAPI{steps: []statusStep{
		{err: errors.New("dial tcp: timeout")},
		{err: errors.New("dial tcp: timeout")},
		doneStep([]entity.Page{{ID: "p1", Page: 1}}),
	}}
	coord, _ := newTestCoordinator(t, api, Config{MaxAttempts: 2, ErrorPolicy: PollErrorFreeRetry})

	outcome, err := coord.Track(context.Background(), "d1")

	require.NoError(t, err)
	// Two failures would have exhausted a counted budget of 2; free retries
	// let the third round land.
	assert.Equal(t, OutcomeDone, outcome.Kind)
	assert.Equal(t, 3, api.statusCalls)
}

func TestTrackFreeRetryStillStopsOnDeadNetwork(t *testing.T) {
	api := &fakeAPI{steps: []statusStep{{err: errors.New("connection refused")}}}
	coord, _ := newTestCoordinator(t, api, Config{MaxAttempts: 5, ErrorPolicy: PollErrorFreeRetry})

	outcome, err := coord.Track(context.Background(), "d1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome.Kind)
	assert.Equal(t, 5, api.statusCalls)
}

func TestOnUpdateSeesProgress(t *testing.T) {
	api := &fakeAPI{
		uploadRes: &entity.DocResult{DocID: "d1", Status: constants.StatusQueued},
		steps: []statusStep{
			processingStep(),
			doneStep([]entity.Page{{ID: "p1", Page: 1}}),
		},
	}
	var seen []constants.DocStatus
	coord, _ := newTestCoordinator(t, api, Config{}, WithOnUpdate(func(s Snapshot) {
		seen = append(seen, s.Status)
	}))

	_, err := coord.Submit(context.Background(), scanapi.UploadFile{Filename: "a.jpg"})
	require.NoError(t, err)
	_, err = coord.Track(context.Background(), "d1")
	require.NoError(t, err)

	assert.Equal(t, []constants.DocStatus{
		constants.StatusQueued,
		constants.StatusProcessing,
		constants.StatusDone,
	}, seen)
}

func TestSnapshotIsACopy(t *testing.T) {
	api := &fakeAPI{steps: []statusStep{doneStep([]entity.Page{{ID: "p1", Page: 1}})}}
	coord, _ := newTestCoordinator(t, api, Config{})

	_, err := coord.Track(context.Background(), "d1")
	require.NoError(t, err)

	snap := coord.Snapshot()
	snap.Pages[0].ID = "mutated"
	assert.Equal(t, "p1", coord.Snapshot().Pages[0].ID)
}
